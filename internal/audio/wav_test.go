package audio

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeWAVHeader(t *testing.T) {
	pcm := []float32{0, 0.5, -0.5, 1, -1}
	out, err := EncodeWAVBytes(pcm, 22050)
	require.NoError(t, err)
	require.Len(t, out, 44+len(pcm)*2)

	assert.Equal(t, "RIFF", string(out[:4]))
	assert.Equal(t, uint32(len(out)-8), binary.LittleEndian.Uint32(out[4:8]))
	assert.Equal(t, "WAVE", string(out[8:12]))
	assert.Equal(t, "fmt ", string(out[12:16]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(out[20:22]), "PCM format")
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(out[22:24]), "mono")
	assert.Equal(t, uint32(22050), binary.LittleEndian.Uint32(out[24:28]))
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(out[34:36]), "bits per sample")
	assert.Equal(t, "data", string(out[36:40]))
	assert.Equal(t, uint32(len(pcm)*2), binary.LittleEndian.Uint32(out[40:44]))
}

func TestEncodeWAVSamples(t *testing.T) {
	out, err := EncodeWAVBytes([]float32{0, 1, -1}, 24000)
	require.NoError(t, err)

	data := out[44:]
	assert.Equal(t, int16(0), int16(binary.LittleEndian.Uint16(data[0:2])))
	assert.Equal(t, int16(32767), int16(binary.LittleEndian.Uint16(data[2:4])))
	assert.Equal(t, int16(-32767), int16(binary.LittleEndian.Uint16(data[4:6])))
}

func TestEncodeWAVClipsOutOfRange(t *testing.T) {
	out, err := EncodeWAVBytes([]float32{2.5, -3}, 24000)
	require.NoError(t, err)

	data := out[44:]
	assert.Equal(t, int16(32767), int16(binary.LittleEndian.Uint16(data[0:2])))
	assert.Equal(t, int16(-32767), int16(binary.LittleEndian.Uint16(data[2:4])))
}

func TestEncodeWAVInvalidRate(t *testing.T) {
	_, err := EncodeWAVBytes([]float32{0}, 0)
	assert.Error(t, err)
}
