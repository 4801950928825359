package engine

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeF32(samples []float32) string {
	raw := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(s))
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func TestWorkerOutputFieldAliases(t *testing.T) {
	samples := []float32{0.1, -0.2, 0.3}
	payload := encodeF32(samples)

	tests := []struct {
		name string
		line string
	}{
		{"canonical", `{"pcm":"` + payload + `","sample_rate":24000}`},
		{"audio_alias", `{"audio":"` + payload + `","sampling_rate":24000}`},
		{"wav_alias", `{"wav":"` + payload + `","sr":24000}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out workerOutput
			require.NoError(t, json.Unmarshal([]byte(tt.line), &out))

			res, err := out.result()
			require.NoError(t, err)
			assert.Equal(t, 24000, res.SampleRate)
			assert.InDeltaSlice(t, samples, res.PCM, 1e-6)
		})
	}
}

func TestWorkerOutputMissingFields(t *testing.T) {
	tests := []struct {
		name string
		out  workerOutput
	}{
		{"no_audio", workerOutput{SampleRate: 24000}},
		{"no_rate", workerOutput{PCM: encodeF32([]float32{0})}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.out.result()
			assert.Error(t, err)
		})
	}
}

func TestWorkerOutputBadPayload(t *testing.T) {
	out := workerOutput{PCM: "not base64!!", SampleRate: 24000}
	_, err := out.result()
	assert.Error(t, err)

	out = workerOutput{
		PCM:        base64.StdEncoding.EncodeToString([]byte{1, 2, 3}),
		SampleRate: 24000,
	}
	_, err = out.result()
	assert.Error(t, err, "payload not a multiple of 4 bytes")
}

func TestDecodePCM16LE(t *testing.T) {
	raw := make([]byte, 6)
	binary.LittleEndian.PutUint16(raw[0:], uint16(int16(0)))
	binary.LittleEndian.PutUint16(raw[2:], uint16(int16(16384)))
	negMax := int16(-32768)
	binary.LittleEndian.PutUint16(raw[4:], uint16(negMax))

	pcm, err := decodePCM16LE(raw)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0, 0.5, -1}, pcm, 1e-4)

	_, err = decodePCM16LE([]byte{1})
	assert.Error(t, err)
}
