package engine

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
)

// workerOutput is one line of worker stdout. Field names for the audio
// payload and sample rate have drifted across model library versions, so
// all known spellings are accepted and normalized in result.
type workerOutput struct {
	Event string `json:"event,omitempty"`
	Error string `json:"error,omitempty"`

	PCM   string `json:"pcm,omitempty"`
	Audio string `json:"audio,omitempty"`
	Wav   string `json:"wav,omitempty"`

	SampleRate   int `json:"sample_rate,omitempty"`
	SamplingRate int `json:"sampling_rate,omitempty"`
	SR           int `json:"sr,omitempty"`
}

// result converts a worker response into the one fixed Result shape.
// The payload is base64-encoded little-endian float32 mono samples.
func (o *workerOutput) result() (*Result, error) {
	payload := o.PCM
	if payload == "" {
		payload = o.Audio
	}
	if payload == "" {
		payload = o.Wav
	}
	rate := o.SampleRate
	if rate == 0 {
		rate = o.SamplingRate
	}
	if rate == 0 {
		rate = o.SR
	}
	if payload == "" || rate == 0 {
		return nil, fmt.Errorf("worker output missing audio or sample rate")
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode audio payload: %w", err)
	}
	pcm, err := decodeFloat32LE(raw)
	if err != nil {
		return nil, err
	}
	return &Result{PCM: pcm, SampleRate: rate}, nil
}

func decodeFloat32LE(raw []byte) ([]float32, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("audio payload length %d is not a multiple of 4", len(raw))
	}
	pcm := make([]float32, len(raw)/4)
	for i := range pcm {
		bits := binary.LittleEndian.Uint32(raw[i*4:])
		pcm[i] = math.Float32frombits(bits)
	}
	return pcm, nil
}

// decodePCM16LE converts signed 16-bit little-endian samples to float32,
// the format OpenAI-compatible endpoints return for response_format "pcm".
func decodePCM16LE(raw []byte) ([]float32, error) {
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("pcm payload length %d is not a multiple of 2", len(raw))
	}
	pcm := make([]float32, len(raw)/2)
	for i := range pcm {
		s := int16(binary.LittleEndian.Uint16(raw[i*2:]))
		pcm[i] = float32(s) / 32768
	}
	return pcm, nil
}
