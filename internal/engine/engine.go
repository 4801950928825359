package engine

import "context"

// Request holds the parameters for one synthesis invocation against a
// loaded model. Fields that a given model variant does not use are left
// empty.
type Request struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Instruct string `json:"instruct,omitempty"`
	Speaker  string `json:"speaker,omitempty"`

	// Voice cloning only.
	RefText      string `json:"ref_text,omitempty"`
	RefAudioPath string `json:"ref_audio,omitempty"`
}

// Result is the normalized model output: mono PCM samples plus the rate
// reported by the model. Every engine adapter converts its backend's native
// output shape into this one before it leaves the package.
type Result struct {
	PCM        []float32
	SampleRate int
}

// Handle is the live, usable form of a loaded model. A Handle is owned by
// the resident slot; callers borrow it for the duration of a single
// Synthesize call and must not retain it afterwards.
//
// Close releases all memory and device state held by the model. It is safe
// to call exactly once per handle.
type Handle interface {
	Synthesize(ctx context.Context, req Request) (*Result, error)
	Close() error
}

// Loader produces a ready-to-use Handle for a model key. Load may take
// seconds to minutes and must be safely callable again immediately after a
// prior failure for the same key.
type Loader interface {
	Load(ctx context.Context, key string) (Handle, error)
	Name() string
}
