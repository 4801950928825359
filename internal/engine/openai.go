package engine

import (
	"context"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI-compatible endpoints return raw PCM at a fixed rate for
// response_format "pcm".
const openaiPCMRate = 24000

// OpenAIConfig holds configuration for the remote OpenAI-compatible engine.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // default: the public OpenAI endpoint
	ModelID string // default: "tts-1"
	Voice   string // default: "alloy"
}

// OpenAILoader serves a model key from a remote OpenAI-compatible speech
// endpoint instead of a local worker. Loading is a no-op beyond client
// construction, so keys backed by this engine swap in and out cheaply; the
// loader exists so remote and local variants share one residency path.
type OpenAILoader struct {
	cfg OpenAIConfig
}

// NewOpenAILoader creates an OpenAILoader with defaults applied.
func NewOpenAILoader(cfg OpenAIConfig) *OpenAILoader {
	if cfg.ModelID == "" {
		cfg.ModelID = "tts-1"
	}
	if cfg.Voice == "" {
		cfg.Voice = "alloy"
	}
	return &OpenAILoader{cfg: cfg}
}

func (l *OpenAILoader) Name() string { return "openai" }

func (l *OpenAILoader) Load(ctx context.Context, key string) (Handle, error) {
	clientCfg := openai.DefaultConfig(l.cfg.APIKey)
	if l.cfg.BaseURL != "" {
		clientCfg.BaseURL = l.cfg.BaseURL
	}
	return &openaiHandle{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    l.cfg,
	}, nil
}

type openaiHandle struct {
	client *openai.Client
	cfg    OpenAIConfig
}

func (h *openaiHandle) Synthesize(ctx context.Context, req Request) (*Result, error) {
	voice := h.cfg.Voice
	if req.Speaker != "" {
		voice = req.Speaker
	}

	resp, err := h.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(h.cfg.ModelID),
		Input:          req.Text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatPcm,
	})
	if err != nil {
		return nil, fmt.Errorf("speech request: %w", err)
	}
	defer resp.Close()

	raw, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	pcm, err := decodePCM16LE(raw)
	if err != nil {
		return nil, err
	}
	return &Result{PCM: pcm, SampleRate: openaiPCMRate}, nil
}

func (h *openaiHandle) Close() error { return nil }
