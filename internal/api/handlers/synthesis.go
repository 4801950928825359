package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/google/uuid"

	"github.com/voxlabs/ttsd/internal/audio"
	"github.com/voxlabs/ttsd/internal/cache"
	"github.com/voxlabs/ttsd/internal/engine"
	"github.com/voxlabs/ttsd/internal/resident"
)

// maxUploadBytes bounds the reference audio upload for voice cloning.
const maxUploadBytes = 32 << 20

// SynthesisHandler serves the three synthesis endpoints. Each request maps
// to exactly one model key, acquires a handle from the residency manager,
// performs one invocation, and encodes the result as WAV.
type SynthesisHandler struct {
	manager *resident.Manager
	cache   *cache.AudioCache
	logger  *slog.Logger
}

func NewSynthesisHandler(m *resident.Manager, c *cache.AudioCache, logger *slog.Logger) *SynthesisHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SynthesisHandler{manager: m, cache: c, logger: logger}
}

// VoiceDesign generates speech in a voice described by a style instruction.
func (h *SynthesisHandler) VoiceDesign(w http.ResponseWriter, r *http.Request) {
	text := r.PostFormValue("target_text")
	lang := r.PostFormValue("language")
	instruct := r.PostFormValue("instruct")
	if text == "" || lang == "" || instruct == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "target_text, language and instruct are required"})
		return
	}

	req := engine.Request{Text: text, Language: lang, Instruct: instruct}
	digest := cache.Digest("voice-design", text, lang, instruct)
	h.synthesize(w, r, "design", req, digest)
}

// CustomVoice generates speech with a named speaker on a sized model
// variant. The model key is derived as "{size}-custom".
func (h *SynthesisHandler) CustomVoice(w http.ResponseWriter, r *http.Request) {
	size := r.PostFormValue("model")
	text := r.PostFormValue("target_text")
	lang := r.PostFormValue("language")
	speaker := r.PostFormValue("speaker")
	instruct := r.PostFormValue("instruct")
	if size == "" || text == "" || lang == "" || speaker == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "model, target_text, language and speaker are required"})
		return
	}

	key := fmt.Sprintf("%s-custom", size)
	req := engine.Request{Text: text, Language: lang, Speaker: speaker, Instruct: instruct}
	digest := cache.Digest("custom-voice", key, text, lang, speaker, instruct)
	h.synthesize(w, r, key, req, digest)
}

// VoiceClone generates speech in the voice of an uploaded reference sample.
// The upload is staged to a temporary file for the duration of the call and
// removed afterward regardless of outcome. The model key is derived as
// "{size}-clone".
func (h *SynthesisHandler) VoiceClone(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form: " + err.Error()})
		return
	}

	size := r.PostFormValue("model")
	text := r.PostFormValue("target_text")
	lang := r.PostFormValue("language")
	refText := r.PostFormValue("reference_text")
	if size == "" || text == "" || lang == "" || refText == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "model, target_text, language and reference_text are required"})
		return
	}

	file, _, err := r.FormFile("reference_audio")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reference_audio file is required"})
		return
	}
	defer file.Close()

	refPath, refDigest, err := stageUpload(file)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "stage reference audio: " + err.Error()})
		return
	}
	defer os.Remove(refPath)

	key := fmt.Sprintf("%s-clone", size)
	req := engine.Request{Text: text, Language: lang, RefText: refText, RefAudioPath: refPath}
	digest := cache.Digest("voice-clone", key, text, lang, refText, refDigest)
	h.synthesize(w, r, key, req, digest)
}

// synthesize is the shared acquire-invoke-encode path.
func (h *SynthesisHandler) synthesize(w http.ResponseWriter, r *http.Request, key string, req engine.Request, digest string) {
	ctx := r.Context()

	if wav, ok := h.cache.Get(ctx, digest); ok {
		h.logger.Info("serving cached audio", "key", key)
		respondWAV(w, wav)
		return
	}

	handle, release, err := h.manager.Acquire(ctx, key)
	if err != nil {
		var unknown *resident.UnknownModelError
		if errors.As(err, &unknown) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": unknown.Error()})
			return
		}
		h.logger.Error("acquire failed", "key", key, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	defer release()

	result, err := handle.Synthesize(ctx, req)
	if err != nil {
		ierr := &resident.InvocationError{Key: key, Err: err}
		h.logger.Error("synthesis failed", "key", key, "error", ierr)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": ierr.Error()})
		return
	}

	wav, err := audio.EncodeWAVBytes(result.PCM, result.SampleRate)
	if err != nil {
		h.logger.Error("wav encoding failed", "key", key, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	h.cache.Set(ctx, digest, wav)
	respondWAV(w, wav)
}

// stageUpload copies the uploaded reference audio to a temporary file and
// returns its path along with a content digest for cache keying.
func stageUpload(file io.Reader) (path, digest string, err error) {
	tmp, err := os.CreateTemp("", "ttsd-ref-*.wav")
	if err != nil {
		return "", "", err
	}

	hash := sha256.New()
	_, err = io.Copy(tmp, io.TeeReader(file, hash))
	// A short write can surface at Close; catch it here rather than as a
	// confusing invocation failure inside the worker.
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", "", err
	}
	return tmp.Name(), hex.EncodeToString(hash.Sum(nil)), nil
}

func respondWAV(w http.ResponseWriter, wav []byte) {
	name := fmt.Sprintf("output_%s.wav", uuid.NewString())
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(wav)))
	w.WriteHeader(http.StatusOK)
	w.Write(wav)
}
