package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/voxlabs/ttsd/internal/api/handlers"
	"github.com/voxlabs/ttsd/internal/api/middleware"
	"github.com/voxlabs/ttsd/internal/cache"
	"github.com/voxlabs/ttsd/internal/resident"
)

type Router struct {
	mux     *chi.Mux
	manager *resident.Manager
	cache   *cache.AudioCache
	logger  *slog.Logger
}

func NewRouter(m *resident.Manager, c *cache.AudioCache, logger *slog.Logger) *Router {
	return &Router{
		mux:     chi.NewRouter(),
		manager: m,
		cache:   c,
		logger:  logger,
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	rl := middleware.NewRateLimiter(5, 10)
	r.Use(rl.Limit)

	health := handlers.NewHealthHandler(rt.manager, rt.cache)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	synth := handlers.NewSynthesisHandler(rt.manager, rt.cache, rt.logger)
	r.Post("/voice-design", synth.VoiceDesign)
	r.Post("/custom-voice", synth.CustomVoice)
	r.Post("/voice-clone", synth.VoiceClone)

	return r
}
