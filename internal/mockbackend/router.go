package mockbackend

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"kycflow/internal/platform/health"
	"kycflow/internal/platform/middleware"
	"kycflow/internal/transport/httputil"
)

// RouterConfig configures the backend router.
type RouterConfig struct {
	// AdminToken guards /api/admin. Empty leaves the admin API open.
	AdminToken     string
	RequestTimeout time.Duration
	// Metrics, when set, is served on /metrics.
	Metrics http.Handler
}

// NewRouter wires the backend endpoints with middleware.
func NewRouter(h *Handler, hc *health.Handler, cfg RouterConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.ClientPlatform)
	r.Use(middleware.Logger(logger))
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, httputil.NewError(http.StatusNotFound, httputil.CodeNotFound, "no route for "+r.Method+" "+r.URL.Path))
	})

	if hc != nil {
		hc.Register(r)
	}
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	h.Register(r)
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.RequireAdminToken(cfg.AdminToken, logger))
		h.RegisterAdmin(r)
	})

	return r
}
