package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/dashclient/internal/dashboard"
	"github.com/odyssey-erp/dashclient/internal/observability"
	"github.com/odyssey-erp/dashclient/internal/stub"
)

// stubRateLimit is the per-IP request budget of the stub server.
const stubRateLimit = 600

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger      *slog.Logger
	Config      *Config
	StubHandler *stub.Handler
	Metrics     *observability.Metrics
}

// NewRouter constructs the stub server router. API routes live under the
// configured path prefix; health and metrics stay at the root.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:    params.Logger,
		Config:    params.Config,
		Metrics:   params.Metrics,
		RateLimit: stubRateLimit,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.StubHandler != nil {
		prefix := ""
		if params.Config != nil {
			prefix = dashboard.NormalizePrefix(params.Config.PathPrefix)
		}
		if prefix == "" {
			params.StubHandler.MountRoutes(r)
		} else {
			r.Route(prefix, params.StubHandler.MountRoutes)
		}
	}

	return r
}
