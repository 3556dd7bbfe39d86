// Package httptransport is the HTTP edge of the service. Handlers stay
// thin: decode, authenticate, delegate to the gateway or the admin
// orchestrator, translate errors.
package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"idledger/internal/authz"
	"idledger/internal/ratelimit"
	"idledger/pkg/platform/httputil"
)

// RouterConfig bundles the dependencies of the full route tree.
type RouterConfig struct {
	Assets     *AssetHandler
	Admin      *AdminHandler
	Verifier   *authz.TokenVerifier
	AdminToken string

	// Nil limiters fall back to the package defaults.
	PublicLimiter *ratelimit.Limiter
	AdminLimiter  *ratelimit.Limiter
}

// NewRouter wires the public and admin surfaces. The admin subtree runs
// behind the shared token and a tighter rate limit than the public one.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.PublicLimiter == nil {
		cfg.PublicLimiter = ratelimit.New(ratelimit.PublicLimit)
	}
	if cfg.AdminLimiter == nil {
		cfg.AdminLimiter = ratelimit.New(ratelimit.AdminLimit)
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestID)
	r.Use(RequestTime)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, cfg.Assets.ledger.GetNetworkStatus())
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(RateLimit(cfg.PublicLimiter))
		r.Use(Authenticate(cfg.Verifier))
		cfg.Assets.Register(r)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(RateLimit(cfg.AdminLimiter))
		r.Use(AdminToken(cfg.AdminToken))
		cfg.Admin.Register(r)
	})

	return r
}
