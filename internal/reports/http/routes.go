package reporthttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/staydesk/staydesk/internal/platform/httpx"
)

// MountRoutes registers the reporting endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	exportLimiter := httprate.Limit(20, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP, httprate.KeyByEndpoint),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "export rate limit exceeded")
		}),
	)

	r.Route("/reports", func(r chi.Router) {
		r.Get("/", h.handleReport)
		r.Get("/periods", h.handlePeriods)
		r.Get("/properties", h.handleProperties)
		r.Group(func(gr chi.Router) {
			gr.Use(exportLimiter)
			gr.Get("/export.csv", h.handleCSV)
			gr.Get("/export.json", h.handleJSONExport)
			gr.Post("/cache/bump", h.handleCacheBump)
		})
	})
}
