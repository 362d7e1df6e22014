package bridge

import "github.com/go-chi/chi/v5"

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/api/wa/webhook", h.HandleWebhook)
	r.Post("/webhook", h.HandleWebhook)
}

// RegisterAdminRoutes mounts the settings and history API behind a bearer token.
func RegisterAdminRoutes(r chi.Router, h *AdminHandler, token string) {
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(BearerAuth(token))
		r.Get("/settings", h.GetSettings)
		r.Post("/settings", h.PutSettings)
		r.Get("/history", h.GetHistory)
	})
}
