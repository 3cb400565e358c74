package router

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/uma-arai/sbcntr-pickup/internal/api"
	m "github.com/uma-arai/sbcntr-pickup/internal/api/middleware"
)

type Options struct {
	// ServiceName はX-Rayのセグメント名です
	ServiceName   string
	EnableTracing bool
	// RateLimit がnilの場合は公開POSTを制限しません
	RateLimit *m.TokenBucket
}

func SetupRouter(server *api.Server, opts Options, logger zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// 全体のミドルウェア
	r.Use(m.Tracing(opts.ServiceName, opts.EnableTracing))
	r.Use(m.RequestID)
	r.Use(middleware.RealIP)
	r.Use(m.Logger(logger))
	r.Use(m.Recover(server.Responder))

	limited := m.RateLimit(opts.RateLimit, server.Responder)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", server.HealthHandler.Health)

		r.Route("/presets", func(r chi.Router) {
			r.Get("/", server.PresetHandler.List)
			r.Route("/{id}", func(r chi.Router) {
				r.Delete("/", server.PresetHandler.Delete)
				r.Get("/config", server.PresetHandler.GetConfig)
				r.Put("/config", server.PresetHandler.UpdateConfig)
				r.Get("/products", server.PresetHandler.ListProducts)
				r.Put("/products", server.PresetHandler.ReplaceProducts)
				r.Post("/products", server.PresetHandler.AddProduct)
			})
		})

		r.Route("/reservations", func(r chi.Router) {
			r.Get("/", server.ReservationHandler.List)
			r.With(limited).Post("/", server.ReservationHandler.Create)
			r.Get("/{id}", server.ReservationHandler.Get)
			r.With(limited).Post("/cancel/{token}", server.ReservationHandler.Cancel)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/products/import", server.ProductImportHandler.Import)
			r.Post("/products/import-pos", server.ProductImportHandler.ImportPOS)

			r.Route("/form-settings", func(r chi.Router) {
				r.Get("/", server.FormSettingsHandler.List)
				r.Post("/", server.FormSettingsHandler.Create)
				r.Get("/{id}", server.FormSettingsHandler.Get)
				r.Put("/{id}", server.FormSettingsHandler.Update)
			})

			r.Get("/stats", server.AdminHandler.Stats)
		})

		r.With(limited).Post("/webhook/line", server.WebhookHandler.Line)
	})

	return r
}
