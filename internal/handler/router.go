package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/parking-ledger/internal/metrics"
	custommiddleware "github.com/mmeshcher/parking-ledger/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware API парковки.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/quote", h.Quote)
		r.Get("/cars", h.GetParkedCars)

		r.Get("/history/{identity}", h.GetHistory)
		r.Get("/history/{identity}/export", h.ExportHistory)
	})

	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
