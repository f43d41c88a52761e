// Package handler содержит HTTP-обработчики API парковки.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/parking-ledger/internal/export"
	"github.com/mmeshcher/parking-ledger/internal/metrics"
	"github.com/mmeshcher/parking-ledger/internal/model"
	"github.com/mmeshcher/parking-ledger/internal/repository"
	"github.com/mmeshcher/parking-ledger/internal/service"
	"github.com/mmeshcher/parking-ledger/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Quote(arrival, departure, frequentNumber string) (float64, error)
	ListParkedCars(ctx context.Context) ([]model.ParkedCar, error)
	GetHistory(ctx context.Context, identity string) (*service.HistoryView, error)
}

// Handler реализует HTTP-обработчики API парковки.
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service: s,
		logger:  logger,
	}
}

type quoteResponse struct {
	Fee float64 `json:"fee"`
}

type validationResponse struct {
	Errors []string `json:"errors"`
}

// Quote рассчитывает стоимость стоянки для переданного интервала.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	fee, err := h.service.Quote(q.Get("arrival"), q.Get("departure"), q.Get("frequent_parking_number"))
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, validationResponse{Errors: verr.Reasons})
			return
		}
		h.logger.Error("quote error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, quoteResponse{Fee: fee})
}

// GetParkedCars возвращает список припаркованных автомобилей.
func (h *Handler) GetParkedCars(w http.ResponseWriter, r *http.Request) {
	cars, err := h.service.ListParkedCars(r.Context())
	if err != nil {
		h.logger.Error("list parked cars error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(cars) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, cars)
}

type historyResponse struct {
	Identity         string           `json:"identity"`
	TotalPayments    float64          `json:"total_payments"`
	AvailableCredits float64          `json:"available_credits"`
	ParkedDates      []string         `json:"parked_dates"`
	Current          *model.ParkedCar `json:"current,omitempty"`
}

// GetHistory возвращает историю оплат автомобиля.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	view, ok := h.loadHistory(w, r)
	if !ok {
		return
	}

	parkedDates := view.History.ParkedDates
	if parkedDates == nil {
		parkedDates = []string{}
	}

	writeJSON(w, http.StatusOK, historyResponse{
		Identity:         view.Identity,
		TotalPayments:    view.History.TotalPayments,
		AvailableCredits: view.History.AvailableCredits,
		ParkedDates:      parkedDates,
		Current:          view.Current,
	})
}

// ExportHistory выгружает историю оплат в формате XLSX или PDF.
func (h *Handler) ExportHistory(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = export.FormatXLSX
	}

	view, ok := h.loadHistory(w, r)
	if !ok {
		return
	}

	data, err := export.Build(format, export.Statement{
		Identity: view.Identity,
		History:  view.History,
		Visits:   view.Lines(),
	})
	if err != nil {
		if errors.Is(err, export.ErrUnknownFormat) {
			metrics.ObserveExport(format, metrics.ResultInvalid)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		metrics.ObserveExport(format, metrics.ResultError)
		h.logger.Error("export history error", zap.Error(err), zap.String("identity", view.Identity))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	metrics.ObserveExport(format, metrics.ResultSuccess)
	w.Header().Set("Content-Type", export.ContentType(format))
	w.Header().Set("Content-Disposition", `attachment; filename="`+view.Identity+"."+format+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) loadHistory(w http.ResponseWriter, r *http.Request) (*service.HistoryView, bool) {
	identity := chi.URLParam(r, "identity")
	if !validation.IsValidCarIdentity(identity) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return nil, false
	}

	view, err := h.service.GetHistory(r.Context(), identity)
	if err != nil {
		if errors.Is(err, repository.ErrCarNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return nil, false
		}
		h.logger.Error("get history error", zap.Error(err), zap.String("identity", identity))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return nil, false
	}

	return view, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
