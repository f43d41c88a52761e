// Package metrics содержит метрики Prometheus сервиса парковки.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricPrefix = "parking_"

// Результаты операций для меток метрик.
const (
	ResultSuccess      = "success"
	ResultError        = "error"
	ResultInvalid      = "invalid"
	ResultNotFound     = "not_found"
	ResultInsufficient = "insufficient"
)

var (
	registerOnce sync.Once

	parkTotal   *prometheus.CounterVec
	pickUpTotal *prometheus.CounterVec
	feeAmount   prometheus.Histogram
	quoteTotal  *prometheus.CounterVec
	exportTotal *prometheus.CounterVec
	activeCars  prometheus.Gauge
)

// Init регистрирует метрики в реестре по умолчанию. Повторные вызовы игнорируются.
func Init() {
	registerOnce.Do(func() {
		parkTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "park_total",
				Help: "Total park operations by result",
			},
			[]string{"result"},
		)
		pickUpTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "pickup_total",
				Help: "Total pick up operations by result",
			},
			[]string{"result"},
		)
		feeAmount = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "fee_amount",
				Help:    "Charged parking fees",
				Buckets: []float64{5, 10, 20, 40, 80, 160, 320},
			},
		)
		quoteTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "quote_total",
				Help: "Total fee quotes by result",
			},
			[]string{"result"},
		)
		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "history_export_total",
				Help: "Total history exports by format and result",
			},
			[]string{"format", "result"},
		)
		activeCars = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "active_cars",
				Help: "Cars currently parked as seen by the last listing",
			},
		)

		prometheus.MustRegister(
			parkTotal,
			pickUpTotal,
			feeAmount,
			quoteTotal,
			exportTotal,
			activeCars,
		)
	})
}

// Handler возвращает HTTP-обработчик для выгрузки метрик.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePark учитывает постановку автомобиля.
func ObservePark(result string) {
	if result == "" {
		result = ResultSuccess
	}
	if parkTotal != nil {
		parkTotal.WithLabelValues(result).Inc()
	}
}

// ObservePickUp учитывает выдачу автомобиля и сумму оплаты.
func ObservePickUp(result string, fee float64) {
	if result == "" {
		result = ResultSuccess
	}
	if pickUpTotal != nil {
		pickUpTotal.WithLabelValues(result).Inc()
	}
	if result == ResultSuccess && feeAmount != nil {
		feeAmount.Observe(fee)
	}
}

// ObserveQuote учитывает расчёт стоимости без оплаты.
func ObserveQuote(result string) {
	if result == "" {
		result = ResultSuccess
	}
	if quoteTotal != nil {
		quoteTotal.WithLabelValues(result).Inc()
	}
}

// ObserveExport учитывает выгрузку истории.
func ObserveExport(format, result string) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = ResultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
}

// SetActiveCars обновляет число припаркованных автомобилей.
func SetActiveCars(n int) {
	if activeCars != nil {
		activeCars.Set(float64(n))
	}
}
