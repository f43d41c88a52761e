// Package fee вычисляет стоимость парковки по почасовой тарифной сетке.
package fee

import (
	"time"

	"github.com/mmeshcher/parking-ledger/internal/tariff"
)

const (
	dayStartHour   = 8
	nightStartHour = 17
)

// Window обозначает тарифное окно, к которому относится час стоянки.
type Window string

const (
	WindowDay       Window = "day"
	WindowNight     Window = "night"
	WindowLateNight Window = "late_night"
)

// HourCharge описывает начисление за один час стоянки.
type HourCharge struct {
	Start  time.Time
	Window Window
	Rate   float64
	Charge float64
}

// TraceFunc получает начисление за каждый рассчитанный час.
type TraceFunc func(HourCharge)

// Option настраивает Evaluator.
type Option func(*Evaluator)

// WithTrace задаёт приёмник почасовых начислений.
func WithTrace(fn TraceFunc) Option {
	return func(e *Evaluator) {
		e.trace = fn
	}
}

// Evaluator рассчитывает стоимость стоянки по таблице тарифов.
type Evaluator struct {
	table tariff.Table
	trace TraceFunc
}

// NewEvaluator создаёт калькулятор для указанной таблицы тарифов.
func NewEvaluator(table tariff.Table, opts ...Option) *Evaluator {
	e := &Evaluator{table: table}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compute возвращает стоимость стоянки с arrival до departure.
//
// Стоянка обходится по одному часу начиная с arrival. Дневные часы [08:00, 17:00)
// оплачиваются по дневному тарифу, который удваивается после превышения
// максимального времени стоянки дня недели. Вечерние часы [17:00, 24:00) оплачиваются
// по ночному тарифу. За непрерывный период [00:00, 08:00) один раз списывается
// фиксированный тариф, остальные часы периода бесплатны. Счётчик дневных часов и
// признак ночного списания сбрасываются, когда часы доходят до 08:00.
// При departure <= arrival результат равен нулю.
func (e *Evaluator) Compute(arrival, departure time.Time, frequentParker bool) float64 {
	var (
		total            float64
		dayHours         int
		lateNightCharged bool
	)

	for current := arrival; current.Before(departure); {
		hour := current.Hour()
		entry := e.table.Rate(current.Weekday())

		var (
			rate   float64
			flat   float64
			window Window
		)

		switch {
		case hour >= dayStartHour && hour < nightStartHour:
			window = WindowDay
			rate = entry.DayRate
			dayHours++
			if dayHours > entry.MaxStayHours {
				rate *= 2
			}
		case hour >= nightStartHour:
			window = WindowNight
			rate = entry.NightRate
		default:
			window = WindowLateNight
			rate = e.table.LateNightFlatRate()
			if frequentParker {
				rate *= 1 - e.table.EveningDiscount()
			}
			if !lateNightCharged {
				flat = rate
				lateNightCharged = true
			}
		}

		// Пока ночной тариф уже списан, почасовое начисление равно нулю.
		charge := rate
		if lateNightCharged {
			charge = 0
		}
		if frequentParker {
			if hour >= nightStartHour || hour < dayStartHour {
				charge *= 1 - e.table.EveningDiscount()
			} else {
				charge *= 1 - e.table.DaytimeDiscount()
			}
		}
		total += flat + charge

		if e.trace != nil {
			e.trace(HourCharge{Start: current, Window: window, Rate: rate, Charge: flat + charge})
		}

		current = current.Add(time.Hour)
		if current.Hour() == dayStartHour {
			dayHours = 0
			lateNightCharged = false
		}
	}

	return total
}
