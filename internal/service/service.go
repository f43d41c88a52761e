// Package service реализует бизнес-логику парковки: постановку, выдачу и историю оплат.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/parking-ledger/internal/metrics"
	"github.com/mmeshcher/parking-ledger/internal/model"
	"github.com/mmeshcher/parking-ledger/internal/repository"
	"github.com/mmeshcher/parking-ledger/internal/validation"
)

// Причины отказа при валидации входных данных.
const (
	ReasonInvalidIdentity        = "Invalid car identity"
	ReasonInvalidArrivalTime     = "Invalid arrival time"
	ReasonInvalidDepartureTime   = "Invalid departure time"
	ReasonInvalidFrequentNumber  = "Invalid frequent parking number"
	ReasonDepartureBeforeArrival = "Departure time is before arrival time"
	ReasonPeriodTooLong          = "Parking period is too long"
)

// MaxQuotePeriod ограничивает интервал произвольного расчёта стоимости.
const MaxQuotePeriod = 366 * 24 * time.Hour

// ErrInsufficientPayment возвращается, если внесённая сумма меньше стоимости стоянки.
var ErrInsufficientPayment = errors.New("insufficient payment")

// ValidationError содержит перечень причин, по которым входные данные отклонены.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return "invalid data: " + strings.Join(e.Reasons, "; ")
}

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	ParkCar(ctx context.Context, car model.ParkedCar) error
	GetParkedCar(ctx context.Context, identity string) (*model.ParkedCar, error)
	ListParkedCars(ctx context.Context) ([]model.ParkedCar, error)
	RemoveParkedCar(ctx context.Context, identity string) error
	GetHistory(ctx context.Context, identity string) (*model.History, error)
	SaveHistory(ctx context.Context, identity string, h model.History) error
}

// FeeCalculator рассчитывает стоимость стоянки.
type FeeCalculator interface {
	Compute(arrival, departure time.Time, frequentParker bool) float64
}

// PickUpQuote содержит рассчитанную стоимость стоянки до оплаты.
type PickUpQuote struct {
	Car       model.ParkedCar
	Departure string
	Fee       float64
}

// HistoryView объединяет историю оплат и текущую стоянку автомобиля.
type HistoryView struct {
	Identity   string
	History    model.History
	HasHistory bool
	Current    *model.ParkedCar
}

// Lines возвращает строки стоянок, включая текущую незавершённую.
func (v HistoryView) Lines() []string {
	lines := make([]string, 0, len(v.History.ParkedDates)+1)
	lines = append(lines, v.History.ParkedDates...)
	if v.Current != nil {
		lines = append(lines, model.FormatOngoingVisit(v.Current.ArrivalTime))
	}
	return lines
}

// Option настраивает Service.
type Option func(*Service)

// WithClock задаёт источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service содержит бизнес-логику парковки.
type Service struct {
	repo   Repository
	fees   FeeCalculator
	logger *zap.Logger
	now    func() time.Time
}

// NewService создаёт сервис с указанным хранилищем и калькулятором стоимости.
func NewService(repo Repository, fees FeeCalculator, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		repo:   repo,
		fees:   fees,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// Park ставит автомобиль на парковку. Пустой номер постоянного клиента
// означает отсутствие скидки, а не ошибку.
func (s *Service) Park(ctx context.Context, identity, arrival, frequentNumber string) error {
	var reasons []string
	if !validation.IsValidCarIdentity(identity) {
		reasons = append(reasons, ReasonInvalidIdentity)
	}
	if _, err := validation.ParseTimestamp(arrival); err != nil {
		reasons = append(reasons, ReasonInvalidArrivalTime)
	}
	if frequentNumber != "" && !validation.IsValidFrequentParkingNumber(frequentNumber) {
		reasons = append(reasons, ReasonInvalidFrequentNumber)
	}
	if len(reasons) > 0 {
		metrics.ObservePark(metrics.ResultInvalid)
		return &ValidationError{Reasons: reasons}
	}

	err := s.repo.ParkCar(ctx, model.ParkedCar{
		Identity:              identity,
		ArrivalTime:           arrival,
		FrequentParkingNumber: frequentNumber,
	})
	if err != nil {
		metrics.ObservePark(metrics.ResultError)
		return fmt.Errorf("park car: %w", err)
	}

	metrics.ObservePark(metrics.ResultSuccess)
	s.logger.Info("car parked", zap.String("identity", identity), zap.String("arrival", arrival))
	return nil
}

// QuotePickUp рассчитывает стоимость стоянки на текущий момент без изменения данных.
func (s *Service) QuotePickUp(ctx context.Context, identity string) (*PickUpQuote, error) {
	car, err := s.repo.GetParkedCar(ctx, identity)
	if err != nil {
		if errors.Is(err, repository.ErrCarNotFound) {
			metrics.ObservePickUp(metrics.ResultNotFound, 0)
		}
		return nil, err
	}

	arrival, err := validation.ParseTimestamp(car.ArrivalTime)
	if err != nil {
		return nil, fmt.Errorf("stored arrival time: %w", err)
	}

	departure := wallClock(s.now())
	fee := roundCents(s.fees.Compute(arrival, departure, car.IsFrequentParker()))

	return &PickUpQuote{
		Car:       *car,
		Departure: departure.Format(validation.TimeLayout),
		Fee:       fee,
	}, nil
}

// CompletePickUp принимает оплату, пополняет историю и снимает автомобиль с парковки.
// Излишек оплаты зачисляется в кредиты.
func (s *Service) CompletePickUp(ctx context.Context, q *PickUpQuote, payment float64) (*model.Receipt, error) {
	if q == nil {
		return nil, errors.New("pick up quote is nil")
	}
	if math.IsNaN(payment) || payment < q.Fee {
		metrics.ObservePickUp(metrics.ResultInsufficient, 0)
		return nil, ErrInsufficientPayment
	}

	identity := q.Car.Identity
	excess := payment - q.Fee

	h, err := s.repo.GetHistory(ctx, identity)
	if err != nil {
		if !errors.Is(err, repository.ErrHistoryNotFound) {
			metrics.ObservePickUp(metrics.ResultError, 0)
			return nil, fmt.Errorf("get history: %w", err)
		}
		h = &model.History{}
	}

	h.TotalPayments += payment
	h.AvailableCredits += excess
	h.ParkedDates = append(h.ParkedDates, model.FormatVisit(q.Car.ArrivalTime, q.Departure, q.Fee))

	if err := s.repo.SaveHistory(ctx, identity, *h); err != nil {
		metrics.ObservePickUp(metrics.ResultError, 0)
		return nil, fmt.Errorf("save history: %w", err)
	}

	if err := s.repo.RemoveParkedCar(ctx, identity); err != nil {
		if !errors.Is(err, repository.ErrCarNotFound) {
			metrics.ObservePickUp(metrics.ResultError, 0)
			return nil, fmt.Errorf("remove parked car: %w", err)
		}
		s.logger.Warn("car already removed", zap.String("identity", identity))
	}

	metrics.ObservePickUp(metrics.ResultSuccess, q.Fee)
	s.logger.Info("car picked up",
		zap.String("identity", identity),
		zap.Float64("fee", q.Fee),
		zap.Float64("payment", payment),
	)

	return &model.Receipt{
		Identity:  identity,
		Arrival:   q.Car.ArrivalTime,
		Departure: q.Departure,
		Fee:       q.Fee,
		Payment:   payment,
		Excess:    excess,
		History:   *h,
	}, nil
}

// GetHistory возвращает историю оплат автомобиля вместе с текущей стоянкой.
// Если нет ни истории, ни текущей стоянки, возвращается repository.ErrCarNotFound.
func (s *Service) GetHistory(ctx context.Context, identity string) (*HistoryView, error) {
	view := &HistoryView{Identity: identity}

	h, err := s.repo.GetHistory(ctx, identity)
	switch {
	case err == nil:
		view.History = *h
		view.HasHistory = true
	case errors.Is(err, repository.ErrHistoryNotFound):
	default:
		return nil, fmt.Errorf("get history: %w", err)
	}

	car, err := s.repo.GetParkedCar(ctx, identity)
	switch {
	case err == nil:
		view.Current = car
	case errors.Is(err, repository.ErrCarNotFound):
	default:
		return nil, fmt.Errorf("get parked car: %w", err)
	}

	if !view.HasHistory && view.Current == nil {
		return nil, repository.ErrCarNotFound
	}

	return view, nil
}

// Quote рассчитывает стоимость стоянки для произвольного интервала.
func (s *Service) Quote(arrival, departure, frequentNumber string) (float64, error) {
	var reasons []string

	from, err := validation.ParseTimestamp(arrival)
	if err != nil {
		reasons = append(reasons, ReasonInvalidArrivalTime)
	}
	to, err := validation.ParseTimestamp(departure)
	if err != nil {
		reasons = append(reasons, ReasonInvalidDepartureTime)
	}
	if frequentNumber != "" && !validation.IsValidFrequentParkingNumber(frequentNumber) {
		reasons = append(reasons, ReasonInvalidFrequentNumber)
	}
	if len(reasons) == 0 {
		switch {
		case to.Before(from):
			reasons = append(reasons, ReasonDepartureBeforeArrival)
		case to.Sub(from) > MaxQuotePeriod:
			reasons = append(reasons, ReasonPeriodTooLong)
		}
	}
	if len(reasons) > 0 {
		metrics.ObserveQuote(metrics.ResultInvalid)
		return 0, &ValidationError{Reasons: reasons}
	}

	metrics.ObserveQuote(metrics.ResultSuccess)
	return roundCents(s.fees.Compute(from, to, frequentNumber != "")), nil
}

// ListParkedCars возвращает все припаркованные автомобили.
func (s *Service) ListParkedCars(ctx context.Context) ([]model.ParkedCar, error) {
	cars, err := s.repo.ListParkedCars(ctx)
	if err != nil {
		return nil, err
	}
	metrics.SetActiveCars(len(cars))
	return cars, nil
}

// wallClock отбрасывает часовой пояс и секунды: стоимость считается по показаниям часов.
func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
