package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mmeshcher/parking-ledger/internal/fee"
	"github.com/mmeshcher/parking-ledger/internal/model"
	"github.com/mmeshcher/parking-ledger/internal/repository"
	"github.com/mmeshcher/parking-ledger/internal/tariff"
)

type stubRepo struct {
	cars      map[string]model.ParkedCar
	histories map[string]model.History

	parkErr    error
	historyErr error
	saveErr    error
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		cars:      map[string]model.ParkedCar{},
		histories: map[string]model.History{},
	}
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) ParkCar(ctx context.Context, car model.ParkedCar) error {
	if s.parkErr != nil {
		return s.parkErr
	}
	s.cars[car.Identity] = car
	return nil
}

func (s *stubRepo) GetParkedCar(ctx context.Context, identity string) (*model.ParkedCar, error) {
	c, ok := s.cars[identity]
	if !ok {
		return nil, repository.ErrCarNotFound
	}
	return &c, nil
}

func (s *stubRepo) ListParkedCars(ctx context.Context) ([]model.ParkedCar, error) {
	res := make([]model.ParkedCar, 0, len(s.cars))
	for _, c := range s.cars {
		res = append(res, c)
	}
	return res, nil
}

func (s *stubRepo) RemoveParkedCar(ctx context.Context, identity string) error {
	if _, ok := s.cars[identity]; !ok {
		return repository.ErrCarNotFound
	}
	delete(s.cars, identity)
	return nil
}

func (s *stubRepo) GetHistory(ctx context.Context, identity string) (*model.History, error) {
	if s.historyErr != nil {
		return nil, s.historyErr
	}
	h, ok := s.histories[identity]
	if !ok {
		return nil, repository.ErrHistoryNotFound
	}
	return &h, nil
}

func (s *stubRepo) SaveHistory(ctx context.Context, identity string, h model.History) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.histories[identity] = h
	return nil
}

func fixedClock(s string) func() time.Time {
	t, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return t.Add(42 * time.Second) }
}

func newTestService(repo Repository, now string) *Service {
	return NewService(repo, fee.NewEvaluator(tariff.Default()), nil, WithClock(fixedClock(now)))
}

func TestPark_ValidationReasons(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(repo, "2024-01-01 12:00")

	err := svc.Park(context.Background(), "7A-12345", "2024-01-01", "73279")

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	want := []string{ReasonInvalidIdentity, ReasonInvalidArrivalTime, ReasonInvalidFrequentNumber}
	if len(verr.Reasons) != len(want) {
		t.Fatalf("reasons = %v, want %v", verr.Reasons, want)
	}
	for i := range want {
		if verr.Reasons[i] != want[i] {
			t.Fatalf("reasons[%d] = %q, want %q", i, verr.Reasons[i], want[i])
		}
	}
	if len(repo.cars) != 0 {
		t.Fatalf("invalid park must not mutate state")
	}
}

func TestPark_EmptyFrequentNumberAllowed(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(repo, "2024-01-01 12:00")

	if err := svc.Park(context.Background(), "12B-34567", "2024-01-01 09:00", ""); err != nil {
		t.Fatalf("Park error: %v", err)
	}
	if _, ok := repo.cars["12B-34567"]; !ok {
		t.Fatalf("car was not stored")
	}
}

func TestPark_PropagatesRepositoryError(t *testing.T) {
	repo := newStubRepo()
	repo.parkErr = errors.New("disk full")
	svc := newTestService(repo, "2024-01-01 12:00")

	err := svc.Park(context.Background(), "12B-34567", "2024-01-01 09:00", "")
	if !errors.Is(err, repo.parkErr) {
		t.Fatalf("expected wrapped repository error, got %v", err)
	}
}

func TestQuotePickUp_UsesWallClockMinutes(t *testing.T) {
	repo := newStubRepo()
	repo.cars["12B-34567"] = model.ParkedCar{Identity: "12B-34567", ArrivalTime: "2024-01-01 09:00"}
	svc := newTestService(repo, "2024-01-01 11:00")

	q, err := svc.QuotePickUp(context.Background(), "12B-34567")
	if err != nil {
		t.Fatalf("QuotePickUp error: %v", err)
	}
	if q.Departure != "2024-01-01 11:00" {
		t.Fatalf("Departure = %q, want 2024-01-01 11:00", q.Departure)
	}
	if q.Fee != 20 {
		t.Fatalf("Fee = %v, want 20", q.Fee)
	}
}

func TestQuotePickUp_FrequentParkerDiscount(t *testing.T) {
	repo := newStubRepo()
	repo.cars["12B-34567"] = model.ParkedCar{Identity: "12B-34567", ArrivalTime: "2024-01-01 09:00", FrequentParkingNumber: "73278"}
	svc := newTestService(repo, "2024-01-01 10:00")

	q, err := svc.QuotePickUp(context.Background(), "12B-34567")
	if err != nil {
		t.Fatalf("QuotePickUp error: %v", err)
	}
	if q.Fee != 9 {
		t.Fatalf("Fee = %v, want 9", q.Fee)
	}
}

func TestQuotePickUp_NotFound(t *testing.T) {
	svc := newTestService(newStubRepo(), "2024-01-01 12:00")

	_, err := svc.QuotePickUp(context.Background(), "12B-34567")
	if !errors.Is(err, repository.ErrCarNotFound) {
		t.Fatalf("expected ErrCarNotFound, got %v", err)
	}
}

func TestCompletePickUp_InsufficientPayment(t *testing.T) {
	repo := newStubRepo()
	repo.cars["12B-34567"] = model.ParkedCar{Identity: "12B-34567", ArrivalTime: "2024-01-01 09:00"}
	svc := newTestService(repo, "2024-01-01 12:00")

	q := &PickUpQuote{Car: repo.cars["12B-34567"], Departure: "2024-01-01 12:00", Fee: 40}

	_, err := svc.CompletePickUp(context.Background(), q, 39.99)
	if !errors.Is(err, ErrInsufficientPayment) {
		t.Fatalf("expected ErrInsufficientPayment, got %v", err)
	}
	if _, ok := repo.cars["12B-34567"]; !ok {
		t.Fatalf("car must stay parked after insufficient payment")
	}
}

func TestCompletePickUp_AccumulatesHistory(t *testing.T) {
	repo := newStubRepo()
	repo.cars["12B-34567"] = model.ParkedCar{Identity: "12B-34567", ArrivalTime: "2024-01-01 09:00"}
	repo.histories["12B-34567"] = model.History{
		TotalPayments:    10,
		AvailableCredits: 1,
		ParkedDates:      []string{"2023-12-31 09:00 - 2023-12-31 09:30 $2.00"},
	}
	svc := newTestService(repo, "2024-01-01 12:00")

	q := &PickUpQuote{Car: repo.cars["12B-34567"], Departure: "2024-01-01 12:00", Fee: 40}

	receipt, err := svc.CompletePickUp(context.Background(), q, 50)
	if err != nil {
		t.Fatalf("CompletePickUp error: %v", err)
	}
	if receipt.Excess != 10 {
		t.Fatalf("Excess = %v, want 10", receipt.Excess)
	}

	h := repo.histories["12B-34567"]
	if h.TotalPayments != 60 || h.AvailableCredits != 11 {
		t.Fatalf("unexpected totals: %+v", h)
	}
	if len(h.ParkedDates) != 2 || h.ParkedDates[1] != "2024-01-01 09:00 - 2024-01-01 12:00 $40.00" {
		t.Fatalf("unexpected parked dates: %v", h.ParkedDates)
	}
	if _, ok := repo.cars["12B-34567"]; ok {
		t.Fatalf("car must be removed after pick up")
	}
}

func TestCompletePickUp_SaveErrorKeepsCar(t *testing.T) {
	repo := newStubRepo()
	repo.cars["12B-34567"] = model.ParkedCar{Identity: "12B-34567", ArrivalTime: "2024-01-01 09:00"}
	repo.saveErr = errors.New("read-only")
	svc := newTestService(repo, "2024-01-01 12:00")

	q := &PickUpQuote{Car: repo.cars["12B-34567"], Departure: "2024-01-01 12:00", Fee: 40}
	if _, err := svc.CompletePickUp(context.Background(), q, 40); err == nil {
		t.Fatalf("expected error")
	}
	if _, ok := repo.cars["12B-34567"]; !ok {
		t.Fatalf("car must stay parked when history was not saved")
	}
}

func TestGetHistory(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(repo, "2024-01-01 12:00")
	ctx := context.Background()

	if _, err := svc.GetHistory(ctx, "12B-34567"); !errors.Is(err, repository.ErrCarNotFound) {
		t.Fatalf("expected ErrCarNotFound, got %v", err)
	}

	repo.cars["12B-34567"] = model.ParkedCar{Identity: "12B-34567", ArrivalTime: "2024-01-02 09:00"}
	view, err := svc.GetHistory(ctx, "12B-34567")
	if err != nil {
		t.Fatalf("GetHistory error: %v", err)
	}
	if view.HasHistory {
		t.Fatalf("HasHistory must be false without history")
	}
	lines := view.Lines()
	if len(lines) != 1 || lines[0] != "2024-01-02 09:00 - Stay Time ..." {
		t.Fatalf("unexpected lines: %v", lines)
	}

	repo.historyErr = errors.New("corrupted")
	if _, err := svc.GetHistory(ctx, "12B-34567"); !errors.Is(err, repo.historyErr) {
		t.Fatalf("expected wrapped history error, got %v", err)
	}
}

func TestQuote(t *testing.T) {
	svc := newTestService(newStubRepo(), "2024-01-01 12:00")

	got, err := svc.Quote("2024-01-01 18:00", "2024-01-01 20:00", "73278")
	if err != nil {
		t.Fatalf("Quote error: %v", err)
	}
	if got != 5 {
		t.Fatalf("Quote = %v, want 5", got)
	}

	_, err = svc.Quote("2024-01-01 20:00", "2024-01-01 18:00", "")
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Reasons[0] != ReasonDepartureBeforeArrival {
		t.Fatalf("expected departure before arrival error, got %v", err)
	}

	_, err = svc.Quote("bad", "worse", "1")
	if !errors.As(err, &verr) || len(verr.Reasons) != 3 {
		t.Fatalf("expected three reasons, got %v", err)
	}
}

type countingCalculator struct {
	calls int
}

func (c *countingCalculator) Compute(arrival, departure time.Time, frequentParker bool) float64 {
	c.calls++
	return 0
}

func TestQuote_PeriodLimit(t *testing.T) {
	tests := []struct {
		name      string
		arrival   string
		departure string
		wantErr   bool
	}{
		{name: "whole leap year", arrival: "2024-01-01 00:00", departure: "2025-01-01 00:00"},
		{name: "one hour over the limit", arrival: "2024-01-01 00:00", departure: "2025-01-01 01:00", wantErr: true},
		{name: "whole calendar range", arrival: "0001-01-01 00:00", departure: "9999-12-31 23:00", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calc := &countingCalculator{}
			svc := NewService(newStubRepo(), calc, nil)

			_, err := svc.Quote(tt.arrival, tt.departure, "")
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("Quote error: %v", err)
				}
				if calc.calls != 1 {
					t.Fatalf("calculator calls = %d, want 1", calc.calls)
				}
				return
			}

			var verr *ValidationError
			if !errors.As(err, &verr) || len(verr.Reasons) != 1 || verr.Reasons[0] != ReasonPeriodTooLong {
				t.Fatalf("expected period too long error, got %v", err)
			}
			if calc.calls != 0 {
				t.Fatalf("calculator must not run for rejected periods, calls = %d", calc.calls)
			}
		})
	}
}

func TestParkAndPickUp_FileRepository(t *testing.T) {
	dir := t.TempDir()
	repo, err := repository.NewFileRepository(filepath.Join(dir, "data.json"), dir, nil)
	if err != nil {
		t.Fatalf("NewFileRepository error: %v", err)
	}
	svc := newTestService(repo, "2024-01-01 12:00")
	ctx := context.Background()

	if err := svc.Park(ctx, "12B-34567", "2024-01-01 09:00", ""); err != nil {
		t.Fatalf("Park error: %v", err)
	}

	q, err := svc.QuotePickUp(ctx, "12B-34567")
	if err != nil {
		t.Fatalf("QuotePickUp error: %v", err)
	}
	if q.Fee != 40 {
		t.Fatalf("Fee = %v, want 40", q.Fee)
	}

	if _, err := svc.CompletePickUp(ctx, q, 45); err != nil {
		t.Fatalf("CompletePickUp error: %v", err)
	}

	view, err := svc.GetHistory(ctx, "12B-34567")
	if err != nil {
		t.Fatalf("GetHistory error: %v", err)
	}
	if view.Current != nil {
		t.Fatalf("car must not be parked after pick up")
	}
	if view.History.TotalPayments != 45 || view.History.AvailableCredits != 5 {
		t.Fatalf("unexpected history: %+v", view.History)
	}
}
