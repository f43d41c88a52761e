package console

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/parking-ledger/internal/fee"
	"github.com/mmeshcher/parking-ledger/internal/repository"
	"github.com/mmeshcher/parking-ledger/internal/service"
	"github.com/mmeshcher/parking-ledger/internal/tariff"
)

func newTestConsole(t *testing.T, input string, table tariff.Table) (*Console, *bytes.Buffer, *repository.FileRepository) {
	t.Helper()

	dir := t.TempDir()
	repo, err := repository.NewFileRepository(filepath.Join(dir, "data.json"), dir, nil)
	require.NoError(t, err)

	now := time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)
	svc := service.NewService(repo, fee.NewEvaluator(table), nil,
		service.WithClock(func() time.Time { return now }))

	out := &bytes.Buffer{}
	return New(svc, strings.NewReader(input), out, nil), out, repo
}

func lines(in ...string) string {
	return strings.Join(in, "\n") + "\n"
}

func underMaxStayTable(t *testing.T) tariff.Table {
	t.Helper()

	var days [7]tariff.RateEntry
	for d := range days {
		days[d] = tariff.Default().Rate(time.Weekday(d))
	}
	days[time.Monday].MaxStayHours = 8

	tbl, err := tariff.NewTable(days, 20, 0.5, 0.1)
	require.NoError(t, err)
	return tbl
}

func TestConsole_ParkPickUpHistory(t *testing.T) {
	input := lines(
		"1", "12B-34567", "2024-01-01 09:00", "",
		"2", "12B-34567", "abc", "20", "30",
		"3", "12B-34567",
		"4",
	)
	c, out, repo := newTestConsole(t, input, underMaxStayTable(t))

	require.NoError(t, c.Run(context.Background()))

	text := out.String()
	assert.Contains(t, text, "Car parked")
	assert.Contains(t, text, "Total parking fee: $30.00")
	assert.Contains(t, text, "Invalid input. Please enter a numerical value.")
	assert.Contains(t, text, "Insufficient payment. Please pay the full amount.")
	assert.Contains(t, text, "Payment successful. Excess amount: $0.00")
	assert.Contains(t, text, "Total Payments: 30.00")
	assert.Contains(t, text, "2024-01-01 09:00 - 2024-01-01 12:00 $30.00")

	_, err := repo.GetParkedCar(context.Background(), "12B-34567")
	require.ErrorIs(t, err, repository.ErrCarNotFound)
}

func TestConsole_ExcessBecomesCredit(t *testing.T) {
	input := lines(
		"1", "73A-12345", "2024-01-01 09:00", "73278",
		"2", "73A-12345", "50",
		"4",
	)
	c, out, repo := newTestConsole(t, input, tariff.Default())

	require.NoError(t, c.Run(context.Background()))

	// 9 + 9 + 18 для постоянного клиента при превышении двух часов
	assert.Contains(t, out.String(), "Total parking fee: $36.00")
	assert.Contains(t, out.String(), "Excess amount: $14.00")

	h, err := repo.GetHistory(context.Background(), "73A-12345")
	require.NoError(t, err)
	assert.Equal(t, 50.0, h.TotalPayments)
	assert.Equal(t, 14.0, h.AvailableCredits)
}

func TestConsole_InvalidParkReportsEveryReason(t *testing.T) {
	input := lines("1", "7A-12345", "yesterday", "73279", "4")
	c, out, repo := newTestConsole(t, input, tariff.Default())

	require.NoError(t, c.Run(context.Background()))

	text := out.String()
	assert.Contains(t, text, "Invalid car identity")
	assert.Contains(t, text, "Invalid arrival time")
	assert.Contains(t, text, "Invalid frequent parking number")
	assert.Contains(t, text, "Invalid data")
	assert.NotContains(t, text, "Car parked")

	cars, err := repo.ListParkedCars(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cars)
}

func TestConsole_UnknownCar(t *testing.T) {
	input := lines("2", "12B-34567", "3", "12B-34567", "4")
	c, out, _ := newTestConsole(t, input, tariff.Default())

	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, 2, strings.Count(out.String(), "Car identity not found."))
}

func TestConsole_HistoryShowsCurrentStay(t *testing.T) {
	input := lines("1", "12B-34567", "2024-01-01 09:00", "", "3", "12B-34567", "4")
	c, out, _ := newTestConsole(t, input, tariff.Default())

	require.NoError(t, c.Run(context.Background()))
	assert.Contains(t, out.String(), "2024-01-01 09:00 - Stay Time ...")
}

func TestConsole_InvalidChoiceAndEOF(t *testing.T) {
	c, out, _ := newTestConsole(t, "9\n", tariff.Default())

	require.NoError(t, c.Run(context.Background()))
	assert.Contains(t, out.String(), "Invalid choice. Please try again.")
	assert.Equal(t, StateExit, c.state)
}

func TestConsole_EOFDuringPaymentKeepsCarParked(t *testing.T) {
	input := lines("1", "12B-34567", "2024-01-01 09:00", "", "2", "12B-34567")
	c, _, repo := newTestConsole(t, input, tariff.Default())

	require.NoError(t, c.Run(context.Background()))

	_, err := repo.GetParkedCar(context.Background(), "12B-34567")
	require.NoError(t, err)
}

func TestConsole_CanceledContext(t *testing.T) {
	c, _, _ := newTestConsole(t, "4\n", tariff.Default())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, c.Run(ctx))
}

func TestConsole_CancelWhileWaitingForInput(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	dir := t.TempDir()
	repo, err := repository.NewFileRepository(filepath.Join(dir, "data.json"), dir, nil)
	require.NoError(t, err)

	out := &bytes.Buffer{}
	c := New(service.NewService(repo, fee.NewEvaluator(tariff.Default()), nil), pr, out, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx)
	}()

	// ввод не поступает, меню ждёт выбора пункта
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("console did not stop after cancellation")
	}
}
