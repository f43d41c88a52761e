// Package console реализует консольное меню парковки.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/parking-ledger/internal/model"
	"github.com/mmeshcher/parking-ledger/internal/repository"
	"github.com/mmeshcher/parking-ledger/internal/service"
)

// State описывает состояние консольного меню.
type State int

const (
	StateMainMenu State = iota
	StateParking
	StatePickingUp
	StateViewingHistory
	StateExit
)

// Service определяет контракт бизнес-логики, используемой меню.
type Service interface {
	Park(ctx context.Context, identity, arrival, frequentNumber string) error
	QuotePickUp(ctx context.Context, identity string) (*service.PickUpQuote, error)
	CompletePickUp(ctx context.Context, q *service.PickUpQuote, payment float64) (*model.Receipt, error)
	GetHistory(ctx context.Context, identity string) (*service.HistoryView, error)
}

// Console читает команды со входного потока и печатает результаты в выходной.
type Console struct {
	svc    Service
	in     io.Reader
	out    io.Writer
	logger *zap.Logger
	state  State

	lines   chan string
	done    chan struct{}
	eof     bool
	readErr error
}

// New создаёт консольное меню.
func New(svc Service, in io.Reader, out io.Writer, logger *zap.Logger) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Console{
		svc:    svc,
		in:     in,
		out:    out,
		logger: logger,
		state:  StateMainMenu,
	}
}

// Run обрабатывает команды до выбора пункта Exit, конца ввода или отмены контекста.
// Отмена контекста, в том числе во время ожидания ввода, считается штатным завершением.
func (c *Console) Run(ctx context.Context) error {
	c.lines = make(chan string)
	c.done = make(chan struct{})
	defer close(c.done)

	go c.readLines()

	for c.state != StateExit {
		if ctx.Err() != nil {
			c.logger.Info("console interrupted")
			return nil
		}

		switch c.state {
		case StateMainMenu:
			c.state = c.mainMenu(ctx)
		case StateParking:
			c.state = c.park(ctx)
		case StatePickingUp:
			c.state = c.pickUp(ctx)
		case StateViewingHistory:
			c.state = c.viewHistory(ctx)
		}
	}

	if ctx.Err() != nil {
		c.logger.Info("console interrupted")
		return nil
	}
	// readErr записан до закрытия lines.
	if c.eof && c.readErr != nil {
		return fmt.Errorf("read input: %w", c.readErr)
	}
	return nil
}

// readLines передаёт строки ввода в канал lines и закрывает его в конце ввода.
func (c *Console) readLines() {
	defer close(c.lines)

	sc := bufio.NewScanner(c.in)
	for sc.Scan() {
		select {
		case c.lines <- sc.Text():
		case <-c.done:
			return
		}
	}
	c.readErr = sc.Err()
}

func (c *Console) mainMenu(ctx context.Context) State {
	c.println("\nCar Parking System")
	c.println("1. Park")
	c.println("2. Pick Up")
	c.println("3. History")
	c.println("4. Exit")

	choice, ok := c.prompt(ctx, "Enter your choice: ")
	if !ok {
		return StateExit
	}

	switch strings.TrimSpace(choice) {
	case "1":
		return StateParking
	case "2":
		return StatePickingUp
	case "3":
		return StateViewingHistory
	case "4":
		return StateExit
	default:
		c.println("Invalid choice. Please try again.")
		return StateMainMenu
	}
}

func (c *Console) park(ctx context.Context) State {
	c.println("\nParking a Car")

	identity, ok := c.prompt(ctx, "Car identity: ")
	if !ok {
		return StateExit
	}
	arrival, ok := c.prompt(ctx, "Arrival time: ")
	if !ok {
		return StateExit
	}
	number, ok := c.prompt(ctx, "Frequent Parking Number: ")
	if !ok {
		return StateExit
	}

	err := c.svc.Park(ctx, strings.TrimSpace(identity), strings.TrimSpace(arrival), strings.TrimSpace(number))
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			for _, reason := range verr.Reasons {
				c.println(reason)
			}
			c.println("Invalid data")
			return StateMainMenu
		}
		c.fail("park car", err)
		return StateMainMenu
	}

	c.println("Car parked")
	return StateMainMenu
}

func (c *Console) pickUp(ctx context.Context) State {
	c.println("\nPicking Up a Car")

	identity, ok := c.prompt(ctx, "Enter car identity: ")
	if !ok {
		return StateExit
	}

	q, err := c.svc.QuotePickUp(ctx, strings.TrimSpace(identity))
	if err != nil {
		if errors.Is(err, repository.ErrCarNotFound) {
			c.println("Car identity not found.")
			return StateMainMenu
		}
		c.fail("quote pick up", err)
		return StateMainMenu
	}

	c.printf("Total parking fee: $%.2f\n", q.Fee)

	for {
		input, ok := c.prompt(ctx, "Enter payment amount: ")
		if !ok {
			return StateExit
		}

		payment, err := strconv.ParseFloat(strings.TrimSpace(input), 64)
		if err != nil || math.IsNaN(payment) || math.IsInf(payment, 0) {
			c.println("Invalid input. Please enter a numerical value.")
			continue
		}

		receipt, err := c.svc.CompletePickUp(ctx, q, payment)
		if errors.Is(err, service.ErrInsufficientPayment) {
			c.println("Insufficient payment. Please pay the full amount.")
			continue
		}
		if err != nil {
			c.fail("complete pick up", err)
			return StateMainMenu
		}

		c.printf("Payment successful. Excess amount: $%.2f\n", receipt.Excess)
		return StateMainMenu
	}
}

func (c *Console) viewHistory(ctx context.Context) State {
	c.println("\nParking History")

	identity, ok := c.prompt(ctx, "Enter car identity: ")
	if !ok {
		return StateExit
	}

	view, err := c.svc.GetHistory(ctx, strings.TrimSpace(identity))
	if err != nil {
		if errors.Is(err, repository.ErrCarNotFound) {
			c.println("Car identity not found.")
			return StateMainMenu
		}
		c.fail("view history", err)
		return StateMainMenu
	}

	c.printf("Car: %s\n", view.Identity)
	c.printf("Total Payments: %.2f\n", view.History.TotalPayments)
	c.printf("Available Credits: %.2f\n", view.History.AvailableCredits)
	c.println("Parked Dates:")
	for _, line := range view.Lines() {
		c.println(line)
	}

	return StateMainMenu
}

func (c *Console) prompt(ctx context.Context, text string) (string, bool) {
	fmt.Fprint(c.out, text)
	select {
	case line, ok := <-c.lines:
		if !ok {
			c.eof = true
		}
		return line, ok
	case <-ctx.Done():
		return "", false
	}
}

func (c *Console) fail(op string, err error) {
	c.logger.Error(op+" error", zap.Error(err))
	c.printf("Error: %v\n", err)
}

func (c *Console) println(s string) {
	fmt.Fprintln(c.out, s)
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}
