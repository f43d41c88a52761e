package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mmeshcher/parking-ledger/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteRepository хранит активные стоянки и историю оплат в локальной базе SQLite.
type SQLiteRepository struct {
	db     *sql.DB
	delays []time.Duration
}

// NewSQLiteRepository открывает базу по указанному пути и применяет миграции.
func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite допускает только одного писателя.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &SQLiteRepository{
		db:     db,
		delays: []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second},
	}

	if err := r.runMigrations(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return r, nil
}

func (r *SQLiteRepository) runMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, r.db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *SQLiteRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error

	for i := 0; i <= len(r.delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if !isBusyError(err) || i == len(r.delays) {
			break
		}

		timer := time.NewTimer(r.delays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func isBusyError(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code() & 0xff
		return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
	}
	return strings.Contains(err.Error(), "database is locked")
}

// Close закрывает соединение с базой.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// ParkCar сохраняет автомобиль среди припаркованных. Повторная постановка перезаписывает запись.
func (r *SQLiteRepository) ParkCar(ctx context.Context, car model.ParkedCar) error {
	return r.withRetry(ctx, func() error {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO parked_cars (identity, arrival_time, frequent_parking_number) VALUES (?, ?, ?)
			 ON CONFLICT (identity) DO UPDATE SET
			   arrival_time = excluded.arrival_time,
			   frequent_parking_number = excluded.frequent_parking_number`,
			car.Identity, car.ArrivalTime, car.FrequentParkingNumber,
		)
		if err != nil {
			return fmt.Errorf("park car: %w", err)
		}
		return nil
	})
}

// GetParkedCar возвращает припаркованный автомобиль по номеру.
func (r *SQLiteRepository) GetParkedCar(ctx context.Context, identity string) (*model.ParkedCar, error) {
	car := model.ParkedCar{Identity: identity}
	err := r.db.QueryRowContext(ctx,
		`SELECT arrival_time, frequent_parking_number FROM parked_cars WHERE identity = ?`,
		identity,
	).Scan(&car.ArrivalTime, &car.FrequentParkingNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCarNotFound
		}
		return nil, fmt.Errorf("get parked car: %w", err)
	}
	return &car, nil
}

// ListParkedCars возвращает все припаркованные автомобили, упорядоченные по номеру.
func (r *SQLiteRepository) ListParkedCars(ctx context.Context) ([]model.ParkedCar, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT identity, arrival_time, frequent_parking_number FROM parked_cars ORDER BY identity`,
	)
	if err != nil {
		return nil, fmt.Errorf("select parked cars: %w", err)
	}
	defer rows.Close()

	res := []model.ParkedCar{}
	for rows.Next() {
		var c model.ParkedCar
		if err := rows.Scan(&c.Identity, &c.ArrivalTime, &c.FrequentParkingNumber); err != nil {
			return nil, fmt.Errorf("scan parked car: %w", err)
		}
		res = append(res, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// RemoveParkedCar удаляет автомобиль из припаркованных.
func (r *SQLiteRepository) RemoveParkedCar(ctx context.Context, identity string) error {
	return r.withRetry(ctx, func() error {
		res, err := r.db.ExecContext(ctx, `DELETE FROM parked_cars WHERE identity = ?`, identity)
		if err != nil {
			return fmt.Errorf("remove parked car: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return ErrCarNotFound
		}
		return nil
	})
}

// GetHistory возвращает историю оплат автомобиля.
func (r *SQLiteRepository) GetHistory(ctx context.Context, identity string) (*model.History, error) {
	var h model.History
	err := r.db.QueryRowContext(ctx,
		`SELECT total_payments, available_credits FROM histories WHERE identity = ?`,
		identity,
	).Scan(&h.TotalPayments, &h.AvailableCredits)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrHistoryNotFound
		}
		return nil, fmt.Errorf("get history: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT line FROM visits WHERE identity = ? ORDER BY id`,
		identity,
	)
	if err != nil {
		return nil, fmt.Errorf("select visits: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("scan visit: %w", err)
		}
		h.ParkedDates = append(h.ParkedDates, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return &h, nil
}

// SaveHistory заменяет историю оплат автомобиля в одной транзакции.
func (r *SQLiteRepository) SaveHistory(ctx context.Context, identity string, h model.History) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback()

		_, err = tx.ExecContext(ctx,
			`INSERT INTO histories (identity, total_payments, available_credits) VALUES (?, ?, ?)
			 ON CONFLICT (identity) DO UPDATE SET
			   total_payments = excluded.total_payments,
			   available_credits = excluded.available_credits`,
			identity, h.TotalPayments, h.AvailableCredits,
		)
		if err != nil {
			return fmt.Errorf("upsert history: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM visits WHERE identity = ?`, identity); err != nil {
			return fmt.Errorf("clear visits: %w", err)
		}

		for _, line := range h.ParkedDates {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO visits (identity, line) VALUES (?, ?)`,
				identity, line,
			); err != nil {
				return fmt.Errorf("insert visit: %w", err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}
