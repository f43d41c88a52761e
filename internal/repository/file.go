package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/mmeshcher/parking-ledger/internal/model"
)

const historyFileExt = ".txt"

// FileRepository хранит активные стоянки в JSON-файле, а историю оплат
// в отдельном текстовом файле на каждый автомобиль.
//
// Файл активных стоянок перечитывается и перезаписывается целиком при каждом
// изменении. Доступ сериализуется только внутри процесса.
type FileRepository struct {
	mu         sync.Mutex
	dataFile   string
	historyDir string
	logger     *zap.Logger
}

type storedCar struct {
	ArrivalTime           string `json:"arrival_time"`
	FrequentParkingNumber string `json:"frequent_parking_number"`
}

// NewFileRepository создаёт файловое хранилище. Отсутствующий файл активных
// стоянок создаётся пустым, каталог истории создаётся при необходимости.
func NewFileRepository(dataFile, historyDir string, logger *zap.Logger) (*FileRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if historyDir == "" {
		historyDir = "."
	}

	if err := os.MkdirAll(historyDir, 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	r := &FileRepository{
		dataFile:   dataFile,
		historyDir: historyDir,
		logger:     logger,
	}

	if _, err := r.readCars(); err != nil {
		return nil, err
	}

	return r, nil
}

// Close освобождает ресурсы хранилища.
func (r *FileRepository) Close() error {
	return nil
}

// ParkCar сохраняет автомобиль среди припаркованных. Повторная постановка перезаписывает запись.
func (r *FileRepository) ParkCar(ctx context.Context, car model.ParkedCar) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cars, err := r.readCars()
	if err != nil {
		return err
	}

	cars[car.Identity] = storedCar{
		ArrivalTime:           car.ArrivalTime,
		FrequentParkingNumber: car.FrequentParkingNumber,
	}

	return r.writeCars(cars)
}

// GetParkedCar возвращает припаркованный автомобиль по номеру.
func (r *FileRepository) GetParkedCar(ctx context.Context, identity string) (*model.ParkedCar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cars, err := r.readCars()
	if err != nil {
		return nil, err
	}

	c, ok := cars[identity]
	if !ok {
		return nil, ErrCarNotFound
	}

	return &model.ParkedCar{
		Identity:              identity,
		ArrivalTime:           c.ArrivalTime,
		FrequentParkingNumber: c.FrequentParkingNumber,
	}, nil
}

// ListParkedCars возвращает все припаркованные автомобили, упорядоченные по номеру.
func (r *FileRepository) ListParkedCars(ctx context.Context) ([]model.ParkedCar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cars, err := r.readCars()
	if err != nil {
		return nil, err
	}

	res := make([]model.ParkedCar, 0, len(cars))
	for identity, c := range cars {
		res = append(res, model.ParkedCar{
			Identity:              identity,
			ArrivalTime:           c.ArrivalTime,
			FrequentParkingNumber: c.FrequentParkingNumber,
		})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Identity < res[j].Identity })

	return res, nil
}

// RemoveParkedCar удаляет автомобиль из припаркованных.
func (r *FileRepository) RemoveParkedCar(ctx context.Context, identity string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cars, err := r.readCars()
	if err != nil {
		return err
	}

	if _, ok := cars[identity]; !ok {
		return ErrCarNotFound
	}
	delete(cars, identity)

	return r.writeCars(cars)
}

// GetHistory читает историю оплат автомобиля.
// Если файла истории нет, возвращается ErrHistoryNotFound.
func (r *FileRepository) GetHistory(ctx context.Context, identity string) (*model.History, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := r.historyPath(identity)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrHistoryNotFound
		}
		return nil, fmt.Errorf("read history: %w", err)
	}

	h, err := DecodeHistory(data)
	if err != nil {
		return nil, fmt.Errorf("decode history %s: %w", identity, err)
	}

	return &h, nil
}

// SaveHistory записывает историю оплат автомобиля в формате текущей версии.
func (r *FileRepository) SaveHistory(ctx context.Context, identity string, h model.History) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := r.historyPath(identity)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.WriteFile(path, EncodeHistory(h), 0o644); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}

func (r *FileRepository) historyPath(identity string) (string, error) {
	if identity == "" || strings.ContainsAny(identity, `/\`) || identity == "." || identity == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentity, identity)
	}
	return filepath.Join(r.historyDir, identity+historyFileExt), nil
}

// readCars читает файл активных стоянок. Отсутствующий файл создаётся пустым,
// повреждённый файл считается пустым.
func (r *FileRepository) readCars() (map[string]storedCar, error) {
	data, err := os.ReadFile(r.dataFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read data file: %w", err)
		}
		r.logger.Warn("data file not found, creating a new one", zap.String("file", r.dataFile))
		cars := map[string]storedCar{}
		if err := r.writeCars(cars); err != nil {
			return nil, err
		}
		return cars, nil
	}

	cars := map[string]storedCar{}
	if err := json.Unmarshal(data, &cars); err != nil {
		r.logger.Warn("data file is empty or corrupted, using empty data",
			zap.String("file", r.dataFile), zap.Error(err))
		return map[string]storedCar{}, nil
	}
	if cars == nil {
		cars = map[string]storedCar{}
	}

	return cars, nil
}

func (r *FileRepository) writeCars(cars map[string]storedCar) error {
	data, err := json.Marshal(cars)
	if err != nil {
		return fmt.Errorf("encode data file: %w", err)
	}
	if err := os.WriteFile(r.dataFile, data, 0o644); err != nil {
		return fmt.Errorf("write data file: %w", err)
	}
	return nil
}
