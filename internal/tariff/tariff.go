// Package tariff содержит таблицу тарифов парковки.
package tariff

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidTable возвращается, если таблица тарифов содержит некорректные значения.
var ErrInvalidTable = errors.New("invalid tariff table")

// RateEntry описывает тарифы одного дня недели.
type RateEntry struct {
	DayRate      float64 `yaml:"day_rate"`
	NightRate    float64 `yaml:"night_rate"`
	MaxStayHours int     `yaml:"max_stay_hours"`
}

// Table содержит тарифы по дням недели, ночной фиксированный тариф и скидки постоянных клиентов.
// Значение неизменяемо после создания и передаётся калькулятору явно.
type Table struct {
	days              [7]RateEntry
	lateNightFlatRate float64
	eveningDiscount   float64
	daytimeDiscount   float64
}

// NewTable создаёт таблицу тарифов и проверяет её корректность.
func NewTable(days [7]RateEntry, lateNightFlatRate, eveningDiscount, daytimeDiscount float64) (Table, error) {
	t := Table{
		days:              days,
		lateNightFlatRate: lateNightFlatRate,
		eveningDiscount:   eveningDiscount,
		daytimeDiscount:   daytimeDiscount,
	}
	if err := t.validate(); err != nil {
		return Table{}, err
	}
	return t, nil
}

// Default возвращает тарифы, действующие по умолчанию.
func Default() Table {
	weekday := RateEntry{DayRate: 10, NightRate: 5, MaxStayHours: 2}
	return Table{
		days: [7]RateEntry{
			time.Sunday:    {DayRate: 2, NightRate: 5, MaxStayHours: 8},
			time.Monday:    weekday,
			time.Tuesday:   weekday,
			time.Wednesday: weekday,
			time.Thursday:  weekday,
			time.Friday:    weekday,
			time.Saturday:  {DayRate: 3, NightRate: 5, MaxStayHours: 4},
		},
		lateNightFlatRate: 20,
		eveningDiscount:   0.5,
		daytimeDiscount:   0.1,
	}
}

// Rate возвращает тарифы для указанного дня недели.
func (t Table) Rate(day time.Weekday) RateEntry {
	return t.days[day]
}

// LateNightFlatRate возвращает фиксированный тариф за ночной период 00:00–08:00.
func (t Table) LateNightFlatRate() float64 {
	return t.lateNightFlatRate
}

// EveningDiscount возвращает долю скидки для вечерних и ночных часов.
func (t Table) EveningDiscount() float64 {
	return t.eveningDiscount
}

// DaytimeDiscount возвращает долю скидки для дневных часов.
func (t Table) DaytimeDiscount() float64 {
	return t.daytimeDiscount
}

func (t Table) validate() error {
	for day, e := range t.days {
		if e.DayRate < 0 || e.NightRate < 0 || e.MaxStayHours < 0 {
			return fmt.Errorf("%w: negative value for %s", ErrInvalidTable, time.Weekday(day))
		}
	}
	if t.lateNightFlatRate < 0 {
		return fmt.Errorf("%w: negative late night rate", ErrInvalidTable)
	}
	if t.eveningDiscount < 0 || t.eveningDiscount > 1 || t.daytimeDiscount < 0 || t.daytimeDiscount > 1 {
		return fmt.Errorf("%w: discount must be within [0, 1]", ErrInvalidTable)
	}
	return nil
}

type fileTable struct {
	Days              map[string]RateEntry `yaml:"days"`
	LateNightFlatRate *float64             `yaml:"late_night_flat_rate"`
	EveningDiscount   *float64             `yaml:"evening_discount"`
	DaytimeDiscount   *float64             `yaml:"daytime_discount"`
}

// Load читает таблицу тарифов из YAML-файла.
// Отсутствующие в файле значения берутся из таблицы по умолчанию.
func Load(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("read tariff file: %w", err)
	}
	return Parse(data)
}

// Parse разбирает таблицу тарифов в формате YAML.
func Parse(data []byte) (Table, error) {
	var ft fileTable
	if err := yaml.Unmarshal(data, &ft); err != nil {
		return Table{}, fmt.Errorf("decode tariff file: %w", err)
	}

	t := Default()
	for name, entry := range ft.Days {
		day, ok := parseWeekday(name)
		if !ok {
			return Table{}, fmt.Errorf("%w: unknown weekday %q", ErrInvalidTable, name)
		}
		t.days[day] = entry
	}
	if ft.LateNightFlatRate != nil {
		t.lateNightFlatRate = *ft.LateNightFlatRate
	}
	if ft.EveningDiscount != nil {
		t.eveningDiscount = *ft.EveningDiscount
	}
	if ft.DaytimeDiscount != nil {
		t.daytimeDiscount = *ft.DaytimeDiscount
	}

	if err := t.validate(); err != nil {
		return Table{}, err
	}
	return t, nil
}

func parseWeekday(name string) (time.Weekday, bool) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), strings.TrimSpace(name)) {
			return d, true
		}
	}
	return 0, false
}
