package repository

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mmeshcher/parking-ledger/internal/model"
)

// HistoryVersion задаёт текущую версию формата файла истории.
const HistoryVersion = 2

const (
	keyVersion          = "Version"
	keyTotalPayments    = "Total Payments"
	keyAvailableCredits = "Available Credits"
	keyParkedDates      = "Parked Dates"
)

var (
	// ErrMalformedHistory возвращается, если файл истории не соответствует формату.
	ErrMalformedHistory = errors.New("malformed history")
	// ErrUnsupportedVersion возвращается для файлов истории неизвестной версии.
	ErrUnsupportedVersion = errors.New("unsupported history version")
)

// EncodeHistory сериализует историю в текстовый формат текущей версии.
func EncodeHistory(h model.History) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s: %d\n", keyVersion, HistoryVersion)
	fmt.Fprintf(&buf, "%s: %.2f\n", keyTotalPayments, h.TotalPayments)
	fmt.Fprintf(&buf, "%s: %.2f\n", keyAvailableCredits, h.AvailableCredits)
	fmt.Fprintf(&buf, "%s:\n", keyParkedDates)
	for _, line := range h.ParkedDates {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// DecodeHistory разбирает файл истории. Файлы без строки версии читаются
// в исходном позиционном формате: сумма оплат, кредиты, заголовок, стоянки.
func DecodeHistory(data []byte) (model.History, error) {
	lines := splitLines(data)
	if len(lines) == 0 {
		return model.History{}, fmt.Errorf("%w: empty file", ErrMalformedHistory)
	}

	key, value, ok := splitField(lines[0])
	if ok && key == keyVersion {
		version, err := strconv.Atoi(value)
		if err != nil {
			return model.History{}, fmt.Errorf("%w: version %q", ErrMalformedHistory, value)
		}
		if version != HistoryVersion {
			return model.History{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
		}
		return decodeTagged(lines[1:])
	}

	return decodeLegacy(lines)
}

func decodeTagged(lines []string) (model.History, error) {
	var (
		h                       model.History
		gotPayments, gotCredits bool
		inParkedDates           bool
	)

	for _, line := range lines {
		if inParkedDates {
			if line = strings.TrimSpace(line); line != "" {
				h.ParkedDates = append(h.ParkedDates, line)
			}
			continue
		}

		key, value, ok := splitField(line)
		if !ok {
			return model.History{}, fmt.Errorf("%w: unexpected line %q", ErrMalformedHistory, line)
		}

		var err error
		switch key {
		case keyTotalPayments:
			h.TotalPayments, err = parseAmount(value)
			gotPayments = true
		case keyAvailableCredits:
			h.AvailableCredits, err = parseAmount(value)
			gotCredits = true
		case keyParkedDates:
			inParkedDates = true
		default:
			return model.History{}, fmt.Errorf("%w: unknown field %q", ErrMalformedHistory, key)
		}
		if err != nil {
			return model.History{}, err
		}
	}

	if !gotPayments || !gotCredits || !inParkedDates {
		return model.History{}, fmt.Errorf("%w: missing required field", ErrMalformedHistory)
	}
	return h, nil
}

func decodeLegacy(lines []string) (model.History, error) {
	if len(lines) < 2 {
		return model.History{}, fmt.Errorf("%w: expected totals on the first two lines", ErrMalformedHistory)
	}

	var h model.History
	var err error

	if h.TotalPayments, err = legacyAmount(lines[0]); err != nil {
		return model.History{}, err
	}
	if h.AvailableCredits, err = legacyAmount(lines[1]); err != nil {
		return model.History{}, err
	}

	if len(lines) > 3 {
		for _, line := range lines[3:] {
			if line = strings.TrimSpace(line); line != "" {
				h.ParkedDates = append(h.ParkedDates, line)
			}
		}
	}
	return h, nil
}

func legacyAmount(line string) (float64, error) {
	_, value, ok := splitField(line)
	if !ok {
		return 0, fmt.Errorf("%w: unexpected line %q", ErrMalformedHistory, line)
	}
	return parseAmount(value)
}

func parseAmount(value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: amount %q", ErrMalformedHistory, value)
	}
	return v, nil
}

func splitField(line string) (string, string, bool) {
	key, value, ok := strings.Cut(line, ":")
	if !ok {
		return "", "", false
	}
	return strings.TrimSpace(key), strings.TrimSpace(value), true
}

func splitLines(data []byte) []string {
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		lines = append(lines, strings.TrimRight(sc.Text(), "\r"))
	}
	return lines
}
