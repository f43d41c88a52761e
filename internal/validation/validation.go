// Package validation содержит функции валидации входных данных.
package validation

import (
	"fmt"
	"regexp"
	"time"
)

// TimeLayout задаёт формат времени прибытия и убытия: YYYY-MM-DD HH:MM.
const TimeLayout = "2006-01-02 15:04"

const frequentParkingNumberLen = 5

var carIdentityPattern = regexp.MustCompile(`^\d{2}[A-Z]-\d{5}$`)

// IsValidCarIdentity проверяет номер автомобиля вида 73A-12345.
func IsValidCarIdentity(identity string) bool {
	return carIdentityPattern.MatchString(identity)
}

// IsValidFrequentParkingNumber проверяет номер постоянного клиента:
// пять цифр, последняя равна сумме первых четырёх по модулю 11.
func IsValidFrequentParkingNumber(number string) bool {
	if len(number) != frequentParkingNumberLen {
		return false
	}

	sum := 0
	for i := 0; i < len(number); i++ {
		ch := number[i]
		if ch < '0' || ch > '9' {
			return false
		}
		if i < len(number)-1 {
			sum += int(ch - '0')
		}
	}

	check := int(number[len(number)-1] - '0')
	return sum%11 == check
}

// ParseTimestamp разбирает время в формате YYYY-MM-DD HH:MM.
func ParseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: use YYYY-MM-DD HH:MM format", value)
	}
	return t, nil
}
