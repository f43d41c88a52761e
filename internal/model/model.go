// Package model содержит доменные сущности парковки.
package model

import "fmt"

// ParkedCar описывает автомобиль, находящийся на парковке.
type ParkedCar struct {
	Identity              string `json:"identity"`
	ArrivalTime           string `json:"arrival_time"`
	FrequentParkingNumber string `json:"frequent_parking_number"`
}

// IsFrequentParker сообщает, указан ли номер постоянного клиента.
func (c ParkedCar) IsFrequentParker() bool {
	return c.FrequentParkingNumber != ""
}

// History содержит историю оплат автомобиля.
type History struct {
	TotalPayments    float64  `json:"total_payments"`
	AvailableCredits float64  `json:"available_credits"`
	ParkedDates      []string `json:"parked_dates"`
}

// FormatVisit формирует строку истории о завершённой стоянке.
func FormatVisit(arrival, departure string, fee float64) string {
	return fmt.Sprintf("%s - %s $%.2f", arrival, departure, fee)
}

// FormatOngoingVisit формирует строку о текущей, ещё не завершённой стоянке.
func FormatOngoingVisit(arrival string) string {
	return arrival + " - Stay Time ..."
}

// Receipt описывает результат оплаты стоянки.
type Receipt struct {
	Identity  string
	Arrival   string
	Departure string
	Fee       float64
	Payment   float64
	Excess    float64
	History   History
}
