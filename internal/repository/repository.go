// Package repository содержит хранилища активных стоянок и истории оплат.
package repository

import "errors"

var (
	// ErrCarNotFound возвращается, если автомобиль не найден среди припаркованных.
	ErrCarNotFound = errors.New("car not found")
	// ErrHistoryNotFound возвращается, если для автомобиля ещё нет истории оплат.
	ErrHistoryNotFound = errors.New("history not found")
	// ErrInvalidIdentity возвращается, если номер автомобиля нельзя использовать как ключ хранилища.
	ErrInvalidIdentity = errors.New("invalid car identity")
)
