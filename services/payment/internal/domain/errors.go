// Package domain содержит бизнес-сущности сервиса оплаты курсов.
package domain

import (
	"errors"
	"fmt"
)

// Доменные ошибки.
var (
	// ErrUnauthorized — нет аутентифицированного пользователя.
	ErrUnauthorized = errors.New("требуется аутентификация")

	// ErrForbidden — роль пользователя не допускает операцию.
	ErrForbidden = errors.New("доступ запрещён")

	// ErrInvalidInput — некорректные входные данные.
	ErrInvalidInput = errors.New("некорректные входные данные")

	// ErrNotConfigured — не заданы учётные данные платёжного шлюза.
	ErrNotConfigured = errors.New("платёжный шлюз не настроен")

	// ErrInvalidSignature — HMAC подпись не совпала.
	ErrInvalidSignature = errors.New("неверная подпись")

	// ErrNotRefundable — платёж нельзя вернуть (не захвачен или синтетический).
	ErrNotRefundable = errors.New("платёж не может быть возвращён")

	// ErrAlreadyRefunded — сумма платежа уже полностью возвращена.
	ErrAlreadyRefunded = errors.New("платёж уже возвращён")

	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("не найдено")

	// ErrDuplicateWrite — запись с таким уникальным ключом уже есть.
	// Наружу не выходит: сервисный слой превращает её в успешный no-op.
	ErrDuplicateWrite = errors.New("запись уже существует")

	// ErrEventInProgress — событие webhook'а сейчас обрабатывает другая доставка.
	// Ответ не 2xx, чтобы шлюз повторил доставку.
	ErrEventInProgress = errors.New("событие уже обрабатывается")

	// ErrGatewayUnavailable — шлюз недоступен (circuit breaker открыт).
	ErrGatewayUnavailable = errors.New("платёжный шлюз временно недоступен")
)

// GatewayError — структурированная ошибка платёжного шлюза.
// Передаётся клиенту как есть: HTTP статус шлюза, code, description, field.
type GatewayError struct {
	StatusCode  int
	Code        string
	Description string
	Field       string
}

func (e *GatewayError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("ошибка шлюза %d %s: %s (поле %s)", e.StatusCode, e.Code, e.Description, e.Field)
	}
	return fmt.Sprintf("ошибка шлюза %d %s: %s", e.StatusCode, e.Code, e.Description)
}

// InvalidInputf оборачивает ErrInvalidInput с пояснением.
func InvalidInputf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
