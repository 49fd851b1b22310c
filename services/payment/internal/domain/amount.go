package domain

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// decimalPattern — десятичное число без экспоненты.
var decimalPattern = regexp.MustCompile(`^(-?)(\d+)(?:\.(\d+))?$`)

// decimal — разобранное десятичное значение.
type decimal struct {
	negative bool
	integer  int64
	fraction string // цифры после точки, как есть
}

func (d decimal) hasFraction() bool {
	return strings.Trim(d.fraction, "0") != ""
}

// parseDecimal принимает JSON число или строку с числом.
// Вещественная арифметика не используется.
func parseDecimal(raw json.RawMessage) (decimal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal{}, InvalidInputf("сумма не указана")
	}

	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return decimal{}, InvalidInputf("сумма должна быть числом")
		}
		text = strings.TrimSpace(text)
	}

	m := decimalPattern.FindStringSubmatch(text)
	if m == nil {
		return decimal{}, InvalidInputf("сумма должна быть числом: %q", text)
	}

	integer, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return decimal{}, InvalidInputf("сумма вне допустимого диапазона")
	}

	return decimal{negative: m[1] == "-", integer: integer, fraction: m[3]}, nil
}

// ParseOrderAmount разбирает сумму заказа в минимальных единицах.
// Допускается только положительное целое ("149800", 149800, 149800.0).
func ParseOrderAmount(raw json.RawMessage) (int64, error) {
	d, err := parseDecimal(raw)
	if err != nil {
		return 0, err
	}
	if d.hasFraction() {
		return 0, InvalidInputf("сумма должна быть целым числом минимальных единиц")
	}
	if d.negative || d.integer <= 0 {
		return 0, InvalidInputf("сумма должна быть больше нуля")
	}
	return d.integer, nil
}

// ParseRefundAmount разбирает необязательную сумму возврата.
// nil — сумма не указана. Дробная часть отбрасывается.
func ParseRefundAmount(raw json.RawMessage) (*int64, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	d, err := parseDecimal(trimmed)
	if err != nil {
		return nil, err
	}
	if d.negative && (d.integer > 0 || d.hasFraction()) {
		return nil, InvalidInputf("сумма возврата не может быть отрицательной")
	}

	amount := d.integer
	return &amount, nil
}
