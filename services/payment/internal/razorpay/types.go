package razorpay

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Ключи notes, которые сервис кладёт в заказ.
const (
	NoteCourseIDs = "course_ids"
	NoteUserID    = "user_id"
	NoteReason    = "reason"
)

// Notes — произвольные метаданные заказа или платежа.
// Шлюз отдаёт пустые notes как [], а значения бывают числами.
type Notes map[string]string

// UnmarshalJSON принимает объект, пустой массив или null.
func (n *Notes) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) || data[0] == '[' {
		*n = Notes{}
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("notes: %w", err)
	}

	out := make(Notes, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
		case string:
			out[k] = val
		case json.Number:
			out[k] = val.String()
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	*n = out
	return nil
}

// Order — заказ шлюза.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
	Notes    Notes  `json:"notes"`
}

// Payment — платёж шлюза. Суммы в минимальных единицах.
type Payment struct {
	ID             string `json:"id"`
	OrderID        string `json:"order_id"`
	Amount         int64  `json:"amount"`
	AmountRefunded int64  `json:"amount_refunded"`
	Currency       string `json:"currency"`
	Status         string `json:"status"`
	Notes          Notes  `json:"notes"`
}

// Refund — возврат шлюза.
type Refund struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
}

// CreateOrderRequest — тело POST /orders.
type CreateOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Notes    Notes  `json:"notes,omitempty"`
}

// RefundRequest — тело POST /payments/{id}/refund.
type RefundRequest struct {
	Amount int64 `json:"amount"`
	Notes  Notes `json:"notes,omitempty"`
}

// errorResponse — тело ответа шлюза с ошибкой.
type errorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
		Field       string `json:"field"`
	} `json:"error"`
}
