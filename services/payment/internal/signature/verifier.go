// Package signature проверяет HMAC-SHA256 подписи платёжного шлюза.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"example.com/course-payments/services/payment/internal/domain"
)

// Verifier проверяет подписи подтверждения оплаты и webhook'ов.
// Для клиентского подтверждения используется key secret,
// для webhook'ов — отдельный webhook secret.
type Verifier struct {
	keySecret     []byte
	webhookSecret []byte
}

// NewVerifier создаёт Verifier. Пустые секреты допустимы.
func NewVerifier(keySecret, webhookSecret string) *Verifier {
	return &Verifier{
		keySecret:     []byte(keySecret),
		webhookSecret: []byte(webhookSecret),
	}
}

// WebhookConfigured сообщает, задан ли секрет webhook'ов.
func (v *Verifier) WebhookConfigured() bool {
	return len(v.webhookSecret) > 0
}

// VerifyPayment проверяет подпись "{orderRef}|{paymentID}".
func (v *Verifier) VerifyPayment(orderRef, paymentID, sig string) error {
	if orderRef == "" || paymentID == "" || sig == "" {
		return domain.InvalidInputf("order_id, payment_id и signature обязательны")
	}
	if len(v.keySecret) == 0 {
		return domain.ErrNotConfigured
	}
	return compare(Sign(v.keySecret, []byte(orderRef+"|"+paymentID)), sig)
}

// VerifyWebhook проверяет подпись сырого тела webhook'а.
func (v *Verifier) VerifyWebhook(body []byte, sig string) error {
	if !v.WebhookConfigured() {
		return domain.ErrNotConfigured
	}
	if sig == "" {
		return fmt.Errorf("%w: нет подписи", domain.ErrInvalidSignature)
	}
	return compare(Sign(v.webhookSecret, body), sig)
}

// Sign возвращает HMAC-SHA256 в нижнем hex.
func Sign(secret, message []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

func compare(expected, got string) error {
	if !hmac.Equal([]byte(expected), []byte(got)) {
		return domain.ErrInvalidSignature
	}
	return nil
}
