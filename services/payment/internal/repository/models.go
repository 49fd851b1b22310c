// Package repository содержит доступ к данным журнала платежей и зачислений.
package repository

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"example.com/course-payments/services/payment/internal/domain"
)

// =============================================================================
// GORM модели
// =============================================================================

// PaymentModel — строка таблицы payments.
// payment_id "unknown" хранится как NULL, чтобы синтетические строки
// не конфликтовали по уникальному индексу.
type PaymentModel struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID   *string   `gorm:"column:order_id;type:varchar(64);uniqueIndex:uq_payments_order_id"`
	PaymentID *string   `gorm:"column:payment_id;type:varchar(64);uniqueIndex:uq_payments_payment_id"`
	UserID    *int64    `gorm:"column:user_id;index"`
	Amount    int64     `gorm:"column:amount;not null"`
	Currency  string    `gorm:"column:currency;type:char(3);not null"`
	Status    string    `gorm:"column:status;type:varchar(16);not null"`
	RefundID  *string   `gorm:"column:refund_id;type:varchar(64)"`
	Source    string    `gorm:"column:source;type:varchar(16);not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName возвращает имя таблицы в БД.
func (PaymentModel) TableName() string {
	return "payments"
}

func (m *PaymentModel) toDomain() *domain.Payment {
	p := &domain.Payment{
		ID:        m.ID,
		OrderID:   deref(m.OrderID),
		PaymentID: deref(m.PaymentID),
		UserID:    m.UserID,
		Amount:    m.Amount,
		Currency:  m.Currency,
		Status:    domain.PaymentStatus(m.Status),
		RefundID:  deref(m.RefundID),
		Source:    domain.Source(m.Source),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if p.PaymentID == "" {
		p.PaymentID = domain.UnknownPaymentID
	}
	return p
}

func paymentModelFromDomain(p *domain.Payment) *PaymentModel {
	paymentID := p.PaymentID
	if paymentID == domain.UnknownPaymentID {
		paymentID = ""
	}

	return &PaymentModel{
		ID:        p.ID,
		OrderID:   nullable(p.OrderID),
		PaymentID: nullable(paymentID),
		UserID:    p.UserID,
		Amount:    p.Amount,
		Currency:  p.Currency,
		Status:    string(p.Status),
		RefundID:  nullable(p.RefundID),
		Source:    string(p.Source),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// EnrollmentModel — строка таблицы enrollments.
type EnrollmentModel struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	UserID    int64     `gorm:"column:user_id;not null;uniqueIndex:uq_enrollments_user_course,priority:1"`
	CourseID  int64     `gorm:"column:course_id;not null;uniqueIndex:uq_enrollments_user_course,priority:2"`
	OrderID   *string   `gorm:"column:order_id;type:varchar(64);index"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName возвращает имя таблицы в БД.
func (EnrollmentModel) TableName() string {
	return "enrollments"
}

// CourseModel — каталог курсов. Только чтение, таблицей владеет каталог.
type CourseModel struct {
	ID    int64  `gorm:"column:id;primaryKey"`
	Title string `gorm:"column:title"`
}

// TableName возвращает имя таблицы в БД.
func (CourseModel) TableName() string {
	return "courses"
}

// UserModel — пользователи. Сервис только удаляет их по запросу администратора.
type UserModel struct {
	ID   int64  `gorm:"column:id;primaryKey"`
	Role string `gorm:"column:role"`
}

// TableName возвращает имя таблицы в БД.
func (UserModel) TableName() string {
	return "users"
}

// AutoMigrate создаёт таблицы, которыми владеет сервис: payments и enrollments.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&PaymentModel{}, &EnrollmentModel{})
}

// =============================================================================
// Вспомогательные функции
// =============================================================================

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// isDuplicateKeyError проверяет, является ли ошибка дубликатом ключа.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := err.Error()
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(errMsg, "Duplicate entry") ||
		strings.Contains(errMsg, "1062")
}
