package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"example.com/course-payments/services/payment/internal/domain"
)

// PaymentRepository — журнал платежей.
type PaymentRepository interface {
	// InsertIgnore вставляет строку, если нет строки с тем же order_id или payment_id.
	// Дубликат — domain.ErrDuplicateWrite.
	InsertIgnore(ctx context.Context, payment *domain.Payment) error

	// Upsert вставляет или обновляет строку одним выражением.
	Upsert(ctx context.Context, payment *domain.Payment) (domain.WriteResult, error)

	// MarkRefunded переводит платёж в refunded. Нет строки — domain.ErrNotFound.
	MarkRefunded(ctx context.Context, paymentID, refundID string) error

	// GetByOrderID возвращает строку по order_id.
	GetByOrderID(ctx context.Context, orderID string) (*domain.Payment, error)

	// List возвращает страницу журнала, новые сверху, и общее число строк.
	List(ctx context.Context, page domain.Page) ([]*domain.Payment, int64, error)

	// ListByUser возвращает платежи пользователя, новые сверху.
	ListByUser(ctx context.Context, userID int64) ([]*domain.Payment, error)
}

// upsertStatusExpr — статус не откатывается назад: created < captured < refunded.
const upsertStatusExpr = "CASE WHEN FIELD(VALUES(status),'created','captured','refunded') > " +
	"FIELD(status,'created','captured','refunded') THEN VALUES(status) ELSE status END"

// upsertAssignments — ON DUPLICATE KEY UPDATE для webhook.
// updated_at не трогаем: повторная доставка того же события даёт 0 affected rows.
//
// VALUES(col) в ON DUPLICATE KEY UPDATE устарел с MySQL 8.0.20, но работает
// в 8.x и в MariaDB. Псевдоним строки (INSERT ... AS new) gorm mysql не
// генерирует, а 5.7 и MariaDB его не поддерживают.
// TODO: перейти на new.col, когда минимальной версией станет MySQL 8.0.20.
var upsertAssignments = []clause.Assignment{
	{Column: clause.Column{Name: "amount"}, Value: gorm.Expr("VALUES(amount)")},
	{Column: clause.Column{Name: "currency"}, Value: gorm.Expr("VALUES(currency)")},
	{Column: clause.Column{Name: "status"}, Value: gorm.Expr(upsertStatusExpr)},
	{Column: clause.Column{Name: "user_id"}, Value: gorm.Expr("COALESCE(user_id, VALUES(user_id))")},
	{Column: clause.Column{Name: "payment_id"}, Value: gorm.Expr("COALESCE(payment_id, VALUES(payment_id))")},
	{Column: clause.Column{Name: "refund_id"}, Value: gorm.Expr("COALESCE(refund_id, VALUES(refund_id))")},
}

type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository создаёт репозиторий журнала платежей.
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

// InsertIgnore — INSERT ... ON DUPLICATE KEY UPDATE id=id.
func (r *paymentRepository) InsertIgnore(ctx context.Context, payment *domain.Payment) error {
	model := paymentModelFromDomain(payment)

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(model)
	if result.Error != nil {
		if isDuplicateKeyError(result.Error) {
			return domain.ErrDuplicateWrite
		}
		return fmt.Errorf("ошибка вставки платежа: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return domain.ErrDuplicateWrite
	}

	payment.ID = model.ID
	payment.CreatedAt = model.CreatedAt
	payment.UpdatedAt = model.UpdatedAt
	return nil
}

// Upsert — MySQL возвращает 1 при вставке, 2 при изменении, 0 если строка не изменилась.
func (r *paymentRepository) Upsert(ctx context.Context, payment *domain.Payment) (domain.WriteResult, error) {
	model := paymentModelFromDomain(payment)

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoUpdates: upsertAssignments}).
		Create(model)
	if result.Error != nil {
		return "", fmt.Errorf("ошибка upsert платежа: %w", result.Error)
	}

	switch result.RowsAffected {
	case 0:
		return domain.WriteUnchanged, nil
	case 1:
		return domain.WriteInserted, nil
	default:
		return domain.WriteUpdated, nil
	}
}

// MarkRefunded обновляет статус и refund_id по payment_id.
func (r *paymentRepository) MarkRefunded(ctx context.Context, paymentID, refundID string) error {
	result := r.db.WithContext(ctx).
		Model(&PaymentModel{}).
		Where("payment_id = ?", paymentID).
		Updates(map[string]interface{}{
			"status":     string(domain.PaymentStatusRefunded),
			"refund_id":  refundID,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("ошибка обновления статуса возврата: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByOrderID возвращает строку по order_id.
func (r *paymentRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Payment, error) {
	var model PaymentModel

	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	return model.toDomain(), nil
}

// List возвращает страницу журнала.
func (r *paymentRepository) List(ctx context.Context, page domain.Page) ([]*domain.Payment, int64, error) {
	page = page.Normalize()

	var total int64
	if err := r.db.WithContext(ctx).Model(&PaymentModel{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчёта платежей: %w", err)
	}

	var models []PaymentModel
	if err := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(page.PageSize).
		Offset(page.Offset()).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("ошибка чтения платежей: %w", err)
	}

	return toDomainList(models), total, nil
}

// ListByUser возвращает платежи пользователя.
func (r *paymentRepository) ListByUser(ctx context.Context, userID int64) ([]*domain.Payment, error) {
	var models []PaymentModel

	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("ошибка чтения платежей пользователя: %w", err)
	}

	return toDomainList(models), nil
}

func toDomainList(models []PaymentModel) []*domain.Payment {
	payments := make([]*domain.Payment, 0, len(models))
	for i := range models {
		payments = append(payments, models[i].toDomain())
	}
	return payments
}
