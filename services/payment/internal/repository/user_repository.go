package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"example.com/course-payments/services/payment/internal/domain"
)

// UserRepository — административные операции над пользователями.
type UserRepository interface {
	// DeleteCascade в одной транзакции удаляет зачисления пользователя,
	// отвязывает его платежи (user_id = NULL) и удаляет пользователя.
	// Нет пользователя — domain.ErrNotFound, транзакция откатывается.
	DeleteCascade(ctx context.Context, userID int64) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository создаёт репозиторий пользователей.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) DeleteCascade(ctx context.Context, userID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&EnrollmentModel{}).Error; err != nil {
			return fmt.Errorf("ошибка удаления зачислений: %w", err)
		}

		// Платежи не удаляются: журнал хранит историю.
		if err := tx.Model(&PaymentModel{}).
			Where("user_id = ?", userID).
			Update("user_id", nil).Error; err != nil {
			return fmt.Errorf("ошибка отвязки платежей: %w", err)
		}

		result := tx.Where("id = ?", userID).Delete(&UserModel{})
		if result.Error != nil {
			return fmt.Errorf("ошибка удаления пользователя: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}
