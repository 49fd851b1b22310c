package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"example.com/course-payments/services/payment/internal/domain"
)

// EnrollmentRepository — зачисления на курсы.
type EnrollmentRepository interface {
	// InsertIgnore вставляет зачисление. Уже есть (user, course) — domain.ErrDuplicateWrite.
	InsertIgnore(ctx context.Context, enrollment *domain.Enrollment) error
}

type enrollmentRepository struct {
	db *gorm.DB
}

// NewEnrollmentRepository создаёт репозиторий зачислений.
func NewEnrollmentRepository(db *gorm.DB) EnrollmentRepository {
	return &enrollmentRepository{db: db}
}

func (r *enrollmentRepository) InsertIgnore(ctx context.Context, enrollment *domain.Enrollment) error {
	model := &EnrollmentModel{
		UserID:   enrollment.UserID,
		CourseID: enrollment.CourseID,
		OrderID:  nullable(enrollment.OrderID),
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(model)
	if result.Error != nil {
		if isDuplicateKeyError(result.Error) {
			return domain.ErrDuplicateWrite
		}
		return fmt.Errorf("ошибка вставки зачисления: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrDuplicateWrite
	}

	enrollment.ID = model.ID
	enrollment.CreatedAt = model.CreatedAt
	return nil
}
