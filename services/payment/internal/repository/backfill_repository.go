package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"example.com/course-payments/services/payment/internal/domain"
)

// Суммы считаются в SQL: цена DECIMAL в основных единицах, ROUND(price*100) — пайсы.

// orphanOrdersQuery — зачисления с order_id, для которого нет строки в payments.
const orphanOrdersQuery = `
SELECT e.user_id AS user_id,
       e.order_id AS order_id,
       CAST(SUM(ROUND(COALESCE(c.price, 0) * 100)) AS SIGNED) AS amount
FROM enrollments e
LEFT JOIN courses c ON c.id = e.course_id
LEFT JOIN payments p ON p.order_id = e.order_id
WHERE e.order_id IS NOT NULL AND p.id IS NULL
GROUP BY e.user_id, e.order_id
ORDER BY MIN(e.id)`

// legacyEnrollmentsQuery — зачисления без order_id; для каждого строится "enr_<id>".
const legacyEnrollmentsQuery = `
SELECT e.user_id AS user_id,
       CONCAT('enr_', e.id) AS order_id,
       CAST(SUM(ROUND(COALESCE(c.price, 0) * 100)) AS SIGNED) AS amount
FROM enrollments e
LEFT JOIN courses c ON c.id = e.course_id
LEFT JOIN payments p ON p.order_id = CONCAT('enr_', e.id)
WHERE e.order_id IS NULL AND p.id IS NULL
GROUP BY e.user_id, e.id
ORDER BY e.id`

// BackfillRepository ищет зачисления, не отражённые в журнале платежей.
type BackfillRepository interface {
	OrphanOrders(ctx context.Context) ([]domain.BackfillCandidate, error)
	LegacyEnrollments(ctx context.Context) ([]domain.BackfillCandidate, error)
}

type backfillRepository struct {
	db *gorm.DB
}

// NewBackfillRepository создаёт репозиторий backfill.
func NewBackfillRepository(db *gorm.DB) BackfillRepository {
	return &backfillRepository{db: db}
}

type candidateRow struct {
	UserID  int64  `gorm:"column:user_id"`
	OrderID string `gorm:"column:order_id"`
	Amount  int64  `gorm:"column:amount"`
}

func (r *backfillRepository) OrphanOrders(ctx context.Context) ([]domain.BackfillCandidate, error) {
	return r.candidates(ctx, orphanOrdersQuery)
}

func (r *backfillRepository) LegacyEnrollments(ctx context.Context) ([]domain.BackfillCandidate, error) {
	return r.candidates(ctx, legacyEnrollmentsQuery)
}

func (r *backfillRepository) candidates(ctx context.Context, query string) ([]domain.BackfillCandidate, error) {
	var rows []candidateRow
	if err := r.db.WithContext(ctx).Raw(query).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("ошибка выборки кандидатов backfill: %w", err)
	}

	out := make([]domain.BackfillCandidate, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.BackfillCandidate{
			UserID:  row.UserID,
			OrderID: row.OrderID,
			Amount:  row.Amount,
		})
	}
	return out, nil
}
