package domain

import (
	"strconv"
	"time"
)

// Enrollment — зачисление студента на курс. Уникально по (UserID, CourseID).
type Enrollment struct {
	ID        int64
	UserID    int64
	CourseID  int64
	OrderID   string // пусто у зачислений, созданных до появления оплаты
	CreatedAt time.Time
}

// syntheticOrderPrefix — префикс order_id для зачислений без заказа.
const syntheticOrderPrefix = "enr_"

// SyntheticOrderID строит order_id для зачисления без заказа: "enr_<id>".
func SyntheticOrderID(enrollmentID int64) string {
	return syntheticOrderPrefix + strconv.FormatInt(enrollmentID, 10)
}

// MaterializeResult — итог материализации зачислений.
type MaterializeResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// BackfillCandidate — группа зачислений без строки в журнале платежей.
type BackfillCandidate struct {
	UserID  int64
	OrderID string
	Amount  int64 // сумма цен курсов в минимальных единицах
}

// BackfillReport — итог прохода backfill.
type BackfillReport struct {
	OrdersBackfilled int `json:"orders_backfilled"`
	LegacyBackfilled int `json:"legacy_backfilled"`
}
