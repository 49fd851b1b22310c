package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/course-payments/services/payment/internal/domain"
)

func TestBackfillRepository_OrphanOrders(t *testing.T) {
	gormDB, mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectQuery(`(?s)SUM\(ROUND\(COALESCE\(c.price, 0\) \* 100\)\).*LEFT JOIN payments p ON p.order_id = e.order_id.*GROUP BY e.user_id, e.order_id`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "order_id", "amount"}).
			AddRow(7, "order_A", 149800))

	got, err := NewBackfillRepository(gormDB).OrphanOrders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.BackfillCandidate{{UserID: 7, OrderID: "order_A", Amount: 149800}}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBackfillRepository_LegacyEnrollments(t *testing.T) {
	gormDB, mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectQuery(`(?s)CONCAT\('enr_', e.id\) AS order_id.*WHERE e.order_id IS NULL AND p.id IS NULL`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "order_id", "amount"}).
			AddRow(9, "enr_12", 49900).
			AddRow(9, "enr_13", 0))

	got, err := NewBackfillRepository(gormDB).LegacyEnrollments(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "enr_13", got[1].OrderID)
}

func TestBackfillRepository_Error(t *testing.T) {
	gormDB, mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT").WillReturnError(sql.ErrConnDone)

	_, err := NewBackfillRepository(gormDB).OrphanOrders(context.Background())
	assert.ErrorIs(t, err, sql.ErrConnDone)
}
