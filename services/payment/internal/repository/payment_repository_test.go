package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/course-payments/services/payment/internal/domain"
)

func capturedPayment() *domain.Payment {
	return &domain.Payment{
		OrderID:   "order_A",
		PaymentID: "pay_1",
		UserID:    int64Ptr(7),
		Amount:    149800,
		Currency:  "INR",
		Status:    domain.PaymentStatusCaptured,
		Source:    domain.SourceClient,
	}
}

// =====================================
// InsertIgnore
// =====================================

func TestPaymentRepository_InsertIgnore(t *testing.T) {
	insertIgnore := "INSERT INTO `payments` .* ON DUPLICATE KEY UPDATE `id`=`id`"

	tests := []struct {
		name        string
		payment     *domain.Payment
		mockSetup   func(mock sqlmock.Sqlmock)
		expectedErr error
	}{
		{
			name:    "вставка",
			payment: capturedPayment(),
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(insertIgnore).
					WithArgs("order_A", "pay_1", int64(7), int64(149800), "INR", "captured", nil, "client", sqlmock.AnyArg(), sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(10, 1))
				mock.ExpectCommit()
			},
		},
		{
			name:    "дубликат",
			payment: capturedPayment(),
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(insertIgnore).WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectCommit()
			},
			expectedErr: domain.ErrDuplicateWrite,
		},
		{
			name: "unknown хранится как NULL",
			payment: &domain.Payment{
				OrderID:   "enr_3",
				PaymentID: domain.UnknownPaymentID,
				UserID:    int64Ptr(7),
				Amount:    49900,
				Currency:  "INR",
				Status:    domain.PaymentStatusCaptured,
				Source:    domain.SourceBackfill,
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(insertIgnore).
					WithArgs("enr_3", nil, int64(7), int64(49900), "INR", "captured", nil, "backfill", sqlmock.AnyArg(), sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(11, 1))
				mock.ExpectCommit()
			},
		},
		{
			name:    "ошибка БД",
			payment: capturedPayment(),
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(insertIgnore).WillReturnError(sql.ErrConnDone)
				mock.ExpectRollback()
			},
			expectedErr: sql.ErrConnDone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gormDB, mock, cleanup := setupMockDB(t)
			defer cleanup()

			repo := NewPaymentRepository(gormDB)
			tt.mockSetup(mock)

			err := repo.InsertIgnore(context.Background(), tt.payment)

			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				require.NoError(t, err)
				assert.NotZero(t, tt.payment.ID)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// =====================================
// Upsert
// =====================================

func TestPaymentRepository_Upsert(t *testing.T) {
	upsert := regexp.QuoteMeta("ON DUPLICATE KEY UPDATE `amount`=VALUES(amount),`currency`=VALUES(currency),`status`=CASE WHEN FIELD(VALUES(status)") +
		".*" + regexp.QuoteMeta("`user_id`=COALESCE(user_id, VALUES(user_id)),`payment_id`=COALESCE(payment_id, VALUES(payment_id)),`refund_id`=COALESCE(refund_id, VALUES(refund_id))")

	tests := []struct {
		name     string
		affected int64
		want     domain.WriteResult
	}{
		{"вставка", 1, domain.WriteInserted},
		{"обновление", 2, domain.WriteUpdated},
		{"без изменений", 0, domain.WriteUnchanged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gormDB, mock, cleanup := setupMockDB(t)
			defer cleanup()

			mock.ExpectBegin()
			mock.ExpectExec("INSERT INTO `payments` .*" + upsert).
				WillReturnResult(sqlmock.NewResult(1, tt.affected))
			mock.ExpectCommit()

			p := capturedPayment()
			p.Source = domain.SourceWebhook

			got, err := NewPaymentRepository(gormDB).Upsert(context.Background(), p)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPaymentRepository_Upsert_Error(t *testing.T) {
	gormDB, mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `payments`").WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	_, err := NewPaymentRepository(gormDB).Upsert(context.Background(), capturedPayment())
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

// =====================================
// MarkRefunded
// =====================================

func TestPaymentRepository_MarkRefunded(t *testing.T) {
	update := regexp.QuoteMeta("UPDATE `payments` SET `refund_id`=?,`status`=?,`updated_at`=? WHERE payment_id = ?")

	t.Run("обновлено", func(t *testing.T) {
		gormDB, mock, cleanup := setupMockDB(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectExec(update).
			WithArgs("rfnd_1", "refunded", sqlmock.AnyArg(), "pay_1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, NewPaymentRepository(gormDB).MarkRefunded(context.Background(), "pay_1", "rfnd_1"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("нет строки", func(t *testing.T) {
		gormDB, mock, cleanup := setupMockDB(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectExec(update).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		err := NewPaymentRepository(gormDB).MarkRefunded(context.Background(), "pay_1", "rfnd_1")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

// =====================================
// Чтение
// =====================================

func paymentColumns() []string {
	return []string{"id", "order_id", "payment_id", "user_id", "amount", "currency", "status", "refund_id", "source", "created_at", "updated_at"}
}

func TestPaymentRepository_GetByOrderID(t *testing.T) {
	gormDB, mock, cleanup := setupMockDB(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `payments` WHERE order_id = ?")).
		WithArgs("enr_3", 1).
		WillReturnRows(sqlmock.NewRows(paymentColumns()).
			AddRow(5, "enr_3", nil, nil, 49900, "INR", "captured", nil, "backfill", now, now))

	p, err := NewPaymentRepository(gormDB).GetByOrderID(context.Background(), "enr_3")
	require.NoError(t, err)
	assert.Equal(t, domain.UnknownPaymentID, p.PaymentID, "NULL читается как unknown")
	assert.Nil(t, p.UserID)
	assert.Equal(t, domain.SourceBackfill, p.Source)
}

func TestPaymentRepository_GetByOrderID_NotFound(t *testing.T) {
	gormDB, mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT \\* FROM `payments`").WillReturnRows(sqlmock.NewRows(paymentColumns()))

	_, err := NewPaymentRepository(gormDB).GetByOrderID(context.Background(), "order_X")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPaymentRepository_List(t *testing.T) {
	gormDB, mock, cleanup := setupMockDB(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM `payments`")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `payments` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?")).
		WithArgs(20, 20).
		WillReturnRows(sqlmock.NewRows(paymentColumns()).
			AddRow(2, "order_B", "pay_2", 7, 100, "INR", "refunded", "rfnd_1", "webhook", now, now).
			AddRow(1, "order_A", "pay_1", 7, 149800, "INR", "captured", nil, "client", now, now))

	items, total, err := NewPaymentRepository(gormDB).List(context.Background(), domain.Page{Page: 2, PageSize: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(42), total)
	require.Len(t, items, 2)
	assert.Equal(t, "rfnd_1", items[0].RefundID)
	assert.Equal(t, int64(7), *items[1].UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_ListByUser(t *testing.T) {
	gormDB, mock, cleanup := setupMockDB(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `payments` WHERE user_id = ? ORDER BY created_at DESC, id DESC")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(paymentColumns()).
			AddRow(1, "order_A", "pay_1", 7, 149800, "INR", "captured", nil, "client", now, now))

	items, err := NewPaymentRepository(gormDB).ListByUser(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "pay_1", items[0].PaymentID)
}
