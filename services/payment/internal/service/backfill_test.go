package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/course-payments/services/payment/internal/domain"
)

func TestReconciler_Backfill(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Зачисления по заказу без строки журнала и старое зачисление без заказа.
	env.enrollments.seed(7, 3, "order_lost")
	env.enrollments.seed(7, 5, "order_lost")
	legacyID := env.enrollments.seed(8, 7, "")

	report, err := env.reconciler.Backfill(ctx, admin())
	require.NoError(t, err)
	assert.Equal(t, domain.BackfillReport{OrdersBackfilled: 1, LegacyBackfilled: 1}, *report)

	lost, err := env.payments.GetByOrderID(ctx, "order_lost")
	require.NoError(t, err)
	assert.Equal(t, int64(49900+99900), lost.Amount)
	assert.Equal(t, domain.UnknownPaymentID, lost.PaymentID)
	assert.Equal(t, domain.PaymentStatusCaptured, lost.Status)
	assert.Equal(t, domain.SourceBackfill, lost.Source)
	assert.Equal(t, testCurrency, lost.Currency)
	assert.Equal(t, int64(7), *lost.UserID)

	legacy, err := env.payments.GetByOrderID(ctx, domain.SyntheticOrderID(legacyID))
	require.NoError(t, err)
	assert.Equal(t, int64(19900), legacy.Amount)
	assert.Equal(t, int64(8), *legacy.UserID)

	again, err := env.reconciler.Backfill(ctx, admin())
	require.NoError(t, err)
	assert.Equal(t, domain.BackfillReport{}, *again)
	assert.Len(t, env.payments.snapshot(), 2)
}

// Оплаченные заказы не попадают в backfill.
func TestReconciler_Backfill_SkipsRecordedOrders(t *testing.T) {
	env := newTestEnv(t)
	orderID, _ := placeOrder(t, env)

	_, err := env.confirmation.ConfirmClient(context.Background(), confirmCmd(orderID, "pay_1"))
	require.NoError(t, err)

	report, err := env.reconciler.Backfill(context.Background(), admin())
	require.NoError(t, err)
	assert.Equal(t, domain.BackfillReport{}, *report)
	assert.Len(t, env.payments.snapshot(), 1)
}

func TestReconciler_Backfill_Errors(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.reconciler.Backfill(context.Background(), student(7))
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = env.reconciler.Backfill(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	dbErr := errors.New("connection reset")
	env.backfill.err = dbErr
	_, err = env.reconciler.Backfill(context.Background(), admin())
	assert.ErrorIs(t, err, dbErr)
}

func TestReconciler_ListPayments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		env.enrollments.seed(10+i, 3, "")
	}

	list, err := env.reconciler.ListPayments(ctx, admin(), domain.Page{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), list.Total, "backfill выполняется перед чтением")
	assert.Len(t, list.Items, 2)
	assert.Equal(t, 1, list.Page)
	assert.Equal(t, 2, list.PageSize)

	next, err := env.reconciler.ListPayments(ctx, admin(), domain.Page{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, next.Items, 1)
}

func TestReconciler_ListPayments_BackfillFailureIgnored(t *testing.T) {
	env := newTestEnv(t)
	env.backfill.err = errors.New("timeout")

	list, err := env.reconciler.ListPayments(context.Background(), admin(), domain.Page{})
	require.NoError(t, err)
	assert.Zero(t, list.Total)
	assert.Equal(t, domain.DefaultPageSize, list.PageSize)
}

func TestReconciler_ListPayments_Errors(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.reconciler.ListPayments(context.Background(), student(7), domain.Page{})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	dbErr := errors.New("read failed")
	env.payments.listErr = dbErr
	_, err = env.reconciler.ListPayments(context.Background(), admin(), domain.Page{})
	assert.ErrorIs(t, err, dbErr)
}

func TestReconciler_MyPayments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	orderID, _ := placeOrder(t, env)
	_, err := env.confirmation.ConfirmClient(ctx, confirmCmd(orderID, "pay_1"))
	require.NoError(t, err)
	env.enrollments.seed(8, 7, "")
	_, err = env.reconciler.Backfill(ctx, admin())
	require.NoError(t, err)

	mine, err := env.reconciler.MyPayments(ctx, student(7))
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, orderID, mine[0].OrderID)

	_, err = env.reconciler.MyPayments(ctx, admin())
	assert.ErrorIs(t, err, domain.ErrForbidden)
}
