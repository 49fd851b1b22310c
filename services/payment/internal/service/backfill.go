package service

import (
	"context"

	"example.com/course-payments/pkg/logger"
	"example.com/course-payments/services/payment/internal/domain"
	"example.com/course-payments/services/payment/internal/repository"
)

// PaymentList — страница журнала.
type PaymentList struct {
	Items    []*domain.Payment `json:"items"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

// Reconciler восстанавливает строки журнала для зачислений,
// созданных без записи о платеже. Повторный запуск ничего не вставляет.
type Reconciler struct {
	backfill repository.BackfillRepository
	payments repository.PaymentRepository
	ledger   *Ledger
	currency string
}

// NewReconciler создаёт Reconciler.
func NewReconciler(backfill repository.BackfillRepository, payments repository.PaymentRepository, ledger *Ledger, currency string) *Reconciler {
	return &Reconciler{backfill: backfill, payments: payments, ledger: ledger, currency: currency}
}

// Backfill запускает сверку по запросу администратора.
func (r *Reconciler) Backfill(ctx context.Context, principal *domain.Principal) (*domain.BackfillReport, error) {
	if err := domain.Require(principal, domain.RoleAdmin); err != nil {
		return nil, err
	}
	return r.run(ctx)
}

// ListPayments выполняет backfill и возвращает страницу журнала.
// Ошибка backfill не мешает чтению.
func (r *Reconciler) ListPayments(ctx context.Context, principal *domain.Principal, page domain.Page) (*PaymentList, error) {
	if err := domain.Require(principal, domain.RoleAdmin); err != nil {
		return nil, err
	}

	if _, err := r.run(ctx); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("Backfill перед чтением журнала не выполнен")
	}

	page = page.Normalize()
	items, total, err := r.payments.List(ctx, page)
	if err != nil {
		return nil, err
	}

	return &PaymentList{Items: items, Total: total, Page: page.Page, PageSize: page.PageSize}, nil
}

// MyPayments возвращает платежи текущего студента.
func (r *Reconciler) MyPayments(ctx context.Context, principal *domain.Principal) ([]*domain.Payment, error) {
	if err := domain.Require(principal, domain.RoleStudent); err != nil {
		return nil, err
	}
	return r.payments.ListByUser(ctx, principal.UserID)
}

func (r *Reconciler) run(ctx context.Context) (*domain.BackfillReport, error) {
	log := logger.Ctx(ctx)
	report := &domain.BackfillReport{}

	orphans, err := r.backfill.OrphanOrders(ctx)
	if err != nil {
		return nil, err
	}
	if report.OrdersBackfilled, err = r.synthesize(ctx, orphans); err != nil {
		return nil, err
	}

	legacy, err := r.backfill.LegacyEnrollments(ctx)
	if err != nil {
		return nil, err
	}
	if report.LegacyBackfilled, err = r.synthesize(ctx, legacy); err != nil {
		return nil, err
	}

	if report.OrdersBackfilled > 0 || report.LegacyBackfilled > 0 {
		log.Info().
			Int("orders_backfilled", report.OrdersBackfilled).
			Int("legacy_backfilled", report.LegacyBackfilled).
			Msg("Backfill журнала выполнен")
	}

	return report, nil
}

func (r *Reconciler) synthesize(ctx context.Context, candidates []domain.BackfillCandidate) (int, error) {
	inserted := 0
	for _, c := range candidates {
		userID := c.UserID
		ok, err := r.ledger.RecordBackfill(ctx, &domain.Payment{
			OrderID:   c.OrderID,
			PaymentID: domain.UnknownPaymentID,
			UserID:    &userID,
			Amount:    c.Amount,
			Currency:  r.currency,
			Status:    domain.PaymentStatusCaptured,
		})
		if err != nil {
			return inserted, err
		}
		if ok {
			inserted++
		}
	}
	return inserted, nil
}
