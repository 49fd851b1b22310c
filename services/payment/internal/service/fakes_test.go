package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"example.com/course-payments/services/payment/internal/domain"
	"example.com/course-payments/services/payment/internal/events"
	"example.com/course-payments/services/payment/internal/razorpay"
	"example.com/course-payments/services/payment/internal/signature"
)

const (
	testKeySecret     = "key_secret"
	testWebhookSecret = "whsec"
	testCurrency      = "INR"
)

// =============================================================================
// fakeGateway — шлюз в памяти
// =============================================================================

type fakeGateway struct {
	mu sync.Mutex

	configured bool
	orders     map[string]*razorpay.Order
	payments   map[string]*razorpay.Payment
	seq        int

	createErr       error
	fetchPaymentErr error
	fetchOrderErr   error
	refundErr       error

	createRequests []razorpay.CreateOrderRequest
	refundRequests []razorpay.RefundRequest
	fetchOrders    int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		configured: true,
		orders:     make(map[string]*razorpay.Order),
		payments:   make(map[string]*razorpay.Payment),
	}
}

func (g *fakeGateway) Configured() bool { return g.configured }
func (g *fakeGateway) KeyID() string    { return "rzp_test_key" }

func (g *fakeGateway) CreateOrder(_ context.Context, req razorpay.CreateOrderRequest) (*razorpay.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.createRequests = append(g.createRequests, req)
	if g.createErr != nil {
		return nil, g.createErr
	}

	g.seq++
	order := &razorpay.Order{
		ID:       fmt.Sprintf("order_%d", g.seq),
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   "created",
		Notes:    req.Notes,
	}
	g.orders[order.ID] = order
	return order, nil
}

func (g *fakeGateway) FetchPayment(_ context.Context, paymentID string) (*razorpay.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.fetchPaymentErr != nil {
		return nil, g.fetchPaymentErr
	}
	p, ok := g.payments[paymentID]
	if !ok {
		return nil, &domain.GatewayError{StatusCode: 400, Code: "BAD_REQUEST_ERROR", Description: "The id provided does not exist"}
	}
	cp := *p
	return &cp, nil
}

func (g *fakeGateway) FetchOrder(_ context.Context, orderID string) (*razorpay.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.fetchOrders++
	if g.fetchOrderErr != nil {
		return nil, g.fetchOrderErr
	}
	o, ok := g.orders[orderID]
	if !ok {
		return nil, &domain.GatewayError{StatusCode: 400, Code: "BAD_REQUEST_ERROR", Description: "The id provided does not exist"}
	}
	cp := *o
	return &cp, nil
}

func (g *fakeGateway) Refund(_ context.Context, paymentID string, req razorpay.RefundRequest) (*razorpay.Refund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.refundRequests = append(g.refundRequests, req)
	if g.refundErr != nil {
		return nil, g.refundErr
	}

	p := g.payments[paymentID]
	p.AmountRefunded += req.Amount
	if p.AmountRefunded >= p.Amount {
		p.Status = "refunded"
	}

	g.seq++
	return &razorpay.Refund{
		ID:        fmt.Sprintf("rfnd_%d", g.seq),
		PaymentID: paymentID,
		Amount:    req.Amount,
		Currency:  p.Currency,
		Status:    "processed",
	}, nil
}

// checkout имитирует оплату заказа на стороне клиента.
func (g *fakeGateway) checkout(orderID, paymentID, status string) *razorpay.Payment {
	g.mu.Lock()
	defer g.mu.Unlock()

	order := g.orders[orderID]
	p := &razorpay.Payment{
		ID:       paymentID,
		OrderID:  orderID,
		Amount:   order.Amount,
		Currency: order.Currency,
		Status:   status,
		Notes:    razorpay.Notes{},
	}
	g.payments[paymentID] = p
	return p
}

// =============================================================================
// fakePayments — журнал в памяти с уникальными order_id и payment_id
// =============================================================================

type fakePayments struct {
	mu      sync.Mutex
	rows    []*domain.Payment
	seq     int64
	markErr error
	listErr error
}

func newFakePayments() *fakePayments {
	return &fakePayments{}
}

func (f *fakePayments) find(p *domain.Payment) *domain.Payment {
	for _, row := range f.rows {
		if row.OrderID != "" && row.OrderID == p.OrderID {
			return row
		}
		if p.HasRealPaymentID() && row.PaymentID == p.PaymentID {
			return row
		}
	}
	return nil
}

func (f *fakePayments) insert(p *domain.Payment) {
	f.seq++
	cp := *p
	cp.ID = f.seq
	cp.CreatedAt = time.Now()
	if p.UserID != nil {
		uid := *p.UserID
		cp.UserID = &uid
	}
	f.rows = append(f.rows, &cp)
	p.ID = cp.ID
}

func (f *fakePayments) InsertIgnore(_ context.Context, p *domain.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.find(p) != nil {
		return domain.ErrDuplicateWrite
	}
	f.insert(p)
	return nil
}

func (f *fakePayments) Upsert(_ context.Context, p *domain.Payment) (domain.WriteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	row := f.find(p)
	if row == nil {
		f.insert(p)
		return domain.WriteInserted, nil
	}

	before := *row
	row.Amount = p.Amount
	row.Currency = p.Currency
	row.Status = row.Status.Merge(p.Status)
	if row.UserID == nil && p.UserID != nil {
		uid := *p.UserID
		row.UserID = &uid
	}
	if !row.HasRealPaymentID() && p.HasRealPaymentID() {
		row.PaymentID = p.PaymentID
	}
	if row.RefundID == "" {
		row.RefundID = p.RefundID
	}

	if before.Amount == row.Amount && before.Currency == row.Currency && before.Status == row.Status &&
		before.UserID == row.UserID && before.PaymentID == row.PaymentID && before.RefundID == row.RefundID {
		return domain.WriteUnchanged, nil
	}
	return domain.WriteUpdated, nil
}

func (f *fakePayments) MarkRefunded(_ context.Context, paymentID, refundID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.markErr != nil {
		return f.markErr
	}
	for _, row := range f.rows {
		if row.PaymentID == paymentID {
			row.Status = domain.PaymentStatusRefunded
			row.RefundID = refundID
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakePayments) GetByOrderID(_ context.Context, orderID string) (*domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, row := range f.rows {
		if row.OrderID == orderID {
			cp := *row
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakePayments) List(_ context.Context, page domain.Page) ([]*domain.Payment, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.listErr != nil {
		return nil, 0, f.listErr
	}

	page = page.Normalize()
	sorted := make([]*domain.Payment, len(f.rows))
	copy(sorted, f.rows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID > sorted[j].ID })

	start := page.Offset()
	if start > len(sorted) {
		start = len(sorted)
	}
	end := start + page.PageSize
	if end > len(sorted) {
		end = len(sorted)
	}
	return sorted[start:end], int64(len(sorted)), nil
}

func (f *fakePayments) ListByUser(_ context.Context, userID int64) ([]*domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*domain.Payment
	for _, row := range f.rows {
		if row.UserID != nil && *row.UserID == userID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakePayments) snapshot() []domain.Payment {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]domain.Payment, 0, len(f.rows))
	for _, row := range f.rows {
		out = append(out, *row)
	}
	return out
}

// =============================================================================
// fakeEnrollments — зачисления с уникальным (user, course)
// =============================================================================

type enrollmentKey struct {
	userID, courseID int64
}

type fakeEnrollments struct {
	mu   sync.Mutex
	rows map[enrollmentKey]*domain.Enrollment
	seq  int64
	err  error // следующий InsertIgnore вернёт err
}

func newFakeEnrollments() *fakeEnrollments {
	return &fakeEnrollments{rows: make(map[enrollmentKey]*domain.Enrollment)}
}

func (f *fakeEnrollments) InsertIgnore(_ context.Context, e *domain.Enrollment) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		err := f.err
		f.err = nil
		return err
	}

	key := enrollmentKey{e.UserID, e.CourseID}
	if _, ok := f.rows[key]; ok {
		return domain.ErrDuplicateWrite
	}
	f.seq++
	cp := *e
	cp.ID = f.seq
	f.rows[key] = &cp
	e.ID = cp.ID
	return nil
}

// seed создаёт зачисление напрямую, минуя оплату.
func (f *fakeEnrollments) seed(userID, courseID int64, orderID string) int64 {
	e := &domain.Enrollment{UserID: userID, CourseID: courseID, OrderID: orderID}
	_ = f.InsertIgnore(context.Background(), e)
	return e.ID
}

func (f *fakeEnrollments) has(userID, courseID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, ok := f.rows[enrollmentKey{userID, courseID}]
	return ok
}

func (f *fakeEnrollments) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

// =============================================================================
// fakeCourses — каталог: id -> цена в пайсах
// =============================================================================

type fakeCourses struct {
	prices map[int64]int64
	err    error
}

func (f *fakeCourses) ExistingIDs(_ context.Context, ids []int64) ([]int64, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []int64
	for _, id := range ids {
		if _, ok := f.prices[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

// =============================================================================
// fakeBackfill — выборки backfill поверх fakeEnrollments и fakePayments
// =============================================================================

type fakeBackfill struct {
	enrollments *fakeEnrollments
	payments    *fakePayments
	courses     *fakeCourses
	err         error
}

func (f *fakeBackfill) hasOrder(orderID string) bool {
	_, err := f.payments.GetByOrderID(context.Background(), orderID)
	return err == nil
}

func (f *fakeBackfill) sortedEnrollments() []domain.Enrollment {
	f.enrollments.mu.Lock()
	defer f.enrollments.mu.Unlock()

	out := make([]domain.Enrollment, 0, len(f.enrollments.rows))
	for _, e := range f.enrollments.rows {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeBackfill) OrphanOrders(context.Context) ([]domain.BackfillCandidate, error) {
	if f.err != nil {
		return nil, f.err
	}

	type groupKey struct {
		userID  int64
		orderID string
	}
	var order []groupKey
	sums := make(map[groupKey]int64)

	for _, e := range f.sortedEnrollments() {
		if e.OrderID == "" || f.hasOrder(e.OrderID) {
			continue
		}
		key := groupKey{e.UserID, e.OrderID}
		if _, ok := sums[key]; !ok {
			order = append(order, key)
		}
		sums[key] += f.courses.prices[e.CourseID]
	}

	out := make([]domain.BackfillCandidate, 0, len(order))
	for _, key := range order {
		out = append(out, domain.BackfillCandidate{UserID: key.userID, OrderID: key.orderID, Amount: sums[key]})
	}
	return out, nil
}

func (f *fakeBackfill) LegacyEnrollments(context.Context) ([]domain.BackfillCandidate, error) {
	if f.err != nil {
		return nil, f.err
	}

	var out []domain.BackfillCandidate
	for _, e := range f.sortedEnrollments() {
		orderID := domain.SyntheticOrderID(e.ID)
		if e.OrderID != "" || f.hasOrder(orderID) {
			continue
		}
		out = append(out, domain.BackfillCandidate{UserID: e.UserID, OrderID: orderID, Amount: f.courses.prices[e.CourseID]})
	}
	return out, nil
}

// =============================================================================
// fakeUsers — удаление пользователя поверх fakeEnrollments и fakePayments
// =============================================================================

type fakeUsers struct {
	ids         map[int64]bool
	enrollments *fakeEnrollments
	payments    *fakePayments
}

func (f *fakeUsers) DeleteCascade(_ context.Context, userID int64) error {
	if !f.ids[userID] {
		return domain.ErrNotFound
	}

	f.enrollments.mu.Lock()
	for key := range f.enrollments.rows {
		if key.userID == userID {
			delete(f.enrollments.rows, key)
		}
	}
	f.enrollments.mu.Unlock()

	f.payments.mu.Lock()
	for _, row := range f.payments.rows {
		if row.UserID != nil && *row.UserID == userID {
			row.UserID = nil
		}
	}
	f.payments.mu.Unlock()

	delete(f.ids, userID)
	return nil
}

// =============================================================================
// recordingPublisher — запоминает события синхронно
// =============================================================================

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) count(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, e := range p.events {
		if e.Name == name {
			n++
		}
	}
	return n
}

// =============================================================================
// Окружение теста
// =============================================================================

type testEnv struct {
	gateway     *fakeGateway
	payments    *fakePayments
	enrollments *fakeEnrollments
	courses     *fakeCourses
	backfill    *fakeBackfill
	publisher   *recordingPublisher
	redis       *miniredis.Miniredis

	orders       *OrderInitiator
	confirmation *ConfirmationService
	refunds      *RefundCoordinator
	reconciler   *Reconciler
	deduper      *RedisDeduper
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	env := &testEnv{
		gateway:     newFakeGateway(),
		payments:    newFakePayments(),
		enrollments: newFakeEnrollments(),
		courses:     &fakeCourses{prices: map[int64]int64{3: 49900, 5: 99900, 7: 19900}},
		publisher:   &recordingPublisher{},
		redis:       mr,
	}
	env.backfill = &fakeBackfill{enrollments: env.enrollments, payments: env.payments, courses: env.courses}

	ledger := NewLedger(env.payments)
	materializer := NewMaterializer(env.enrollments, env.publisher)
	verifier := signature.NewVerifier(testKeySecret, testWebhookSecret)

	env.orders = NewOrderInitiator(env.gateway, env.courses, testCurrency)
	env.deduper = NewRedisDeduper(client, time.Hour, time.Minute)
	env.confirmation = NewConfirmationService(env.gateway, verifier, ledger, materializer, env.publisher, env.deduper)
	env.refunds = NewRefundCoordinator(env.gateway, ledger)
	env.reconciler = NewReconciler(env.backfill, env.payments, ledger, testCurrency)

	return env
}

func student(id int64) *domain.Principal {
	return &domain.Principal{UserID: id, Role: domain.RoleStudent}
}

func admin() *domain.Principal {
	return &domain.Principal{UserID: 1, Role: domain.RoleAdmin}
}

func clientSignature(orderID, paymentID string) string {
	return signature.Sign([]byte(testKeySecret), []byte(orderID+"|"+paymentID))
}

// webhookBody собирает тело webhook'а шлюза.
func webhookBody(event string, p *razorpay.Payment, refundID string) []byte {
	body := fmt.Sprintf(`{"entity":"event","event":%q,"payload":{"payment":{"entity":{"id":%q,"order_id":%q,"amount":%d,"currency":%q,"status":%q,"notes":[]}}`,
		event, p.ID, p.OrderID, p.Amount, p.Currency, p.Status)
	if refundID != "" {
		body += fmt.Sprintf(`,"refund":{"entity":{"id":%q,"payment_id":%q,"amount":%d}}`, refundID, p.ID, p.Amount)
	}
	return []byte(body + `}}`)
}

func signedWebhook(body []byte, eventID string) WebhookDelivery {
	return WebhookDelivery{
		Body:      body,
		Signature: signature.Sign([]byte(testWebhookSecret), body),
		EventID:   eventID,
	}
}
