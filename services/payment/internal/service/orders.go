package service

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"example.com/course-payments/pkg/logger"
	"example.com/course-payments/services/payment/internal/domain"
	"example.com/course-payments/services/payment/internal/razorpay"
	"example.com/course-payments/services/payment/internal/repository"
)

// CreateOrderCommand — запрос на создание заказа.
// Amount и CourseIDs принимаются в сыром виде: число или строка, массив или "3,5".
type CreateOrderCommand struct {
	Principal *domain.Principal
	Amount    json.RawMessage
	CourseIDs json.RawMessage
}

// OrderResult — созданный заказ. KeyID нужен клиенту для открытия checkout.
type OrderResult struct {
	ID       string            `json:"id"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Notes    map[string]string `json:"notes"`
	KeyID    string            `json:"key_id"`
}

// OrderInitiator создаёт заказы в шлюзе.
type OrderInitiator struct {
	gateway  Gateway
	courses  repository.CourseRepository
	currency string
}

// NewOrderInitiator создаёт OrderInitiator.
func NewOrderInitiator(gateway Gateway, courses repository.CourseRepository, currency string) *OrderInitiator {
	return &OrderInitiator{gateway: gateway, courses: courses, currency: currency}
}

// CreateOrder проверяет запрос и создаёт заказ. Ошибка шлюза возвращается как есть.
func (s *OrderInitiator) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (*OrderResult, error) {
	if err := domain.Require(cmd.Principal, domain.RoleStudent); err != nil {
		return nil, err
	}

	amount, err := domain.ParseOrderAmount(cmd.Amount)
	if err != nil {
		return nil, err
	}

	courseIDs, err := domain.ParseCourseIDs(cmd.CourseIDs)
	if err != nil {
		return nil, err
	}

	if err := s.checkCoursesExist(ctx, courseIDs); err != nil {
		return nil, err
	}

	if !s.gateway.Configured() {
		return nil, domain.ErrNotConfigured
	}

	notes := razorpay.Notes{
		razorpay.NoteCourseIDs: domain.FormatCourseIDs(courseIDs),
		razorpay.NoteUserID:    cmd.Principal.ID(),
	}

	order, err := s.gateway.CreateOrder(ctx, razorpay.CreateOrderRequest{
		Amount:   amount,
		Currency: s.currency,
		Receipt:  newReceipt(),
		Notes:    notes,
	})
	if err != nil {
		return nil, err
	}

	logger.Ctx(ctx).Info().
		Str("order_id", order.ID).
		Int64("user_id", cmd.Principal.UserID).
		Int64("amount", order.Amount).
		Str("course_ids", notes[razorpay.NoteCourseIDs]).
		Msg("Заказ создан")

	currency := order.Currency
	if currency == "" {
		currency = s.currency
	}

	return &OrderResult{
		ID:       order.ID,
		Amount:   order.Amount,
		Currency: currency,
		Notes:    notes,
		KeyID:    s.gateway.KeyID(),
	}, nil
}

func (s *OrderInitiator) checkCoursesExist(ctx context.Context, ids []int64) error {
	found, err := s.courses.ExistingIDs(ctx, ids)
	if err != nil {
		return err
	}

	existing := make(map[int64]struct{}, len(found))
	for _, id := range found {
		existing[id] = struct{}{}
	}

	var missing []string
	for _, id := range ids {
		if _, ok := existing[id]; !ok {
			missing = append(missing, strconv.FormatInt(id, 10))
		}
	}
	if len(missing) > 0 {
		return domain.InvalidInputf("курсы не найдены: %s", strings.Join(missing, ","))
	}
	return nil
}

// newReceipt — receipt шлюза ограничен 40 символами.
func newReceipt() string {
	return "rcpt_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
