package service

import (
	"context"
	"errors"
	"time"

	"example.com/course-payments/pkg/logger"
	"example.com/course-payments/pkg/metrics"
	"example.com/course-payments/services/payment/internal/domain"
	"example.com/course-payments/services/payment/internal/events"
	"example.com/course-payments/services/payment/internal/repository"
)

// Materializer создаёт зачисления по подтверждённой оплате.
// Повторный вызов для тех же (user, course) — no-op.
type Materializer struct {
	enrollments repository.EnrollmentRepository
	publisher   events.Publisher
}

// NewMaterializer создаёт Materializer.
func NewMaterializer(enrollments repository.EnrollmentRepository, publisher events.Publisher) *Materializer {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Materializer{enrollments: enrollments, publisher: publisher}
}

// Materialize вставляет по одному зачислению на курс и публикует
// enrollment_created для каждого курса, созданного или уже существующего.
func (m *Materializer) Materialize(ctx context.Context, userID int64, courseIDs []int64, orderID string) (domain.MaterializeResult, error) {
	ctx = logger.WithPaymentRef(ctx, orderID, "")
	log := logger.Ctx(ctx)
	var result domain.MaterializeResult

	for _, courseID := range courseIDs {
		err := m.enrollments.InsertIgnore(ctx, &domain.Enrollment{
			UserID:   userID,
			CourseID: courseID,
			OrderID:  orderID,
		})

		switch {
		case err == nil:
			result.Created++
			metrics.Enrollments.WithLabelValues("created").Inc()
		case errors.Is(err, domain.ErrDuplicateWrite):
			result.Skipped++
			metrics.Enrollments.WithLabelValues("skipped").Inc()
		default:
			metrics.Enrollments.WithLabelValues("error").Inc()
			log.Error().
				Err(err).
				Int64("user_id", userID).
				Int64("course_id", courseID).
				Msg("Ошибка создания зачисления")
			return result, err
		}

		m.publisher.Publish(ctx, events.Event{
			Name: events.EventEnrollmentCreated,
			Key:  formatID(userID),
			Payload: events.EnrollmentCreated{
				UserID:    userID,
				CourseID:  courseID,
				OrderID:   orderID,
				Timestamp: time.Now().UTC(),
			},
		})
	}

	log.Info().
		Int64("user_id", userID).
		Int("created", result.Created).
		Int("skipped", result.Skipped).
		Msg("Зачисления материализованы")

	return result, nil
}
