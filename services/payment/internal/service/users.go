package service

import (
	"context"
	"time"

	"example.com/course-payments/pkg/logger"
	"example.com/course-payments/services/payment/internal/domain"
	"example.com/course-payments/services/payment/internal/repository"
)

// UserAdmin — удаление пользователя администратором.
type UserAdmin struct {
	users    repository.UserRepository
	revoker  TokenRevoker
	tokenTTL time.Duration
}

// NewUserAdmin создаёт UserAdmin. revoker может быть nil.
// tokenTTL — сколько помнить отзыв (не меньше времени жизни токена).
func NewUserAdmin(users repository.UserRepository, revoker TokenRevoker, tokenTTL time.Duration) *UserAdmin {
	return &UserAdmin{users: users, revoker: revoker, tokenTTL: tokenTTL}
}

// DeleteUser удаляет пользователя с зачислениями и отвязывает его платежи.
func (s *UserAdmin) DeleteUser(ctx context.Context, principal *domain.Principal, userID int64) error {
	if err := domain.Require(principal, domain.RoleAdmin); err != nil {
		return err
	}
	if userID <= 0 {
		return domain.InvalidInputf("некорректный id пользователя")
	}

	log := logger.Ctx(ctx)

	if err := s.users.DeleteCascade(ctx, userID); err != nil {
		return err
	}

	log.Info().
		Int64("user_id", userID).
		Int64("admin_id", principal.UserID).
		Msg("Пользователь удалён")

	if s.revoker != nil {
		if err := s.revoker.InvalidateUser(ctx, formatID(userID), s.tokenTTL); err != nil {
			log.Warn().Err(err).Int64("user_id", userID).Msg("Не удалось отозвать токены удалённого пользователя")
		}
	}

	return nil
}
