// Package middleware содержит HTTP middleware сервиса платежей.
package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/course-payments/pkg/jwt"
	"example.com/course-payments/pkg/logger"
	"example.com/course-payments/services/payment/internal/domain"
	"example.com/course-payments/services/payment/internal/httputil"
)

// TokenValidator проверяет bearer токен. Реализуется *jwt.Validator.
type TokenValidator interface {
	ValidateWithBlacklist(ctx context.Context, tokenString string) (*jwt.Claims, error)
}

// AuthMiddleware проверяет JWT и кладёт domain.Principal в gin.Context.
// Роль не проверяется: это делают сервисы через domain.Require.
type AuthMiddleware struct {
	tokenValidator TokenValidator
}

// NewAuthMiddleware создаёт middleware аутентификации.
func NewAuthMiddleware(tokenValidator TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{tokenValidator: tokenValidator}
}

// Handle возвращает gin handler.
func (m *AuthMiddleware) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		log := logger.FromContext(ctx)

		token := httputil.ExtractBearerToken(c)
		if token == "" {
			log.Debug().Msg("Отсутствует токен авторизации")
			abortUnauthorized(c, "Требуется авторизация")
			return
		}

		claims, err := m.tokenValidator.ValidateWithBlacklist(ctx, token)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenRevoked) {
				log.Debug().Msg("Токен отозван")
			} else {
				log.Warn().Err(err).Msg("Ошибка валидации токена")
			}
			abortUnauthorized(c, "Невалидный токен")
			return
		}

		userID, err := domain.ParseUserID(claims.UserID)
		if err != nil {
			log.Warn().Str("user_id", claims.UserID).Msg("В токене некорректный user_id")
			abortUnauthorized(c, "Невалидный токен")
			return
		}

		httputil.SetPrincipal(c, &domain.Principal{UserID: userID, Role: domain.Role(claims.Role)})

		log.Debug().
			Int64("user_id", userID).
			Str("role", claims.Role).
			Str("jti", claims.ID).
			Msg("Пользователь аутентифицирован")

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":   "unauthorized",
		"message": message,
	})
}
