// Package httputil — общие помощники gin обработчиков сервиса платежей.
package httputil

import (
	"strings"

	"github.com/gin-gonic/gin"

	"example.com/course-payments/services/payment/internal/domain"
)

// principalKey — ключ gin.Context для аутентифицированного пользователя.
const principalKey = "principal"

// ExtractBearerToken извлекает токен из заголовка "Authorization: Bearer <token>".
// Префикс регистронезависимый, пробелы вокруг токена обрезаются.
func ExtractBearerToken(c *gin.Context) string {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// SetPrincipal сохраняет пользователя запроса.
func SetPrincipal(c *gin.Context, p *domain.Principal) {
	c.Set(principalKey, p)
}

// Principal возвращает пользователя запроса или nil.
// nil обрабатывается сервисами как ErrUnauthorized.
func Principal(c *gin.Context) *domain.Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*domain.Principal)
	return p
}
