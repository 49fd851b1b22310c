package domain

import "strconv"

// Role — роль пользователя из токена.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// Principal — аутентифицированный пользователь запроса.
type Principal struct {
	UserID int64
	Role   Role
}

// ID возвращает id пользователя строкой (для notes шлюза и ключей Kafka).
func (p *Principal) ID() string {
	return strconv.FormatInt(p.UserID, 10)
}

// Require проверяет, что пользователь есть и имеет роль role.
func Require(p *Principal, role Role) error {
	if p == nil || p.UserID <= 0 {
		return ErrUnauthorized
	}
	if p.Role != role {
		return ErrForbidden
	}
	return nil
}

// ParseUserID разбирает id пользователя из notes, токена или пути.
func ParseUserID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, InvalidInputf("некорректный id пользователя %q", s)
	}
	return id, nil
}
