// Package jwt валидирует RS256 токены, выпущенные сервисом аутентификации.
// Сервис платежей токены не выпускает: нужен только публичный ключ.
package jwt

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// Ошибки валидации.
var (
	ErrTokenRevoked = errors.New("токен отозван")
	ErrInvalidToken = errors.New("невалидный токен")
)

// Claims — полезная нагрузка токена.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
}

// Config — параметры Validator.
type Config struct {
	PublicKeyPath string
	Issuer        string // пустой issuer не проверяется
}

// Validator проверяет подпись, срок действия, issuer и отзыв токенов.
type Validator struct {
	publicKey *rsa.PublicKey
	issuer    string
	blacklist *Blacklist
}

// NewValidator загружает публичный ключ из PEM файла.
func NewValidator(cfg Config) (*Validator, error) {
	publicKey, err := LoadPublicKey(cfg.PublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки публичного ключа: %w", err)
	}

	return NewValidatorWithKey(publicKey, cfg.Issuer), nil
}

// NewValidatorWithKey создаёт Validator из готового ключа.
func NewValidatorWithKey(publicKey *rsa.PublicKey, issuer string) *Validator {
	return &Validator{publicKey: publicKey, issuer: issuer}
}

// SetBlacklist подключает проверку отозванных токенов.
func (v *Validator) SetBlacklist(bl *Blacklist) {
	v.blacklist = bl
}

// Blacklist возвращает подключённый blacklist или nil.
func (v *Validator) Blacklist() *Blacklist {
	return v.blacklist
}

// ValidateToken проверяет подпись и стандартные claims.
func (v *Validator) ValidateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("неожиданный алгоритм подписи: %v", token.Header["alg"])
		}
		return v.publicKey, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}

	return claims, nil
}

// ValidateWithBlacklist проверяет токен и его отзыв (по jti и массовой инвалидации пользователя).
func (v *Validator) ValidateWithBlacklist(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := v.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	if v.blacklist == nil {
		return claims, nil
	}

	if claims.ID != "" {
		revoked, err := v.blacklist.Check(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("ошибка проверки blacklist: %w", err)
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}

	if claims.IssuedAt != nil {
		invalidated, err := v.blacklist.IsUserInvalidated(ctx, claims.UserID, claims.IssuedAt.Time)
		if err != nil {
			return nil, fmt.Errorf("ошибка проверки инвалидации пользователя: %w", err)
		}
		if invalidated {
			return nil, ErrTokenRevoked
		}
	}

	return claims, nil
}

// LoadPublicKey загружает RSA публичный ключ из PEM (PKIX или PKCS#1).
func LoadPublicKey(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла %s: %w", path, err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("не удалось декодировать PEM блок из %s", path)
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return x509.ParsePKCS1PublicKey(block.Bytes)
	}

	rsaKey, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("ключ не является RSA публичным ключом")
	}

	return rsaKey, nil
}
