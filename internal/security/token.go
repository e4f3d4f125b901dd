package security

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt"
)

var (
	ErrInvalidToken = errors.New("invalid access token")
)

// Используется SigningMethodHS256: сервис только проверяет токены,
// выпускает их внешний auth-слой с тем же секретом.
type TokenParser struct {
	secret []byte
}

func NewTokenParser(secret string) *TokenParser {
	return &TokenParser{secret: []byte(secret)}
}

// UserID извлекает идентификатор пользователя из subject токена.
func (p *TokenParser) UserID(tokenStr string) (int64, error) {
	claims := &jwt.StandardClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}

	uid, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || uid <= 0 {
		return 0, ErrInvalidToken
	}
	return uid, nil
}
