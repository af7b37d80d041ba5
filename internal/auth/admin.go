package auth

import (
	"errors"
	"strings"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// AdminAuthenticator проверяет логин администратора и выдаёт JWT
type AdminAuthenticator struct {
	username     string
	passwordHash string
	tokens       *JWTManager
}

// NewAdminAuthenticator принимает bcrypt-хеш пароля.
// С пустым хешем вход администратора невозможен.
func NewAdminAuthenticator(username, passwordHash string, tokens *JWTManager) *AdminAuthenticator {
	return &AdminAuthenticator{
		username:     strings.ToLower(username),
		passwordHash: passwordHash,
		tokens:       tokens,
	}
}

// Enabled сообщает, настроен ли пароль администратора
func (a *AdminAuthenticator) Enabled() bool {
	return a.passwordHash != ""
}

// Login возвращает токен для верных учётных данных
func (a *AdminAuthenticator) Login(username, password string) (string, error) {
	if !a.Enabled() || strings.ToLower(username) != a.username {
		return "", ErrInvalidCredentials
	}
	if !CheckPassword(a.passwordHash, password) {
		return "", ErrInvalidCredentials
	}
	return a.tokens.Generate(a.username)
}

// Verify проверяет токен администратора
func (a *AdminAuthenticator) Verify(token string) (*Claims, error) {
	return a.tokens.Validate(token)
}
