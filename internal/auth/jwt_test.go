package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func newTestManager(t *testing.T) *JWTManager {
	t.Helper()
	m, err := NewJWTManager("test-secret-key", time.Hour)
	if err != nil {
		t.Fatalf("Ошибка создания менеджера JWT: %v", err)
	}
	return m
}

// TestGenerateJWT тестирует создание JWT токена
func TestGenerateJWT(t *testing.T) {
	m := newTestManager(t)

	token, err := m.Generate("admin")
	if err != nil {
		t.Fatalf("Ошибка генерации JWT: %v", err)
	}

	if token == "" {
		t.Fatal("Пустой токен")
	}

	// Проверяем, что токен содержит точки (разделители частей JWT)
	if strings.Count(token, ".") != 2 {
		t.Errorf("Неверный формат JWT токена: %s", token)
	}
}

// TestValidateJWT тестирует валидацию JWT токена
func TestValidateJWT(t *testing.T) {
	m := newTestManager(t)

	token, err := m.Generate("admin")
	if err != nil {
		t.Fatalf("Ошибка генерации JWT: %v", err)
	}

	claims, err := m.Validate(token)
	if err != nil {
		t.Fatalf("Валидный токен определен как недействительный: %v", err)
	}

	if claims.Username != "admin" {
		t.Errorf("Неверное имя: ожидалось admin, получено %s", claims.Username)
	}

	if !claims.IsAdmin {
		t.Error("Флаг администратора должен быть true")
	}
}

// TestValidateInvalidJWT тестирует валидацию недействительного JWT
func TestValidateInvalidJWT(t *testing.T) {
	m := newTestManager(t)

	other, err := NewJWTManager("another-secret", time.Hour)
	if err != nil {
		t.Fatalf("Ошибка создания менеджера JWT: %v", err)
	}
	foreign, err := other.Generate("admin")
	if err != nil {
		t.Fatalf("Ошибка генерации JWT: %v", err)
	}

	testCases := []string{
		"invalid.token.here",
		"",
		"not.a.jwt",
		"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.invalid.signature",
		foreign,
	}

	for _, invalidToken := range testCases {
		claims, err := m.Validate(invalidToken)
		if !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Недействительный токен '%s' прошел валидацию", invalidToken)
		}
		if claims != nil {
			t.Errorf("Для недействительного токена вернулись claims: %+v", claims)
		}
	}
}

// TestExpiredJWT тестирует истечение срока действия токена
func TestExpiredJWT(t *testing.T) {
	m := newTestManager(t)
	issued := time.Now()
	m.now = func() time.Time { return issued }

	token, err := m.Generate("admin")
	if err != nil {
		t.Fatalf("Ошибка генерации JWT: %v", err)
	}

	m.now = func() time.Time { return issued.Add(2 * time.Hour) }
	if _, err := m.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Error("Просроченный токен прошел валидацию")
	}
}

// TestRandomSecret тестирует менеджер без заданного секрета
func TestRandomSecret(t *testing.T) {
	m1, err := NewJWTManager("", 0)
	if err != nil {
		t.Fatalf("Ошибка создания менеджера: %v", err)
	}
	m2, err := NewJWTManager("", 0)
	if err != nil {
		t.Fatalf("Ошибка создания менеджера: %v", err)
	}

	token, err := m1.Generate("admin")
	if err != nil {
		t.Fatalf("Ошибка генерации JWT: %v", err)
	}
	if _, err := m1.Validate(token); err != nil {
		t.Errorf("Токен не прошел проверку тем же менеджером: %v", err)
	}
	if _, err := m2.Validate(token); err == nil {
		t.Error("Токен прошел проверку менеджером с другим ключом")
	}
}

// TestGenerateSecureSecret тестирует генерацию секретного ключа
func TestGenerateSecureSecret(t *testing.T) {
	secret1 := GenerateSecureSecret()
	secret2 := GenerateSecureSecret()

	if secret1 == secret2 {
		t.Error("Два последовательных вызова GenerateSecureSecret вернули одинаковый результат")
	}

	// base64 от 32 байт = 44 символа
	if len(secret1) < 40 || len(secret2) < 40 {
		t.Error("Секрет слишком короткий")
	}
}

// TestAdminLogin тестирует вход администратора
func TestAdminLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Ошибка хеширования: %v", err)
	}
	a := NewAdminAuthenticator("Admin", string(hash), newTestManager(t))

	token, err := a.Login("admin", "s3cret")
	if err != nil {
		t.Fatalf("Ошибка входа: %v", err)
	}
	claims, err := a.Verify(token)
	if err != nil {
		t.Fatalf("Выданный токен недействителен: %v", err)
	}
	if claims.Subject != "admin" {
		t.Errorf("Неверный subject: %s", claims.Subject)
	}

	badLogins := [][2]string{
		{"admin", "wrong"},
		{"root", "s3cret"},
		{"", ""},
	}
	for _, creds := range badLogins {
		if _, err := a.Login(creds[0], creds[1]); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Вход %q/%q должен быть отклонен, получено %v", creds[0], creds[1], err)
		}
	}
}

// TestAdminDisabled тестирует вход без настроенного пароля
func TestAdminDisabled(t *testing.T) {
	a := NewAdminAuthenticator("admin", "", newTestManager(t))
	if a.Enabled() {
		t.Error("Вход без хеша пароля должен быть отключен")
	}
	if _, err := a.Login("admin", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Ожидалась ErrInvalidCredentials, получено %v", err)
	}
}

// TestHashPassword тестирует bcrypt-хеширование
func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("good-dog-42")
	if err != nil {
		t.Fatalf("Ошибка хеширования: %v", err)
	}
	if !CheckPassword(hash, "good-dog-42") {
		t.Error("Пароль не совпал со своим хешем")
	}
	if CheckPassword(hash, "bad-cat-42") {
		t.Error("Чужой пароль совпал с хешем")
	}
	if CheckPassword("not-a-hash", "good-dog-42") {
		t.Error("Битый хеш совпал с паролем")
	}

	if _, err := HashPassword("dog"); !errors.Is(err, ErrWeakPassword) {
		t.Errorf("Ожидалась ErrWeakPassword, получено %v", err)
	}
}
