package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Ошибки хеширования
var (
	ErrEmptyToken    = errors.New("token cannot be empty")
	ErrTokenMismatch = errors.New("token does not match hash")
	ErrInvalidHash   = errors.New("invalid token hash format")
)

// ============================================================
// Детерминированное хеширование idempotency key
// ============================================================

// keySeparator разделяет части ключа, чтобы ("ab","c") и ("a","bc")
// давали разные хеши
const keySeparator = "\x1f"

// HashKey строит детерминированный идентификатор из частей ключа
//
// Используется оркестратором ордеров для idempotency key:
// одинаковые части → одинаковый ключ → один claim в БД.
func HashKey(parts ...string) string {
	h := sha256.New()
	h.Write([]byte(strings.Join(parts, keySeparator)))
	return hex.EncodeToString(h.Sum(nil))
}

// ============================================================
// bcrypt для API токенов
// ============================================================

// DefaultCost - стоимость bcrypt по умолчанию
const DefaultCost = 12

// HashToken хеширует API токен для хранения в конфигурации
func HashToken(token string) (string, error) {
	if token == "" {
		return "", ErrEmptyToken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(token), DefaultCost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// VerifyToken проверяет соответствие токена хешу
// Использует constant-time comparison для защиты от timing attacks
func VerifyToken(token, hash string) error {
	if token == "" {
		return ErrEmptyToken
	}
	if hash == "" {
		return ErrInvalidHash
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrTokenMismatch
		}
		return ErrInvalidHash
	}

	return nil
}

// CheckTokenMatch проверяет соответствие токена хешу и возвращает bool
func CheckTokenMatch(token, hash string) bool {
	return VerifyToken(token, hash) == nil
}
