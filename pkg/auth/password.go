package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/argon2"
)

const (
	saltLen     = 32
	argonTime   = 1
	argonMemory = 64 * 1024
	argonLanes  = 4
	argonKeyLen = 32
)

// HashPassword возвращает hex(hash) и hex(salt) для хранения в users
func HashPassword(password string) (hash, salt string, err error) {
	raw := make([]byte, saltLen)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	salt = hex.EncodeToString(raw)
	return derive(password, salt), salt, nil
}

// VerifyPassword сравнивает пароль с сохранённым хешем за постоянное время
func VerifyPassword(password, hash, salt string) bool {
	if hash == "" || salt == "" {
		return false
	}
	candidate := derive(password, salt)
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(hash)) == 1
}

func derive(password, salt string) string {
	key := argon2.IDKey([]byte(password), []byte(salt), argonTime, argonMemory, argonLanes, argonKeyLen)
	return hex.EncodeToString(key)
}
