package hash

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var ErrEmptySecret = errors.New("hash: empty secret")

// HashSecret is called once at startup; CheckSecret runs on every login.
func HashSecret(secret string) ([]byte, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
}

func CheckSecret(hash []byte, candidate string) bool {
	if len(hash) == 0 {
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(candidate)) == nil
}
