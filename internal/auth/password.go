package auth

import (
	"github.com/alexedwards/argon2id"
)

// HashPassword produces a salted argon2id hash. The salt is random per call,
// so hashing the same password twice yields different strings.
func HashPassword(plain string) (string, error) {
	return argon2id.CreateHash(plain, argon2id.DefaultParams)
}

// VerifyPassword reports whether plain matches the stored hash. A malformed
// stored hash verifies as false; the error never reaches the caller.
func VerifyPassword(plain, hash string) bool {
	ok, err := argon2id.ComparePasswordAndHash(plain, hash)
	if err != nil {
		return false
	}
	return ok
}
