package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the adaptive hashing work factor for stored credentials.
const BcryptCost = 14

// HashPassword hashes a plaintext password with a per-hash random salt.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// ComparePassword compares a stored hash against a candidate password.
// Returns nil on match.
func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// decoyHash is a valid cost-14 hash of a value nobody can supply.
const decoyHash = "$2b$14$zSxYAss.5skNrYq1huuAV.hoLKhocJrb3eounZitrysLUiUKUZtuy"

// CompareDecoyPassword burns a full-cost comparison against a fixed decoy
// hash so that login paths with no stored hash (unknown email,
// external-identity-only account) take as long as a real mismatch. It never
// matches; the work is the point, not the answer.
func CompareDecoyPassword(password string) {
	_ = bcrypt.CompareHashAndPassword([]byte(decoyHash), []byte(password))
}
