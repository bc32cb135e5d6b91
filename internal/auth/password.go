package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password accepted when an admin sets
// credentials through the activation flow.
const MinPasswordLength = 8

// ErrPasswordTooShort is returned by ValidatePassword for passwords below
// MinPasswordLength.
var ErrPasswordTooShort = errors.New("password must be at least 8 characters")

// ValidatePassword applies the credential policy to a candidate password.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

// HashPassword hashes a plaintext password with the given bcrypt cost. Costs
// below the bcrypt minimum fall back to the library default.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword verifies a password against its hashed value.
func ComparePassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}
