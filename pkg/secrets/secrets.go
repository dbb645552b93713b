// Package secrets hashes and compares user passwords.
package secrets

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	dErrors "usersapi/pkg/domain-errors"
)

// Hash creates a bcrypt hash of the provided password.
func Hash(password string) (string, error) {
	if password == "" {
		return "", dErrors.New(dErrors.CodeValidation, "password cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.New(dErrors.CodeValidation, "password is too long")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not hash password")
	}
	return string(hashed), nil
}

// Verify checks a plaintext password against a bcrypt hash.
// A mismatch is reported as CodeInvalidCredentials.
func Verify(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return dErrors.New(dErrors.CodeInvalidCredentials, "invalid credentials")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not verify password")
	}
	return nil
}
