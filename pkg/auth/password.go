package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/antibyte/cpcrun/pkg/configuration"
)

// ErrWrongPassword is returned when the access password does not match.
var ErrWrongPassword = errors.New("wrong access password")

// PasswordRequired reports whether [Auth] access_password_hash is set.
func PasswordRequired() bool {
	return configuration.GetString("Auth", "access_password_hash", "") != ""
}

// CheckAccessPassword compares password with the configured bcrypt hash.
// Without a configured hash every password is accepted.
func CheckAccessPassword(password string) error {
	hash := configuration.GetString("Auth", "access_password_hash", "")
	if hash == "" {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrWrongPassword
	}
	return nil
}

// HashPassword returns the bcrypt hash to put into the configuration.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
