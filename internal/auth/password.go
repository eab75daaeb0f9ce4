package auth

import (
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var ErrPasswordMismatch = errors.New("password does not match")

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrPasswordMismatch
	}
	return nil
}

// dummyHash is compared against when no account matches a login, so that
// unknown and known logins cost the same bcrypt work.
var dummyHash = sync.OnceValue(func() []byte {
	hash, err := bcrypt.GenerateFromPassword([]byte("campusconnect-no-such-user"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return hash
})

// CheckNoUser burns one password comparison and always reports a mismatch.
func CheckNoUser(password string) error {
	_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
	return ErrPasswordMismatch
}
