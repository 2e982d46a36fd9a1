package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const maxPasswordBytes = 72

// HashPassword returns a salted bcrypt hash of plaintext.
func (s *Service) HashPassword(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPassword
	}
	if len(plaintext) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether plaintext matches hash. An empty hash is
// checked against a throwaway hash so a missing account costs the same as a
// wrong password, and always fails.
func (s *Service) VerifyPassword(plaintext, hash string) bool {
	if hash == "" {
		_ = bcrypt.CompareHashAndPassword(s.placeholderHash(), []byte(plaintext))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

func (s *Service) placeholderHash() []byte {
	s.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte("kino-placeholder-credential"), s.cost)
		if err != nil {
			// only reachable with an invalid cost, rejected in New
			hash = []byte("$2a$10$0000000000000000000000000000000000000000000000000000")
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}
