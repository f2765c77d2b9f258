// Package auth validates the shared secret carried by every controller call.
//
// It does not load or store secrets.
package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
)

var ErrBadSecret = errors.New("auth: bad secret")

// Validator validates the secret presented with a call.
type Validator interface {
	Validate(secret string) error
}

// SharedSecret accepts exactly one pre-distributed secret.
type SharedSecret struct {
	Secret string
}

func (s SharedSecret) Validate(secret string) error {
	if s.Secret == "" {
		return ErrBadSecret
	}
	if subtle.ConstantTimeCompare([]byte(s.Secret), []byte(secret)) != 1 {
		return ErrBadSecret
	}
	return nil
}

// Redact returns a form of secret safe for logs and config dumps.
func Redact(secret string) string {
	secret = strings.TrimSpace(secret)
	switch {
	case secret == "":
		return ""
	case len(secret) <= 4:
		return "****"
	default:
		return secret[:2] + strings.Repeat("*", len(secret)-4) + secret[len(secret)-2:]
	}
}
