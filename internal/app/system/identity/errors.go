// internal/app/system/identity/errors.go
package identity

import (
	"errors"
	"fmt"
)

// Provider error codes.
const (
	CodeWrongPassword     = "auth/wrong-password"
	CodeUserNotFound      = "auth/user-not-found"
	CodeEmailInUse        = "auth/email-already-in-use"
	CodeInvalidEmail      = "auth/invalid-email"
	CodeWeakPassword      = "auth/weak-password"
	CodeInvalidResetToken = "auth/invalid-reset-token"
)

// ProviderError is a failure reported by the identity provider.
type ProviderError struct {
	Code string
	Err  error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("identity: %s: %v", e.Code, e.Err)
	}
	return "identity: " + e.Code
}

func (e *ProviderError) Unwrap() error { return e.Err }

func fail(code string, err error) error {
	return &ProviderError{Code: code, Err: err}
}

// Code returns the provider code carried by err, or "" when err is not a
// ProviderError.
func Code(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}
