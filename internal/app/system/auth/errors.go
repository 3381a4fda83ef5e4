// internal/app/system/auth/errors.go
package auth

import (
	"errors"

	"github.com/dalemusser/tellevo/internal/app/system/errtranslate"
)

// ErrNameRequired is returned by Register for a blank display name.
var ErrNameRequired = errors.New("name is required")

// Error is what auth operations return: a translated, user-facing message
// plus the underlying cause for errors.Is / errors.As.
type Error struct {
	Message string
	Cause   error
}

func (e *Error) Error() string       { return e.Message }
func (e *Error) Unwrap() error       { return e.Cause }
func (e *Error) UserMessage() string { return e.Message }

func translate(err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Message: errtranslate.Message(err), Cause: err}
}
