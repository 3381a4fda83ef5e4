// internal/app/policy/journeypolicy/journeypolicy.go
package journeypolicy

import (
	"errors"

	"github.com/dalemusser/tellevo/internal/domain/models"
)

// Rule violations reported by journey membership operations.
// Callers match them with errors.Is; the store wraps them with context.
var (
	ErrJourneyNotFound  = errors.New("journey not found")
	ErrDriverConflict   = errors.New("driver cannot join their own journey")
	ErrCapacityExceeded = errors.New("journey is full")
	ErrCreatorNotFound  = errors.New("journey creator not found")
	ErrNotDriver        = errors.New("only the driver can delete a journey")
)

// CheckJoin decides whether email may join j. A nil journey means the
// lookup found nothing. Checks run in a fixed order: existence, then the
// driver conflict, then capacity. A passenger already aboard a journey
// with free seats passes; the $addToSet write makes that join a no-op.
func CheckJoin(j *models.Journey, email string) error {
	if j == nil {
		return ErrJourneyNotFound
	}
	if j.Driver == email {
		return ErrDriverConflict
	}
	if len(j.Passengers) >= j.Capacity {
		return ErrCapacityExceeded
	}
	return nil
}

// CanDelete reports whether email may delete j.
func CanDelete(j *models.Journey, email string) error {
	if j == nil {
		return ErrJourneyNotFound
	}
	if j.Driver != email {
		return ErrNotDriver
	}
	return nil
}

// IsRuleViolation reports whether err is one of the membership rule errors
// (as opposed to a storage or transport failure).
func IsRuleViolation(err error) bool {
	return errors.Is(err, ErrJourneyNotFound) ||
		errors.Is(err, ErrDriverConflict) ||
		errors.Is(err, ErrCapacityExceeded) ||
		errors.Is(err, ErrCreatorNotFound) ||
		errors.Is(err, ErrNotDriver)
}
