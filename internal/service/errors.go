package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"parking-service/internal/repository"
)

var (
	ErrPermissionDenied  = errors.New("permission denied")
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrStorage           = errors.New("storage failure")

	ErrConflictingPendingPayment = fmt.Errorf("%w: a pending payment already exists", ErrInvalidTransition)
)

// storageError maps repository errors onto the service taxonomy. Domain
// sentinels pass through untouched.
func storageError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrPermissionDenied),
		errors.Is(err, ErrStorage):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrStateMismatch):
		return ErrInvalidTransition
	}
	return fmt.Errorf("%w: %v", ErrStorage, err)
}
