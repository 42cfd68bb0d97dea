package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/shopmate/shopmate/internal/models"
	"github.com/shopmate/shopmate/internal/pricing"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrAccessDenied        = errors.New("access denied")
	ErrNotFound            = errors.New("not found")
	ErrInvalidTransition   = errors.New("invalid order status transition")
	ErrInvalidRevision     = errors.New("invalid revision")
	ErrBelowMinimum        = errors.New("order subtotal below shop minimum")
	ErrShopUnavailable     = errors.New("shop unavailable")
	ErrPricingUnavailable  = pricing.ErrPricingUnavailable
	ErrConcurrencyConflict = errors.New("order was modified concurrently")
	ErrPersistence         = errors.New("persistence failure")
	ErrAlreadyRated        = errors.New("order already rated")
	ErrNotDelivered        = errors.New("order not delivered")
	ErrRateLimited         = errors.New("too many requests")
)

// TransitionError names the rejected edge. It matches ErrInvalidTransition.
type TransitionError struct {
	From   models.OrderStatus
	To     models.OrderStatus
	Reason string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("%s: %s → %s", ErrInvalidTransition, e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

func validationError(format string, args ...any) error {
	return wrapf(ErrValidation, format, args...)
}

func accessDenied(format string, args ...any) error {
	return wrapf(ErrAccessDenied, format, args...)
}

func persistenceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

// describeValidation flattens validator output into "field: rule" pairs.
func describeValidation(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return validationError("%v", err)
	}

	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := fe.Namespace()
		if idx := strings.Index(field, "."); idx >= 0 {
			field = field[idx+1:]
		}
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", field, fe.Tag()))
		}
	}
	return validationError("%s", strings.Join(parts, "; "))
}

func wrapf(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}
