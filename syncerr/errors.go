// Package syncerr defines the failure taxonomy surfaced by the sync core.
//
// Every failure is a *goerrors.Error carrying one of four text codes:
//
//   - AUTH_REQUIRED: no owner identity in the context; nothing was touched
//   - VALIDATION_FAILURE: caller arguments violate a precondition; nothing was touched
//   - NOT_FOUND: the requested entity does not exist in the remote store
//   - ADAPTER_FAILURE: the remote call failed after an optimistic write; the cache was rolled back
//
// The core never retries. Callers decide about retry, backoff and messaging.
package syncerr

import (
	"errors"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	TextCodeAuthRequired   = "AUTH_REQUIRED"
	TextCodeValidation     = "VALIDATION_FAILURE"
	TextCodeNotFound       = "NOT_FOUND"
	TextCodeAdapterFailure = "ADAPTER_FAILURE"
)

// AuthRequired reports a missing owner context for the named operation.
func AuthRequired(operation string) error {
	return goerrors.New(fmt.Sprintf("%s requires an owner context", operation), goerrors.CategoryAuth).
		WithTextCode(TextCodeAuthRequired)
}

// Validation reports a precondition violation.
func Validation(format string, args ...any) error {
	return goerrors.New(fmt.Sprintf(format, args...), goerrors.CategoryValidation).
		WithTextCode(TextCodeValidation)
}

// FromValidation converts ozzo validation errors into a validation failure.
// A nil err yields nil.
func FromValidation(err error, message string) error {
	if err == nil {
		return nil
	}

	wrapped := goerrors.Wrap(err, goerrors.CategoryValidation, message).
		WithTextCode(TextCodeValidation)

	var fields validation.Errors
	if errors.As(err, &fields) {
		meta := make(map[string]any, len(fields))
		for name, fieldErr := range fields {
			meta[name] = fieldErr.Error()
		}
		wrapped = wrapped.WithMetadata(map[string]any{"fields": meta})
	}
	return wrapped
}

// NotFound reports a missing entity.
func NotFound(entity string, id any) error {
	return goerrors.New(fmt.Sprintf("%s %v not found", entity, id), goerrors.CategoryNotFound).
		WithTextCode(TextCodeNotFound).
		WithMetadata(map[string]any{"entity": entity, "id": fmt.Sprint(id)})
}

// AdapterFailure wraps an error returned by the remote store.
func AdapterFailure(err error, entity, operation string) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, goerrors.CategoryExternal, fmt.Sprintf("%s %s failed", entity, operation)).
		WithTextCode(TextCodeAdapterFailure)
}

func IsAuthRequired(err error) bool { return hasCategory(err, goerrors.CategoryAuth) }

func IsValidation(err error) bool { return hasCategory(err, goerrors.CategoryValidation) }

func IsNotFound(err error) bool { return hasCategory(err, goerrors.CategoryNotFound) }

func IsAdapterFailure(err error) bool { return hasCategory(err, goerrors.CategoryExternal) }

// hasCategory checks the outermost *goerrors.Error in the chain.
func hasCategory(err error, category goerrors.Category) bool {
	var e *goerrors.Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Category == category
}
