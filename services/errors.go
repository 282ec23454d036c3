package services

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgconn"
)

// Kind classifies a service failure so the HTTP layer can map it to a status
// code without inspecting messages.
type Kind int

const (
	KindInternal   Kind = iota
	KindValidation      // malformed or missing input
	KindConflict        // uniqueness or ordering collision
	KindNotFound        // entity does not exist
	KindForbidden       // caller may not touch the entity
	KindIntegrity       // referential integrity violated
)

// Error is the service-level failure type carrying a Kind.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Validationf builds a KindValidation error.
func Validationf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Conflictf builds a KindConflict error.
func Conflictf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// NotFoundf builds a KindNotFound error.
func NotFoundf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Forbiddenf builds a KindForbidden error.
func Forbiddenf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

// Integrityf builds a KindIntegrity error.
func Integrityf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindIntegrity, Message: fmt.Sprintf(format, args...)}
}

// Internalf wraps an unexpected failure.
func Internalf(err error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the Kind from err, defaulting to KindInternal.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// HTTPStatus maps a service error to the status code the API returns for it.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return fiber.StatusBadRequest
	case KindConflict:
		return fiber.StatusConflict
	case KindNotFound:
		return fiber.StatusNotFound
	case KindForbidden:
		return fiber.StatusForbidden
	case KindIntegrity:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// Postgres error codes that surface as client-visible failures.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// classifyPgError converts a constraint violation into the matching service
// error; anything else is wrapped as internal.
func classifyPgError(err error, operation string) *Error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return &Error{Kind: KindConflict, Message: fmt.Sprintf("%s: duplicate value", operation), Err: err}
		case pgForeignKeyViolation:
			return &Error{Kind: KindIntegrity, Message: fmt.Sprintf("%s: referenced entity is missing or still in use", operation), Err: err}
		case pgCheckViolation:
			return &Error{Kind: KindValidation, Message: fmt.Sprintf("%s: value rejected by constraint", operation), Err: err}
		}
	}
	return Internalf(err, "%s failed", operation)
}
