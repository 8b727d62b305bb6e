package database

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// Sentinel errors shared by every service. The API layer maps them to
// HTTP status classes; nothing below it inspects pq errors directly.
var (
	ErrEbookNotFound       = errors.New("ebook not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrReaderNotFound      = errors.New("reader not found")
	ErrAuthorNotFound      = errors.New("author not found")
	ErrOrderNotFound       = errors.New("order not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrWishNotFound        = errors.New("wishlist entry not found")
	ErrCartItemNotFound    = errors.New("cart item not found")

	ErrInsufficientStock = errors.New("insufficient stock")
	ErrDuplicateWish     = errors.New("ebook already wishlisted")
	ErrEbookOwned        = errors.New("ebook has granted entitlements")

	ErrValidation = errors.New("validation failed")
	ErrGateway    = errors.New("payment gateway failure")
)

type ErrorClass int

const (
	ErrorClassPermanent ErrorClass = iota
	ErrorClassTransient
	ErrorClassDeadlock
	ErrorClassSerialization
)

// ClassifyError decides whether a failed transaction is worth retrying.
// Serialization failures, deadlocks and lock timeouts are transient;
// constraint violations and anything unknown are permanent.
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassPermanent
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001":
			return ErrorClassSerialization
		case "40P01":
			return ErrorClassDeadlock
		case "55P03":
			return ErrorClassTransient
		case "23505", "23503", "23502", "23514":
			return ErrorClassPermanent
		}
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrorClassPermanent
	}

	return ErrorClassPermanent
}

func IsRetryable(err error) bool {
	class := ClassifyError(err)
	return class == ErrorClassTransient ||
		class == ErrorClassDeadlock ||
		class == ErrorClassSerialization
}

// IsUniqueViolation reports whether err is a unique-constraint violation,
// optionally on the named constraint. Uniqueness on (subject, ebook) pairs
// is enforced by the schema, so duplicate wishes and votes surface here
// instead of through a check-then-insert race.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	if pqErr.Code != "23505" {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// IsForeignKeyViolation reports whether err is a foreign-key violation.
func IsForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}
