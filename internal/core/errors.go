package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnauthorized is returned when a requester acts on or through an
	// entity outside their ownership chain.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound is returned for nonexistent ids and, deliberately, for
	// ids owned by somebody else.
	ErrNotFound = errors.New("not found")

	// ErrCategoryInUse is returned when deleting a category (or a group
	// containing one) that still has transactions.
	ErrCategoryInUse = errors.New("category has transactions")

	// ErrUsernameTaken is returned on signup when the username exists.
	ErrUsernameTaken = errors.New("username already taken")

	// ErrInvalidCredentials is returned on failed login. It never reveals
	// whether the username or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError carries per-field error messages for form input.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

// Add records a message for a field. The first message per field wins.
func (e *ValidationError) Add(field, message string) {
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = message
	}
}

// Empty reports whether no field errors were recorded.
func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

// ErrOrNil returns nil when no errors were recorded, otherwise e.
func (e *ValidationError) ErrOrNil() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, e.Fields[f]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AsValidationError unwraps err into a *ValidationError if possible.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
