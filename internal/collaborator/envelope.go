package collaborator

import (
	"encoding/json"
	"errors"
	"fmt"

	"seat-allocation-backend/internal/model"
)

// Envelope wraps every collaborator response. Success is folded into the
// returned error on the client side.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Code    string          `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Failure codes carried in Envelope.Code.
const (
	CodeInput        = "invalid_input"
	CodeRange        = "range"
	CodeTooManyItems = "too_many_items"
	CodeConflict     = "conflict"
	CodeNotFound     = "not_found"
	CodeOperation    = "operation_failed"
)

// DateLayout is the wire format of allocation dates in query strings.
const DateLayout = "2006-01-02"

// CodeFor maps an error to its wire code.
func CodeFor(err error) string {
	switch {
	case errors.Is(err, model.ErrRange):
		return CodeRange
	case errors.Is(err, model.ErrTooManyItems):
		return CodeTooManyItems
	case errors.Is(err, model.ErrInput):
		return CodeInput
	case errors.Is(err, model.ErrConflict):
		return CodeConflict
	case errors.Is(err, model.ErrNotFound):
		return CodeNotFound
	default:
		return CodeOperation
	}
}

// ErrorFor turns a failed envelope back into a sentinel-wrapped error.
func ErrorFor(code, message string) error {
	var base error
	switch code {
	case CodeInput:
		base = model.ErrInput
	case CodeRange:
		base = model.ErrRange
	case CodeTooManyItems:
		base = model.ErrTooManyItems
	case CodeConflict:
		base = model.ErrConflict
	case CodeNotFound:
		base = model.ErrNotFound
	default:
		base = model.ErrOperation
	}
	if message == "" {
		return base
	}
	return fmt.Errorf("%w: %s", base, message)
}
