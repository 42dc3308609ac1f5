package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindConfigMissing  Kind = "config_missing"
	KindConfigInvalid  Kind = "config_invalid"
	KindDatabase       Kind = "db_error"
	KindUnexpected     Kind = "unexpected"
	KindInvalidRequest Kind = "invalid_request"
)

// Error carries a failure kind through the pipeline so the HTTP boundary can
// map it to a status code without inspecting messages.
type Error struct {
	Kind    Kind
	Context string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, context, message string) *Error {
	return &Error{Kind: kind, Context: context, Message: message}
}

func Wrap(kind Kind, context, message string, err error) *Error {
	return &Error{Kind: kind, Context: context, Message: message, Err: err}
}

// As returns the first *Error in err's chain. Errors without one are reported
// as unexpected.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return &Error{Kind: KindUnexpected, Message: err.Error()}
}

func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return As(err).Kind
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindConfigInvalid, KindInvalidRequest:
		return http.StatusBadRequest
	case KindConfigMissing, KindDatabase, KindUnexpected:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
