package gocardless

import (
	"encoding/json"
	"errors"
	"fmt"
)

type Kind string

const (
	KindInternal         Kind = "gocardless"
	KindInvalidAPIUsage  Kind = "invalid_api_usage"
	KindInvalidState     Kind = "invalid_state"
	KindValidationFailed Kind = "validation_failed"
)

var (
	ErrInternal         = errors.New("gocardless internal error")
	ErrInvalidAPIUsage  = errors.New("gocardless invalid api usage")
	ErrInvalidState     = errors.New("gocardless invalid state")
	ErrValidationFailed = errors.New("gocardless validation failed")
)

var kindSentinels = map[Kind]error{
	KindInternal:         ErrInternal,
	KindInvalidAPIUsage:  ErrInvalidAPIUsage,
	KindInvalidState:     ErrInvalidState,
	KindValidationFailed: ErrValidationFailed,
}

// HTTPError is a non-2xx response the classifier could not map to a Kind.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (e *HTTPError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("gocardless http error: %s", e.Status)
	}
	return fmt.Sprintf("gocardless http error: status %d", e.StatusCode)
}

// Error is a classified provider error. Body holds the full "error" object of
// the response for diagnostics.
type Error struct {
	Kind    Kind
	Message string
	Code    int
	Body    map[string]interface{}

	cause *HTTPError
}

func (e *Error) Error() string {
	return fmt.Sprintf("gocardless %s error (code %d): %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && sentinel == target
}

func (e *Error) Unwrap() error {
	if e.cause == nil {
		return nil
	}
	return e.cause
}

// Classify maps an HTTP failure to a typed provider error using error.type of
// the response body. It returns false for bodies that are not JSON, lack an
// error object or carry an unknown type.
func Classify(httpErr *HTTPError) (*Error, bool) {
	if httpErr == nil || len(httpErr.Body) == 0 {
		return nil, false
	}

	var envelope struct {
		Error map[string]interface{} `json:"error"`
	}
	if err := json.Unmarshal(httpErr.Body, &envelope); err != nil || envelope.Error == nil {
		return nil, false
	}

	tag, _ := envelope.Error["type"].(string)
	kind := Kind(tag)
	if _, ok := kindSentinels[kind]; !ok {
		return nil, false
	}

	message, _ := envelope.Error["message"].(string)
	code := httpErr.StatusCode
	if n, ok := envelope.Error["code"].(float64); ok {
		code = int(n)
	}

	return &Error{
		Kind:    kind,
		Message: message,
		Code:    code,
		Body:    envelope.Error,
		cause:   httpErr,
	}, true
}
