package models

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	KindInput      Kind = "input"
	KindDecode     Kind = "decode"
	KindCredential Kind = "credential"
	KindAuth       Kind = "auth"
	KindQuota      Kind = "quota"
	KindRemote     Kind = "remote"
	KindTimeout    Kind = "timeout"
	KindConfig     Kind = "config"
	KindInternal   Kind = "internal"
)

// StatusCode maps a Kind onto the HTTP status reported by the JSON API.
func (k Kind) StatusCode() int {
	switch k {
	case KindInput:
		return http.StatusBadRequest
	case KindDecode:
		return http.StatusUnprocessableEntity
	case KindCredential, KindAuth:
		return http.StatusUnauthorized
	case KindQuota:
		return http.StatusTooManyRequests
	case KindRemote:
		return http.StatusBadGateway
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified failure carrying a message fit for the end user.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a classified error.
func NewError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func InputError(message string, err error) *Error {
	return NewError(KindInput, message, err)
}

func DecodeError(message string, err error) *Error {
	return NewError(KindDecode, message, err)
}

func CredentialError(message string) *Error {
	return NewError(KindCredential, message, nil)
}

// ContextError classifies a cancelled or expired context. Other errors,
// and errors that are already classified, are returned unchanged.
func ContextError(err error) error {
	var classified *Error
	if errors.As(err, &classified) {
		return err
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(KindTimeout, "The analysis took too long and was stopped. Please try again.", err)
	case errors.Is(err, context.Canceled):
		return NewError(KindTimeout, "The analysis was cancelled before it finished. Please try again.", err)
	}
	return err
}

// KindOf returns the Kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// UserMessage renders err as a human-readable sentence for the UI.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return "An unexpected error occurred. Please try again."
	}
	switch e.Kind {
	case KindCredential:
		return "Please provide an API key to proceed."
	case KindAuth:
		return "The API key was rejected by the model service: " + e.Message
	case KindQuota:
		return "The model service quota or rate limit was exceeded. Please wait and try again."
	default:
		return e.Message
	}
}
