package models

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("materialize: %w", DecodeError("bad xref", errors.New("eof")))
	assert.Equal(t, KindDecode, KindOf(wrapped))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}

func TestKindStatusCode(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindInput, http.StatusBadRequest},
		{KindDecode, http.StatusUnprocessableEntity},
		{KindCredential, http.StatusUnauthorized},
		{KindAuth, http.StatusUnauthorized},
		{KindQuota, http.StatusTooManyRequests},
		{KindRemote, http.StatusBadGateway},
		{KindTimeout, http.StatusGatewayTimeout},
		{KindConfig, http.StatusInternalServerError},
		{KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.kind.StatusCode(), string(tt.kind))
	}
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
	assert.Equal(t, "Please provide an API key to proceed.", UserMessage(CredentialError("missing")))
	assert.Equal(t, "The uploaded file is empty.", UserMessage(InputError("The uploaded file is empty.", nil)))
	assert.Contains(t, UserMessage(NewError(KindAuth, "API key not valid", nil)), "API key not valid")
	assert.Contains(t, UserMessage(NewError(KindQuota, "429", nil)), "quota")
	assert.Equal(t, "An unexpected error occurred. Please try again.", UserMessage(errors.New("boom")))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewError(KindRemote, "call failed", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "[remote] call failed: root cause", err.Error())
	assert.Equal(t, "[input] empty", InputError("empty", nil).Error())
}

func TestContextError(t *testing.T) {
	deadline := ContextError(fmt.Errorf("render: %w", context.DeadlineExceeded))
	assert.Equal(t, KindTimeout, KindOf(deadline))
	assert.ErrorIs(t, deadline, context.DeadlineExceeded)
	assert.Contains(t, UserMessage(deadline), "too long")

	cancelled := ContextError(context.Canceled)
	assert.Equal(t, KindTimeout, KindOf(cancelled))
	assert.ErrorIs(t, cancelled, context.Canceled)

	classified := NewError(KindRemote, "upstream", context.DeadlineExceeded)
	assert.Same(t, classified, ContextError(classified))

	plain := errors.New("boom")
	assert.Equal(t, plain, ContextError(plain))
	assert.Nil(t, ContextError(nil))
}
