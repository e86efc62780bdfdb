package gcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"

	"github.com/Lllllllleong/earningscallanalyst/internal/models"
)

func TestClassifyError(t *testing.T) {
	badKey := genai.APIError{Code: http.StatusBadRequest, Message: "API key not valid. Please pass a valid API key.", Status: "INVALID_ARGUMENT"}
	tests := []struct {
		name string
		err  error
		want models.Kind
	}{
		{"invalid api key", badKey, models.KindAuth},
		{"invalid api key pointer", &badKey, models.KindAuth},
		{"wrapped invalid api key", fmt.Errorf("generate: %w", badKey), models.KindAuth},
		{"http 401", genai.APIError{Code: http.StatusUnauthorized}, models.KindAuth},
		{"http 403", genai.APIError{Code: http.StatusForbidden, Message: "denied"}, models.KindAuth},
		{"http 429", genai.APIError{Code: http.StatusTooManyRequests, Status: "RESOURCE_EXHAUSTED"}, models.KindQuota},
		{"other bad request", genai.APIError{Code: http.StatusBadRequest, Message: "Request contains an invalid argument."}, models.KindRemote},
		{"http 500", genai.APIError{Code: http.StatusInternalServerError}, models.KindRemote},
		{"deadline", context.DeadlineExceeded, models.KindTimeout},
		{"cancelled", fmt.Errorf("call: %w", context.Canceled), models.KindTimeout},
		{"plain", errors.New("dial tcp: connection refused"), models.KindRemote},
		{"already classified", models.CredentialError("missing"), models.KindCredential},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyError(tt.err)
			assert.Equal(t, tt.want, models.KindOf(got))
		})
	}
	assert.NoError(t, ClassifyError(nil))
}

func TestClassifyError_KeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	assert.ErrorIs(t, ClassifyError(cause), cause)
	assert.ErrorIs(t, ClassifyError(context.DeadlineExceeded), context.DeadlineExceeded)
}
