package gcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/Lllllllleong/earningscallanalyst/internal/models"
)

// ClassifyError sorts a failed remote call into auth, quota, timeout or
// generic remote failures. Errors that are already classified pass through.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	if isClassified(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return models.ContextError(err)
	}

	if apiErr, ok := asAPIError(err); ok {
		return fromAPIError(apiErr, err)
	}
	return models.NewError(models.KindRemote, "the model service could not be reached", err)
}

func isClassified(err error) bool {
	var classified *models.Error
	return errors.As(err, &classified)
}

// asAPIError matches both the value and pointer forms the SDK may return.
func asAPIError(err error) (genai.APIError, bool) {
	var value genai.APIError
	if errors.As(err, &value) {
		return value, true
	}
	var ptr *genai.APIError
	if errors.As(err, &ptr) && ptr != nil {
		return *ptr, true
	}
	return genai.APIError{}, false
}

func fromAPIError(apiErr genai.APIError, err error) error {
	msg := apiErr.Message
	if msg == "" {
		msg = http.StatusText(apiErr.Code)
	}
	switch {
	case apiErr.Code == http.StatusUnauthorized, apiErr.Code == http.StatusForbidden:
		return models.NewError(models.KindAuth, msg, err)
	// The Gemini API answers a malformed or unknown key with 400.
	case apiErr.Code == http.StatusBadRequest && isKeyRejection(apiErr):
		return models.NewError(models.KindAuth, msg, err)
	case apiErr.Code == http.StatusTooManyRequests, apiErr.Status == "RESOURCE_EXHAUSTED":
		return models.NewError(models.KindQuota, msg, err)
	default:
		return models.NewError(models.KindRemote, fmt.Sprintf("the model service returned HTTP %d: %s", apiErr.Code, msg), err)
	}
}

func isKeyRejection(apiErr genai.APIError) bool {
	lower := strings.ToLower(apiErr.Message)
	return strings.Contains(lower, "api key") || strings.Contains(lower, "api_key")
}
