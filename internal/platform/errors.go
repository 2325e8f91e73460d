// Package platform wraps the YouTube Data API behind a quota-rotating
// credential pool and a stable error taxonomy.
package platform

import (
	"errors"
	"fmt"

	"google.golang.org/api/googleapi"
)

var (
	// ErrQuotaExceeded is returned when a credential hits its rate or daily limit.
	ErrQuotaExceeded = errors.New("platform quota exceeded")

	// ErrReauthRequired is returned when the user must re-consent. It is
	// fatal for the calling operation and never retried automatically.
	ErrReauthRequired = errors.New("user reauthorization required")

	// ErrNotFound is returned when the platform no longer has the resource.
	ErrNotFound = errors.New("platform resource not found")

	// ErrCommentsDisabled is returned when a video has comments turned off.
	ErrCommentsDisabled = errors.New("comments disabled for video")

	// ErrNoAvailableCredential is returned when every pool credential is
	// quota-exhausted for the current call.
	ErrNoAvailableCredential = errors.New("no available api credential")

	// ErrTransient marks 5xx-class platform failures; retry scheduling,
	// not in-flight retry, absorbs these.
	ErrTransient = errors.New("transient platform error")
)

// Quota-class rejection reasons reported by the API.
var quotaReasons = map[string]bool{
	"quotaExceeded":         true,
	"dailyLimitExceeded":    true,
	"userRateLimitExceeded": true,
	"rateLimitExceeded":     true,
}

// ClassifyError maps a raw API error onto the package taxonomy. Errors
// that fit no category are returned unchanged.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}

	reason := errorReason(apiErr)

	switch {
	case apiErr.Code == 429:
		return fmt.Errorf("%w: %s", ErrQuotaExceeded, apiErr.Message)
	case apiErr.Code == 403 && quotaReasons[reason]:
		return fmt.Errorf("%w: %s", ErrQuotaExceeded, reason)
	case apiErr.Code == 403 && reason == "commentsDisabled":
		return ErrCommentsDisabled
	case apiErr.Code == 401:
		return fmt.Errorf("%w: %s", ErrReauthRequired, apiErr.Message)
	case apiErr.Code == 404:
		return fmt.Errorf("%w: %s", ErrNotFound, apiErr.Message)
	case apiErr.Code >= 500:
		return fmt.Errorf("%w: status %d: %s", ErrTransient, apiErr.Code, apiErr.Message)
	default:
		return err
	}
}

func errorReason(apiErr *googleapi.Error) string {
	if len(apiErr.Errors) > 0 {
		return apiErr.Errors[0].Reason
	}
	return ""
}

// IsQuotaError reports whether the error is quota-class.
func IsQuotaError(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}

// IsNotFound reports whether the platform no longer has the resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsReauthRequired reports whether the user must re-consent.
func IsReauthRequired(err error) bool {
	return errors.Is(err, ErrReauthRequired)
}
