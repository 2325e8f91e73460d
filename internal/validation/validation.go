// Package validation checks externally supplied platform identifiers
// before they reach the database or the platform API.
package validation

import (
	"fmt"
	"regexp"
)

var (
	videoIDRegex   = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)
	channelIDRegex = regexp.MustCompile(`^UC[a-zA-Z0-9_-]{22}$`)
)

// ValidateVideoID checks that the value has the shape of a platform
// video id: exactly 11 URL-safe base64 characters.
func ValidateVideoID(id string) error {
	if id == "" {
		return fmt.Errorf("video id is required")
	}
	if !videoIDRegex.MatchString(id) {
		return fmt.Errorf("invalid video id format: %q", id)
	}
	return nil
}

// ValidateChannelID checks that the value has the shape of a platform
// channel id: a UC prefix followed by 22 URL-safe base64 characters.
func ValidateChannelID(id string) error {
	if id == "" {
		return fmt.Errorf("channel id is required")
	}
	if !channelIDRegex.MatchString(id) {
		return fmt.Errorf("invalid channel id format: %q", id)
	}
	return nil
}
