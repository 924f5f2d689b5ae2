package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MaxTitleLength  = 200
	MaxBodyLength   = 10000
	MaxReasonLength = 500
	MaxListingPrice = 100_000_000
)

var reservedUsernames = map[string]struct{}{
	"admin":     {},
	"api":       {},
	"auth":      {},
	"moderator": {},
	"root":      {},
	"system":    {},
	"support":   {},
	"metrics":   {},
	"login":     {},
	"signup":    {},
}

// ValidateTitle requires a non-blank title of bounded length.
func ValidateTitle(title string) error {
	return boundedText("title", title, MaxTitleLength)
}

// ValidateBody requires non-blank post, comment or listing text.
func ValidateBody(body string) error {
	return boundedText("content", body, MaxBodyLength)
}

// ValidateReportReason requires the reporter to say something about the content.
func ValidateReportReason(reason string) error {
	return boundedText("reason", reason, MaxReasonLength)
}

// ValidatePrice checks a listing price given in cents.
func ValidatePrice(cents int64) error {
	if cents < 0 {
		return fmt.Errorf("price cannot be negative")
	}
	if cents > MaxListingPrice {
		return fmt.Errorf("price must not exceed %d", MaxListingPrice)
	}
	return nil
}

func boundedText(field, value string, max int) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", field)
	}
	if utf8.RuneCountInString(value) > max {
		return fmt.Errorf("%s must not exceed %d characters", field, max)
	}
	return nil
}
