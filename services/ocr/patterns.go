package ocr

import (
	"fmt"
	"regexp"
)

// CNIC: 5 + 7 + 1 digits, separators optional in the source text.
// NTN: 7 + 1 digits.
var (
	identityPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(\d{5})-(\d{7})-(\d)\b`),
		regexp.MustCompile(`\b(\d{5}) (\d{7}) (\d)\b`),
		regexp.MustCompile(`\b(\d{5})(\d{7})(\d)\b`),
	}
	// The leading guard keeps the tail of a hyphenated identity number
	// (12345-1234567-1) from matching as a tax number.
	taxPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:^|[^-\d])(\d{7})-(\d)\b`),
		regexp.MustCompile(`(?:^|[^-\d])(\d{7}) (\d)\b`),
		regexp.MustCompile(`(?:^|[^-\d])(\d{8})(?:[^-\d]|$)`),
	}
)

// ExtractIdentityNumber returns the first national identity number found in
// text, normalized to AAAAA-BBBBBBB-C, or "" when none matches. Uniqueness
// checks downstream compare normalized values only.
func ExtractIdentityNumber(text string) string {
	for _, pattern := range identityPatterns {
		m := pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		return fmt.Sprintf("%s-%s-%s", m[1], m[2], m[3])
	}
	return ""
}

// ExtractTaxNumber returns the first tax registration number found in text,
// normalized to NNNNNNN-N, or "" when none matches.
func ExtractTaxNumber(text string) string {
	for _, pattern := range taxPatterns {
		m := pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if len(m) == 2 {
			// bare 8-digit run
			return fmt.Sprintf("%s-%s", m[1][:7], m[1][7:])
		}
		return fmt.Sprintf("%s-%s", m[1], m[2])
	}
	return ""
}

// IsValidIdentityNumber reports whether value is a normalized identity number.
func IsValidIdentityNumber(value string) bool {
	return regexp.MustCompile(`^\d{5}-\d{7}-\d$`).MatchString(value)
}

// IsValidTaxNumber reports whether value is a normalized tax number.
func IsValidTaxNumber(value string) bool {
	return regexp.MustCompile(`^\d{7}-\d$`).MatchString(value)
}
