package services

import (
	"fmt"
	"regexp"
	"strings"

	"affiliate-platform/internal/utils"
)

const (
	GeneratedCodeLength = 8
	MinCustomCodeLength = 3
	MaxCustomCodeLength = 15
)

var customCodePattern = regexp.MustCompile(`^[A-Z0-9_-]+$`)

// reservedCodes may never be claimed as custom codes
var reservedCodes = map[string]struct{}{
	"ADMIN":         {},
	"ADMINISTRATOR": {},
	"ROOT":          {},
	"SYSTEM":        {},
	"SUPPORT":       {},
	"STAFF":         {},
	"MODERATOR":     {},
	"OFFICIAL":      {},
	"HELP":          {},
	"API":           {},
	"TEST":          {},
	"NULL":          {},
	"UNDEFINED":     {},
	"RED23":         {},
}

// CodeValidation is the outcome of checking a custom referral code
type CodeValidation struct {
	IsValid     bool     `json:"is_valid"`
	Code        string   `json:"code"`
	Taken       bool     `json:"taken"`
	Error       string   `json:"error,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// NormalizeReferralCode trims and upper-cases a code
func NormalizeReferralCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// GenerateReferralCode produces a random code. Uniqueness is the caller's job.
func GenerateReferralCode() (string, error) {
	return utils.RandomCode(GeneratedCodeLength)
}

// ValidateCustomReferralCode checks format rules only; the first failing rule wins.
func ValidateCustomReferralCode(candidate string) CodeValidation {
	code := NormalizeReferralCode(candidate)
	result := CodeValidation{Code: code}

	if n := len(code); n < MinCustomCodeLength || n > MaxCustomCodeLength {
		result.Error = fmt.Sprintf("Referral code must be between %d and %d characters", MinCustomCodeLength, MaxCustomCodeLength)
		return result
	}

	if !customCodePattern.MatchString(code) {
		result.Error = "Referral code can only contain letters, numbers, hyphens and underscores"
		return result
	}

	if _, reserved := reservedCodes[code]; reserved {
		result.Error = "This referral code is reserved"
		return result
	}

	result.IsValid = true
	return result
}

// suggestionCandidate appends a 2-4 digit suffix to base, trimming base so the
// result still fits the maximum length.
func suggestionCandidate(base string) (string, error) {
	suffix, err := utils.RandomDigits(2, 4)
	if err != nil {
		return "", err
	}
	if room := MaxCustomCodeLength - len(suffix); len(base) > room {
		base = base[:room]
	}
	return base + suffix, nil
}
