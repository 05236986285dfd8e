package services

import (
	"regexp"
	"strings"
	"testing"
)

func TestValidateCustomReferralCode(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValid bool
		wantCode  string
		wantError string
	}{
		{"plain", "LUCKY7", true, "LUCKY7", ""},
		{"lowercase is normalised", "  my-code_1 ", true, "MY-CODE_1", ""},
		{"minimum length", "ABC", true, "ABC", ""},
		{"maximum length", "ABCDEFGHIJKLMNO", true, "ABCDEFGHIJKLMNO", ""},
		{"too short", "AB", false, "AB", "between 3 and 15"},
		{"too long", "ABCDEFGHIJKLMNOP", false, "ABCDEFGHIJKLMNOP", "between 3 and 15"},
		{"bad characters", "BAD CODE", false, "BAD CODE", "only contain"},
		{"symbols", "WIN$$", false, "WIN$$", "only contain"},
		{"reserved", "admin", false, "ADMIN", "reserved"},
		{"reserved brand", "Red23", false, "RED23", "reserved"},
		{"length checked before charset", "A!", false, "A!", "between 3 and 15"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateCustomReferralCode(tt.input)
			if got.IsValid != tt.wantValid {
				t.Fatalf("IsValid = %v, want %v (error %q)", got.IsValid, tt.wantValid, got.Error)
			}
			if got.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", got.Code, tt.wantCode)
			}
			if tt.wantError == "" && got.Error != "" {
				t.Errorf("unexpected error %q", got.Error)
			}
			if tt.wantError != "" && !strings.Contains(got.Error, tt.wantError) {
				t.Errorf("Error = %q, want it to contain %q", got.Error, tt.wantError)
			}
		})
	}
}

func TestGenerateReferralCode(t *testing.T) {
	pattern := regexp.MustCompile(`^[A-Z0-9]{8}$`)
	seen := make(map[string]struct{})

	for i := 0; i < 200; i++ {
		code, err := GenerateReferralCode()
		if err != nil {
			t.Fatalf("GenerateReferralCode failed: %v", err)
		}
		if !pattern.MatchString(code) {
			t.Fatalf("generated code %q does not match %s", code, pattern)
		}
		if !ValidateCustomReferralCode(code).IsValid {
			t.Fatalf("generated code %q fails custom validation", code)
		}
		seen[code] = struct{}{}
	}

	if len(seen) < 190 {
		t.Errorf("expected mostly distinct codes, got %d of 200", len(seen))
	}
}

func TestSuggestionCandidateFitsMaxLength(t *testing.T) {
	base := "ABCDEFGHIJKLMNO"
	for i := 0; i < 50; i++ {
		candidate, err := suggestionCandidate(base)
		if err != nil {
			t.Fatalf("suggestionCandidate failed: %v", err)
		}
		if len(candidate) > MaxCustomCodeLength {
			t.Fatalf("candidate %q exceeds %d characters", candidate, MaxCustomCodeLength)
		}
		if !strings.HasPrefix(base, candidate[:len(candidate)-4]) {
			t.Fatalf("candidate %q does not extend a prefix of %q", candidate, base)
		}
	}
}
