package telegram

import (
	"errors"
	"strings"
	"testing"
)

func TestParseCallback(t *testing.T) {
	cases := []struct {
		in      string
		unique  string
		payload string
	}{
		{"\fcontact_cs", "contact_cs", ""},
		{"\fcontact_cs|111", "contact_cs", "111"},
		{"contact_cs|a|b", "contact_cs", "a|b"},
		{"", "", ""},
	}
	for _, tc := range cases {
		unique, payload := parseCallback(tc.in)
		if unique != tc.unique || payload != tc.payload {
			t.Fatalf("parseCallback(%q) = (%q, %q), want (%q, %q)",
				tc.in, unique, payload, tc.unique, tc.payload)
		}
	}
}

func TestSanitizeErrorMessageRedactsToken(t *testing.T) {
	err := errors.New(`telegram: Post "https://api.telegram.org/bot12345:AAH-secret_token/sendMessage": timeout`)
	got := sanitizeErrorMessage(err)
	if got == err.Error() {
		t.Fatal("expected token to be redacted")
	}
	if want := "bot<redacted>"; !strings.Contains(got, want) {
		t.Fatalf("sanitized = %q, want it to contain %q", got, want)
	}
}

func TestSanitizeErrorMessageNil(t *testing.T) {
	if got := sanitizeErrorMessage(nil); got != "" {
		t.Fatalf("sanitizeErrorMessage(nil) = %q, want empty", got)
	}
}
