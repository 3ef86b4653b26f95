package security

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSanitizeTitle(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Remove null bytes", "test\x00data", "testdata"},
		{"Remove control characters", "test\x01\x02data", "testdata"},
		{"Collapse whitespace", "  Lo-fi \n\t beats  ", "Lo-fi beats"},
		{"Drop invalid UTF-8", "caf\xffé", "café"},
		{"Normal string unchanged", "Artist - Song (Official Audio)", "Artist - Song (Official Audio)"},
		{"Only whitespace", " \t\n ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := SanitizeTitle(tt.input); result != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestSanitizeTitleLength(t *testing.T) {
	long := strings.Repeat("é", MaxTitleLength+50)

	result := SanitizeTitle(long)
	if n := utf8.RuneCountInString(result); n != MaxTitleLength {
		t.Errorf("Expected %d runes, got %d", MaxTitleLength, n)
	}

	spaced := strings.Repeat("a ", MaxTitleLength)
	if n := utf8.RuneCountInString(SanitizeTitle(spaced)); n > MaxTitleLength {
		t.Errorf("Expected at most %d runes, got %d", MaxTitleLength, n)
	}
}
