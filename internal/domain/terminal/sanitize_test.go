package terminal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeRepeatedRuns(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "12 identical characters collapse to nothing",
			input:    strings.Repeat("W", 12),
			expected: "",
		},
		{
			name:     "run below threshold is kept",
			input:    strings.Repeat("W", 9),
			expected: strings.Repeat("W", 9),
		},
		{
			name:     "surrounding text survives run deletion",
			input:    "ab" + strings.Repeat("X", 20) + "cd",
			expected: "abcd",
		},
		{
			name:     "newline runs are exempt from deletion",
			input:    "a" + strings.Repeat("\n", 12) + "b",
			expected: "a\n\nb",
		},
		{
			name:     "space runs are exempt from deletion",
			input:    "a" + strings.Repeat(" ", 12) + "b",
			expected: "a b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(Sanitize([]byte(tt.input))))
		})
	}
}

func TestSanitizeANSI(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "color codes removed, text intact",
			input:    "\x1b[31mred\x1b[0m",
			expected: "red",
		},
		{
			name:     "cursor movement removed, surrounding text intact",
			input:    "before\x1b[2Aafter",
			expected: "beforeafter",
		},
		{
			name:     "clear screen removed",
			input:    "\x1b[2Jprompt",
			expected: "prompt",
		},
		{
			name:     "private mode sequence removed",
			input:    "\x1b[?25ltext\x1b[?25h",
			expected: "text",
		},
		{
			name:     "osc title removed",
			input:    "\x1b]0;window title\x07rest",
			expected: "rest",
		},
		{
			name:     "osc with string terminator removed",
			input:    "\x1b]2;t\x1b\\rest",
			expected: "rest",
		},
		{
			name:     "two byte escape removed",
			input:    "a\x1bMb",
			expected: "ab",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(Sanitize([]byte(tt.input))))
		})
	}
}

func TestSanitizeControlAndEncoding(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "nul bytes stripped",
			input:    "a\x00b\x00c",
			expected: "abc",
		},
		{
			name:     "control characters stripped",
			input:    "\x01\x02text\x05",
			expected: "text",
		},
		{
			name:     "tab newline and carriage return kept",
			input:    "a\tb\r\nc",
			expected: "a\tb\r\nc",
		},
		{
			name:     "high bytes removed",
			input:    "h\xc3\xa9llo",
			expected: "hllo",
		},
		{
			name:     "stray escape byte removed",
			input:    "a\x1bqb",
			expected: "aqb",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(Sanitize([]byte(tt.input))))
		})
	}
}

func TestSanitizeWhitespaceCollapsing(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "excess blank lines collapse to one blank line",
			input:    "a\n\n\n\n\nb",
			expected: "a\n\nb",
		},
		{
			name:     "two newlines untouched",
			input:    "a\n\nb",
			expected: "a\n\nb",
		},
		{
			name:     "long space run collapses to one space",
			input:    "a" + strings.Repeat(" ", 15) + "b",
			expected: "a b",
		},
		{
			name:     "short space run untouched",
			input:    "a" + strings.Repeat(" ", 9) + "b",
			expected: "a" + strings.Repeat(" ", 9) + "b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(Sanitize([]byte(tt.input))))
		})
	}
}

func TestSanitizeEmpty(t *testing.T) {
	assert.Empty(t, Sanitize(nil))
	assert.Empty(t, Sanitize([]byte{}))
}

func TestSanitizeDoesNotAliasInput(t *testing.T) {
	input := []byte("plain text")
	out := Sanitize(input)
	input[0] = 'X'
	assert.Equal(t, "plain text", string(out))
}
