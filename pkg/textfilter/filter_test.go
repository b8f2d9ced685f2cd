package textfilter

import (
	"testing"
)

func TestBroadcastFilter_Clean(t *testing.T) {
	filter := NewBroadcastFilter()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "rough language softened",
			input:    "The fucking wall came down again.",
			expected: "The blasted wall came down again.",
		},
		{
			name:     "case preservation - uppercase",
			input:    "SHIT. The ridge beam slipped.",
			expected: "HELL. The ridge beam slipped.",
		},
		{
			name:     "case preservation - title case",
			input:    "Bullshit, he thinks, and picks the axe back up.",
			expected: "Nonsense, he thinks, and picks the axe back up.",
		},
		{
			name:     "word boundaries respected",
			input:    "The passage narrows near the shore.",
			expected: "The passage narrows near the shore.",
		},
		{
			name:     "bold markdown stripped",
			input:    "The **first frost** arrives early.",
			expected: "The first frost arrives early.",
		},
		{
			name:     "code fence stripped",
			input:    "```\nDay twelve. The roof is half done.\n```",
			expected: "Day twelve. The roof is half done.",
		},
		{
			name:     "whitespace collapsed",
			input:    "Day twelve.   The roof    is half done.",
			expected: "Day twelve. The roof is half done.",
		},
		{
			name:     "clean text untouched",
			input:    "He splits the log with one stroke.",
			expected: "He splits the log with one stroke.",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := filter.Clean(tc.input)
			if got != tc.expected {
				t.Errorf("Clean(%q) = %q, want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestBroadcastFilter_NeedsCleaning(t *testing.T) {
	filter := NewBroadcastFilter()

	if !filter.NeedsCleaning("What the fuck happened to the ridge beam?") {
		t.Error("Expected rough language to need cleaning")
	}
	if !filter.NeedsCleaning("The **first frost** arrives early.") {
		t.Error("Expected markdown to need cleaning")
	}
	if filter.NeedsCleaning("He splits the log with one stroke.") {
		t.Error("Expected clean narration to pass")
	}
}
