package utils

import "testing"

func TestEscapeMarkdown(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "plain", want: "plain"},
		{in: "snake_case_name", want: `snake\_case\_name`},
		{in: "[link](url)", want: `\[link\](url)`},
		{in: "*bold* ~~x~~", want: `\*bold\* \~\~x\~\~`},
		{in: `a\b`, want: `a\\b`},
	}

	for _, tt := range tests {
		if got := EscapeMarkdown(tt.in); got != tt.want {
			t.Errorf("EscapeMarkdown(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSingleLine(t *testing.T) {
	if got := SingleLine("  a\n\tb   c \r\n"); got != "a b c" {
		t.Errorf("SingleLine() = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{in: "short", n: 10, want: "short"},
		{in: "abcdefghij", n: 6, want: "abc..."},
		{in: "日本語テキスト", n: 5, want: "日本..."},
		{in: "abcdef", n: 2, want: "ab"},
		{in: "abc", n: 0, want: "abc"},
	}

	for _, tt := range tests {
		if got := Truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestPlural(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{n: 0, want: "0 points"},
		{n: 1, want: "1 point"},
		{n: -1, want: "-1 points"},
		{n: 12, want: "12 points"},
	}

	for _, tt := range tests {
		if got := Plural(tt.n, "point"); got != tt.want {
			t.Errorf("Plural(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
