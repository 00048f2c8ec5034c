package utils_test

import (
	"strings"
	"testing"

	"github.com/KaramelBytes/dataglimpse/internal/utils"
)

func TestCountTokens(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"ab", 1},
		{"Revenue,Units", 3},
		{strings.Repeat("é", 400), 100},
	}
	for _, c := range cases {
		if got := utils.CountTokens(c.in); got != c.want {
			t.Errorf("CountTokens(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestTruncateToTokenLimit(t *testing.T) {
	prompt := strings.Repeat("row 1: Category=A Revenue=10\n", 200)
	cut := utils.TruncateToTokenLimit(prompt, 300)
	if n := utils.CountTokens(cut); n != 300 {
		t.Fatalf("truncated prompt estimates %d tokens, want 300", n)
	}
	if !strings.HasPrefix(prompt, cut) {
		t.Fatalf("truncation must keep the prompt head")
	}
	if got := utils.TruncateToTokenLimit("short", 300); got != "short" {
		t.Fatalf("short text changed: %q", got)
	}
	if got := utils.TruncateToTokenLimit("anything", 0); got != "" {
		t.Fatalf("zero limit: %q", got)
	}
}

func TestTokenBreakdown(t *testing.T) {
	got := utils.TokenBreakdown(map[string]string{"system": strings.Repeat("x", 40), "user": ""})
	if got["system"] != 10 || got["user"] != 0 || len(got) != 2 {
		t.Fatalf("breakdown: %v", got)
	}
}
