package completion

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
)

func TestParseJSONBlock(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		key  string
		want any
	}{
		{"bare object", `{"answer": "yes"}`, "answer", "yes"},
		{"embedded in prose", "Here is the result:\n{\"score\": 0.8}\nLet me know.", "score", 0.8},
		{"fenced block", "```json\n{\"rows\": 25}\n```", "rows", 25.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseJSONBlock(tt.text)
			if err != nil {
				t.Fatalf("ParseJSONBlock: %v", err)
			}
			if got[tt.key] != tt.want {
				t.Errorf("got[%q] = %v, want %v", tt.key, got[tt.key], tt.want)
			}
		})
	}
}

func TestParseJSONBlockFallback(t *testing.T) {
	t.Parallel()

	for _, text := range []string{
		"The analysis suggests focusing on the North region.",
		"broken { not json } here",
		"",
	} {
		got, err := ParseJSONBlock(text)
		if !errors.Is(err, ErrResponseParse) {
			t.Fatalf("ParseJSONBlock(%q) err = %v, want ErrResponseParse", text, err)
		}
		if got["parsing_error"] == "" {
			t.Error("fallback missing parsing_error field")
		}
		if got["raw_text"] != text {
			t.Errorf("raw_text = %v, want original text", got["raw_text"])
		}
	}
}

func TestUsageAccumulates(t *testing.T) {
	t.Parallel()

	u := Usage{InputTokens: 100, OutputTokens: 40}
	u = u.Add(Usage{InputTokens: 50, OutputTokens: 10})
	if u.InputTokens != 150 || u.OutputTokens != 50 {
		t.Errorf("Usage = %+v", u)
	}
	if u.Total() != 200 {
		t.Errorf("Total = %d, want 200", u.Total())
	}
}

func TestEstimateCost(t *testing.T) {
	t.Parallel()

	u := Usage{InputTokens: 1000, OutputTokens: 1000}
	sonnet := EstimateCost("claude-3-5-sonnet", u)
	if math.Abs(sonnet-0.018) > 1e-9 {
		t.Errorf("sonnet cost = %v, want 0.018", sonnet)
	}

	haiku := EstimateCost("claude-3-haiku", u)
	if haiku >= sonnet {
		t.Errorf("haiku cost %v not below sonnet %v", haiku, sonnet)
	}

	// Unknown model prices as the default.
	if got := EstimateCost("gpt-nonsense", u); got != sonnet {
		t.Errorf("unknown model cost = %v, want default %v", got, sonnet)
	}

	// Full model names resolve too.
	if got := EstimateCost("claude-3-haiku-20240307", u); got != haiku {
		t.Errorf("full-name cost = %v, want %v", got, haiku)
	}
}

func TestFitsContext(t *testing.T) {
	t.Parallel()

	if !FitsContext("claude-3-5-sonnet", 10_000) {
		t.Error("small prompt rejected")
	}
	if FitsContext("claude-3-5-sonnet", 1_000_000) {
		t.Error("oversized prompt accepted")
	}
}

// An oversized prompt is rejected before any network call is attempted.
func TestCompleteRejectsOversizedPrompt(t *testing.T) {
	t.Parallel()

	c := NewAnthropic(DefaultModel(), nil)
	_, err := c.Complete(context.Background(), Request{
		Prompt: strings.Repeat("x", 1_000_000),
	})
	if !errors.Is(err, ErrPromptTooLarge) {
		t.Fatalf("err = %v, want ErrPromptTooLarge", err)
	}
}
