// Package completion wraps the external LLM completion service: a minimal
// client contract, an Anthropic-backed implementation with bounded retries,
// and tolerant parsing of JSON embedded in free-text responses.
package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrService marks a completion call that failed after exhausting retries.
// The orchestrator records it and continues with degraded downstream output.
var ErrService = errors.New("completion: service call failed")

// ErrPromptTooLarge marks a request rejected before submission because the
// prompt would not leave room for a response in the model's context window.
var ErrPromptTooLarge = errors.New("completion: prompt exceeds context window")

// ErrResponseParse marks a response whose text carried no valid JSON block.
// It is never fatal; ParseJSONBlock always returns a usable fallback.
var ErrResponseParse = errors.New("completion: response is not valid JSON")

// Request is one completion call.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int64
	Temperature float64
}

// Usage is the token accounting for one call.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Total returns combined input and output tokens.
func (u Usage) Total() int64 { return u.InputTokens + u.OutputTokens }

// Add accumulates another call's usage.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
	}
}

// Response is the completion output plus its resource accounting.
type Response struct {
	Text  string `json:"text"`
	Model string `json:"model"`
	Usage Usage  `json:"usage"`
}

// Client is the completion-service contract the pipeline stages depend on.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// ParseJSONBlock extracts the first JSON object embedded in free text. When
// no valid object is found it returns a fallback document wrapping the raw
// text under "parsing_error" together with an error wrapping
// ErrResponseParse; callers may use the fallback and log the error.
func ParseJSONBlock(text string) (map[string]any, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		var out map[string]any
		if err := json.Unmarshal([]byte(text[start:end+1]), &out); err == nil {
			return out, nil
		}
	}
	return map[string]any{
		"parsing_error": "response did not contain a valid JSON block",
		"raw_text":      text,
	}, fmt.Errorf("%w: %d bytes of text", ErrResponseParse, len(text))
}
