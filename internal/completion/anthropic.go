package completion

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/cenkalti/backoff/v4"
)

// Logger is the minimal logging seam. A nil Logger silences the client.
type Logger interface {
	Printf(format string, v ...any)
}

const defaultMaxRetries = 3

// AnthropicClient calls the Anthropic Messages API with bounded
// exponential-backoff retries. Credentials come from the environment via
// the SDK's default client.
type AnthropicClient struct {
	client     anthropic.Client
	model      anthropic.Model
	maxRetries uint64
	log        Logger
}

// NewAnthropic returns a client bound to the given model.
func NewAnthropic(model string, log Logger) *AnthropicClient {
	return &AnthropicClient{
		client:     anthropic.NewClient(),
		model:      anthropic.Model(model),
		maxRetries: defaultMaxRetries,
		log:        log,
	}
}

func (c *AnthropicClient) logf(format string, v ...any) {
	if c.log != nil {
		c.log.Printf(format, v...)
	}
}

// Complete sends the request, retrying transient failures. After exhausting
// retries the error wraps ErrService.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (Response, error) {
	if !FitsContext(string(c.model), len(req.System)+len(req.Prompt)) {
		return Response{}, fmt.Errorf("%w: model=%s prompt=%d bytes",
			ErrPromptTooLarge, c.model, len(req.System)+len(req.Prompt))
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	var msg *anthropic.Message
	op := func() error {
		start := time.Now()
		m, err := c.client.Messages.New(ctx, params)
		if err != nil {
			c.logf("completion model=%s err=%v duration=%s", c.model, err, time.Since(start))
			return err
		}
		c.logf("completion model=%s stop=%s in_tokens=%d out_tokens=%d duration=%s",
			c.model, m.StopReason, m.Usage.InputTokens, m.Usage.OutputTokens, time.Since(start))
		msg = m
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrService, err)
	}

	res := Response{
		Model: string(msg.Model),
		Usage: Usage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
		},
	}
	for _, block := range msg.Content {
		if block.Type == "text" {
			res.Text = block.Text
			break
		}
	}
	if res.Text == "" {
		return res, fmt.Errorf("%w: no text content in response", ErrService)
	}
	return res, nil
}
