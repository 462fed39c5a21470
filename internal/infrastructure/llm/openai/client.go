// Package openai talks to an OpenAI-compatible chat completions endpoint
// and turns field requests into strict JSON answers.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/caiomeira/extractd/internal/core/domain"
	"github.com/caiomeira/extractd/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	runner     *resilience.Runner
}

func New(baseURL, model, apiKey string, rps float64) *Client {
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		runner:     resilience.NewRunner(resilience.DefaultPolicy()),
	}
}

// Solve asks the model for the listed fields over the document excerpt.
// The reply must be a JSON object restricted to exactly those field names;
// anything else is rejected before it can reach the pipeline.
func (c *Client) Solve(ctx context.Context, label domain.Label, fields []string, excerpt string, timeout time.Duration) (map[string]string, error) {
	if len(fields) == 0 {
		return map[string]string{}, nil
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("llm rate limit wait: %w", err)
	}

	prompt := buildFieldPrompt(label, fields, excerpt)

	var raw string
	err := c.runner.Run(ctx, "chat_completions", func(ctx context.Context) error {
		content, err := c.chatJSON(ctx, prompt)
		if err != nil {
			return err
		}
		raw = content
		return nil
	}, classifyTransportError)
	if err != nil {
		return nil, err
	}

	return parseFieldReply(fields, raw)
}

func (c *Client) chatJSON(ctx context.Context, prompt string) (string, error) {
	request := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": prompt},
		},
		"temperature":     0,
		"response_format": map[string]string{"type": "json_object"},
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := c.postJSON(ctx, "/chat/completions", request, &response, "chat"); err != nil {
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("chat response has no choices")
	}
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}

// parseFieldReply validates the model output against a schema generated
// from the requested field list and flattens it to strings. Null and
// missing fields come out absent, never as the literal "null".
func parseFieldReply(fields []string, raw string) (map[string]string, error) {
	object := extractJSONObject(raw)

	schema, err := compileReplySchema(fields)
	if err != nil {
		return nil, fmt.Errorf("compile reply schema: %w", err)
	}

	var decoded any
	if err := json.Unmarshal([]byte(object), &decoded); err != nil {
		return nil, fmt.Errorf("parse chat json: %w", err)
	}
	if err := schema.Validate(decoded); err != nil {
		return nil, fmt.Errorf("chat reply rejected: %w", err)
	}

	values := make(map[string]string, len(fields))
	for name, v := range decoded.(map[string]any) {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			values[name] = s
		}
	}
	return values, nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
