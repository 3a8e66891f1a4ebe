// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm is the client for the local generative model behind the
// enrichment and identity-resolution passes. The model is treated as an
// oracle with a fixed output contract per task; a response that does not
// follow the contract is a failure, never a guess.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lxmgqq/Pediatric-Expert-Database/pkg/types"
)

const (
	// DefaultEndpoint is the local Ollama server.
	DefaultEndpoint = "http://localhost:11434"
	DefaultModel    = "deepseek-r1:70b"
	DefaultTimeout  = 300 * time.Second
)

// RetryDelay is the pause between generate attempts. Tests override it.
var RetryDelay = 2 * time.Second

// Client talks to an Ollama-compatible /api/generate endpoint.
type Client struct {
	cfg        types.LLMConfig
	httpClient *http.Client
}

// New returns a client for cfg, applying defaults for unset fields.
func New(cfg types.LLMConfig) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.1
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate sends prompt to the model and returns its full response text,
// retrying transient failures a bounded number of times.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.generateConforming(ctx, prompt, nil)
}

// generateConforming retries until the response both arrives and passes
// check. A response that breaks the task's output contract is as much a
// failed attempt as a failed call: the model is non-deterministic, so the
// next attempt may still produce a usable answer.
func (c *Client) generateConforming(ctx context.Context, prompt string, check func(string) error) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.cfg.RetryDelay
			if delay <= 0 {
				delay = RetryDelay
			}
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		out, err := c.generate(ctx, prompt)
		if err == nil && check != nil {
			err = check(out)
		}
		if err == nil {
			return out, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("after %d attempts: %w", c.cfg.MaxRetries+1, lastErr)
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  c.cfg.Model,
		Prompt: prompt,
		Stream: false,
		Options: map[string]any{
			"temperature": c.cfg.Temperature,
		},
	})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.Endpoint, "/")+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("model returned status %d", resp.StatusCode)
	}

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return "", fmt.Errorf("decoding model response: %w", err)
	}
	return strings.TrimSpace(gr.Response), nil
}

// contentLines splits a model response into trimmed non-empty lines,
// dropping code-fence noise the model sometimes emits despite the contract.
func contentLines(output string) []string {
	var lines []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.Contains(line, "```") {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
