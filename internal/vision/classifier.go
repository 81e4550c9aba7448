// Package vision classifies camera snapshots with the Anthropic vision
// API.
package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/tidwall/gjson"

	"github.com/norm/trashminder/internal/monitor"
)

// DefaultModel is the default vision-capable model.
const DefaultModel = "claude-3-5-sonnet-20241022"

// detectionPrompt asks for a strict JSON verdict. The camera faces the
// property's own curb; bins across the street must not count.
const detectionPrompt = `You are looking at a snapshot from a fixed camera on a residential property, facing the street.

Decide whether a trash bin belonging to THIS property is positioned at or near the curb, ready for collection. Count only bins on the camera's side of the street, in the foreground. Ignore bins across the street, on neighboring properties, or in the background.

Respond with ONLY a JSON object, no prose and no code fences, in exactly this shape:
{"trash_bin_present": <true|false>, "confidence": "<high|medium|low>", "description": "<one short sentence about what you see>"}`

// Config holds classifier configuration.
type Config struct {
	// Model to use (defaults to DefaultModel)
	Model string

	// Max tokens for the verdict
	MaxTokens int

	// Retry settings
	MaxRetries     int
	RetryBaseDelay time.Duration

	// API key (if empty, uses ANTHROPIC_API_KEY env)
	APIKey string

	// Prompt override; empty uses the built-in detection prompt
	Prompt string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Model:          DefaultModel,
		MaxTokens:      200,
		MaxRetries:     3,
		RetryBaseDelay: time.Second,
	}
}

// Client wraps the Anthropic SDK for snapshot classification.
type Client struct {
	cfg    *Config
	client anthropic.Client
}

// New creates a classifier client. A missing API key is a configuration
// error; the caller treats it as startup-fatal.
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	apiKey, err := resolveAPIKey(cfg)
	if err != nil {
		return nil, fmt.Errorf("vision: %w", err)
	}

	return &Client{
		cfg:    cfg,
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
	}, nil
}

// Classify submits a JPEG snapshot and returns the model's verdict.
// Retries with exponential backoff on retryable failures. Malformed
// responses are errors; the orchestrator owns the fail-open policy.
func (c *Client) Classify(ctx context.Context, image []byte) (monitor.Verdict, error) {
	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.cfg.RetryBaseDelay * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-ctx.Done():
				return monitor.Verdict{}, ctx.Err()
			case <-time.After(delay):
			}
		}

		raw, err := c.doRequest(ctx, image)
		if err == nil {
			return parseVerdict(raw)
		}

		lastErr = err

		if !isRetryable(err) {
			return monitor.Verdict{}, err
		}
	}

	return monitor.Verdict{}, fmt.Errorf("vision: max retries exceeded: %w", lastErr)
}

// doRequest performs a single API request and returns the raw text reply.
func (c *Client) doRequest(ctx context.Context, image []byte) (string, error) {
	model := c.cfg.Model
	if model == "" {
		model = DefaultModel
	}

	maxTokens := c.cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 200
	}

	prompt := c.cfg.Prompt
	if prompt == "" {
		prompt = detectionPrompt
	}

	encoded := base64.StdEncoding.EncodeToString(image)

	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64("image/jpeg", encoded),
				anthropic.NewTextBlock(prompt),
			),
		},
	})
	if err != nil {
		return "", fmt.Errorf("vision request: %w", err)
	}

	var result strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			result.WriteString(block.Text)
		}
	}

	return result.String(), nil
}

// parseVerdict extracts the structured verdict from the model's reply.
func parseVerdict(raw string) (monitor.Verdict, error) {
	payload := extractJSON(raw)
	if payload == "" || !gjson.Valid(payload) {
		return monitor.Verdict{}, fmt.Errorf("vision: reply is not valid JSON: %q", truncate(raw, 120))
	}

	present := gjson.Get(payload, "trash_bin_present")
	confidence := gjson.Get(payload, "confidence")
	description := gjson.Get(payload, "description")
	if !present.Exists() || !confidence.Exists() {
		return monitor.Verdict{}, fmt.Errorf("vision: reply missing required fields: %q", truncate(raw, 120))
	}

	conf, err := monitor.ParseConfidence(confidence.String())
	if err != nil {
		return monitor.Verdict{}, fmt.Errorf("vision: %w", err)
	}

	return monitor.Verdict{
		Present:     present.Bool(),
		Confidence:  conf,
		Description: description.String(),
	}, nil
}

// extractJSON returns the first {...} object in the reply. Models
// occasionally wrap the object in code fences despite instructions.
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return raw[start : end+1]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// resolveAPIKey gets the API key from config or environment.
func resolveAPIKey(cfg *Config) (string, error) {
	if cfg.APIKey != "" {
		return cfg.APIKey, nil
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		return key, nil
	}
	return "", errors.New("no API key: set anthropic.api_key or ANTHROPIC_API_KEY")
}

// isRetryable checks if an error should be retried.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()

	if strings.Contains(errStr, "rate_limit") || strings.Contains(errStr, "429") {
		return true
	}
	if strings.Contains(errStr, "500") || strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") || strings.Contains(errStr, "504") {
		return true
	}
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline") {
		return true
	}

	return false
}
