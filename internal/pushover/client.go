// Package pushover delivers push notifications through the Pushover
// messages API.
package pushover

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/norm/trashminder/internal/monitor"
)

// DefaultAPIURL is the Pushover messages endpoint.
const DefaultAPIURL = "https://api.pushover.net/1/messages.json"

const (
	defaultTimeout = 10 * time.Second

	// Emergency-priority redelivery cadence and give-up horizon.
	defaultRetry  = 60 * time.Second
	defaultExpire = time.Hour
)

// Config holds Pushover client configuration.
type Config struct {
	// Token is the application API token
	Token string

	// UserKey identifies the receiving user or group
	UserKey string

	// APIURL overrides the endpoint (tests)
	APIURL string

	// Timeout bounds each delivery attempt (default 10s)
	Timeout time.Duration

	// Retry and Expire control emergency-priority redelivery
	Retry  time.Duration
	Expire time.Duration
}

// Client implements monitor.Notifier against the Pushover API.
type Client struct {
	cfg   Config
	httpc *http.Client
}

// New creates a Pushover client. Missing credentials are a configuration
// error; the caller treats them as startup-fatal.
func New(cfg Config) (*Client, error) {
	if cfg.Token == "" || cfg.UserKey == "" {
		return nil, errors.New("pushover: missing api token or user key")
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Retry <= 0 {
		cfg.Retry = defaultRetry
	}
	if cfg.Expire <= 0 {
		cfg.Expire = defaultExpire
	}

	return &Client{
		cfg:   cfg,
		httpc: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Notify delivers one notification. Emergency priority carries the
// retry/expire parameters so Pushover keeps re-alerting until the user
// acknowledges or the window of usefulness passes.
func (c *Client) Notify(ctx context.Context, n monitor.Notification) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	fields := map[string]string{
		"token":    c.cfg.Token,
		"user":     c.cfg.UserKey,
		"title":    n.Title,
		"message":  n.Message,
		"priority": strconv.Itoa(int(n.Priority)),
		"sound":    "pushover",
	}
	if n.Priority == monitor.PriorityEmergency {
		fields["retry"] = strconv.Itoa(int(c.cfg.Retry.Seconds()))
		fields["expire"] = strconv.Itoa(int(c.cfg.Expire.Seconds()))
	}
	for key, val := range fields {
		if err := writer.WriteField(key, val); err != nil {
			return fmt.Errorf("pushover: write field %s: %w", key, err)
		}
	}

	if len(n.Image) > 0 {
		part, err := writer.CreateFormFile("attachment", "camera_snapshot.jpg")
		if err != nil {
			return fmt.Errorf("pushover: attachment: %w", err)
		}
		if _, err := part.Write(n.Image); err != nil {
			return fmt.Errorf("pushover: attachment write: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("pushover: finalize body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, &body)
	if err != nil {
		return fmt.Errorf("pushover: request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("pushover: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("pushover: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
