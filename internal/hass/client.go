// Package hass talks to the Home Assistant REST API: camera snapshots in,
// presence entity state out.
package hass

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/sjson"

	"github.com/norm/trashminder/internal/monitor"
)

// DefaultBaseURL is the supervisor proxy address used when running as a
// Home Assistant add-on.
const DefaultBaseURL = "http://supervisor/core"

const defaultTimeout = 10 * time.Second

// Config holds Home Assistant client configuration.
type Config struct {
	// BaseURL of the Home Assistant core API (no trailing slash needed)
	BaseURL string

	// Token is the supervisor or long-lived access token
	Token string

	// CameraEntity is the camera to snapshot, e.g. "camera.front_yard"
	CameraEntity string

	// PresenceEntity is the binary_sensor mirroring detection state
	PresenceEntity string

	// Timeout bounds each API call (default 10s)
	Timeout time.Duration
}

// Client implements monitor.Camera and monitor.PresenceStore against the
// Home Assistant REST API.
type Client struct {
	cfg   Config
	httpc *http.Client
}

// New creates a Home Assistant client. A missing token is a configuration
// error; the caller treats it as startup-fatal.
func New(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, errors.New("hass: missing access token")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	return &Client{
		cfg:   cfg,
		httpc: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Snapshot fetches the current JPEG frame for the configured camera.
func (c *Client) Snapshot(ctx context.Context) ([]byte, error) {
	url := c.cfg.BaseURL + "/api/camera_proxy/" + c.cfg.CameraEntity

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("hass: snapshot request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hass: snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("hass: snapshot: camera API status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("hass: snapshot read: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("hass: snapshot: empty image")
	}
	return data, nil
}

// SetPresence mirrors a presence snapshot into the configured
// binary_sensor entity. The entity state is on/off; lifecycle and verdict
// detail travel as attributes, with the icon doubling as the absent
// display hint.
func (c *Client) SetPresence(ctx context.Context, snap monitor.PresenceSnapshot) error {
	state := "off"
	if snap.Present {
		state = "on"
	}

	icon := "mdi:trash-can-outline"
	if snap.Present {
		icon = "mdi:trash-can"
	}

	body, _ := sjson.Set("", "state", state)
	body, _ = sjson.Set(body, "attributes.friendly_name", "Trash Bin at Curb")
	body, _ = sjson.Set(body, "attributes.device_class", "presence")
	body, _ = sjson.Set(body, "attributes.icon", icon)
	body, _ = sjson.Set(body, "attributes.detected", snap.Present)
	body, _ = sjson.Set(body, "attributes.phase", string(snap.Phase))
	body, _ = sjson.Set(body, "attributes.description", snap.Description)
	if snap.Confidence != monitor.ConfidenceNone {
		body, _ = sjson.Set(body, "attributes.confidence", string(snap.Confidence))
	}
	if !snap.LastChecked.IsZero() {
		body, _ = sjson.Set(body, "attributes.last_checked", snap.LastChecked.Format("2006-01-02 15:04:05"))
	}

	url := c.cfg.BaseURL + "/api/states/" + c.cfg.PresenceEntity

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("hass: set state request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("hass: set state: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("hass: set state: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
