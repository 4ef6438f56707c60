// Package endpoint holds the connection parameters for a realtime speech
// backend and knows how to turn them into a ready-to-dial WebSocket URL.
//
// The credential is embedded as a query parameter rather than a header: the
// protocol originated in environments where custom handshake headers cannot
// be set, and the backend accepts the api-key parameter over wss for exactly
// that reason. Validation reports structured reason codes (apiKey_missing,
// endpoint_invalid_url, …) so callers can surface them without string
// parsing.
package endpoint

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/coder/websocket"
)

// DefaultAPIVersion is used when Settings.APIVersion is empty.
const DefaultAPIVersion = "2024-10-01-preview"

// realtimePath is the backend's realtime endpoint path.
const realtimePath = "/openai/realtime"

// minKeyLength is a lightweight sanity bound on credential length.
const minKeyLength = 20

var apiVersionRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}(-preview)?$`)

// Settings are the validated connection parameters for one backend
// deployment. The zero value is invalid; populate at least Endpoint,
// Deployment and APIKey.
type Settings struct {
	// Endpoint is the resource root, e.g. "https://myres.openai.azure.com".
	Endpoint string

	// Deployment is the model deployment identifier.
	Deployment string

	// APIVersion is the protocol version; DefaultAPIVersion when empty.
	APIVersion string

	// APIKey is the credential embedded in the transport URL.
	APIKey string
}

// Validate checks every field and returns the full list of structured
// failure reasons. An empty slice means the settings are usable.
func (s Settings) Validate() []string {
	var reasons []string

	switch {
	case s.APIKey == "":
		reasons = append(reasons, "apiKey_missing")
	case len(s.APIKey) < minKeyLength:
		reasons = append(reasons, "apiKey_too_short")
	}

	if s.Endpoint == "" {
		reasons = append(reasons, "endpoint_missing")
	} else if u, err := url.Parse(s.Endpoint); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		reasons = append(reasons, "endpoint_invalid_url")
	}

	switch {
	case s.Deployment == "":
		reasons = append(reasons, "deployment_missing")
	case strings.ContainsAny(s.Deployment, " \t"):
		reasons = append(reasons, "deployment_invalid_chars")
	}

	if v := s.apiVersion(); !apiVersionRe.MatchString(v) {
		reasons = append(reasons, "apiversion_invalid_format")
	}

	return reasons
}

// WebSocketURL builds the wss (or ws, for plain-http endpoints) transport
// URL with api-version, deployment and the credential as query parameters.
// It fails with a missing_parameters error when Endpoint or Deployment is
// unset; it does not run full validation.
func (s Settings) WebSocketURL() (string, error) {
	if s.Endpoint == "" || s.Deployment == "" {
		return "", fmt.Errorf("endpoint: missing_parameters")
	}
	base, err := url.Parse(strings.TrimRight(s.Endpoint, "/") + realtimePath)
	if err != nil {
		return "", fmt.Errorf("endpoint: parse %q: %w", s.Endpoint, err)
	}
	switch base.Scheme {
	case "https":
		base.Scheme = "wss"
	case "http":
		base.Scheme = "ws"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("endpoint: unsupported scheme %q", base.Scheme)
	}

	q := base.Query()
	q.Set("api-version", s.apiVersion())
	q.Set("deployment", s.Deployment)
	if s.APIKey != "" {
		q.Set("api-key", s.APIKey)
	}
	base.RawQuery = q.Encode()
	return base.String(), nil
}

// MaskedKey returns the credential with all but the first and last four
// characters replaced, for logs and UI snapshots. Short keys are fully
// masked.
func (s Settings) MaskedKey() string {
	k := s.APIKey
	if k == "" {
		return ""
	}
	if len(k) <= 8 {
		return strings.Repeat("•", len(k))
	}
	return k[:4] + strings.Repeat("•", len(k)-8) + k[len(k)-4:]
}

func (s Settings) apiVersion() string {
	if s.APIVersion == "" {
		return DefaultAPIVersion
	}
	return s.APIVersion
}

// ParseURL extracts Settings from a pasted realtime URL of the form
// https://{resource}/openai/realtime?api-version=...&deployment=... — the
// credential is never part of such URLs and is left empty.
func ParseURL(raw string) (Settings, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Settings{}, fmt.Errorf("endpoint: parse url: %w", err)
	}
	if !strings.HasSuffix(strings.TrimRight(u.Path, "/"), realtimePath) {
		return Settings{}, fmt.Errorf("endpoint: %q is not a realtime url", raw)
	}
	q := u.Query()
	s := Settings{
		Endpoint:   u.Scheme + "://" + u.Host,
		Deployment: q.Get("deployment"),
		APIVersion: q.Get("api-version"),
	}
	if s.Deployment == "" {
		return Settings{}, fmt.Errorf("endpoint: url missing deployment parameter")
	}
	return s, nil
}

// Probe performs a best-effort connection test: it dials the transport URL
// and reports success as soon as the handshake completes, closing the socket
// immediately. Failures are returned with the same structured codes the call
// core uses (missing_parameters, timeout, websocket_error).
func Probe(ctx context.Context, s Settings, timeout time.Duration) error {
	wsURL, err := s.WebSocketURL()
	if err != nil {
		return err
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("endpoint: timeout: %w", ctx.Err())
		}
		return fmt.Errorf("endpoint: websocket_error: %w", err)
	}
	conn.Close(websocket.StatusNormalClosure, "probe complete")
	return nil
}
