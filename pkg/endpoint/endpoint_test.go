package endpoint_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/acoustad/voxcall/pkg/endpoint"
)

const testKey = "abcdefghijklmnopqrstuvwx"

func validSettings() endpoint.Settings {
	return endpoint.Settings{
		Endpoint:   "https://myres.openai.azure.com",
		Deployment: "gpt-realtime",
		APIVersion: "2024-10-01-preview",
		APIKey:     testKey,
	}
}

// ── Validate ──────────────────────────────────────────────────────────────────

func TestValidate_ValidSettings(t *testing.T) {
	t.Parallel()

	if reasons := validSettings().Validate(); len(reasons) != 0 {
		t.Errorf("valid settings produced reasons %v", reasons)
	}
}

func TestValidate_ReasonCodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*endpoint.Settings)
		want   string
	}{
		{"missing key", func(s *endpoint.Settings) { s.APIKey = "" }, "apiKey_missing"},
		{"short key", func(s *endpoint.Settings) { s.APIKey = "tooshort" }, "apiKey_too_short"},
		{"missing endpoint", func(s *endpoint.Settings) { s.Endpoint = "" }, "endpoint_missing"},
		{"bad endpoint scheme", func(s *endpoint.Settings) { s.Endpoint = "ftp://x" }, "endpoint_invalid_url"},
		{"endpoint without host", func(s *endpoint.Settings) { s.Endpoint = "https://" }, "endpoint_invalid_url"},
		{"missing deployment", func(s *endpoint.Settings) { s.Deployment = "" }, "deployment_missing"},
		{"deployment with spaces", func(s *endpoint.Settings) { s.Deployment = "my model" }, "deployment_invalid_chars"},
		{"bad api version", func(s *endpoint.Settings) { s.APIVersion = "v1" }, "apiversion_invalid_format"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := validSettings()
			tc.mutate(&s)
			reasons := s.Validate()
			if !slices.Contains(reasons, tc.want) {
				t.Errorf("reasons = %v; want to contain %q", reasons, tc.want)
			}
		})
	}
}

func TestValidate_CollectsAllReasons(t *testing.T) {
	t.Parallel()

	reasons := endpoint.Settings{}.Validate()
	for _, want := range []string{"apiKey_missing", "endpoint_missing", "deployment_missing"} {
		if !slices.Contains(reasons, want) {
			t.Errorf("reasons = %v; want to contain %q", reasons, want)
		}
	}
}

func TestValidate_EmptyAPIVersionUsesDefault(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.APIVersion = ""
	if reasons := s.Validate(); len(reasons) != 0 {
		t.Errorf("empty api version should fall back to default; got %v", reasons)
	}
}

func TestValidate_PreviewSuffixAccepted(t *testing.T) {
	t.Parallel()

	for _, v := range []string{"2024-10-01", "2024-10-01-preview"} {
		s := validSettings()
		s.APIVersion = v
		if reasons := s.Validate(); len(reasons) != 0 {
			t.Errorf("version %q rejected: %v", v, reasons)
		}
	}
}

// ── WebSocketURL ──────────────────────────────────────────────────────────────

func TestWebSocketURL_BuildsExpectedURL(t *testing.T) {
	t.Parallel()

	raw, err := validSettings().WebSocketURL()
	if err != nil {
		t.Fatalf("WebSocketURL: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse result: %v", err)
	}

	if u.Scheme != "wss" {
		t.Errorf("scheme = %q; want wss", u.Scheme)
	}
	if u.Host != "myres.openai.azure.com" {
		t.Errorf("host = %q", u.Host)
	}
	if u.Path != "/openai/realtime" {
		t.Errorf("path = %q; want /openai/realtime", u.Path)
	}
	q := u.Query()
	if got := q.Get("api-version"); got != "2024-10-01-preview" {
		t.Errorf("api-version = %q", got)
	}
	if got := q.Get("deployment"); got != "gpt-realtime" {
		t.Errorf("deployment = %q", got)
	}
	if got := q.Get("api-key"); got != testKey {
		t.Errorf("api-key = %q", got)
	}
}

func TestWebSocketURL_SchemeMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		endpoint string
		want     string
	}{
		{"https://res.example.com", "wss"},
		{"http://localhost:8080", "ws"},
		{"wss://res.example.com", "wss"},
		{"ws://localhost:8080", "ws"},
	}
	for _, tc := range tests {
		tc := tc
		s := validSettings()
		s.Endpoint = tc.endpoint
		raw, err := s.WebSocketURL()
		if err != nil {
			t.Fatalf("WebSocketURL(%q): %v", tc.endpoint, err)
		}
		if !strings.HasPrefix(raw, tc.want+"://") {
			t.Errorf("url for %q = %q; want scheme %q", tc.endpoint, raw, tc.want)
		}
	}
}

func TestWebSocketURL_MissingParameters(t *testing.T) {
	t.Parallel()

	for _, mutate := range []func(*endpoint.Settings){
		func(s *endpoint.Settings) { s.Endpoint = "" },
		func(s *endpoint.Settings) { s.Deployment = "" },
	} {
		s := validSettings()
		mutate(&s)
		if _, err := s.WebSocketURL(); err == nil {
			t.Error("expected missing_parameters error")
		} else if !strings.Contains(err.Error(), "missing_parameters") {
			t.Errorf("error = %v; want missing_parameters", err)
		}
	}
}

func TestWebSocketURL_TrailingSlashAndEmptyKey(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.Endpoint = "https://res.example.com/"
	s.APIKey = ""
	raw, err := s.WebSocketURL()
	if err != nil {
		t.Fatalf("WebSocketURL: %v", err)
	}
	u, _ := url.Parse(raw)
	if u.Path != "/openai/realtime" {
		t.Errorf("path = %q; want /openai/realtime", u.Path)
	}
	if _, present := u.Query()["api-key"]; present {
		t.Error("empty api key should not appear in the URL")
	}
}

// ── MaskedKey ─────────────────────────────────────────────────────────────────

func TestMaskedKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		key  string
		want string
	}{
		{"empty", "", ""},
		{"short fully masked", "abcdefgh", "••••••••"},
		{"long shows edges", "abcd1234efgh5678ijkl", "abcd" + strings.Repeat("•", 12) + "ijkl"},
	}
	for _, tc := range tests {
		tc := tc
		s := endpoint.Settings{APIKey: tc.key}
		if got := s.MaskedKey(); got != tc.want {
			t.Errorf("%s: MaskedKey() = %q; want %q", tc.name, got, tc.want)
		}
	}
}

// ── ParseURL ──────────────────────────────────────────────────────────────────

func TestParseURL_ExtractsSettings(t *testing.T) {
	t.Parallel()

	s, err := endpoint.ParseURL("https://myres.openai.azure.com/openai/realtime?api-version=2024-10-01-preview&deployment=gpt-realtime")
	if err != nil {
		t.Fatalf("ParseURL: %v", err)
	}
	if s.Endpoint != "https://myres.openai.azure.com" {
		t.Errorf("endpoint = %q", s.Endpoint)
	}
	if s.Deployment != "gpt-realtime" {
		t.Errorf("deployment = %q", s.Deployment)
	}
	if s.APIVersion != "2024-10-01-preview" {
		t.Errorf("api version = %q", s.APIVersion)
	}
	if s.APIKey != "" {
		t.Error("ParseURL should never produce a credential")
	}
}

func TestParseURL_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
	}{
		{"wrong path", "https://myres.example.com/v1/chat"},
		{"missing deployment", "https://myres.example.com/openai/realtime?api-version=2024-10-01"},
	}
	for _, tc := range tests {
		tc := tc
		if _, err := endpoint.ParseURL(tc.raw); err == nil {
			t.Errorf("%s: ParseURL(%q) succeeded; want error", tc.name, tc.raw)
		}
	}
}

// ── Probe ─────────────────────────────────────────────────────────────────────

func TestProbe_SucceedsAgainstLiveServer(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		<-conn.CloseRead(context.Background()).Done()
	}))
	t.Cleanup(srv.Close)

	s := validSettings()
	s.Endpoint = srv.URL
	if err := endpoint.Probe(context.Background(), s, 3*time.Second); err != nil {
		t.Errorf("Probe: %v", err)
	}
}

func TestProbe_MissingParameters(t *testing.T) {
	t.Parallel()

	err := endpoint.Probe(context.Background(), endpoint.Settings{}, time.Second)
	if err == nil || !strings.Contains(err.Error(), "missing_parameters") {
		t.Errorf("error = %v; want missing_parameters", err)
	}
}

func TestProbe_UnreachableHost(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.Endpoint = "http://127.0.0.1:1"
	err := endpoint.Probe(context.Background(), s, 2*time.Second)
	if err == nil {
		t.Fatal("expected probe failure for unreachable host")
	}
}
