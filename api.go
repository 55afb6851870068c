package socketmode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	// DefaultAPIURL is the base URL of the Slack Web API.
	DefaultAPIURL = "https://slack.com/api/"

	openConnectionMethod = "apps.connections.open"

	envAppToken = "SLACK_APP_TOKEN"
	envAPIURL   = "SLACK_API_URL"
)

// ConnectionOpener requests a websocket URL for a new session.
type ConnectionOpener interface {
	OpenConnection(ctx context.Context) (*OpenConnectionResponse, error)
}

// OpenConnectionResponse is the apps.connections.open response.
type OpenConnectionResponse struct {
	OK    bool   `json:"ok"`
	URL   string `json:"url,omitempty"`
	Error string `json:"error,omitempty"`
}

// WebClientConfig configures a WebClient.
type WebClientConfig struct {
	// Token is the app-level token (xapp-...).
	// Fallback: SLACK_APP_TOKEN environment variable.
	Token string

	// APIURL is the Web API base URL.
	// Fallback: SLACK_API_URL environment variable, then DefaultAPIURL.
	APIURL string

	// HTTPClient is used for API calls. Defaults to a client with a 30s timeout.
	HTTPClient *http.Client
}

// resolveWebClientConfig fills empty fields from the environment and validates them.
func resolveWebClientConfig(cfg WebClientConfig) (WebClientConfig, error) {
	if cfg.Token == "" {
		cfg.Token = os.Getenv(envAppToken)
	}
	if cfg.APIURL == "" {
		cfg.APIURL = os.Getenv(envAPIURL)
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if !strings.HasSuffix(cfg.APIURL, "/") {
		cfg.APIURL += "/"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	if cfg.Token == "" {
		return cfg, fmt.Errorf("socketmode: app token is required (set in WebClientConfig or %s env)", envAppToken)
	}
	return cfg, nil
}

// WebClient calls the Slack Web API.
type WebClient struct {
	cfg WebClientConfig
}

// NewWebClient creates a WebClient.
func NewWebClient(cfg WebClientConfig) (*WebClient, error) {
	resolved, err := resolveWebClientConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &WebClient{cfg: resolved}, nil
}

// OpenConnection calls apps.connections.open. A response with ok=false is
// returned as is; only transport and HTTP failures are errors.
func (w *WebClient) OpenConnection(ctx context.Context) (*OpenConnectionResponse, error) {
	endpoint := w.cfg.APIURL + openConnectionMethod

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, &ConnectionError{Op: "open", URL: endpoint, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+w.cfg.Token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := w.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, &ConnectionError{Op: "open", URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &ConnectionError{Op: "open", URL: endpoint, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	var out OpenConnectionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &ConnectionError{Op: "open", URL: endpoint, Err: err}
	}
	return &out, nil
}
