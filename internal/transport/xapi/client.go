// Package xapi implements the two delivery channels to the X platform:
// the v2 JSON API ("rich") and the v1.1 form API ("legacy"). Both sign
// requests with OAuth 1.0a user context and share one client-side rate
// limiter, since they spend the same per-identity budget.
package xapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
	"golang.org/x/time/rate"

	"chirpd/internal/transport"
	logx "chirpd/pkg/logx"
)

const defaultBaseURL = "https://api.twitter.com"

// Credentials are the five required platform secrets.
type Credentials struct {
	APIKey       string
	APISecret    string
	AccessToken  string
	AccessSecret string
	BearerToken  string
}

// Validate reports every missing secret at once so the operator can fix
// them in one pass.
func (c Credentials) Validate() error {
	var missing []string
	if strings.TrimSpace(c.APIKey) == "" {
		missing = append(missing, "X_API_KEY")
	}
	if strings.TrimSpace(c.APISecret) == "" {
		missing = append(missing, "X_API_SECRET")
	}
	if strings.TrimSpace(c.AccessToken) == "" {
		missing = append(missing, "X_ACCESS_TOKEN")
	}
	if strings.TrimSpace(c.AccessSecret) == "" {
		missing = append(missing, "X_ACCESS_TOKEN_SECRET")
	}
	if strings.TrimSpace(c.BearerToken) == "" {
		missing = append(missing, "X_BEARER_TOKEN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing platform credentials: %s", strings.Join(missing, ", "))
	}
	return nil
}

type Config struct {
	Credentials Credentials

	// BaseURL overrides the API host (tests). Empty means the real platform.
	BaseURL string

	// HTTPClient overrides the OAuth-signing client (tests). When set,
	// requests are NOT signed.
	HTTPClient *http.Client

	// RequestsPerMin caps outbound calls across both channels.
	// Zero means 15 (the free-tier write budget is far below this anyway;
	// the limiter only smooths bursts, the platform still owns the truth).
	RequestsPerMin int

	Timeout time.Duration
}

// client is the shared base of both channels.
type client struct {
	http    *http.Client
	base    string
	limiter *rate.Limiter
	log     logx.Logger
}

// NewChannels builds both delivery channels over one shared client, so
// rich and legacy draw on the same request budget and limiter.
func NewChannels(cfg Config, log logx.Logger) (*Rich, *Legacy) {
	c := newClient(cfg, log)
	return &Rich{client: c}, &Legacy{client: c}
}

func newClient(cfg Config, log logx.Logger) *client {
	if log.IsZero() {
		log = logx.Nop()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	hc := cfg.HTTPClient
	if hc == nil {
		oc := oauth1.NewConfig(cfg.Credentials.APIKey, cfg.Credentials.APISecret)
		tok := oauth1.NewToken(cfg.Credentials.AccessToken, cfg.Credentials.AccessSecret)
		hc = oc.Client(oauth1.NoContext, tok)
	}
	hc.Timeout = timeout

	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}

	rpm := cfg.RequestsPerMin
	if rpm <= 0 {
		rpm = 15
	}

	return &client{
		http:    hc,
		base:    base,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm),
		log:     log,
	}
}

// do runs one signed request through the shared limiter and hands back the
// body for 2xx responses. Everything else comes back as a classified
// *transport.Error.
func (c *client) do(req *http.Request, channel string) ([]byte, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, &transport.Error{Channel: channel, Kind: transport.KindOther, Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &transport.Error{Channel: channel, Kind: transport.KindOther, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if err != nil {
		return nil, &transport.Error{Channel: channel, Kind: transport.KindOther, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}
	return nil, classify(channel, resp.StatusCode, body)
}

// classify maps an HTTP status to the tri-state failure taxonomy at the
// point of failure. Nothing downstream inspects response text.
func classify(channel string, status int, body []byte) *transport.Error {
	kind := transport.KindOther
	switch {
	case status == http.StatusTooManyRequests:
		kind = transport.KindRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = transport.KindAuth
	}
	return &transport.Error{
		Channel: channel,
		Kind:    kind,
		Status:  status,
		Detail:  excerpt(body),
	}
}

func excerpt(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "…"
	}
	return s
}

var errEmptyResponse = errors.New("empty response body")
