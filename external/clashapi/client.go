package clashapi

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/clashintel/clan-intel/internal/platform/logging"
	"github.com/clashintel/clan-intel/internal/platform/ratelimit"
	"github.com/clashintel/clan-intel/internal/platform/resilience"
	"github.com/clashintel/clan-intel/internal/usecase"
)

const (
	defaultBaseURL     = "https://api.clashofclans.com/v1"
	defaultWarLogLimit = 10
)

var bearerTokenRegex = regexp.MustCompile(`(?i)bearer\s+[^\s"']+`)
var errClashTransient = crerr.New("clash api transient failure")

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	Token          string
	Timeout        time.Duration
	MaxRetries     int
	Gate           *ratelimit.Gate
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

type Client struct {
	httpClient     *http.Client
	baseURL        string
	token          string
	maxRetries     int
	gate           *ratelimit.Gate
	logger         *logging.Logger
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
	flight         resilience.SingleFlight
}

// NewHTTPClient builds the transport the game API requires: the API keys
// are bound to IPv4 addresses, so dialing is pinned to tcp4.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		return dialer.DialContext(ctx, "tcp4", addr)
	}

	return &http.Client{
		Transport: otelhttp.NewTransport(transport),
		Timeout:   timeout,
	}
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = NewHTTPClient(cfg.Timeout)
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 20 * time.Second
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		token:          strings.TrimSpace(cfg.Token),
		maxRetries:     maxInt(cfg.MaxRetries, 0),
		gate:           cfg.Gate,
		logger:         logger,
		breaker:        resilience.NewCircuitBreaker(breakerCfg.FailureThreshold, breakerCfg.OpenTimeout, breakerCfg.HalfOpenMaxReq),
		circuitEnabled: breakerCfg.Enabled,
	}
}

// encodeTag percent-encodes a player or clan tag for use as a path segment,
// e.g. #2PP -> %232PP.
func encodeTag(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag != "" && !strings.HasPrefix(tag, "#") {
		tag = "#" + tag
	}
	return url.PathEscape(tag)
}

func (c *Client) FetchClan(ctx context.Context, clanTag string) (usecase.ExternalClan, error) {
	path := "/clans/" + encodeTag(clanTag)

	var payload clanPayload
	if _, err := c.doJSON(ctx, path, nil, &payload); err != nil {
		return usecase.ExternalClan{}, fmt.Errorf("fetch clan tag=%s: %w", clanTag, err)
	}
	return mapClan(payload), nil
}

func (c *Client) FetchMembers(ctx context.Context, clanTag string) ([]usecase.ExternalMember, error) {
	path := "/clans/" + encodeTag(clanTag) + "/members"

	var envelope memberListEnvelope
	if _, err := c.doJSON(ctx, path, nil, &envelope); err != nil {
		return nil, fmt.Errorf("fetch clan members tag=%s: %w", clanTag, err)
	}
	return mapMembers(envelope.Items), nil
}

func (c *Client) FetchPlayer(ctx context.Context, playerTag string) (usecase.ExternalPlayer, error) {
	path := "/players/" + encodeTag(playerTag)

	var payload playerPayload
	if _, err := c.doJSON(ctx, path, nil, &payload); err != nil {
		return usecase.ExternalPlayer{}, fmt.Errorf("fetch player tag=%s: %w", playerTag, err)
	}
	return mapPlayer(payload), nil
}

func (c *Client) FetchWarLog(ctx context.Context, clanTag string, limit int) ([]usecase.ExternalWar, []byte, error) {
	if limit <= 0 {
		limit = defaultWarLogLimit
	}
	path := "/clans/" + encodeTag(clanTag) + "/warlog"
	query := map[string]string{"limit": strconv.Itoa(limit)}

	var envelope warLogEnvelope
	raw, err := c.doJSON(ctx, path, query, &envelope)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch war log tag=%s: %w", clanTag, err)
	}

	wars := make([]usecase.ExternalWar, 0, len(envelope.Items))
	for _, item := range envelope.Items {
		wars = append(wars, mapWar(item, nil))
	}
	return wars, raw, nil
}

func (c *Client) FetchCurrentWar(ctx context.Context, clanTag string) (usecase.ExternalWar, []byte, error) {
	path := "/clans/" + encodeTag(clanTag) + "/currentwar"

	var payload warPayload
	raw, err := c.doJSON(ctx, path, nil, &payload)
	if err != nil {
		return usecase.ExternalWar{}, nil, fmt.Errorf("fetch current war tag=%s: %w", clanTag, err)
	}
	return mapWar(payload, raw), raw, nil
}

func (c *Client) FetchCapitalRaidSeasons(ctx context.Context, clanTag string, limit int) ([]usecase.ExternalCapitalSeason, []byte, error) {
	if limit <= 0 {
		limit = 3
	}
	path := "/clans/" + encodeTag(clanTag) + "/capitalraidseasons"
	query := map[string]string{"limit": strconv.Itoa(limit)}

	var envelope capitalSeasonsEnvelope
	raw, err := c.doJSON(ctx, path, query, &envelope)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch capital raid seasons tag=%s: %w", clanTag, err)
	}
	return mapCapitalSeasons(envelope.Items), raw, nil
}

func (c *Client) doJSON(ctx context.Context, path string, query map[string]string, target any) ([]byte, error) {
	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "clash api circuit breaker rejected request", "state", c.breaker.State())
			return nil, fmt.Errorf("%w: game data provider is temporarily unavailable", usecase.ErrDependencyUnavailable)
		}
	}

	values := url.Values{}
	for key, value := range query {
		values.Set(key, value)
	}

	fullURL := c.baseURL + path
	if encoded := values.Encode(); encoded != "" {
		fullURL += "?" + encoded
	}

	key := path + "?" + values.Encode()
	out, err, _ := c.flight.Do(key, func() (any, error) {
		raw, reqErr := c.executeRequest(ctx, fullURL)
		if c.circuitEnabled {
			if reqErr != nil && isClashCircuitFailure(reqErr) {
				c.breaker.RecordFailure()
			} else {
				c.breaker.RecordSuccess()
			}
		}
		return raw, reqErr
	})
	if err != nil {
		return nil, err
	}

	raw, ok := out.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected response payload type %T", out)
	}

	if err := sonic.Unmarshal(raw, target); err != nil {
		return nil, fmt.Errorf("decode provider payload: %w", err)
	}

	return raw, nil
}

func (c *Client) executeRequest(ctx context.Context, fullURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		raw, err := c.doOnce(ctx, fullURL)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if !stderrors.Is(err, errClashTransient) {
			return nil, err
		}

		if attempt == c.maxRetries {
			break
		}
		backoff := time.Duration(attempt+1) * time.Second
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("provider request failed")
	}
	c.logger.WarnContext(ctx, "clash api request failed", "url", fullURL, "error", lastErr)
	return nil, lastErr
}

// doOnce performs a single gated request attempt. The gate slot is held
// for the duration of the HTTP exchange and released on every path.
func (c *Client) doOnce(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	if c.token != "" {
		req.Header.Set("authorization", "Bearer "+c.token)
	}

	if c.gate != nil {
		if err := c.gate.Acquire(ctx); err != nil {
			return nil, fmt.Errorf("acquire rate gate: %w", err)
		}
		defer c.gate.Release()
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: send request: %s", errClashTransient, sanitizeSensitiveText(err.Error(), c.token))
	}

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 6<<20))
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, fmt.Errorf("%w: read response body: %v", errClashTransient, readErr)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return raw, nil
	}
	if isRetryableStatus(resp.StatusCode) {
		return nil, fmt.Errorf("%w: provider status=%d body=%s", errClashTransient, resp.StatusCode, abbreviateBody(raw))
	}
	return nil, fmt.Errorf("provider status=%d body=%s", resp.StatusCode, abbreviateBody(raw))
}

func sanitizeSensitiveText(value, token string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	if token != "" {
		value = strings.ReplaceAll(value, token, "REDACTED")
	}
	value = bearerTokenRegex.ReplaceAllString(value, "Bearer REDACTED")
	return value
}

func isClashCircuitFailure(err error) bool {
	if err == nil {
		return false
	}
	return stderrors.Is(err, errClashTransient)
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func abbreviateBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) <= 240 {
		return text
	}
	return text[:240] + "..."
}

func maxInt(left, right int) int {
	if left > right {
		return left
	}
	return right
}
