package notify

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/valyala/bytebufferpool"
	"github.com/valyala/fasthttp"

	"github.com/clashintel/clan-intel/internal/domain/snapshot"
	idgen "github.com/clashintel/clan-intel/internal/platform/id"
	"github.com/clashintel/clan-intel/internal/platform/logging"
)

type WebhookSummarizerConfig struct {
	Endpoint string
	Token    string
	Timeout  time.Duration
}

// WebhookSummarizer posts a change list to an external endpoint and returns
// the narrative text the endpoint produces. Failures are returned to the
// caller, which falls back to a locally generated narrative.
type WebhookSummarizer struct {
	client   *fasthttp.Client
	endpoint string
	token    string
	timeout  time.Duration
	ids      idgen.Generator
	logger   *logging.Logger
}

func NewWebhookSummarizer(cfg WebhookSummarizerConfig, ids idgen.Generator, logger *logging.Logger) *WebhookSummarizer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if ids == nil {
		ids = idgen.NewRandomGenerator()
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &WebhookSummarizer{
		client: &fasthttp.Client{
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		},
		endpoint: strings.TrimSpace(cfg.Endpoint),
		token:    strings.TrimSpace(cfg.Token),
		timeout:  timeout,
		ids:      ids,
		logger:   logger,
	}
}

type summarizeRequest struct {
	ClanTag string            `json:"clanTag"`
	Date    string            `json:"date"`
	Changes []snapshot.Change `json:"changes"`
}

type summarizeResponse struct {
	Narrative string `json:"narrative"`
}

func (s *WebhookSummarizer) Summarize(ctx context.Context, clanTag string, date string, changes []snapshot.Change) (string, error) {
	endpoint, err := validateHTTPEndpoint(s.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid summarizer endpoint: %w", err)
	}

	payload := summarizeRequest{
		ClanTag: clanTag,
		Date:    date,
		Changes: changes,
	}
	body, err := sonic.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal summarize payload: %w", err)
	}

	deliveryID, err := s.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("generate delivery id: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(endpoint)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("X-Delivery-Id", deliveryID)
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	req.SetBody(body)

	deadline := time.Now().Add(s.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	s.logger.DebugContext(ctx, "summarizer webhook request", "clan_tag", clanTag, "date", date, "changes", len(changes), "delivery_id", deliveryID)

	if err := s.client.DoDeadline(req, resp, deadline); err != nil {
		return "", fmt.Errorf("post summarize webhook clan_tag=%s: %w", clanTag, err)
	}

	if resp.StatusCode()/100 != 2 {
		preview := bytebufferpool.Get()
		defer bytebufferpool.Put(preview)
		raw := resp.Body()
		if len(raw) > 2048 {
			raw = raw[:2048]
		}
		_, _ = preview.Write(raw)
		return "", fmt.Errorf("summarize webhook status=%d body=%s", resp.StatusCode(), strings.TrimSpace(preview.String()))
	}

	var decoded summarizeResponse
	if err := sonic.Unmarshal(resp.Body(), &decoded); err != nil {
		return "", fmt.Errorf("decode summarize response: %w", err)
	}

	narrative := strings.TrimSpace(decoded.Narrative)
	if narrative == "" {
		return "", fmt.Errorf("summarize webhook returned empty narrative")
	}

	s.logger.InfoContext(ctx, "summarizer webhook narrative received", "clan_tag", clanTag, "date", date, "delivery_id", deliveryID)
	return narrative, nil
}

func validateHTTPEndpoint(raw string) (string, error) {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return "", fmt.Errorf("value is empty")
	}

	parsed, err := url.Parse(candidate)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", candidate, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("%q uses unsupported scheme=%q; expected http or https", candidate, parsed.Scheme)
	}
	if strings.TrimSpace(parsed.Host) == "" {
		return "", fmt.Errorf("%q has empty host", candidate)
	}

	return candidate, nil
}
