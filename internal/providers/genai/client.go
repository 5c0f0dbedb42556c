package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"studio/internal/domain"
	"studio/internal/infra"
)

const (
	defaultBaseURL      = "https://generativelanguage.googleapis.com/v1beta"
	defaultPollInterval = 10 * time.Second
)

// KeySource yields the API key at call time so a key selected after start-up
// is picked up without a restart.
type KeySource interface {
	GeminiAPIKey(ctx context.Context) (string, error)
}

// Options controls how the Veo client is configured.
type Options struct {
	APIKey       string
	Keys         KeySource
	BaseURL      string
	HTTPClient   *http.Client
	Logger       *infra.Logger
	PollInterval time.Duration
	// MaxWait bounds a single generation including polling. Zero waits
	// until the context ends.
	MaxWait time.Duration
	// Synthetic renders local placeholder clips when no key is available
	// instead of failing with ErrMissingAPIKey.
	Synthetic bool
}

// Client submits long-running Veo jobs, polls them to completion and
// downloads the resulting media.
type Client struct {
	apiKey       string
	keys         KeySource
	baseURL      string
	httpClient   *http.Client
	logger       infra.Logger
	pollInterval time.Duration
	maxWait      time.Duration
	synthetic    bool
}

// Video is one downloaded generation result. URI is the remote reference
// used for extensions.
type Video struct {
	URI  string
	MIME string
	Data []byte
}

// NewClient constructs a client. A nil HTTP client gets one with a generous
// timeout since downloads can be large.
func NewClient(opts Options) *Client {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	logger := infra.NopLogger()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	return &Client{
		apiKey:       strings.TrimSpace(opts.APIKey),
		keys:         opts.Keys,
		baseURL:      baseURL,
		httpClient:   client,
		logger:       infra.Component(logger, "genai"),
		pollInterval: poll,
		maxWait:      opts.MaxWait,
		synthetic:    opts.Synthetic,
	}
}

// Generate runs one request end to end: submit, poll until done, download
// every returned sample.
func (c *Client) Generate(ctx context.Context, req domain.GenerationRequest) ([]Video, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, err := c.key(ctx)
	if err != nil {
		return nil, err
	}
	if key == "" {
		if c.synthetic {
			return c.syntheticVideos(req)
		}
		return nil, domain.ErrMissingAPIKey
	}

	if c.maxWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.maxWait)
		defer cancel()
	}

	op, err := c.Submit(ctx, key, req)
	if err != nil {
		return nil, err
	}
	c.logger.Info().
		Str("operation", op.Name).
		Str("mode", string(req.Mode())).
		Str("model", string(req.Options().Model)).
		Msg("generation submitted")

	op, err = c.Poll(ctx, key, op)
	if err != nil {
		return nil, err
	}
	uris, err := op.videoURIs()
	if err != nil {
		return nil, err
	}
	return c.Download(ctx, key, uris)
}

func (c *Client) key(ctx context.Context) (string, error) {
	if c.apiKey != "" {
		return c.apiKey, nil
	}
	if c.keys == nil {
		return "", nil
	}
	key, err := c.keys.GeminiAPIKey(ctx)
	if err != nil {
		return "", fmt.Errorf("load api key: %w", err)
	}
	return strings.TrimSpace(key), nil
}

func (c *Client) invoke(ctx context.Context, method, path, key string, payload any, out any) error {
	endpoint := c.baseURL + "/" + strings.TrimLeft(path, "/")
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	q := req.URL.Query()
	q.Set("key", key)
	req.URL.RawQuery = q.Encode()
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invoke veo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode veo response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var apiErr struct {
		Error apiStatus `json:"error"`
	}
	if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Message != "" {
		if apiErr.Error.Code == 0 {
			apiErr.Error.Code = resp.StatusCode
		}
		return ClassifyError(apiErr.Error.Code, apiErr.Error.Status, apiErr.Error.Message)
	}
	msg := strings.TrimSpace(string(data))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return ClassifyError(resp.StatusCode, "", msg)
}

// downloadFile fetches a result URI with the API key appended to its query.
func (c *Client) downloadFile(ctx context.Context, key, uri string) ([]byte, string, error) {
	target := uri
	if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
		target = c.baseURL + "/" + strings.TrimLeft(uri, "/")
	}
	u, err := url.Parse(target)
	if err != nil {
		return nil, "", fmt.Errorf("parse download uri: %w", err)
	}
	q := u.Query()
	q.Set("key", key)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("create download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download video: %w", err)
	}
	defer resp.Body.Close()

	// A missing result file is not a credential problem, so the status is
	// reported without classification.
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, "", ClassifyError(0, "", fmt.Sprintf("fetch failed: %d", resp.StatusCode))
	}
	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read video: %w", err)
	}
	return blob, resp.Header.Get("Content-Type"), nil
}
