package notifiers

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/infracollect/zipexport/internal/engine"
	"github.com/samber/lo"
)

const (
	HTTPKind       = "http"
	DefaultTimeout = 30 * time.Second

	// RunIDHeader carries the export run id on every callback.
	RunIDHeader = "X-Export-Run-Id"

	maxErrorBody = 512
)

var (
	defaultHeaders = map[string]string{
		"User-Agent":   "zipexport",
		"Content-Type": "application/json",
		"Accept":       "application/json",
	}
)

type HTTPConfig struct {
	URL      string
	Headers  map[string]string
	Timeout  time.Duration
	Insecure bool
}

// callbackPayload is the body of the completion callback.
type callbackPayload struct {
	ZipPath string `json:"zip_path"`
}

// HTTPNotifier sends a single PUT to a callback URL when an export completes.
type HTTPNotifier struct {
	url        *url.URL
	httpClient *http.Client
	headers    map[string]string
}

type HTTPOption func(*HTTPNotifier)

func WithHttpClient(httpClient *http.Client) HTTPOption {
	return func(n *HTTPNotifier) {
		n.httpClient = httpClient
	}
}

func NewHTTPNotifier(cfg HTTPConfig, opts ...HTTPOption) (*HTTPNotifier, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("callback url is required")
	}

	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse callback url '%s': %w", cfg.URL, err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("callback url must use http or https scheme, got: %s", parsedURL.Scheme)
	}

	notifier := &HTTPNotifier{
		url:     parsedURL,
		headers: lo.Assign(defaultHeaders, canonicalHeaders(cfg.Headers)),
	}

	for _, opt := range opts {
		opt(notifier)
	}

	if notifier.httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}

		transport := cleanhttp.DefaultPooledTransport()
		if cfg.Insecure {
			if transport.TLSClientConfig == nil {
				transport.TLSClientConfig = &tls.Config{}
			}

			transport.TLSClientConfig.InsecureSkipVerify = true
		}

		notifier.httpClient = &http.Client{
			Transport: transport,
			Timeout:   timeout,
		}
	}

	return notifier, nil
}

// canonicalHeaders keys headers by their canonical form so configured headers
// replace the defaults regardless of case.
func canonicalHeaders(headers map[string]string) map[string]string {
	return lo.MapKeys(headers, func(_ string, k string) string {
		return http.CanonicalHeaderKey(k)
	})
}

func (n *HTTPNotifier) Name() string {
	return fmt.Sprintf("%s(%s)", HTTPKind, n.url.Host)
}

func (n *HTTPNotifier) Kind() string {
	return HTTPKind
}

// Notify PUTs {"zip_path": ...} to the callback URL. Any non-2xx status is an error.
func (n *HTTPNotifier) Notify(ctx context.Context, notification engine.Notification) error {
	body, err := json.Marshal(callbackPayload{ZipPath: notification.ZipPath})
	if err != nil {
		return fmt.Errorf("failed to encode callback payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, n.url.String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	for k, v := range n.headers {
		req.Header.Set(k, v)
	}
	if notification.RunID != "" {
		req.Header.Set(RunIDHeader, notification.RunID)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send callback to %s: %w", n.url.Redacted(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("callback returned status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

var _ engine.Notifier = (*HTTPNotifier)(nil)
