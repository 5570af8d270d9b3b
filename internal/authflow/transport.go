package authflow

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultHTTPTimeout bounds individual token-endpoint requests. The poll
// loop's own wall-clock bound is separate and much larger.
const DefaultHTTPTimeout = 30 * time.Second

// settings are the shared collaborator knobs for the acquirers. The clock
// and sleep functions are injectable so tests can drive the poll loop
// without real waiting.
type settings struct {
	client *http.Client
	logger *slog.Logger
	now    func() time.Time
	sleep  func(context.Context, time.Duration) error
}

func newSettings(opts ...Option) settings {
	s := settings{
		client: &http.Client{Timeout: DefaultHTTPTimeout},
		logger: slog.Default(),
		now:    time.Now,
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Option configures an acquirer or Manager.
type Option func(*settings)

// WithHTTPClient sets a custom HTTP client for token-endpoint requests.
func WithHTTPClient(client *http.Client) Option {
	return func(s *settings) {
		s.client = client
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithClock sets the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		s.now = now
	}
}

// WithSleep sets the function used to wait between polls. Intended for
// tests; the default honors context cancellation.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(s *settings) {
		s.sleep = sleep
	}
}

// postForm issues a form-encoded POST and returns the status code and the
// full response body. A non-nil error means no HTTP response was received.
func postForm(ctx context.Context, client *http.Client, endpoint string, data url.Values) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

// oauthError is the JSON body of a failed token-endpoint response
// (RFC 6749 section 5.2).
type oauthError struct {
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

// parseOAuthError decodes an error body on a best-effort basis; a body that
// is not JSON yields empty fields and the caller classifies by status alone.
func parseOAuthError(body []byte) oauthError {
	var oe oauthError
	_ = json.Unmarshal(body, &oe)
	return oe
}

// sleepContext waits for the given duration or until the context is done,
// whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
