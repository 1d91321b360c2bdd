package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// StatusError is returned when the endpoint answers with a non-2xx status.
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("invitation endpoint returned status %d", e.Status)
}

// HTTPDispatcher POSTs InvitationEmail as JSON to a fixed URL.
type HTTPDispatcher struct {
	client  *http.Client
	url     string
	headers map[string]string
}

// HTTPOption configures HTTPDispatcher.
type HTTPOption func(*HTTPDispatcher)

// WithTimeout replaces the client with one using timeout.
func WithTimeout(timeout time.Duration) HTTPOption {
	return func(d *HTTPDispatcher) {
		d.client = &http.Client{Timeout: timeout}
	}
}

// WithHeader sets a header sent on every request.
func WithHeader(key, value string) HTTPOption {
	return func(d *HTTPDispatcher) {
		if d.headers == nil {
			d.headers = make(map[string]string)
		}
		d.headers[key] = value
	}
}

// NewHTTPDispatcher returns a Dispatcher posting to url.
func NewHTTPDispatcher(url string, opts ...HTTPOption) *HTTPDispatcher {
	d := &HTTPDispatcher{
		client: &http.Client{Timeout: 10 * time.Second},
		url:    url,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SendInvitation implements Dispatcher.
func (d *HTTPDispatcher) SendInvitation(ctx context.Context, msg InvitationEmail, bearer string) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding invitation email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building invitation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range d.headers {
		req.Header.Set(k, v)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending invitation email: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Status: resp.StatusCode}
	}
	return nil
}

var _ Dispatcher = (*HTTPDispatcher)(nil)
