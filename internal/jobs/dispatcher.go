package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/code-brew-house/brewy-backend/internal/config"
	"github.com/google/uuid"
)

// Sentinel errors for webhook dispatch failures.
var (
	ErrWebhookUnreachable = errors.New("webhook endpoint unreachable")
	ErrWebhookTimeout     = errors.New("webhook request timeout")
	ErrWebhookRejected    = errors.New("webhook endpoint rejected request")
)

const secretHeader = "X-Webhook-Secret"

// DispatchPayload is the outbound trigger sent to the workflow engine.
type DispatchPayload struct {
	JobID     uuid.UUID `json:"jobId"`
	FileURL   string    `json:"fileUrl"`
	Timestamp string    `json:"timestamp"`
}

// Dispatcher fires the trigger that hands a job to the workflow engine.
type Dispatcher interface {
	Dispatch(ctx context.Context, payload DispatchPayload) error
}

// HTTPDispatcher implements Dispatcher over a single HTTP POST with a bounded
// timeout. Any 2xx response is success; everything else is failure. There is
// no retry; retries are a caller-level concern.
type HTTPDispatcher struct {
	url    string
	secret string
	client *http.Client
}

// NewHTTPDispatcher creates an HTTPDispatcher from webhook configuration.
func NewHTTPDispatcher(cfg config.WebhookConfig) *HTTPDispatcher {
	return &HTTPDispatcher{
		url:    cfg.URL,
		secret: cfg.Secret,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (d *HTTPDispatcher) Dispatch(ctx context.Context, payload DispatchPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.secret != "" {
		req.Header.Set(secretHeader, d.secret)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrWebhookRejected, resp.StatusCode)
	}
	return nil
}

// classifyError maps transport errors onto sentinel errors.
func classifyError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrWebhookTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrWebhookTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrWebhookUnreachable, err)
}

// dispatchTimestamp formats the payload timestamp the workflow engine expects.
func dispatchTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
