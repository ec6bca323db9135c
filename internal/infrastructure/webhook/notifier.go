package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"FeedAggregator/internal/domain"
	"FeedAggregator/internal/ports"
)

const runEvent = "feeds.run.completed"

// Notifier posts every run outcome to a downstream endpoint as JSON.
type Notifier struct {
	endpoint string
	client   *http.Client
}

var _ ports.TouchNotifier = (*Notifier)(nil)

type payload struct {
	Event string `json:"event"`
	domain.RunResult
}

// NewNotifier registers the target url; timeout <= 0 means 10s.
func NewNotifier(endpoint string, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// NotifyRun posts the run result; any non-2xx answer is an error.
func (n *Notifier) NotifyRun(ctx context.Context, result domain.RunResult) error {
	if n.endpoint == "" || n.client == nil {
		return fmt.Errorf("webhook notifier misconfigured")
	}

	body, err := json.Marshal(payload{Event: runEvent, RunResult: result})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook error: %s", resp.Status)
	}

	return nil
}
