package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"FeedAggregator/internal/domain"
	"FeedAggregator/internal/ports"
)

const defaultCacheTTL = time.Minute

// HTTPRegistry fetches the registry document as JSON. The document is cached
// briefly so the tool and model lookups of one run share a request.
type HTTPRegistry struct {
	endpoint string
	http     *http.Client
	ttl      time.Duration
	now      func() time.Time

	mu        sync.Mutex
	cached    *Document
	fetchedAt time.Time
}

var _ ports.EntityRegistry = (*HTTPRegistry)(nil)

// NewHTTPRegistry creates a registry client; a nil client gets a 15s timeout.
func NewHTTPRegistry(endpoint string, client *http.Client) *HTTPRegistry {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPRegistry{endpoint: endpoint, http: client, ttl: defaultCacheTTL, now: time.Now}
}

// Entities returns the entities of one class.
func (r *HTTPRegistry) Entities(ctx context.Context, class domain.EntityClass) ([]domain.Entity, error) {
	doc, err := r.document(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Entities(class)
}

func (r *HTTPRegistry) document(ctx context.Context) (Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != nil && r.now().Sub(r.fetchedAt) < r.ttl {
		return *r.cached, nil
	}

	var doc Document
	if err := r.get(ctx, &doc); err != nil {
		return Document{}, err
	}
	if err := doc.Validate(); err != nil {
		return Document{}, fmt.Errorf("invalid registry document: %w", err)
	}

	r.cached = &doc
	r.fetchedAt = r.now()
	return doc, nil
}

func (r *HTTPRegistry) get(ctx context.Context, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			return fmt.Errorf("unexpected status %s, close body: %v", resp.Status, closeErr)
		}
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		_ = resp.Body.Close()
		return fmt.Errorf("decode response: %w", err)
	}

	if err := resp.Body.Close(); err != nil {
		return fmt.Errorf("close response body: %w", err)
	}

	return nil
}
