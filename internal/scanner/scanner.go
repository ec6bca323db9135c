package scanner

import (
	"context"
	"fmt"

	"FeedAggregator/internal/domain"
)

// Parser turns one feed transport into raw items.
type Parser interface {
	Parse(ctx context.Context, url string) ([]domain.RawFeedItem, error)
}

// Factory builds the concrete parsers. Each transport variant has its own
// constructor so adding one is an explicit change here, not a registration.
type Factory interface {
	Syndication() Parser
	API(opts domain.TransportOptions) (Parser, error)
}

// Selector resolves the parser for a feed's declared transport.
type Selector struct {
	factory Factory
}

// NewSelector wires the parser factory.
func NewSelector(factory Factory) *Selector {
	return &Selector{factory: factory}
}

// CreateParser returns a parser for the transport or domain.ErrUnknownTransport.
func (s *Selector) CreateParser(transport domain.TransportType, opts *domain.TransportOptions) (Parser, error) {
	if s == nil || s.factory == nil {
		return nil, fmt.Errorf("parser factory is not configured")
	}

	switch transport {
	case domain.TransportSyndication:
		return s.factory.Syndication(), nil
	case domain.TransportAPI:
		if opts == nil || opts.Endpoint == "" {
			return nil, fmt.Errorf("api transport requires an endpoint")
		}
		return s.factory.API(*opts)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownTransport, transport)
	}
}

// ValidTransport reports whether the selector knows the transport type.
func ValidTransport(transport domain.TransportType) bool {
	switch transport {
	case domain.TransportSyndication, domain.TransportAPI:
		return true
	default:
		return false
	}
}
