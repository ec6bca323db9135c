package parser

import (
	"FeedAggregator/internal/domain"
	"FeedAggregator/internal/scanner"
)

// Factory builds both transport variants on top of one shared fetcher.
type Factory struct {
	fetcher *Fetcher
}

var _ scanner.Factory = (*Factory)(nil)

// NewFactory wires the fetcher used by every parser it creates.
func NewFactory(fetcher *Fetcher) *Factory {
	return &Factory{fetcher: fetcher}
}

// Syndication returns the RSS/Atom parser.
func (f *Factory) Syndication() scanner.Parser {
	return NewSyndicationParser(f.fetcher)
}

// API returns a parser bound to the given transport options.
func (f *Factory) API(opts domain.TransportOptions) (scanner.Parser, error) {
	return NewAPIParser(f.fetcher, opts)
}
