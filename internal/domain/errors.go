package domain

import "errors"

var (
	ErrUnknownTransport = errors.New("unknown transport type")
	ErrInvalidUpdate    = errors.New("invalid update")
	ErrFeedNotFound     = errors.New("feed source not found")
	ErrDuplicateURL     = errors.New("feed source url already exists")
)
