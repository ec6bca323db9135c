package domain

import "time"

// SyncResult summarises one feed's pass through the pipeline.
type SyncResult struct {
	SourceID        string        `json:"sourceId"`
	URL             string        `json:"url"`
	Created         uint          `json:"created"`
	Updated         uint          `json:"updated"`
	Errors          uint          `json:"errors"`
	Skipped         uint          `json:"skipped"`
	EntitiesTouched []string      `json:"entitiesTouched"`
	Err             string        `json:"error,omitempty"`
	Degraded        bool          `json:"degraded,omitempty"`
	Duration        time.Duration `json:"duration"`
}

// Failed reports whether the feed failed as a whole.
func (r SyncResult) Failed() bool {
	return r.Err != ""
}

// RunResult aggregates every enabled source of one run.
type RunResult struct {
	StartedAt       time.Time    `json:"startedAt"`
	FinishedAt      time.Time    `json:"finishedAt"`
	Created         uint         `json:"created"`
	Updated         uint         `json:"updated"`
	Errors          uint         `json:"errors"`
	FailedSources   uint         `json:"failedSources"`
	EntitiesTouched []string     `json:"entitiesTouched"`
	Sources         []SyncResult `json:"sources"`
	Err             string       `json:"error,omitempty"`
}
