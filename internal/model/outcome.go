package model

import "time"

// FetchStatus classifies how a single instrument fared during a fetch cycle.
type FetchStatus string

const (
	FetchSuccess          FetchStatus = "success"
	FetchTransientFailure FetchStatus = "transient_failure"
	FetchPermanentFailure FetchStatus = "permanent_failure"
	FetchSkippedQuota     FetchStatus = "skipped_quota_exhausted"
	FetchCancelled        FetchStatus = "cancelled"
)

// FetchOutcome is the per-instrument result of a fetch cycle.
type FetchOutcome struct {
	Instrument Instrument
	Status     FetchStatus
	Attempts   int
	Points     int    // quotes merged into the store on success
	Reason     string // failure or skip reason
	FetchedAt  time.Time
}

// Excluded reports whether the instrument must be left out of this cycle's analysis.
func (o FetchOutcome) Excluded() bool {
	return o.Status == FetchPermanentFailure
}
