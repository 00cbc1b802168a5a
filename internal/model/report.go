package model

import (
	"sync"
	"time"
)

// FeedStat holds per-feed pipeline counters. size_after_get is the raw
// entry count out of the parser; size_after_insert counts entries that
// went through normalization (kept or not).
type FeedStat struct {
	SizeAfterGet    int `json:"size_after_get"`
	SizeAfterInsert int `json:"size_after_insert"`
}

// Report accumulates per-feed counters and global stats across one
// pipeline run. Failure counters are incremented from inside pool
// workers, so every method takes the mutex.
type Report struct {
	mu sync.Mutex

	RunID      string               `json:"run_id"`
	Locale     string               `json:"locale"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
	FeedStats  map[string]*FeedStat `json:"feed_stats"`
	FeedErrors map[string]int       `json:"feed_errors"` // hostname -> failure count
	Articles   int                  `json:"articles"`
}

// NewReport creates an empty report for one run.
func NewReport(runID, locale string) *Report {
	return &Report{
		RunID:      runID,
		Locale:     locale,
		StartedAt:  time.Now().UTC(),
		FeedStats:  make(map[string]*FeedStat),
		FeedErrors: make(map[string]int),
	}
}

// Stat returns the counter record for a feed key, creating it on first use.
func (r *Report) Stat(feedKey string) *FeedStat {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.FeedStats[feedKey]
	if !ok {
		st = &FeedStat{}
		r.FeedStats[feedKey] = st
	}
	return st
}

// FeedError increments the failure counter for a hostname.
func (r *Report) FeedError(hostname string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FeedErrors[hostname]++
}

// Finish stamps the end of the run.
func (r *Report) Finish(articles int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FinishedAt = time.Now().UTC()
	r.Articles = articles
}
