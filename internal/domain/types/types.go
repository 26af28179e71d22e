// Package types contains common types used across the application
package types

import "time"

// RunEntry represents an analysis run in listings
type RunEntry struct {
	ID          string     `json:"id"`
	Fingerprint string     `json:"fingerprint"`
	Status      string     `json:"status"`
	Submitted   time.Time  `json:"submitted"`
	Started     *time.Time `json:"started,omitempty"`
	Finished    *time.Time `json:"finished,omitempty"`
	Days        []DayEntry `json:"days,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// DayEntry summarises one analysed day of a run
type DayEntry struct {
	Day      string `json:"day"`
	Segments int    `json:"segments"`
	Overlaps int    `json:"overlaps"`
	Error    string `json:"error,omitempty"`
}

// Stats is a point-in-time view of the service
type Stats struct {
	Runs          int `json:"runs"`
	QueueDepth    int `json:"queue_depth"`
	QueueCapacity int `json:"queue_capacity"`
	Workers       int `json:"workers"`
	DedupeEntries int `json:"dedupe_entries"`
}
