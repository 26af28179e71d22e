package loadgen

import "time"

// Config holds configuration for a load run
type Config struct {
	BaseURL      string        // Base URL of the service
	Scenarios    int           // Number of distinct scenarios to generate
	Duplicates   int           // Extra submissions repeating generated scenarios
	Runners      int           // Runners per event
	Workers      int           // Concurrent submitters and pollers
	Timeout      time.Duration // HTTP request timeout
	PollInterval time.Duration // Delay between status polls of one run
	Seed         uint64        // Generator seed; equal seeds give equal scenarios
	OutputFile   string        // Output file for generated scenarios
	Verbose      bool          // Enable verbose logging
}

// Scenario mirrors the POST /analyses request body
type Scenario struct {
	Resolution Resolution `json:"resolution"`
	Segments   []Segment  `json:"segments"`
	Overlaps   []Overlap  `json:"overlaps"`
	Events     []Event    `json:"events"`
}

// Resolution is the optional discretisation of a scenario
type Resolution struct {
	SpatialStepKM     float64 `json:"spatial_step_km,omitempty"`
	TimeWindowSeconds int     `json:"time_window_seconds,omitempty"`
}

// Segment is one course segment
type Segment struct {
	ID        string  `json:"segment_id"`
	Label     string  `json:"segment_label"`
	FromKM    float64 `json:"from_km"`
	ToKM      float64 `json:"to_km"`
	WidthM    float64 `json:"width_m"`
	Direction string  `json:"direction"`
}

// Overlap declares two events sharing a segment
type Overlap struct {
	SegmentID string  `json:"seg_id"`
	EventA    string  `json:"event_a"`
	EventB    string  `json:"event_b"`
	FromKMA   float64 `json:"from_km_a"`
	ToKMA     float64 `json:"to_km_a"`
	FromKMB   float64 `json:"from_km_b"`
	ToKMB     float64 `json:"to_km_b"`
}

// Event is one start wave
type Event struct {
	Name        string   `json:"name"`
	Day         string   `json:"day"`
	StartTime   float64  `json:"start_time"`
	DurationMin float64  `json:"event_duration_minutes"`
	DistanceKM  float64  `json:"distance_km"`
	Runners     []Runner `json:"runners"`
}

// Runner is one participant
type Runner struct {
	ID          string  `json:"runner_id"`
	Pace        float64 `json:"pace"`
	StartOffset float64 `json:"start_offset"`
}

// SubmitResponse is the reply to a submission
type SubmitResponse struct {
	ID        string `json:"run_id"`
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// RunStatus is the subset of GET /analyses/{id} the load run inspects
type RunStatus struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error"`
	Days   []struct {
		Day   string `json:"day"`
		Error string `json:"error"`
	} `json:"days"`
}

// Stats holds load run statistics
type Stats struct {
	ScenariosGenerated int
	Submitted          int
	Accepted           int
	Duplicate          int
	Rejected           int
	Completed          int
	Failed             int
	FailedDays         int
	GridsFetched       int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
