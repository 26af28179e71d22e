// Package loadgen drives a running service with generated scenarios and
// checks every submission completes with a retrievable grid.
package loadgen

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/thomjeff/run-density/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
)

type submission struct {
	index int
	id    string
	dup   bool
}

// Run executes the complete load run.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	log := logger.Get().Named("loadgen")
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "starting load run",
		logger.String("baseURL", config.BaseURL),
		logger.Int("scenarios", config.Scenarios),
		logger.Int("duplicates", config.Duplicates),
		logger.Int("runners", config.Runners),
		logger.Int("workers", config.Workers))

	client := newHTTPClient(config.Timeout)
	if err := checkServiceHealth(ctx, client, config); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	scenarios := Generate(config.Scenarios, config.Runners, config.Seed)
	stats.ScenariosGenerated = len(scenarios)

	subs, err := submitAll(ctx, client, config, scenarios, stats)
	if err != nil {
		return stats, fmt.Errorf("submission failed: %w", err)
	}
	if err := awaitAll(ctx, client, config, subs, stats); err != nil {
		return stats, fmt.Errorf("verification failed: %w", err)
	}

	if config.OutputFile != "" {
		if err := saveScenarios(config.OutputFile, scenarios); err != nil {
			log.Warn(ctx, "failed to save scenarios", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)
	return stats, nil
}

func checkServiceHealth(ctx context.Context, client *HTTPClient, config *Config) error {
	resp, err := client.Get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if _, err := readResponseBody(resp); err != nil {
		return err
	}
	if resp.StatusCode != StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

// submitAll posts every scenario, then repeats the first Duplicates of them.
func submitAll(ctx context.Context, client *HTTPClient, config *Config, scenarios []Scenario, stats *Stats) ([]submission, error) {
	order := make([]int, 0, len(scenarios)+config.Duplicates)
	for i := range scenarios {
		order = append(order, i)
	}
	for i := 0; i < config.Duplicates && len(scenarios) > 0; i++ {
		order = append(order, i%len(scenarios))
	}

	var mu sync.Mutex
	subs := make([]submission, 0, len(order))
	submitOne := func(idx int) error {
		ack, err := client.submit(ctx, config.BaseURL, &scenarios[idx])
		mu.Lock()
		defer mu.Unlock()
		stats.Submitted++
		if err != nil {
			stats.Rejected++
			return fmt.Errorf("scenario %d: %w", idx, err)
		}
		if ack.Duplicate {
			stats.Duplicate++
		} else {
			stats.Accepted++
		}
		subs = append(subs, submission{index: idx, id: ack.ID, dup: ack.Duplicate})
		return nil
	}

	// originals first so repeats find them registered
	var g errgroup.Group
	g.SetLimit(max(config.Workers, 1))
	for _, idx := range order[:len(scenarios)] {
		g.Go(func() error { return submitOne(idx) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, idx := range order[len(scenarios):] {
		if err := submitOne(idx); err != nil {
			return nil, err
		}
	}
	return subs, nil
}

// awaitAll polls each distinct run until it finishes and fetches its grids.
func awaitAll(ctx context.Context, client *HTTPClient, config *Config, subs []submission, stats *Stats) error {
	var mu sync.Mutex
	seen := make(map[string]struct{}, len(subs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(config.Workers, 1))
	for _, s := range subs {
		if _, dup := seen[s.id]; dup {
			continue
		}
		seen[s.id] = struct{}{}
		g.Go(func() error {
			st, err := poll(gctx, client, config, s.id)
			if err != nil {
				return err
			}
			grids, err := verifyRun(gctx, client, config, st)
			mu.Lock()
			defer mu.Unlock()
			stats.GridsFetched += grids
			switch st.Status {
			case "done":
				stats.Completed++
			default:
				stats.Failed++
			}
			for _, d := range st.Days {
				if d.Error != "" {
					stats.FailedDays++
				}
			}
			return err
		})
	}
	return g.Wait()
}

func poll(ctx context.Context, client *HTTPClient, config *Config, id string) (RunStatus, error) {
	ticker := time.NewTicker(config.PollInterval)
	defer ticker.Stop()
	for {
		st, err := client.status(ctx, config.BaseURL, id)
		if err != nil {
			return RunStatus{}, err
		}
		if st.Status == "done" || st.Status == "failed" {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return RunStatus{}, fmt.Errorf("run %s still %s: %w", id, st.Status, ctx.Err())
		case <-ticker.C:
		}
	}
}

func saveScenarios(filename string, scenarios []Scenario) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(scenarios, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal scenarios: %w", err)
	}
	return os.WriteFile(filename, data, filePermission)
}

func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var completion, perSecond float64
	if stats.Accepted > 0 {
		completion = float64(stats.Completed) / float64(stats.Accepted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("scenariosGenerated", stats.ScenariosGenerated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("rejected", stats.Rejected),
		logger.Int("completed", stats.Completed),
		logger.Int("failed", stats.Failed),
		logger.Int("failedDays", stats.FailedDays),
		logger.Int("gridsFetched", stats.GridsFetched),
		logger.Duration("duration", stats.Duration),
		logger.Float64("completionRate", completion),
		logger.Float64("submissionsPerSecond", perSecond))
}
