package loadgen

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/thomjeff/run-density/internal/domain/aggregate"
	"github.com/thomjeff/run-density/pkg/logger"
)

var gridHeader = strings.Join(aggregate.Header, ",")

// verifyRun checks a finished run succeeded and that every analysed day
// serves a grid with the expected header. It returns the number of grids
// fetched.
func verifyRun(ctx context.Context, client *HTTPClient, config *Config, st RunStatus) (int, error) {
	if st.Status != "done" {
		return 0, fmt.Errorf("run %s %s: %s", st.ID, st.Status, st.Error)
	}
	if len(st.Days) == 0 {
		return 0, fmt.Errorf("run %s finished without days", st.ID)
	}
	fetched := 0
	for _, d := range st.Days {
		if d.Error != "" {
			return fetched, fmt.Errorf("run %s day %s: %s", st.ID, d.Day, d.Error)
		}
		body, err := client.grid(ctx, config.BaseURL, st.ID, d.Day)
		if err != nil {
			return fetched, err
		}
		fetched++
		header, _, _ := bytes.Cut(body, []byte("\n"))
		if string(bytes.TrimSpace(header)) != gridHeader {
			return fetched, fmt.Errorf("run %s day %s: unexpected grid header %q", st.ID, d.Day, header)
		}
		if config.Verbose {
			logger.Get().Debug(ctx, "grid verified",
				logger.String("run_id", st.ID),
				logger.String("day", d.Day),
				logger.Int("bytes", len(body)))
		}
	}
	return fetched, nil
}
