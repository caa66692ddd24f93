package lifecycle

import (
	"context"
	"sync"
	"time"
)

// Probe reports whether a dependency is usable. It must honor ctx.
type Probe func(ctx context.Context) error

// Check is one named readiness probe, such as the JWKS key set or the
// Redis cache.
type Check struct {
	// Name identifies the check in readiness reports. Must be unique
	// within a service.
	Name string

	// Critical checks gate readiness. A failing non-critical check is
	// reported but the service stays ready.
	Critical bool

	// Probe runs the check.
	Probe Probe
}

// CheckResult is the outcome of one [Check].
type CheckResult struct {
	Name     string        `json:"name"`
	Critical bool          `json:"critical"`
	OK       bool          `json:"ok"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Report is a readiness snapshot, safe to serialize as a probe response.
type Report struct {
	Ready   bool          `json:"ready"`
	State   State         `json:"state"`
	Version string        `json:"version"`
	Uptime  time.Duration `json:"uptime_ns,omitempty"`
	Checks  []CheckResult `json:"checks"`
}

// runChecks runs every check concurrently and returns the results in
// declaration order.
func runChecks(ctx context.Context, checks []Check) []CheckResult {
	results := make([]CheckResult, len(checks))
	var wg sync.WaitGroup
	for i, c := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			err := c.Probe(ctx)
			results[i] = CheckResult{
				Name:     c.Name,
				Critical: c.Critical,
				OK:       err == nil,
				Duration: time.Since(start),
			}
			if err != nil {
				results[i].Error = err.Error()
			}
		}()
	}
	wg.Wait()
	return results
}
