package simulate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/okian/asamblea/pkg/logger"
)

// ErrNotSettled is returned when the service does not reach the expected
// totals within the settle timeout.
var ErrNotSettled = errors.New("service did not settle")

// Run executes a complete simulated session against the service and
// verifies the tallies it reports.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get()

	log.Info(ctx, "starting asamblea simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("people", cfg.People),
		logger.Int("interventions", cfg.Interventions),
		logger.Float64("duplicateRate", cfg.DuplicateRate),
		logger.Float64("decrementRate", cfg.DecrementRate),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout))

	c := newHTTPClient(cfg)

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, c); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	plan := GeneratePlan(cfg)

	// Step 2: Create the assembly and register who attends
	assemblyID, err := createAssembly(ctx, c)
	if err != nil {
		return stats, fmt.Errorf("assembly creation failed: %w", err)
	}
	if err := registerPeople(ctx, c, assemblyID, plan.People); err != nil {
		return stats, fmt.Errorf("people registration failed: %w", err)
	}
	stats.PeopleRegistered = len(plan.People)

	// Step 3: Submit interventions concurrently
	send := func(ctx context.Context, s Submission) outcome { return submitIncrement(ctx, c, assemblyID, s) }
	inc := submitAll(ctx, cfg, plan.Increments, send)
	stats.record(inc)
	if inc.failed > 0 {
		return stats, fmt.Errorf("%d interventions failed", inc.failed)
	}
	if _, err := waitForTotals(ctx, c, cfg, assemblyID, len(plan.Increments), -1); err != nil {
		return stats, err
	}

	// Step 4: Retry a share of them; every retry must be acknowledged as a duplicate
	retry := submitAll(ctx, cfg, plan.Retries, send)
	stats.record(retry)
	if int(retry.duplicate) != len(plan.Retries) {
		return stats, fmt.Errorf("expected %d duplicate acks, got %d", len(plan.Retries), retry.duplicate)
	}

	// Step 5: Undo a share of them
	dec := submitAll(ctx, cfg, plan.Decrements, func(ctx context.Context, s Submission) outcome {
		return submitDecrement(ctx, c, assemblyID, s)
	})
	stats.record(dec)
	stats.Decrements = int(dec.accepted)
	if dec.failed > 0 {
		return stats, fmt.Errorf("%d decrements failed", dec.failed)
	}

	// Step 6: Wait for processing and verify
	rep, err := waitForTotals(ctx, c, cfg, assemblyID, plan.Expected.Total, plan.Expected.Present)
	if err != nil {
		return stats, err
	}
	if err := verifyReport(rep, plan.Expected); err != nil {
		return stats, fmt.Errorf("result verification failed: %w", err)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	log.Info(ctx, "simulation completed successfully", logger.String("assembly", assemblyID))
	return stats, nil
}

func (s *Stats) record(t *tally) {
	s.Submitted += int(t.accepted + t.duplicate + t.failed)
	s.Accepted += int(t.accepted)
	s.Duplicate += int(t.duplicate)
	s.Failed += int(t.failed)
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, c *HTTPClient) error {
	code, err := c.do(ctx, http.MethodGet, "/healthz", nil, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if code != StatusOK {
		return fmt.Errorf("service health check failed with status: %d", code)
	}
	logger.Get().Info(ctx, "service is healthy")
	return nil
}

func createAssembly(ctx context.Context, c *HTTPClient) (string, error) {
	body := map[string]any{
		"name": "Simulated assembly",
		"date": time.Now().UTC().Format("2006-01-02"),
		"type": "ordinary",
	}
	var created struct {
		ID string `json:"id"`
	}
	code, err := c.do(ctx, http.MethodPost, "/assemblies", body, &created)
	if err != nil {
		return "", err
	}
	if code != StatusCreated || created.ID == "" {
		return "", fmt.Errorf("unexpected status %d", code)
	}
	return created.ID, nil
}

func registerPeople(ctx context.Context, c *HTTPClient, assemblyID string, people []Person) error {
	for _, p := range people {
		code, err := c.do(ctx, http.MethodPost, "/people", p, nil)
		if err != nil {
			return err
		}
		if code != StatusOK {
			return fmt.Errorf("person %s: unexpected status %d", p.ID, code)
		}

		mode := "in-person"
		if p.Online {
			mode = "online"
		}
		path := "/assemblies/" + url.PathEscape(assemblyID) + "/attendance/" + url.PathEscape(p.ID)
		code, err = c.do(ctx, http.MethodPut, path, map[string]any{"mode": mode}, nil)
		if err != nil {
			return err
		}
		if code != StatusAccepted {
			return fmt.Errorf("attendance for %s: unexpected status %d", p.ID, code)
		}
	}
	return nil
}

// waitForTotals polls the stats endpoint until the intervention total and,
// when present is not negative, the attendance total match.
func waitForTotals(ctx context.Context, c *HTTPClient, cfg *Config, assemblyID string, total, present int) (statsReport, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.SettleTimeout)
	defer cancel()

	path := "/assemblies/" + url.PathEscape(assemblyID) + "/stats"
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	var rep statsReport
	for {
		rep = statsReport{}
		code, err := c.do(ctx, http.MethodGet, path, nil, &rep)
		if err == nil && code == StatusOK &&
			rep.Stats.TotalInterventions == total &&
			(present < 0 || rep.Attendance.Total == present) {
			return rep, nil
		}
		select {
		case <-ctx.Done():
			return rep, fmt.Errorf("%w: have %d interventions, want %d: %w",
				ErrNotSettled, rep.Stats.TotalInterventions, total, ctx.Err())
		case <-ticker.C:
		}
	}
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var successRate, perSecond float64
	if stats.Submitted > 0 {
		successRate = float64(stats.Accepted+stats.Duplicate) / float64(stats.Submitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("peopleRegistered", stats.PeopleRegistered),
		logger.Int("submitted", stats.Submitted),
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("failed", stats.Failed),
		logger.Int("decrements", stats.Decrements),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", successRate),
		logger.Float64("submissionsPerSecond", perSecond))
}
