package seedcalls

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/callscore/internal/domain/rubric"
	"github.com/okian/callscore/pkg/logger"
)

// processingDelay gives the worker pool time to drain queued submissions
// before verification.
const processingDelay = 3 * time.Second

// Run executes the complete seeding run.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{StartTime: time.Now()}
	def := rubric.Default()

	logger.Get().Info(ctx, "starting call seeding run",
		logger.String("baseURL", config.BaseURL),
		logger.Int("calls", config.NumCalls),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()),
	)

	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	subs := generateSubmissions(ctx, config, def, stats)

	submitCalls(ctx, config, subs, stats)

	logger.Get().Info(ctx, "waiting for queued submissions to be scored")
	time.Sleep(processingDelay)

	if err := verifyAnalyses(ctx, config, stats); err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	logger.Get().Info(ctx, "seeding run completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	client := newHTTPClient(config.Timeout)
	resp, err := client.Get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}
	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// verifyAnalyses lists stored analyses and checks the scoring invariants
// hold on every returned row.
func verifyAnalyses(ctx context.Context, config *Config, stats *Stats) error {
	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/analyses?limit=" + strconv.Itoa(config.NumCalls)

	resp, err := client.Get(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to list analyses: %w", err)
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return fmt.Errorf("failed to read listing: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("listing failed with status: %d", resp.StatusCode)
	}

	var entries []ListEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return fmt.Errorf("failed to parse listing: %w", err)
	}

	for _, entry := range entries {
		if entry.Status == "pending" {
			// Still in the queue; not a failure, just unfinished.
			continue
		}
		if entry.OverallScore < 0 || entry.OverallScore > 100 {
			return fmt.Errorf("analysis %s has out-of-range overall score %.2f", entry.ID, entry.OverallScore)
		}
		if !bandMatches(entry.OverallScore, entry.CallEffectiveness) {
			return fmt.Errorf("analysis %s effectiveness %q does not match score %.2f",
				entry.ID, entry.CallEffectiveness, entry.OverallScore)
		}
		stats.CallsVerified++
	}

	logger.Get().Info(ctx, "verification passed",
		logger.Int("listed", len(entries)),
		logger.Int("verified", stats.CallsVerified),
	)
	return nil
}

// bandMatches checks an effectiveness label against its score band.
func bandMatches(score float64, label string) bool {
	switch {
	case score >= 85:
		return label == "Excellent"
	case score >= 70:
		return label == "Good"
	case score >= 50:
		return label == "Average"
	default:
		return label == "Needs Improvement"
	}
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var successRate float64
	if stats.CallsSubmitted > 0 {
		successRate = float64(stats.CallsSuccessful) / float64(stats.CallsSubmitted) * 100
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("callsGenerated", stats.CallsGenerated),
		logger.Int("callsSubmitted", stats.CallsSubmitted),
		logger.Int("callsSuccessful", stats.CallsSuccessful),
		logger.Int("callsDuplicate", stats.CallsDuplicate),
		logger.Int("callsFailed", stats.CallsFailed),
		logger.Int("callsVerified", stats.CallsVerified),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("successRate", successRate),
	)
}
