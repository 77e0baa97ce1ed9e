package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/assistente-financeiro/assistente-financeiro/internal/jobs"
	"github.com/assistente-financeiro/assistente-financeiro/internal/shared"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// SweepResult summarises one sweep run.
type SweepResult struct {
	Scanned int
	Removed []string
}

// ProfilesSweepJob removes every key of browser profiles idle for longer than IdleFor. Profiles
// without a readable lastSeen stamp count as idle.
type ProfilesSweepJob struct {
	Profiles *shared.ProfileManager
	IdleFor  time.Duration
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewProfilesSweepJob wires dependencies for the sweep handler.
func NewProfilesSweepJob(profiles *shared.ProfileManager, idleFor time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *ProfilesSweepJob {
	return &ProfilesSweepJob{
		Profiles: profiles,
		IdleFor:  idleFor,
		Logger:   logger,
		Metrics:  metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// WithClock overrides the time source.
func (j *ProfilesSweepJob) WithClock(now func() time.Time) *ProfilesSweepJob {
	j.clock = now
	return j
}

// Handle processes profile sweep tasks.
func (j *ProfilesSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("profiles sweep: handler not configured")
	}
	var payload ProfilesSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	_, err := j.Run(ctx, payload)
	return err
}

// Run performs one sweep.
func (j *ProfilesSweepJob) Run(ctx context.Context, payload ProfilesSweepPayload) (result SweepResult, resultErr error) {
	tracker := j.metrics().Track(TaskProfilesSweep)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()
	if j.Profiles == nil {
		return result, errors.New("profiles sweep: profile manager not configured")
	}
	idle := payload.IdleFor
	if idle <= 0 {
		idle = j.IdleFor
	}
	if idle <= 0 {
		return result, errors.New("profiles sweep: idle horizon must be positive")
	}
	logger := j.logger().With(slog.Duration("idle_for", idle), slog.Bool("dry_run", payload.DryRun))

	ids, err := j.Profiles.IDs(ctx)
	if err != nil {
		logger.Error("list profiles", slog.Any("error", err))
		return result, err
	}
	cutoff := j.now().Add(-idle)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Scanned++
		p := j.Profiles.Open(id)
		seen, ok, err := j.Profiles.LastSeen(ctx, p)
		if err != nil {
			logger.Error("read last seen", slog.String("profile", id), slog.Any("error", err))
			return result, err
		}
		if ok && seen.After(cutoff) {
			continue
		}
		if !payload.DryRun {
			if err := j.Profiles.Remove(ctx, p); err != nil {
				logger.Error("remove profile", slog.String("profile", id), slog.Any("error", err))
				return result, err
			}
		}
		result.Removed = append(result.Removed, id)
	}
	if !payload.DryRun {
		j.metrics().AddRemoved("profile", len(result.Removed))
	}
	logger.Info("completed profiles sweep", slog.Int("scanned", result.Scanned), slog.Int("removed", len(result.Removed)))
	return result, nil
}

func (j *ProfilesSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskProfilesSweep))
	}
	return slog.Default().With(slog.String("job", TaskProfilesSweep))
}

func (j *ProfilesSweepJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ProfilesSweepJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
