package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/assistente-financeiro/assistente-financeiro/internal/jobs"
	"github.com/assistente-financeiro/assistente-financeiro/internal/partition"
	"github.com/assistente-financeiro/assistente-financeiro/internal/users"
)

// PartitionsSweepJob removes root partitions whose owner is no longer in the directory. It
// catches partitions left behind when a delete hook failed.
type PartitionsSweepJob struct {
	Resolver  *partition.Resolver
	Directory *users.Directory
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewPartitionsSweepJob wires dependencies for the orphan sweep.
func NewPartitionsSweepJob(resolver *partition.Resolver, dir *users.Directory, logger *slog.Logger, metrics *jobmetrics.Metrics) *PartitionsSweepJob {
	return &PartitionsSweepJob{Resolver: resolver, Directory: dir, Logger: logger, Metrics: metrics}
}

// Handle processes orphan partition sweep tasks.
func (j *PartitionsSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("partitions sweep: handler not configured")
	}
	var payload PartitionsSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	_, err := j.Run(ctx, payload)
	return err
}

// Run performs one sweep.
func (j *PartitionsSweepJob) Run(ctx context.Context, payload PartitionsSweepPayload) (result SweepResult, resultErr error) {
	tracker := j.metrics().Track(TaskPartitionsSweep)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()
	if j.Resolver == nil || j.Directory == nil {
		return result, errors.New("partitions sweep: dependencies not configured")
	}
	logger := j.logger().With(slog.Bool("dry_run", payload.DryRun))

	owners, err := j.Resolver.Owners(ctx)
	if err != nil {
		logger.Error("list partition owners", slog.Any("error", err))
		return result, err
	}
	all, err := j.Directory.All(ctx)
	if err != nil {
		logger.Error("load directory", slog.Any("error", err))
		return result, err
	}
	known := make(map[string]struct{}, len(all))
	for _, u := range all {
		known[u.ID] = struct{}{}
	}
	for _, id := range owners {
		result.Scanned++
		if _, ok := known[id]; ok {
			continue
		}
		if !payload.DryRun {
			if err := j.Resolver.Remove(ctx, id); err != nil {
				logger.Error("remove partition", slog.String("user_id", id), slog.Any("error", err))
				return result, err
			}
		}
		result.Removed = append(result.Removed, id)
	}
	if !payload.DryRun {
		j.metrics().AddRemoved("partition", len(result.Removed))
	}
	logger.Info("completed partitions sweep", slog.Int("scanned", result.Scanned), slog.Int("removed", len(result.Removed)))
	return result, nil
}

func (j *PartitionsSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskPartitionsSweep))
	}
	return slog.Default().With(slog.String("job", TaskPartitionsSweep))
}

func (j *PartitionsSweepJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
