package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskProfilesSweep deletes browser profiles that have been idle too long.
	TaskProfilesSweep = "profiles:sweep"
	// TaskPartitionsSweep deletes financial partitions whose owner left the directory.
	TaskPartitionsSweep = "partitions:sweep"
)

// ProfilesSweepPayload configures one sweep. A zero IdleFor falls back to the job default.
type ProfilesSweepPayload struct {
	IdleFor time.Duration `json:"idle_for"`
	DryRun  bool          `json:"dry_run,omitempty"`
}

// NewProfilesSweepTask constructs the profile sweep task.
func NewProfilesSweepTask(idleFor time.Duration, dryRun bool) (*asynq.Task, error) {
	data, err := json.Marshal(ProfilesSweepPayload{IdleFor: idleFor, DryRun: dryRun})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskProfilesSweep, data), nil
}

// PartitionsSweepPayload configures the orphan partition sweep.
type PartitionsSweepPayload struct {
	DryRun bool `json:"dry_run,omitempty"`
}

// NewPartitionsSweepTask constructs the orphan partition sweep task.
func NewPartitionsSweepTask(dryRun bool) (*asynq.Task, error) {
	data, err := json.Marshal(PartitionsSweepPayload{DryRun: dryRun})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPartitionsSweep, data), nil
}
