package tasks

import (
	"time"

	"github.com/mrlokans/lectern/internal/config"
)

// Config holds configuration for the task queue system.
type Config struct {
	Workers int

	// Defaults for retries of failed grounding uploads
	MaxRetries int
	RetryDelay time.Duration

	// TaskTimeout bounds one task. A grounding upload sends a whole book.
	TaskTimeout time.Duration

	// ReleaseAfter returns tasks held by a crashed worker to the queue
	ReleaseAfter time.Duration

	CleanupInterval   time.Duration
	RetentionDuration time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers:           2,
		MaxRetries:        3,
		RetryDelay:        1 * time.Minute,
		TaskTimeout:       5 * time.Minute,
		ReleaseAfter:      15 * time.Minute,
		CleanupInterval:   1 * time.Hour,
		RetentionDuration: 24 * time.Hour,
	}
}

// NewConfig maps the application task settings. Unset or non-positive
// values fall back to DefaultConfig.
func NewConfig(cfg config.Tasks) Config {
	def := DefaultConfig()
	out := Config{
		Workers:           cfg.Workers,
		MaxRetries:        cfg.MaxRetries,
		RetryDelay:        cfg.RetryDelay,
		TaskTimeout:       cfg.TaskTimeout,
		ReleaseAfter:      cfg.ReleaseAfter,
		CleanupInterval:   cfg.CleanupInterval,
		RetentionDuration: cfg.RetentionDuration,
	}

	if out.Workers <= 0 {
		out.Workers = def.Workers
	}
	if out.MaxRetries <= 0 {
		out.MaxRetries = def.MaxRetries
	}
	if out.RetryDelay <= 0 {
		out.RetryDelay = def.RetryDelay
	}
	if out.TaskTimeout <= 0 {
		out.TaskTimeout = def.TaskTimeout
	}
	if out.ReleaseAfter <= 0 {
		out.ReleaseAfter = def.ReleaseAfter
	}
	// A task must be released only after it could have timed out
	if out.ReleaseAfter < out.TaskTimeout {
		out.ReleaseAfter = out.TaskTimeout
	}
	if out.CleanupInterval <= 0 {
		out.CleanupInterval = def.CleanupInterval
	}
	if out.RetentionDuration <= 0 {
		out.RetentionDuration = def.RetentionDuration
	}
	return out
}
