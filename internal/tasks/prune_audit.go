package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"
)

// AuditPruner removes saved replies older than a retention period.
type AuditPruner interface {
	Prune(retention time.Duration) (int, error)
}

// PruneAuditTask removes audit files older than the configured retention period.
type PruneAuditTask struct {
	RetentionDays int `json:"retention_days"`
}

// Config returns the queue configuration for audit pruning tasks.
func (t PruneAuditTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "prune_audit",
		MaxAttempts: 3,
		Backoff:     5 * time.Minute,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// PruneAuditProcessor creates a processor function for PruneAuditTask.
func PruneAuditProcessor(pruner AuditPruner) backlite.QueueProcessor[PruneAuditTask] {
	return func(ctx context.Context, task PruneAuditTask) error {
		if pruner == nil {
			return fmt.Errorf("audit pruner not configured")
		}

		retentionDays := task.RetentionDays
		if retentionDays <= 0 {
			retentionDays = 30
		}
		retention := time.Duration(retentionDays) * 24 * time.Hour

		deleted, err := pruner.Prune(retention)
		if err != nil {
			return fmt.Errorf("prune audit: %w", err)
		}

		log.Printf("[TASK] Removed %d audit files older than %d days", deleted, retentionDays)
		return nil
	}
}

// NewPruneAuditQueue creates a backlite queue for audit pruning tasks.
func NewPruneAuditQueue(pruner AuditPruner) backlite.Queue {
	return backlite.NewQueue(PruneAuditProcessor(pruner))
}
