package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/lectern/internal/entities"
)

// Grounder uploads a book to the grounding provider unless it already has
// a cached reference.
type Grounder interface {
	GetGroundingRef(ctx context.Context, id entities.BookID) (string, error)
}

// GroundBookTask uploads a single book ahead of its first question.
type GroundBookTask struct {
	BookID string `json:"book_id"`
}

// Config returns the queue configuration for grounding tasks.
func (t GroundBookTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "ground_book",
		MaxAttempts: 3,
		Backoff:     time.Minute,
		Timeout:     5 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// GroundBookProcessor creates a processor function for GroundBookTask.
func GroundBookProcessor(grounder Grounder) backlite.QueueProcessor[GroundBookTask] {
	return func(ctx context.Context, task GroundBookTask) error {
		if grounder == nil {
			return fmt.Errorf("grounder not configured")
		}
		id := entities.BookID(task.BookID)
		if !id.Valid() {
			return fmt.Errorf("invalid book id %q", task.BookID)
		}

		ref, err := grounder.GetGroundingRef(ctx, id)
		if err != nil {
			return fmt.Errorf("ground book %s: %w", id, err)
		}

		log.Printf("[TASK] Book %s grounded as %s", id, ref)
		return nil
	}
}

// NewGroundBookQueue creates a backlite queue for grounding tasks.
func NewGroundBookQueue(grounder Grounder) backlite.Queue {
	return backlite.NewQueue(GroundBookProcessor(grounder))
}
