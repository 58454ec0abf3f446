package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/lectern/internal/entities"
)

// BookLister lists the stored books.
type BookLister interface {
	List(ctx context.Context) ([]entities.BookMeta, error)
}

// GroundingStates reports the cached reading state of a book.
type GroundingStates interface {
	Load(ctx context.Context, id entities.BookID) (entities.ReadingState, error)
}

// Enqueuer adds tasks to the queue.
type Enqueuer interface {
	Add(tasks ...backlite.Task) *backlite.TaskAddOp
}

// GroundAllBooksTask enqueues a GroundBookTask for every book that has no
// grounding reference yet.
type GroundAllBooksTask struct{}

// Config returns the queue configuration for bulk grounding tasks.
func (t GroundAllBooksTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "ground_all_books",
		MaxAttempts: 1,
		Backoff:     time.Minute,
		Timeout:     10 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// PendingGrounding returns the books without a cached reference.
func PendingGrounding(ctx context.Context, books BookLister, states GroundingStates) ([]entities.BookID, error) {
	list, err := books.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	var pending []entities.BookID
	for _, b := range list {
		state, err := states.Load(ctx, b.ID)
		if err != nil {
			return nil, err
		}
		if state.GroundingRef == "" {
			pending = append(pending, b.ID)
		}
	}
	return pending, nil
}

// GroundAllBooksProcessor creates a processor function for GroundAllBooksTask.
func GroundAllBooksProcessor(books BookLister, states GroundingStates, queue Enqueuer) backlite.QueueProcessor[GroundAllBooksTask] {
	return func(ctx context.Context, task GroundAllBooksTask) error {
		if books == nil || states == nil || queue == nil {
			return fmt.Errorf("grounding prefetch not configured")
		}

		pending, err := PendingGrounding(ctx, books, states)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			log.Printf("[TASK] All books are grounded")
			return nil
		}

		batch := make([]backlite.Task, 0, len(pending))
		for _, id := range pending {
			batch = append(batch, GroundBookTask{BookID: id.String()})
		}
		if _, err := queue.Add(batch...).Save(); err != nil {
			return fmt.Errorf("enqueue grounding: %w", err)
		}

		log.Printf("[TASK] Queued grounding for %d books", len(pending))
		return nil
	}
}

// NewGroundAllBooksQueue creates a backlite queue for bulk grounding tasks.
func NewGroundAllBooksQueue(books BookLister, states GroundingStates, queue Enqueuer) backlite.Queue {
	return backlite.NewQueue(GroundAllBooksProcessor(books, states, queue))
}
