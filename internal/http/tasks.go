package http

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/lectern/internal/entities"
	"github.com/mrlokans/lectern/internal/tasks"
)

// TaskQueue enqueues tasks and reports their status.
type TaskQueue interface {
	Enqueue(tasks ...backlite.Task) ([]string, error)
	Status(ctx context.Context, taskID string) (backlite.TaskStatus, error)
}

// TasksController lets an operator trigger grounding and maintenance work.
type TasksController struct {
	client TaskQueue
}

func NewTasksController(client TaskQueue) *TasksController {
	return &TasksController{client: client}
}

// TaskTypeInfo describes an available task type.
type TaskTypeInfo struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Queue       string `json:"queue"`
}

// RunTaskRequest is the request body for running a task.
type RunTaskRequest struct {
	// BookID is required for the ground_book task
	BookID string `json:"book_id,omitempty" form:"book_id"`
	// RetentionDays overrides the prune_audit retention
	RetentionDays int `json:"retention_days,omitempty" form:"retention_days"`
}

type taskKind struct {
	description string
	queue       string
	// build returns a message for the client when the request is unusable
	build func(req RunTaskRequest) (backlite.Task, string)
}

var taskKinds = map[string]taskKind{
	"ground_book": {
		description: "Upload a single book to the grounding provider",
		queue:       tasks.GroundBookTask{}.Config().Name,
		build: func(req RunTaskRequest) (backlite.Task, string) {
			if !entities.BookID(req.BookID).Valid() {
				return nil, "book_id is required for ground_book task"
			}
			return tasks.GroundBookTask{BookID: req.BookID}, ""
		},
	},
	"ground_all_books": {
		description: "Upload every book that has no grounding reference yet",
		queue:       tasks.GroundAllBooksTask{}.Config().Name,
		build: func(RunTaskRequest) (backlite.Task, string) {
			return tasks.GroundAllBooksTask{}, ""
		},
	},
	"prune_audit": {
		description: "Remove saved model replies older than the retention period",
		queue:       tasks.PruneAuditTask{}.Config().Name,
		build: func(req RunTaskRequest) (backlite.Task, string) {
			if req.RetentionDays < 0 {
				return nil, "retention_days must not be negative"
			}
			return tasks.PruneAuditTask{RetentionDays: req.RetentionDays}, ""
		},
	},
}

// ListTaskTypes handles GET /api/tasks/types
func (tc *TasksController) ListTaskTypes(c *gin.Context) {
	types := make([]TaskTypeInfo, 0, len(taskKinds))
	for name, kind := range taskKinds {
		types = append(types, TaskTypeInfo{Type: name, Description: kind.description, Queue: kind.queue})
	}
	sort.Slice(types, func(i, j int) bool { return types[i].Type < types[j].Type })

	c.JSON(http.StatusOK, gin.H{
		"task_types": types,
	})
}

// GetTaskStatus handles GET /api/tasks/:id
func (tc *TasksController) GetTaskStatus(c *gin.Context) {
	taskID := c.Param("id")
	if taskID == "" {
		respondBadRequest(c, "task ID is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status, err := tc.client.Status(ctx, taskID)
	if status == backlite.TaskStatusNotFound {
		respondNotFound(c, "task")
		return
	}
	if err != nil {
		respondInternalError(c, err, "task status")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":     taskID,
		"status": taskStatusToString(status),
	})
}

// RunTask handles POST /api/tasks/:type/run
func (tc *TasksController) RunTask(c *gin.Context) {
	taskType := c.Param("type")
	kind, ok := taskKinds[taskType]
	if !ok {
		respondBadRequest(c, fmt.Sprintf("unknown task type: %s", taskType))
		return
	}

	var req RunTaskRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "invalid request body")
			return
		}
	}

	task, problem := kind.build(req)
	if problem != "" {
		respondBadRequest(c, problem)
		return
	}

	ids, err := tc.client.Enqueue(task)
	if err != nil {
		respondInternalError(c, err, "enqueue task")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"task_id": ids[0],
		"type":    taskType,
		"message": "task enqueued",
	})
}

func taskStatusToString(status backlite.TaskStatus) string {
	switch status {
	case backlite.TaskStatusPending:
		return "pending"
	case backlite.TaskStatusRunning:
		return "running"
	case backlite.TaskStatusSuccess:
		return "success"
	case backlite.TaskStatusFailure:
		return "failure"
	case backlite.TaskStatusNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}
