package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/lectern/internal/reader"
)

type HealthResponse struct {
	Status  string            `json:"status"`
	Time    string            `json:"time"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks"`
	// OpenBook is the id of the book in the reader, if any
	OpenBook string `json:"open_book,omitempty"`
}

// runner is implemented by task queues that know whether workers are up.
type runner interface {
	Running() bool
}

type HealthController struct {
	db      Pinger
	reader  ReaderSessions
	tasks   TaskQueue
	version string
}

// NewHealthController reports on the record database and the background
// queue. Only a failing database makes the service unhealthy.
func NewHealthController(cfg RouterConfig) *HealthController {
	return &HealthController{
		db:      cfg.Database,
		reader:  cfg.Reader,
		tasks:   cfg.Tasks,
		version: cfg.Version,
	}
}

func (h *HealthController) Status(c *gin.Context) {
	checks := make(map[string]string)
	status := "healthy"

	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			checks["database"] = "error: " + err.Error()
			status = "unhealthy"
		} else {
			checks["database"] = "ok"
		}
	} else {
		// Records live in files
		checks["database"] = "not configured"
	}

	switch q := h.tasks.(type) {
	case nil:
		checks["tasks"] = "disabled"
	case runner:
		if q.Running() {
			checks["tasks"] = "running"
		} else {
			checks["tasks"] = "stopped"
		}
	default:
		checks["tasks"] = "ok"
	}

	health := HealthResponse{
		Status:  status,
		Time:    time.Now().Format(time.RFC3339),
		Version: h.version,
		Checks:  checks,
	}

	if h.reader != nil {
		session, err := h.reader.Current()
		switch {
		case err == nil:
			health.OpenBook = session.Book.ID.String()
		case !errors.Is(err, reader.ErrNotOpen):
			checks["reader"] = "error: " + err.Error()
		}
	}

	statusCode := http.StatusOK
	if status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.IndentedJSON(statusCode, health)
}
