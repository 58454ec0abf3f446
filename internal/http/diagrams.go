package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/lectern/internal/diagram"
	"github.com/mrlokans/lectern/internal/providers"
)

// DiagramsController generates diagrams about books.
type DiagramsController struct {
	diagrams     DiagramService
	defaultModel string
}

func NewDiagramsController(diagrams DiagramService, defaultModel string) *DiagramsController {
	return &DiagramsController{diagrams: diagrams, defaultModel: defaultModel}
}

type diagramRequest struct {
	Kind  string `json:"kind"`
	Model string `json:"model"`
	Hint  string `json:"hint"`
}

// DiagramResponse carries the generator status and, on failure, the
// message shown to the user.
type DiagramResponse struct {
	Status diagram.Status `json:"status"`
	Error  string         `json:"error,omitempty"`
	Code   string         `json:"code,omitempty"`
}

// Generate handles POST /api/books/:id/diagrams. It runs the whole
// generation and answers with the final state.
func (dc *DiagramsController) Generate(c *gin.Context) {
	id, ok := parseBookID(c)
	if !ok {
		return
	}
	var req diagramRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "invalid request body")
			return
		}
	}
	kind, err := diagram.ParseKind(req.Kind)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = dc.defaultModel
	}

	status, err := dc.diagrams.Generate(c.Request.Context(), id, diagram.Request{Kind: kind, Model: model, Hint: req.Hint})
	if err != nil {
		var cfgErr *providers.ConfigurationError
		switch {
		case errors.Is(err, diagram.ErrInProgress):
			c.JSON(http.StatusConflict, DiagramResponse{Status: dc.diagrams.Status(id), Error: err.Error(), Code: CodeInProgress})
		case errors.As(err, &cfgErr):
			c.JSON(http.StatusPreconditionFailed, DiagramResponse{Status: status, Error: cfgErr.Error(), Code: CodeConfiguration})
		default:
			c.JSON(http.StatusUnprocessableEntity, DiagramResponse{Status: status, Error: diagram.FailureMessage})
		}
		return
	}
	c.JSON(http.StatusOK, DiagramResponse{Status: status})
}

// Status handles GET /api/books/:id/diagrams.
func (dc *DiagramsController) Status(c *gin.Context) {
	id, ok := parseBookID(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, DiagramResponse{Status: dc.diagrams.Status(id)})
}
