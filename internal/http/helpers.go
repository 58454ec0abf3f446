package http

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/lectern/internal/anchoring"
	"github.com/mrlokans/lectern/internal/conversation"
	"github.com/mrlokans/lectern/internal/diagram"
	"github.com/mrlokans/lectern/internal/entities"
	"github.com/mrlokans/lectern/internal/library"
	"github.com/mrlokans/lectern/internal/providers"
	"github.com/mrlokans/lectern/internal/reader"
)

// Machine-readable error codes.
const (
	CodeConfiguration = "configuration"
	CodeNetwork       = "network"
	CodeNotOpen       = "not_open"
	CodeTooLarge      = "too_large"
	CodeInProgress    = "in_progress"

	codeRateLimited = "rate_limited"
)

// --- Response Types ---

// ErrorResponse is the standard error response format for all API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`    // machine-readable error code
	Details any    `json:"details,omitempty"` // additional context
}

// SuccessResponse is a standard success response with optional data.
type SuccessResponse struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// --- Error Response Helpers ---

// respondBadRequest sends a 400 Bad Request response.
func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message})
}

// respondNotFound sends a 404 Not Found response.
func respondNotFound(c *gin.Context, resource string) {
	c.JSON(http.StatusNotFound, ErrorResponse{Error: resource + " not found"})
}

// respondInternalError logs the error and sends a 500 Internal Server Error response.
// The actual error is logged but not exposed to the client.
func respondInternalError(c *gin.Context, err error, context string) {
	log.Printf("Internal error (%s): %v", context, err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}

// respondError sends an error response with the given status code and code.
func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, ErrorResponse{Error: message, Code: code})
}

// respondSuccess sends a 200 OK response with a message.
func respondSuccess(c *gin.Context, message string) {
	c.JSON(http.StatusOK, SuccessResponse{Message: message})
}

// respondServiceError maps domain errors to responses. Anything unknown is
// an internal error.
func respondServiceError(c *gin.Context, err error, context string) {
	var tooLarge *library.TooLargeError
	var cfgErr *providers.ConfigurationError

	switch {
	case errors.Is(err, library.ErrBookNotFound):
		respondNotFound(c, "book")
	case errors.Is(err, library.ErrCoverNotFound):
		respondNotFound(c, "cover")
	case errors.As(err, &tooLarge):
		respondError(c, http.StatusRequestEntityTooLarge, CodeTooLarge, tooLarge.Error())
	case errors.Is(err, library.ErrUnsupportedFile), errors.Is(err, library.ErrEmptyFile):
		respondBadRequest(c, err.Error())
	case errors.As(err, &cfgErr):
		respondError(c, http.StatusPreconditionFailed, CodeConfiguration, cfgErr.Error())
	case errors.Is(err, reader.ErrNotOpen), errors.Is(err, anchoring.ErrClosed):
		respondError(c, http.StatusConflict, CodeNotOpen, err.Error())
	case errors.Is(err, diagram.ErrInProgress):
		respondError(c, http.StatusConflict, CodeInProgress, err.Error())
	case errors.Is(err, reader.ErrNoLocation),
		errors.Is(err, anchoring.ErrUnknownRange),
		errors.Is(err, anchoring.ErrNoOverlay),
		errors.Is(err, anchoring.ErrEmptyRange),
		errors.Is(err, conversation.ErrEmptyQuestion):
		respondBadRequest(c, err.Error())
	case conversation.IsNetworkFailure(err):
		respondError(c, http.StatusBadGateway, CodeNetwork, conversation.NetworkErrorMessage)
	default:
		respondInternalError(c, err, context)
	}
}

// --- Parameter Parsing ---

// parseBookID extracts and validates a book id from URL parameters.
// Returns the parsed ID or responds with a 400 error and returns "", false.
func parseBookID(c *gin.Context) (entities.BookID, bool) {
	id := entities.BookID(c.Param("id"))
	if !id.Valid() {
		respondBadRequest(c, "invalid book id")
		return "", false
	}
	return id, true
}
