package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/lectern/internal/anchoring"
	"github.com/mrlokans/lectern/internal/entities"
	"github.com/mrlokans/lectern/internal/reader"
)

// ReaderResponse is returned by every reader endpoint. Commands are the
// overlay changes the client has to apply; Menu is set when an action menu
// opened while handling the request.
type ReaderResponse struct {
	Book        *entities.BookMeta          `json:"book,omitempty"`
	Annotations []entities.Annotation       `json:"annotations,omitempty"`
	Selection   *anchoring.PendingSelection `json:"selection,omitempty"`
	Annotation  *entities.Annotation        `json:"annotation,omitempty"`
	Removed     *bool                       `json:"removed,omitempty"`
	Location    *entities.LocationRange     `json:"location,omitempty"`
	Commands    []anchoring.Command         `json:"commands"`
	Menu        *anchoring.Menu             `json:"menu,omitempty"`
}

// ReaderController exposes the open book view to a browser client.
type ReaderController struct {
	sessions ReaderSessions
}

func NewReaderController(sessions ReaderSessions) *ReaderController {
	return &ReaderController{sessions: sessions}
}

type readyRequest struct {
	Offset anchoring.Point `json:"offset"`
}

type selectionRequest struct {
	Range  entities.LocationRange `json:"cfiRange" binding:"required"`
	Text   string                 `json:"text"`
	Rects  []anchoring.Rect       `json:"rects"`
	Offset *anchoring.Point       `json:"offset"`
}

type annotationRequest struct {
	Range entities.LocationRange `json:"cfiRange" binding:"required"`
	Text  *string                `json:"text"`
	Kind  string                 `json:"type" binding:"required"`
	Style map[string]string      `json:"styles"`
	Note  string                 `json:"note"`
}

type clickRequest struct {
	Range entities.LocationRange `json:"cfiRange" binding:"required"`
	Kind  string                 `json:"type" binding:"required"`
	Rects []anchoring.Rect       `json:"rects"`
}

type locationRequest struct {
	Range entities.LocationRange `json:"cfiRange" binding:"required"`
}

func (rc *ReaderController) respond(c *gin.Context, s *reader.Session, resp ReaderResponse) {
	resp.Commands = s.Surface.Drain()
	resp.Menu = s.TakeMenu()
	c.JSON(http.StatusOK, resp)
}

func (rc *ReaderController) session(c *gin.Context) (*reader.Session, bool) {
	s, err := rc.sessions.Current()
	if err != nil {
		respondServiceError(c, err, "reader session")
		return nil, false
	}
	return s, true
}

// Open handles POST /api/reader/:id/open.
func (rc *ReaderController) Open(c *gin.Context) {
	id, ok := parseBookID(c)
	if !ok {
		return
	}
	s, err := rc.sessions.Open(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "open book")
		return
	}
	book := s.Book
	rc.respond(c, s, ReaderResponse{
		Book:        &book,
		Annotations: s.Engine.Annotations(),
		Location:    s.Location(),
	})
}

// Ready handles POST /api/reader/ready, sent once the client rendered the book.
func (rc *ReaderController) Ready(c *gin.Context) {
	s, ok := rc.session(c)
	if !ok {
		return
	}
	var req readyRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "invalid request body")
			return
		}
	}
	s.Surface.SetContainerOffset(req.Offset)
	s.Engine.SurfaceReady()
	rc.respond(c, s, ReaderResponse{})
}

// Select handles POST /api/reader/selection.
func (rc *ReaderController) Select(c *gin.Context) {
	s, ok := rc.session(c)
	if !ok {
		return
	}
	var req selectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "cfiRange is required")
		return
	}
	if req.Offset != nil {
		s.Surface.SetContainerOffset(*req.Offset)
	}
	s.Surface.ReportText(req.Range, req.Text)
	s.Surface.ReportRects(req.Range, req.Rects)

	sel, err := s.Engine.BeginSelection(req.Range)
	if err != nil {
		respondServiceError(c, err, "begin selection")
		return
	}
	rc.respond(c, s, ReaderResponse{Selection: &sel})
}

// Annotate handles POST /api/reader/annotations.
func (rc *ReaderController) Annotate(c *gin.Context) {
	s, ok := rc.session(c)
	if !ok {
		return
	}
	var req annotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "cfiRange and type are required")
		return
	}
	kind, err := entities.ParseAnnotationKind(req.Kind)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	sel := anchoring.PendingSelection{LocationRange: req.Range, Text: req.Text, CreatedAt: time.Now()}
	ann, err := s.Engine.Commit(sel, kind, req.Style, req.Note)
	if err != nil {
		respondServiceError(c, err, "commit annotation")
		return
	}
	rc.respond(c, s, ReaderResponse{Annotation: &ann})
}

// Remove handles DELETE /api/reader/annotations?cfiRange=...&type=...
func (rc *ReaderController) Remove(c *gin.Context) {
	s, ok := rc.session(c)
	if !ok {
		return
	}
	r := entities.LocationRange(c.Query("cfiRange"))
	if r == "" {
		respondBadRequest(c, "cfiRange is required")
		return
	}
	kind, err := entities.ParseAnnotationKind(c.Query("type"))
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	removed, err := s.Engine.Remove(r, kind)
	if err != nil {
		respondServiceError(c, err, "remove annotation")
		return
	}
	rc.respond(c, s, ReaderResponse{Removed: &removed})
}

// List handles GET /api/reader/annotations.
func (rc *ReaderController) List(c *gin.Context) {
	s, ok := rc.session(c)
	if !ok {
		return
	}
	list := s.Engine.Annotations()
	if list == nil {
		list = []entities.Annotation{}
	}
	rc.respond(c, s, ReaderResponse{Annotations: list})
}

// Click handles POST /api/reader/overlays/click.
func (rc *ReaderController) Click(c *gin.Context) {
	s, ok := rc.session(c)
	if !ok {
		return
	}
	var req clickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "cfiRange and type are required")
		return
	}
	kind, err := entities.ParseAnnotationKind(req.Kind)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	if len(req.Rects) > 0 {
		s.Surface.ReportRects(req.Range, req.Rects)
	}
	if err := s.Surface.Click(req.Range, kind); err != nil {
		respondServiceError(c, err, "overlay click")
		return
	}
	rc.respond(c, s, ReaderResponse{})
}

// UpdateLocation handles PUT /api/reader/location.
func (rc *ReaderController) UpdateLocation(c *gin.Context) {
	s, ok := rc.session(c)
	if !ok {
		return
	}
	var req locationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "cfiRange is required")
		return
	}
	if err := rc.sessions.UpdateLocation(req.Range); err != nil {
		respondServiceError(c, err, "update location")
		return
	}
	rc.respond(c, s, ReaderResponse{Location: &req.Range})
}

// SaveLocation handles POST /api/reader/location/save.
func (rc *ReaderController) SaveLocation(c *gin.Context) {
	s, ok := rc.session(c)
	if !ok {
		return
	}
	loc, err := rc.sessions.SaveLocation(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "save location")
		return
	}
	rc.respond(c, s, ReaderResponse{Location: &loc})
}

// Close handles POST /api/reader/close.
func (rc *ReaderController) Close(c *gin.Context) {
	rc.sessions.Close(c.Request.Context())
	respondSuccess(c, "reader closed")
}
