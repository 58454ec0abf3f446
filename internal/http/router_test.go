package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/lectern/internal/anchoring"
	"github.com/mrlokans/lectern/internal/database/annotations"
	"github.com/mrlokans/lectern/internal/database/readingstate"
	"github.com/mrlokans/lectern/internal/entities"
	"github.com/mrlokans/lectern/internal/epub/epubtest"
	"github.com/mrlokans/lectern/internal/kv"
	"github.com/mrlokans/lectern/internal/library"
	"github.com/mrlokans/lectern/internal/reader"
)

const missingBook = "0000000000000000000000000000000000000000000000000000000000000000"

type testServer struct {
	router *gin.Engine
	lib    *library.Library
	notes  *annotations.Repository
	states *readingstate.Repository
}

func setupServer(t *testing.T, maxUpload int64, extra func(*RouterConfig)) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	blobs, err := library.NewFileBlobs(dir)
	require.NoError(t, err)
	records, err := kv.NewFileStore(dir)
	require.NoError(t, err)

	s := testServer{
		lib:    library.New(blobs, records, maxUpload),
		notes:  annotations.NewRepository(records),
		states: readingstate.NewRepository(records),
	}
	cfg := RouterConfig{
		Books:        s.lib,
		Reader:       reader.NewManager(s.lib, s.notes, s.states, time.Hour),
		DefaultModel: "moonshot-v1-8k",
		Version:      "test",
	}
	if extra != nil {
		extra(&cfg)
	}
	s.router = NewRouter(cfg)
	return s
}

func (s testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s testServer) upload(t *testing.T, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, "/api/books", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func sampleBook(title string) []byte {
	return epubtest.Build(epubtest.Options{
		Title:    title,
		Author:   "Jane Austen",
		Cover:    []byte("cover-bytes"),
		Chapters: []epubtest.Chapter{{Name: "ch1.xhtml", Body: "<p>" + title + "</p>"}},
	})
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type uploadResponse struct {
	Book    entities.BookMeta `json:"book"`
	Created bool              `json:"created"`
}

type failingPinger struct{}

func (failingPinger) Ping() error { return errors.New("database is locked") }

func TestHealthController_Status(t *testing.T) {
	t.Run("healthy without a database", func(t *testing.T) {
		s := setupServer(t, 0, nil)
		w := s.do(t, http.MethodGet, "/health", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decode[HealthResponse](t, w)
		assert.Equal(t, "healthy", resp.Status)
		assert.Equal(t, "test", resp.Version)
		assert.Equal(t, "not configured", resp.Checks["database"])
	})

	t.Run("unhealthy when ping fails", func(t *testing.T) {
		s := setupServer(t, 0, func(cfg *RouterConfig) { cfg.Database = failingPinger{} })
		w := s.do(t, http.MethodGet, "/health", nil)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		resp := decode[HealthResponse](t, w)
		assert.Equal(t, "unhealthy", resp.Status)
		assert.Contains(t, resp.Checks["database"], "database is locked")
	})

	t.Run("task queue does not affect status", func(t *testing.T) {
		s := setupServer(t, 0, func(cfg *RouterConfig) { cfg.Tasks = &fakeQueue{} })
		w := s.do(t, http.MethodGet, "/health", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ok", decode[HealthResponse](t, w).Checks["tasks"])
	})

	t.Run("reports the open book", func(t *testing.T) {
		s := setupServer(t, 0, nil)
		resp := decode[HealthResponse](t, s.do(t, http.MethodGet, "/health", nil))
		assert.Empty(t, resp.OpenBook)
		assert.Equal(t, "disabled", resp.Checks["tasks"])

		data := sampleBook("Persuasion")
		require.Equal(t, http.StatusCreated, s.upload(t, "p.epub", data).Code)
		id := entities.NewBookID(data)
		require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/reader/"+id.String()+"/open", nil).Code)

		w := s.do(t, http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, id.String(), decode[HealthResponse](t, w).OpenBook)
	})
}

func TestBooksController(t *testing.T) {
	t.Run("upload list get cover delete", func(t *testing.T) {
		s := setupServer(t, 0, nil)
		data := sampleBook("Emma")

		w := s.upload(t, "emma.epub", data)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		created := decode[uploadResponse](t, w)
		assert.True(t, created.Created)
		assert.Equal(t, "Emma", created.Book.Title)
		assert.Equal(t, entities.NewBookID(data), created.Book.ID)

		w = s.upload(t, "copy.epub", data)
		require.Equal(t, http.StatusOK, w.Code)
		again := decode[uploadResponse](t, w)
		assert.False(t, again.Created)
		assert.Equal(t, "emma.epub", again.Book.Filename, "duplicate upload keeps existing metadata")

		w = s.do(t, http.MethodGet, "/api/books", nil)
		require.Equal(t, http.StatusOK, w.Code)
		list := decode[struct {
			Books []entities.BookMeta `json:"books"`
			Count int                 `json:"count"`
		}](t, w)
		assert.Equal(t, 1, list.Count)

		id := created.Book.ID.String()
		w = s.do(t, http.MethodGet, "/api/books/"+id, nil)
		assert.Equal(t, http.StatusOK, w.Code)

		w = s.do(t, http.MethodGet, "/api/books/"+id+"/cover", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "cover-bytes", w.Body.String())

		w = s.do(t, http.MethodDelete, "/api/books/"+id, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		w = s.do(t, http.MethodGet, "/api/books/"+id, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("rejects other formats", func(t *testing.T) {
		s := setupServer(t, 0, nil)
		w := s.upload(t, "notes.txt", []byte("plain text"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects oversized uploads", func(t *testing.T) {
		s := setupServer(t, 64, nil)
		w := s.upload(t, "big.epub", sampleBook("Big"))
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Equal(t, CodeTooLarge, decode[ErrorResponse](t, w).Code)
	})

	t.Run("missing file field", func(t *testing.T) {
		s := setupServer(t, 0, nil)
		w := s.do(t, http.MethodPost, "/api/books", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown and invalid ids", func(t *testing.T) {
		s := setupServer(t, 0, nil)
		assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/books/"+missingBook, nil).Code)
		assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/books/not-a-digest", nil).Code)
		assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/api/books/"+missingBook, nil).Code)
	})
}

func TestReaderController_Flow(t *testing.T) {
	s := setupServer(t, 0, nil)
	w := s.upload(t, "emma.epub", sampleBook("Emma"))
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[uploadResponse](t, w).Book.ID

	const cfi = "epubcfi(/6/4!/4/2,/1:0,/1:26)"

	w = s.do(t, http.MethodPost, "/api/reader/selection", map[string]any{"cfiRange": cfi})
	assert.Equal(t, http.StatusConflict, w.Code, "no book open")

	w = s.do(t, http.MethodPost, "/api/reader/"+id.String()+"/open", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	opened := decode[ReaderResponse](t, w)
	require.NotNil(t, opened.Book)
	assert.Equal(t, "Emma", opened.Book.Title)
	assert.Empty(t, opened.Commands)

	w = s.do(t, http.MethodPost, "/api/reader/ready", map[string]any{"offset": map[string]float64{"x": 5, "y": 7}})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/api/reader/selection", map[string]any{
		"cfiRange": cfi,
		"text":     "handsome, clever, and rich",
		"rects":    []map[string]float64{{"x": 10, "y": 20, "width": 50, "height": 10}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	sel := decode[ReaderResponse](t, w)
	require.NotNil(t, sel.Selection)
	require.NotNil(t, sel.Menu)
	assert.Equal(t, anchoring.Point{X: 15, Y: 27}, sel.Menu.Position)

	w = s.do(t, http.MethodPost, "/api/reader/annotations", map[string]any{
		"cfiRange": cfi,
		"text":     "handsome, clever, and rich",
		"type":     "highlight",
		"styles":   map[string]string{"fill": "yellow"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	committed := decode[ReaderResponse](t, w)
	require.NotNil(t, committed.Annotation)
	require.Len(t, committed.Commands, 1)
	assert.Equal(t, anchoring.CommandAdd, committed.Commands[0].Op)

	w = s.do(t, http.MethodPost, "/api/reader/overlays/click", map[string]any{"cfiRange": cfi, "type": "highlight"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	clicked := decode[ReaderResponse](t, w)
	require.NotNil(t, clicked.Menu)
	require.NotNil(t, clicked.Menu.Annotation)

	w = s.do(t, http.MethodGet, "/api/reader/annotations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[ReaderResponse](t, w).Annotations, 1)

	w = s.do(t, http.MethodDelete, "/api/reader/annotations?type=underline&cfiRange="+cfi, nil)
	require.Equal(t, http.StatusOK, w.Code)
	missing := decode[ReaderResponse](t, w)
	require.NotNil(t, missing.Removed)
	assert.False(t, *missing.Removed)
	assert.Empty(t, missing.Commands)

	w = s.do(t, http.MethodPut, "/api/reader/location", map[string]any{"cfiRange": "epubcfi(/6/8!/4/2/1:0)"})
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodPost, "/api/reader/location/save", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/api/reader/close", nil)
	require.Equal(t, http.StatusOK, w.Code)

	ctx := context.Background()
	stored, err := s.notes.Load(ctx, id)
	require.NoError(t, err)
	assert.Len(t, stored, 1, "closing flushes pending edits")

	state, err := s.states.Load(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, state.LastLocation)
	assert.Equal(t, entities.LocationRange("epubcfi(/6/8!/4/2/1:0)"), *state.LastLocation)

	w = s.do(t, http.MethodGet, "/api/reader/annotations", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestReaderController_BadRequests(t *testing.T) {
	s := setupServer(t, 0, nil)
	w := s.upload(t, "emma.epub", sampleBook("Emma"))
	id := decode[uploadResponse](t, w).Book.ID
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/reader/"+id.String()+"/open", nil).Code)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown kind", http.MethodPost, "/api/reader/annotations", map[string]any{"cfiRange": "epubcfi(/6/2)", "type": "strike"}, http.StatusBadRequest},
		{"missing range", http.MethodPost, "/api/reader/selection", map[string]any{"text": "x"}, http.StatusBadRequest},
		{"unreported range", http.MethodPost, "/api/reader/overlays/click", map[string]any{"cfiRange": "epubcfi(/6/2)", "type": "note"}, http.StatusBadRequest},
		{"nothing to save", http.MethodPost, "/api/reader/location/save", nil, http.StatusBadRequest},
		{"open missing book", http.MethodPost, "/api/reader/" + missingBook + "/open", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestRouter_PingAndUnknownTask(t *testing.T) {
	s := setupServer(t, 0, nil)
	w := s.do(t, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "pong"))

	w = s.do(t, http.MethodGet, "/api/tasks/types", nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "task routes need a queue")
}
