// Package anchoring turns selections on the rendering surface into durable
// annotations, replays them when a book is opened and keeps the in-memory
// list and the stored list consistent.
//
// Mutations are serialised by the engine lock and applied to the surface in
// issuance order. Persistence is debounced: every mutation marks the list
// dirty and (re)arms a timer whose expiry calls Flush. Flush snapshots the
// list at write time, so a write triggered by an edit never stores an older
// state than that edit.
package anchoring

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mrlokans/lectern/internal/entities"
)

// DefaultDebounce is the flush delay after the last edit.
const DefaultDebounce = 500 * time.Millisecond

var (
	ErrClosed     = errors.New("anchoring engine is closed")
	ErrNoRects    = errors.New("surface reported no rectangles for range")
	ErrEmptyRange = errors.New("location range is empty")
)

// PendingSelection is a selection awaiting an action. It is never stored.
type PendingSelection struct {
	LocationRange entities.LocationRange `json:"cfiRange"`
	Text          *string                `json:"text"`
	CreatedAt     time.Time              `json:"createdAt"`
}

// Options configures an Engine.
type Options struct {
	Debounce time.Duration
	OnMenu   MenuOpener
	Now      func() time.Time
}

type Engine struct {
	bookID  entities.BookID
	store   Store
	surface Surface
	opts    Options

	mu       sync.Mutex
	list     []entities.Annotation
	dirty    bool
	version  uint64
	ready    bool
	closed   bool
	timer    *time.Timer
	inflight sync.WaitGroup

	flushMu sync.Mutex
}

// New creates an engine for one open book and one surface.
func New(bookID entities.BookID, store Store, surface Surface, opts Options) *Engine {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		bookID:  bookID,
		store:   store,
		surface: surface,
		opts:    opts,
	}
}

func (e *Engine) BookID() entities.BookID {
	return e.bookID
}

// BeginSelection wraps a range reported by the surface together with its
// text and opens the action menu at it.
func (e *Engine) BeginSelection(r entities.LocationRange) (PendingSelection, error) {
	if r == "" {
		return PendingSelection{}, ErrEmptyRange
	}
	text, err := e.surface.RangeText(r)
	if err != nil {
		return PendingSelection{}, fmt.Errorf("range text: %w", err)
	}

	sel := PendingSelection{LocationRange: r, CreatedAt: e.opts.Now()}
	if text != "" {
		sel.Text = &text
	}

	pos, err := e.MenuPosition(r)
	if err != nil {
		log.Printf("[ANCHOR] No menu position for selection %s: %v", r, err)
		return sel, nil
	}
	e.openMenu(Menu{Position: pos, Selection: &sel})
	return sel, nil
}

// Commit turns a pending selection into an annotation, shows its overlay
// and schedules a flush.
func (e *Engine) Commit(sel PendingSelection, kind entities.AnnotationKind, style map[string]string, note string) (entities.Annotation, error) {
	if sel.LocationRange == "" {
		return entities.Annotation{}, ErrEmptyRange
	}
	if _, err := entities.ParseAnnotationKind(string(kind)); err != nil {
		return entities.Annotation{}, err
	}

	ann := entities.Annotation{
		LocationRange: sel.LocationRange,
		Text:          sel.Text,
		Kind:          kind,
		Note:          note,
		Style:         copyStyle(style),
		CreatedAt:     e.opts.Now(),
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return entities.Annotation{}, ErrClosed
	}

	e.list = append(e.list, ann)
	if e.ready {
		e.addOverlayLocked(ann)
	}
	e.markDirtyLocked()
	return ann, nil
}

// Remove deletes every annotation with the given identity, drops their
// shared overlay and schedules a flush. It reports whether anything was
// removed; removing an unknown annotation touches neither the surface nor
// the store.
func (e *Engine) Remove(r entities.LocationRange, kind entities.AnnotationKind) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false, ErrClosed
	}

	kept := make([]entities.Annotation, 0, len(e.list))
	for _, a := range e.list {
		if !a.Matches(r, kind) {
			kept = append(kept, a)
		}
	}
	if len(kept) == len(e.list) {
		return false, nil
	}

	e.list = kept
	if e.ready {
		if err := e.surface.RemoveOverlay(r, kind); err != nil {
			log.Printf("[ANCHOR] Failed to remove overlay %s (%s): %v", r, kind, err)
		}
	}
	e.markDirtyLocked()
	return true, nil
}

// Hydrate loads the stored annotations of the book and replays their
// overlays. When the surface is not ready yet the replay waits for
// SurfaceReady.
func (e *Engine) Hydrate(ctx context.Context) error {
	list, err := e.store.Load(ctx, e.bookID)
	if err != nil {
		return fmt.Errorf("load annotations: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}

	e.list = list
	e.dirty = false
	if e.ready {
		e.replayLocked()
	}
	log.Printf("[ANCHOR] Hydrated %d annotations for book %s (surface ready: %v)", len(list), e.bookID, e.ready)
	return nil
}

// SurfaceReady marks the surface as able to take overlays and replays
// the current list. Overlays are only issued once the surface is ready.
func (e *Engine) SurfaceReady() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.ready {
		return
	}
	e.ready = true
	e.replayLocked()
}

func (e *Engine) replayLocked() {
	for _, a := range e.list {
		e.addOverlayLocked(a)
	}
}

func (e *Engine) addOverlayLocked(a entities.Annotation) {
	if err := e.surface.AddOverlay(a.Kind, a.LocationRange, copyStyle(a.Style), e.clickHandler(a)); err != nil {
		log.Printf("[ANCHOR] Failed to add overlay %s (%s): %v", a.LocationRange, a.Kind, err)
	}
}

func (e *Engine) clickHandler(a entities.Annotation) func() {
	return func() {
		pos, err := e.MenuPosition(a.LocationRange)
		if err != nil {
			log.Printf("[ANCHOR] No menu position for overlay %s: %v", a.LocationRange, err)
			return
		}
		ann := a
		e.openMenu(Menu{Position: pos, Annotation: &ann})
	}
}

// MenuPosition returns where the action menu for a range opens: the first
// bounding rectangle of the range offset by the container position.
func (e *Engine) MenuPosition(r entities.LocationRange) (Point, error) {
	rects, err := e.surface.BoundingRects(r)
	if err != nil {
		return Point{}, err
	}
	if len(rects) == 0 {
		return Point{}, ErrNoRects
	}
	offset, err := e.surface.ContainerOffset()
	if err != nil {
		return Point{}, err
	}
	return Point{X: rects[0].X + offset.X, Y: rects[0].Y + offset.Y}, nil
}

func (e *Engine) openMenu(m Menu) {
	if e.opts.OnMenu != nil {
		e.opts.OnMenu(m)
	}
}

// Annotations returns a copy of the in-memory list in insertion order.
func (e *Engine) Annotations() []entities.Annotation {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]entities.Annotation, len(e.list))
	copy(out, e.list)
	return out
}

// Find looks up an annotation by identity.
func (e *Engine) Find(r entities.LocationRange, kind entities.AnnotationKind) (entities.Annotation, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, a := range e.list {
		if a.Matches(r, kind) {
			return a, true
		}
	}
	return entities.Annotation{}, false
}

// Dirty reports whether edits are waiting to be flushed.
func (e *Engine) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirty
}

func (e *Engine) markDirtyLocked() {
	e.dirty = true
	e.version++
	if e.timer == nil {
		e.timer = time.AfterFunc(e.opts.Debounce, e.scheduledFlush)
		return
	}
	e.timer.Reset(e.opts.Debounce)
}

func (e *Engine) scheduledFlush() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.inflight.Add(1)
	e.mu.Unlock()
	defer e.inflight.Done()

	if err := e.Flush(context.Background()); err != nil {
		log.Printf("[ANCHOR] Flush for book %s failed, will retry on next edit: %v", e.bookID, err)
	}
}

// Flush writes the current list when it has unsaved edits. It is safe to
// call at any time and does nothing when the list is clean.
func (e *Engine) Flush(ctx context.Context) error {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()

	e.mu.Lock()
	if !e.dirty {
		e.mu.Unlock()
		return nil
	}
	snapshot := make([]entities.Annotation, len(e.list))
	copy(snapshot, e.list)
	version := e.version
	e.mu.Unlock()

	if err := e.store.Save(ctx, e.bookID, snapshot); err != nil {
		return fmt.Errorf("save annotations: %w", err)
	}

	e.mu.Lock()
	if e.version == version {
		e.dirty = false
	}
	e.mu.Unlock()
	return nil
}

// Close stops scheduling flushes, waits for a flush already running and
// writes any remaining edits. The engine rejects edits afterwards.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	if e.timer != nil {
		e.timer.Stop()
	}
	e.mu.Unlock()

	e.inflight.Wait()
	return e.Flush(ctx)
}

func copyStyle(style map[string]string) map[string]string {
	if len(style) == 0 {
		return nil
	}
	out := make(map[string]string, len(style))
	for k, v := range style {
		out[k] = v
	}
	return out
}
