// Package library is the content store: it keeps uploaded book bytes under
// their SHA-256 content address together with metadata and a cover image.
package library

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mrlokans/lectern/internal/entities"
	"github.com/mrlokans/lectern/internal/epub"
	"github.com/mrlokans/lectern/internal/kv"
)

const (
	// DefaultMaxUploadBytes is the upload size limit when none is configured.
	DefaultMaxUploadBytes = 50 << 20

	bookMediaType = "application/epub+zip"
	bookPrefix    = "epub-data"
	bookExt       = ".epub"
)

var (
	ErrBookNotFound    = errors.New("book not found")
	ErrCoverNotFound   = errors.New("cover not found")
	ErrUnsupportedFile = errors.New("only .epub files are supported")
	ErrEmptyFile       = errors.New("file is empty")
)

// TooLargeError reports an upload over the size limit.
type TooLargeError struct {
	Size  int64
	Limit int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("file is %d bytes, limit is %d bytes", e.Size, e.Limit)
}

// Library implements the content store.
type Library struct {
	blobs    BlobStore
	records  kv.Store
	maxBytes int64
	now      func() time.Time

	mu      sync.Mutex
	onDelete []DeleteHook
}

// DeleteHook runs after a book is deleted. groundingRef is the reference
// the book was grounded with, empty when it never was.
type DeleteHook func(id entities.BookID, groundingRef string)

// OnDelete registers hooks that run after every successful Delete.
func (l *Library) OnDelete(hooks ...DeleteHook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onDelete = append(l.onDelete, hooks...)
}

// New creates a library. maxBytes <= 0 selects DefaultMaxUploadBytes.
func New(blobs BlobStore, records kv.Store, maxBytes int64) *Library {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &Library{
		blobs:    blobs,
		records:  records,
		maxBytes: maxBytes,
		now:      time.Now,
	}
}

// MaxUploadBytes returns the configured size limit.
func (l *Library) MaxUploadBytes() int64 {
	return l.maxBytes
}

// Upload stores the book and returns its metadata. Uploading bytes that are
// already stored returns the existing metadata untouched and created=false.
func (l *Library) Upload(ctx context.Context, filename string, data []byte) (entities.BookMeta, bool, error) {
	if !strings.EqualFold(path.Ext(filename), bookExt) {
		return entities.BookMeta{}, false, ErrUnsupportedFile
	}
	if len(data) == 0 {
		return entities.BookMeta{}, false, ErrEmptyFile
	}
	if int64(len(data)) > l.maxBytes {
		return entities.BookMeta{}, false, &TooLargeError{Size: int64(len(data)), Limit: l.maxBytes}
	}

	id := entities.NewBookID(data)

	l.mu.Lock()
	defer l.mu.Unlock()

	existing, err := l.Get(ctx, id)
	if err == nil {
		// Metadata is kept, but bytes lost from the blob store are restored.
		if _, err := l.blobs.Get(ctx, bookKey(id)); errors.Is(err, ErrBlobNotFound) {
			if err := l.blobs.Put(ctx, bookKey(id), data, bookMediaType); err != nil {
				return entities.BookMeta{}, false, fmt.Errorf("store book: %w", err)
			}
		}
		return existing, false, nil
	}
	if !errors.Is(err, ErrBookNotFound) {
		return entities.BookMeta{}, false, err
	}

	meta := entities.BookMeta{
		ID:         id,
		Title:      entities.DefaultBookTitle,
		Author:     entities.DefaultBookAuthor,
		Filename:   path.Base(filename),
		SizeBytes:  int64(len(data)),
		UploadedAt: l.now().UTC(),
	}

	book, err := epub.Read(data)
	if err != nil {
		log.Printf("Library: could not read metadata of %s: %v", filename, err)
	} else {
		if book.Title != "" {
			meta.Title = book.Title
		}
		if book.Author != "" {
			meta.Author = book.Author
		}
		meta.Description = book.Description
		meta.Language = book.Language
	}

	if err := l.blobs.Put(ctx, bookKey(id), data, bookMediaType); err != nil {
		return entities.BookMeta{}, false, fmt.Errorf("store book: %w", err)
	}
	if book != nil && len(book.Cover) > 0 {
		if err := l.blobs.Put(ctx, coverKey(id), book.Cover, book.CoverMediaType); err != nil {
			log.Printf("Library: could not store cover of %s: %v", id, err)
		} else {
			meta.CoverMediaType = book.CoverMediaType
		}
	}
	if err := kv.PutJSON(ctx, l.records, kv.Path(entities.ConcernMetadata, id.String()), meta); err != nil {
		return entities.BookMeta{}, false, fmt.Errorf("store metadata: %w", err)
	}

	log.Printf("Library: stored %q by %s as %s", meta.Title, meta.Author, id)
	return meta, true, nil
}

// Get returns the metadata of a stored book.
func (l *Library) Get(ctx context.Context, id entities.BookID) (entities.BookMeta, error) {
	var meta entities.BookMeta
	err := kv.GetJSON(ctx, l.records, kv.Path(entities.ConcernMetadata, id.String()), &meta)
	if errors.Is(err, kv.ErrNotFound) {
		return entities.BookMeta{}, ErrBookNotFound
	}
	if err != nil {
		return entities.BookMeta{}, err
	}
	return meta, nil
}

// List returns every stored book, most recently uploaded first.
func (l *Library) List(ctx context.Context) ([]entities.BookMeta, error) {
	paths, err := l.records.List(ctx, path.Join(entities.RecordNamespace, entities.ConcernMetadata)+"/")
	if err != nil {
		return nil, err
	}
	books := make([]entities.BookMeta, 0, len(paths))
	for _, p := range paths {
		meta, err := l.Get(ctx, entities.BookID(kv.IDFromPath(p)))
		if err != nil {
			log.Printf("Library: skipping unreadable metadata %s: %v", p, err)
			continue
		}
		books = append(books, meta)
	}
	sort.SliceStable(books, func(i, j int) bool {
		return books[i].UploadedAt.After(books[j].UploadedAt)
	})
	return books, nil
}

// Bytes returns the stored content of a book.
func (l *Library) Bytes(ctx context.Context, id entities.BookID) ([]byte, error) {
	data, err := l.blobs.Get(ctx, bookKey(id))
	if errors.Is(err, ErrBlobNotFound) {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load book: %w", err)
	}
	return data, nil
}

// Cover returns the cover image and its media type.
func (l *Library) Cover(ctx context.Context, id entities.BookID) ([]byte, string, error) {
	meta, err := l.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if !meta.HasCover() {
		return nil, "", ErrCoverNotFound
	}
	data, err := l.blobs.Get(ctx, coverKey(id))
	if errors.Is(err, ErrBlobNotFound) {
		return nil, "", ErrCoverNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("load cover: %w", err)
	}
	return data, meta.CoverMediaType, nil
}

// Delete removes the book with every record keyed by its id, including a
// locally stored grounding document, then runs the OnDelete hooks.
func (l *Library) Delete(ctx context.Context, id entities.BookID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.Get(ctx, id); err != nil {
		return err
	}

	// The reading state holds the only pointer to a locally stored document
	var state entities.ReadingState
	if err := kv.GetJSON(ctx, l.records, kv.Path(entities.ConcernReadingState, id.String()), &state); err != nil && !errors.Is(err, kv.ErrNotFound) {
		log.Printf("Library: unreadable reading state of %s, deleting without it: %v", id, err)
	}

	paths := []string{
		kv.Path(entities.ConcernAnnotations, id.String()),
		kv.Path(entities.ConcernReadingState, id.String()),
		kv.Path(entities.ConcernConversation, id.String()),
	}
	if doc, ok := localDocumentID(state.GroundingRef); ok {
		paths = append(paths, kv.Path(entities.ConcernDocuments, doc))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return l.blobs.Delete(gctx, bookKey(id)) })
	g.Go(func() error { return l.blobs.Delete(gctx, coverKey(id)) })
	for _, p := range paths {
		g.Go(func() error { return l.records.Delete(gctx, p) })
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("delete book %s: %w", id, err)
	}

	// Metadata goes last so a failed delete can be retried.
	if err := l.records.Delete(ctx, kv.Path(entities.ConcernMetadata, id.String())); err != nil {
		return fmt.Errorf("delete book %s: %w", id, err)
	}
	log.Printf("Library: deleted %s", id)

	for _, hook := range l.onDelete {
		hook(id, state.GroundingRef)
	}
	return nil
}

// localDocumentID returns the record id of a "local:<id>" grounding ref.
func localDocumentID(ref string) (string, bool) {
	id, ok := strings.CutPrefix(ref, string(entities.ProviderLocal)+":")
	return id, ok && id != ""
}

func bookKey(id entities.BookID) string {
	return path.Join(bookPrefix, id.String()+bookExt)
}

func coverKey(id entities.BookID) string {
	return path.Join(entities.RecordNamespace, entities.ConcernCovers, id.String())
}
