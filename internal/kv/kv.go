// Package kv is the key/value persistence layer behind every per-book record.
//
// Records are addressed by slash-separated paths of the form
// <namespace>/<concern>/<id>.json. A missing record is reported as
// ErrNotFound so callers can resolve it to an empty default.
//
// # Usage
//
//	store, err := kv.NewFileStore("./data")
//	var state entities.ReadingState
//	err = kv.GetJSON(ctx, store, kv.Path(entities.ConcernReadingState, id), &state)
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/mrlokans/lectern/internal/entities"
)

var (
	ErrNotFound    = errors.New("record not found")
	ErrInvalidPath = errors.New("invalid record path")
)

// Store persists opaque documents by path.
type Store interface {
	Get(ctx context.Context, p string) ([]byte, error)
	Put(ctx context.Context, p string, data []byte) error
	// Delete removes the record. Deleting a missing record is not an error.
	Delete(ctx context.Context, p string) error
	// List returns the paths stored under prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Path builds the record path for a per-book concern.
func Path(concern string, id string) string {
	return path.Join(entities.RecordNamespace, concern, id+".json")
}

// GlobalPath builds the path of a record that is not keyed by book.
func GlobalPath(name string) string {
	return path.Join(entities.RecordNamespace, name+".json")
}

// IDFromPath returns the record id encoded in the last path element.
func IDFromPath(p string) string {
	return strings.TrimSuffix(path.Base(p), ".json")
}

// GetJSON loads and decodes the record at p into v.
func GetJSON(ctx context.Context, s Store, p string, v any) error {
	data, err := s.Get(ctx, p)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode record %s: %w", p, err)
	}
	return nil
}

// PutJSON encodes v and stores it at p.
func PutJSON(ctx context.Context, s Store, p string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", p, err)
	}
	return s.Put(ctx, p, data)
}

func validatePath(p string) error {
	if p == "" || strings.HasPrefix(p, "/") || path.Clean(p) != p || strings.HasPrefix(p, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return nil
}
