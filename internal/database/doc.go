// Package database provides the data access layer for per-book records.
//
// # Architecture
//
// Records are plain JSON documents addressed by book id and kept in a
// kv.Store, either as files under the data directory or as rows of the
// SQLite records table opened by NewDatabase:
//
//	database/
//	├── database.go      # SQLite connection setup and migrations
//	├── annotations/     # Annotation list per book
//	├── readingstate/    # Last location and grounding reference per book
//	├── conversations/   # Conversation history per book
//	└── settings/        # Global provider settings record
//
// # Using Sub-packages
//
// Each sub-package provides a Repository over a kv.Store:
//
//	db, err := database.NewDatabase("./lectern.db")
//	store := db.Records()
//
//	annotationsRepo := annotations.NewRepository(store)
//	list, err := annotationsRepo.Load(ctx, bookID)
//
// A missing record is never an error: Load returns the empty value for the
// concern (an empty list, a zero ReadingState, an empty history).
//
// # Adding a New Concern
//
//  1. Add the concern name to internal/entities/setting.go
//  2. Create a sub-package with a Repository holding a kv.Store
//  3. Add NewRepository(store kv.Store) constructor
//  4. Add compile-time interface checks in internal/interfaces
package database
