package entities

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// BookID is the lowercase hex SHA-256 digest of a book's bytes.
// It is the join key across every per-book store.
type BookID string

// NewBookID derives the content address of the given bytes.
func NewBookID(data []byte) BookID {
	sum := sha256.Sum256(data)
	return BookID(hex.EncodeToString(sum[:]))
}

func (id BookID) String() string {
	return string(id)
}

// Valid reports whether the identifier has the shape of a SHA-256 hex digest.
func (id BookID) Valid() bool {
	if len(id) != sha256.Size*2 {
		return false
	}
	for _, r := range id {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

const (
	DefaultBookTitle  = "Untitled"
	DefaultBookAuthor = "Unknown"
)

// BookMeta is the metadata recorded when a book is first uploaded.
type BookMeta struct {
	ID             BookID    `json:"id"`
	Title          string    `json:"title"`
	Author         string    `json:"author"`
	Description    string    `json:"description,omitempty"`
	Language       string    `json:"language,omitempty"`
	Filename       string    `json:"filename"`
	SizeBytes      int64     `json:"size_bytes"`
	CoverMediaType string    `json:"cover_media_type,omitempty"`
	UploadedAt     time.Time `json:"uploaded_at"`
}

// HasCover reports whether a cover image was extracted for the book.
func (m BookMeta) HasCover() bool {
	return m.CoverMediaType != ""
}
