package providers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mrlokans/lectern/internal/entities"
	"github.com/mrlokans/lectern/internal/epub"
	"github.com/mrlokans/lectern/internal/kv"
)

const kimiFilePurpose = "file-extract"

// localDocument is the record kept for documents extracted on this host.
type localDocument struct {
	Filename  string    `json:"filename"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type kimiFile struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Ref is a parsed document reference of the form "<provider>:<id>".
type Ref struct {
	Provider entities.ProviderID
	ID       string
}

func (r Ref) String() string {
	return string(r.Provider) + ":" + r.ID
}

// ParseRef splits a stored document reference.
func ParseRef(ref string) (Ref, error) {
	provider, id, ok := strings.Cut(ref, ":")
	if !ok || id == "" {
		return Ref{}, fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	p, known := entities.ParseProviderID(provider)
	if !known {
		return Ref{}, fmt.Errorf("%w: unknown provider in %q", ErrInvalidRef, ref)
	}
	return Ref{Provider: p, ID: id}, nil
}

// RegisterDocument uploads a book so later completions can be grounded on
// it and returns the provider-side reference. Calls are not deduplicated.
func (r *Router) RegisterDocument(ctx context.Context, cfg entities.ProviderConfig, filename string, data []byte) (string, error) {
	switch cfg.ProviderID {
	case entities.ProviderKimiChat:
		id, err := r.uploadKimiFile(ctx, cfg, filename, data)
		if err != nil {
			return "", err
		}
		return Ref{Provider: cfg.ProviderID, ID: id}.String(), nil
	case entities.ProviderLocal:
		return r.storeLocalDocument(ctx, filename, data)
	default:
		return "", fmt.Errorf("%w: %s", ErrDocumentsUnsupported, cfg.ProviderID)
	}
}

// DocumentText returns the extracted text behind a reference.
func (r *Router) DocumentText(ctx context.Context, ref string) (string, error) {
	parsed, err := ParseRef(ref)
	if err != nil {
		return "", err
	}
	switch parsed.Provider {
	case entities.ProviderKimiChat:
		cfg, err := r.source.ProviderConfig(ctx, parsed.Provider)
		if err != nil {
			return "", err
		}
		if err := checkConfigured(cfg, cfg.ModelName); err != nil {
			return "", err
		}
		return r.kimiFileContent(ctx, cfg, parsed.ID)
	case entities.ProviderLocal:
		var doc localDocument
		err := kv.GetJSON(ctx, r.documents, kv.Path(entities.ConcernDocuments, parsed.ID), &doc)
		if errors.Is(err, kv.ErrNotFound) {
			return "", fmt.Errorf("%w: %s no longer exists", ErrInvalidRef, ref)
		}
		if err != nil {
			return "", err
		}
		return doc.Text, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrDocumentsUnsupported, parsed.Provider)
	}
}

func (r *Router) uploadKimiFile(ctx context.Context, cfg entities.ProviderConfig, filename string, data []byte) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("purpose", kimiFilePurpose); err != nil {
		return "", err
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	endpoint := strings.TrimRight(cfg.BaseEndpoint, "/") + "/files"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return "", &TransportError{Provider: cfg.ProviderID, Err: err}
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	setAuth(req, cfg)

	var file kimiFile
	if err := r.doJSON(req, cfg.ProviderID, &file); err != nil {
		return "", err
	}
	if file.ID == "" {
		return "", &TransportError{Provider: cfg.ProviderID, Message: "upload response carries no file id"}
	}
	return file.ID, nil
}

func (r *Router) kimiFileContent(ctx context.Context, cfg entities.ProviderConfig, id string) (string, error) {
	endpoint := strings.TrimRight(cfg.BaseEndpoint, "/") + "/files/" + url.PathEscape(id) + "/content"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", &TransportError{Provider: cfg.ProviderID, Err: err}
	}
	setAuth(req, cfg)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", &TransportError{Provider: cfg.ProviderID, Err: err}
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, cfg.ProviderID); err != nil {
		return "", err
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{Provider: cfg.ProviderID, Err: err}
	}
	return string(raw), nil
}

func (r *Router) storeLocalDocument(ctx context.Context, filename string, data []byte) (string, error) {
	book, err := epub.Read(data)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", filename, err)
	}
	text, err := book.Text()
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", filename, err)
	}

	id := uuid.New().String()
	doc := localDocument{Filename: filename, Text: text, CreatedAt: time.Now().UTC()}
	if err := kv.PutJSON(ctx, r.documents, kv.Path(entities.ConcernDocuments, id), doc); err != nil {
		return "", fmt.Errorf("store document: %w", err)
	}
	return Ref{Provider: entities.ProviderLocal, ID: id}.String(), nil
}
