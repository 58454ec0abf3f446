// Package extract pulls structured payloads out of free-form model replies.
package extract

import (
	"encoding/json"
	"fmt"
	"strings"
)

const fence = "```"

// NotFoundError is returned when the reply has no block of the language.
type NotFoundError struct {
	Language string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s block in reply", e.Language)
}

// MalformedPayloadError is returned when a block exists but cannot be decoded.
type MalformedPayloadError struct {
	Err error
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("malformed payload: %v", e.Err)
}

func (e *MalformedPayloadError) Unwrap() error {
	return e.Err
}

// FencedBlock returns the content of the first fenced block tagged with
// language, without the fence lines. The tag comparison ignores case. Bare
// fences elsewhere in the reply are ignored, and a block may sit on one
// line ("```mermaid graph TD```").
func FencedBlock(text, language string) (string, error) {
	for i := 0; i+len(fence)+len(language) <= len(text); i++ {
		if !strings.HasPrefix(text[i:], fence) {
			continue
		}
		tagEnd := i + len(fence) + len(language)
		if !strings.EqualFold(text[i+len(fence):tagEnd], language) {
			continue
		}
		if tagEnd == len(text) || !isSpace(text[tagEnd]) {
			continue
		}

		rest := text[tagEnd:]
		end := strings.Index(rest, fence)
		if end < 0 {
			return "", &NotFoundError{Language: language}
		}
		block := rest[:end]
		// Attributes after the tag end with the tag line
		if nl := strings.IndexByte(block, '\n'); nl >= 0 {
			return block[nl+1:], nil
		}
		return strings.TrimSpace(block), nil
	}
	return "", &NotFoundError{Language: language}
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// JSONBlock decodes the first fenced json block into v. Escaped quotes
// (\") inside the block are unescaped before decoding.
func JSONBlock(text string, v any) error {
	block, err := FencedBlock(text, "json")
	if err != nil {
		return err
	}
	block = strings.ReplaceAll(block, `\"`, `"`)
	if err := json.Unmarshal([]byte(block), v); err != nil {
		return &MalformedPayloadError{Err: err}
	}
	return nil
}
