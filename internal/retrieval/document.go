// Package retrieval indexes the resume and returns the passages most
// relevant to a visitor's question.
package retrieval

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// ErrEmptyDocument is returned when a source contains no text.
var ErrEmptyDocument = errors.New("retrieval: document has no text")

func isPDF(name string, data []byte) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf") || bytes.HasPrefix(data, []byte("%PDF-"))
}

// LoadDocument extracts the text of a PDF or plain-text resume. name is only
// used to detect the format.
func LoadDocument(ctx context.Context, name string, data []byte) (string, error) {
	var docs []schema.Document
	var err error
	if isPDF(name, data) {
		docs, err = documentloaders.NewPDF(bytes.NewReader(data), int64(len(data))).Load(ctx)
	} else {
		docs, err = documentloaders.NewText(bytes.NewReader(data)).Load(ctx)
	}
	if err != nil {
		return "", fmt.Errorf("retrieval: load %s: %w", name, err)
	}

	pages := make([]string, 0, len(docs))
	for _, d := range docs {
		if s := strings.TrimSpace(d.PageContent); s != "" {
			pages = append(pages, s)
		}
	}
	if len(pages) == 0 {
		return "", ErrEmptyDocument
	}
	return strings.Join(pages, "\n"), nil
}

// Split cuts text into overlapping chunks of at most size characters.
func Split(text string, size, overlap int) ([]string, error) {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		return nil, fmt.Errorf("retrieval: chunk overlap %d must be smaller than chunk size %d", overlap, size)
	}
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
	)
	chunks, err := splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("retrieval: split text: %w", err)
	}
	out := chunks[:0]
	for _, c := range chunks {
		if strings.TrimSpace(c) != "" {
			out = append(out, c)
		}
	}
	return out, nil
}
