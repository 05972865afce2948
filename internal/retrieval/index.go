package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"strings"

	"github.com/philippgille/chromem-go"

	"portfolio-chat/internal/integrations/paramstore"
)

const collectionName = "resume"

// Index answers context queries from an in-process vector collection of
// resume chunks. It is read-only once built.
type Index struct {
	collection *chromem.Collection
}

// NewIndex embeds chunks and stores them in a fresh in-memory collection.
func NewIndex(ctx context.Context, chunks []string, embed chromem.EmbeddingFunc) (*Index, error) {
	if embed == nil {
		return nil, errors.New("retrieval: embedding func must not be nil")
	}
	db := chromem.NewDB()
	collection, err := db.CreateCollection(collectionName, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("retrieval: create collection: %w", err)
	}

	docs := make([]chromem.Document, 0, len(chunks))
	for i, c := range chunks {
		docs = append(docs, chromem.Document{
			ID:       strconv.Itoa(i),
			Content:  c,
			Metadata: map[string]string{"chunk": strconv.Itoa(i)},
		})
	}
	if len(docs) > 0 {
		if err := collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
			return nil, fmt.Errorf("retrieval: add documents: %w", err)
		}
	}
	return &Index{collection: collection}, nil
}

// Len returns the number of indexed chunks.
func (ix *Index) Len() int {
	return ix.collection.Count()
}

// GetContext returns up to k chunks most similar to query, best first,
// separated by a blank line. An empty index or query yields "".
func (ix *Index) GetContext(ctx context.Context, query string, k int) (string, error) {
	if strings.TrimSpace(query) == "" || k <= 0 {
		return "", nil
	}
	n := ix.collection.Count()
	if n == 0 {
		return "", nil
	}
	if k > n {
		k = n
	}
	results, err := ix.collection.Query(ctx, query, k, nil, nil)
	if err != nil {
		return "", fmt.Errorf("retrieval: query: %w", err)
	}
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, r.Content)
	}
	return strings.Join(parts, "\n\n"), nil
}

// Options configures Build.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
}

// Build reads the resume behind ref (a file path or "ssm:" reference),
// chunks it and indexes the chunks.
func Build(ctx context.Context, params paramstore.Getter, ref string, embed chromem.EmbeddingFunc, opts Options) (*Index, error) {
	data, err := paramstore.ReadSource(ctx, params, ref)
	if err != nil {
		return nil, fmt.Errorf("retrieval: read resume: %w", err)
	}
	text, err := LoadDocument(ctx, ref, data)
	if err != nil {
		return nil, err
	}
	chunks, err := Split(text, opts.ChunkSize, opts.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	ix, err := NewIndex(ctx, chunks, embed)
	if err != nil {
		return nil, err
	}
	slog.Info("resume indexed", "source", ref, "chunks", ix.Len())
	return ix, nil
}

// ErrUnavailable is returned by Unavailable.
var ErrUnavailable = errors.New("retrieval: resume index unavailable")

// Unavailable stands in for an index that could not be built at startup.
type Unavailable struct {
	Reason error
}

func (u Unavailable) GetContext(context.Context, string, int) (string, error) {
	if u.Reason == nil {
		return "", ErrUnavailable
	}
	return "", fmt.Errorf("%w: %v", ErrUnavailable, u.Reason)
}
