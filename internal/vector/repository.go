package vector

import "context"

// Metadata describes where a chunk came from.
type Metadata struct {
	Source     string `json:"source"`
	ChunkIndex int    `json:"chunk_index"`
	Category   string `json:"category"`
}

// Document represents a chunk of document text with its embedding.
// ID is the storage point ID; ChunkID is the caller-visible chunk
// identifier ("<filename>_chunk_<index>").
type Document struct {
	ID      string
	ChunkID string
	Content string
	Vector  []float32
	Meta    Metadata
}

// SearchResult is a single match from a similarity search. Score is a
// cosine similarity: higher means more relevant.
type SearchResult struct {
	ChunkID string
	Score   float32
	Content string
	Meta    Metadata
}

// StoredChunk is one entry returned by a full listing.
type StoredChunk struct {
	ChunkID string
	Content string
	Meta    Metadata
}

// Repository provides vector storage and similarity search over chunks.
type Repository interface {
	// Upsert inserts or updates documents. Duplicate point IDs overwrite.
	Upsert(ctx context.Context, docs []Document) error
	// Search finds the top-k most similar chunks, ordered by descending
	// similarity. Returns fewer than k when fewer chunks are stored.
	Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error)
	// List returns every stored chunk. Ordering is not guaranteed.
	List(ctx context.Context) ([]StoredChunk, error)
	// CountBySource returns the number of chunks stored for a filename.
	CountBySource(ctx context.Context, source string) (int, error)
	// DeleteBySource removes every chunk stored for a filename.
	DeleteBySource(ctx context.Context, source string) error
	// DeleteAll irreversibly removes every stored chunk.
	DeleteAll(ctx context.Context) error
	// Close releases resources.
	Close() error
}
