// Package service implements the document ingestion and question answering
// operations behind the HTTP API and the chat client.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/askpdf/askpdf/internal/chunker"
	"github.com/askpdf/askpdf/internal/extract"
	"github.com/askpdf/askpdf/internal/llm"
	"github.com/askpdf/askpdf/internal/observability"
	"github.com/askpdf/askpdf/internal/vector"
)

// RetrievalTopK is the number of chunks retrieved per query.
const RetrievalTopK = 3

const answerSystem = "You are an AI assistant. Use the following context to answer the question."

const answerTemplate = "Context:\n%s\n\nQuestion: %s\n\nAnswer:"

// Point IDs are derived from chunk IDs under this namespace so that
// re-uploading a file overwrites its points instead of duplicating them.
var pointNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// DuplicatePolicy controls what happens when a file with chunks already in
// the store is uploaded again.
type DuplicatePolicy string

const (
	// DuplicateReplace deletes the file's old chunks before storing the
	// new ones.
	DuplicateReplace DuplicatePolicy = "replace"
	// DuplicateAppend stores the new chunks alongside the old ones.
	DuplicateAppend DuplicatePolicy = "append"
	// DuplicateReject leaves the store untouched and reports the existing
	// chunk count.
	DuplicateReject DuplicatePolicy = "reject"
)

// ValidDuplicatePolicy reports whether p is a recognized policy.
func ValidDuplicatePolicy(p DuplicatePolicy) bool {
	switch p {
	case DuplicateReplace, DuplicateAppend, DuplicateReject:
		return true
	}
	return false
}

// Service wires extraction, chunking, embedding, storage, and completion
// into the four document operations.
type Service struct {
	extractor extract.Extractor
	splitter  *chunker.Splitter
	provider  llm.Provider
	repo      vector.Repository
	policy    DuplicatePolicy
	genOpts   *llm.RequestOptions
	logger    *slog.Logger
}

// New creates a service. genOpts carries the configured generation
// parameters for completions; nil uses provider defaults. A nil logger falls
// back to slog.Default.
func New(extractor extract.Extractor, splitter *chunker.Splitter, provider llm.Provider, repo vector.Repository, policy DuplicatePolicy, genOpts *llm.RequestOptions, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if !ValidDuplicatePolicy(policy) {
		policy = DuplicateReplace
	}
	return &Service{
		extractor: extractor,
		splitter:  splitter,
		provider:  provider,
		repo:      repo,
		policy:    policy,
		genOpts:   genOpts,
		logger:    logger,
	}
}

// UploadResult is the outcome of a document upload.
type UploadResult struct {
	Message      string `json:"message"`
	ChunksStored int    `json:"chunks_stored"`
}

// QueryResult is the outcome of a question.
type QueryResult struct {
	Query            string    `json:"query"`
	Answer           string    `json:"answer"`
	RetrievedContext string    `json:"retrieved_context"`
	Scores           []float32 `json:"scores"`
}

// Collection lists every stored chunk as parallel slices: Documents[i],
// Metadatas[i], and IDs[i] describe the same chunk.
type Collection struct {
	Documents []string          `json:"documents"`
	Metadatas []vector.Metadata `json:"metadatas"`
	IDs       []string          `json:"ids"`
}

// Upload extracts text from a PDF, chunks it, embeds the chunks, and stores
// them. A PDF with no extractable text stores zero chunks and succeeds.
func (s *Service) Upload(ctx context.Context, filename string, data []byte) (*UploadResult, error) {
	start := time.Now()
	result, err := s.upload(ctx, filename, data)
	chunks := 0
	if result != nil {
		chunks = result.ChunksStored
	}
	observability.Metrics().RecordUpload(time.Since(start), chunks, err)
	return result, err
}

func (s *Service) upload(ctx context.Context, filename string, data []byte) (*UploadResult, error) {
	const op = "upload"

	if strings.TrimSpace(filename) == "" {
		return nil, errf(KindValidation, op, "missing filename")
	}
	if len(data) == 0 {
		return nil, errf(KindValidation, op, "empty file %q", filename)
	}

	ctx, span := observability.StartUploadSpan(ctx, filename, len(data))
	defer span.End()

	text, err := s.extractText(ctx, filename, data)
	if err != nil {
		observability.RecordError(span, err)
		return nil, wrapErr(KindExtraction, op, err)
	}

	chunks := s.splitter.Split(text)
	if len(chunks) == 0 {
		s.logger.Warn("no extractable text", "filename", filename)
		observability.RecordUploadResult(span, 0)
		return &UploadResult{Message: "No text could be extracted from the file", ChunksStored: 0}, nil
	}

	switch s.policy {
	case DuplicateReject:
		existing, err := s.repo.CountBySource(ctx, filename)
		if err != nil {
			observability.RecordError(span, err)
			return nil, wrapErr(KindIndex, op, err)
		}
		if existing > 0 {
			observability.RecordUploadResult(span, 0)
			return &UploadResult{Message: "File already processed and stored", ChunksStored: existing}, nil
		}
	case DuplicateReplace:
		existing, err := s.repo.CountBySource(ctx, filename)
		if err != nil {
			observability.RecordError(span, err)
			return nil, wrapErr(KindIndex, op, err)
		}
		if existing > 0 {
			if err := s.repo.DeleteBySource(ctx, filename); err != nil {
				observability.RecordError(span, err)
				return nil, wrapErr(KindIndex, op, err)
			}
			// Keep the stored-chunks gauge honest about the replaced points.
			observability.Metrics().StoredChunksGauge.Add(-float64(existing))
		}
	}

	vectors, err := s.embed(ctx, chunks)
	if err != nil {
		observability.RecordError(span, err)
		return nil, wrapErr(KindModelUnavailable, op, err)
	}

	docs := make([]vector.Document, len(chunks))
	for i, chunk := range chunks {
		chunkID := fmt.Sprintf("%s_chunk_%d", filename, i)
		docs[i] = vector.Document{
			ID:      s.pointID(chunkID),
			ChunkID: chunkID,
			Content: chunk,
			Vector:  vectors[i],
			Meta: vector.Metadata{
				Source:     filename,
				ChunkIndex: i,
				Category:   "PDF",
			},
		}
	}

	if err := s.repo.Upsert(ctx, docs); err != nil {
		observability.RecordError(span, err)
		return nil, wrapErr(KindIndex, op, err)
	}

	s.logger.Info("document stored", "filename", filename, "chunks", len(docs))
	observability.RecordUploadResult(span, len(docs))
	return &UploadResult{Message: "File processed and stored successfully", ChunksStored: len(docs)}, nil
}

// Query embeds the question, retrieves the most similar chunks, and asks the
// LLM to answer from them. Scores are cosine similarities in retrieval
// order, most similar first. An empty store yields an answer grounded in an
// empty context rather than an error.
func (s *Service) Query(ctx context.Context, query string) (*QueryResult, error) {
	const op = "query"

	start := time.Now()
	if strings.TrimSpace(query) == "" {
		observability.Metrics().RecordQuery(time.Since(start), 0, fmt.Errorf("empty query"))
		return nil, errf(KindValidation, op, "empty query")
	}

	vecs, err := s.embed(ctx, []string{query})
	if err != nil {
		observability.Metrics().RecordQuery(time.Since(start), 0, err)
		return nil, wrapErr(KindModelUnavailable, op, err)
	}

	sctx, span := observability.StartRetrievalSpan(ctx, RetrievalTopK)
	results, err := s.repo.Search(sctx, vecs[0], RetrievalTopK)
	if err != nil {
		observability.RecordError(span, err)
		span.End()
		observability.Metrics().RecordQuery(time.Since(start), 0, err)
		return nil, wrapErr(KindIndex, op, err)
	}
	observability.RecordRetrievalResult(span, len(results))
	span.End()

	contents := make([]string, len(results))
	scores := make([]float32, len(results))
	for i, r := range results {
		contents[i] = r.Content
		scores[i] = r.Score
	}
	retrieved := strings.Join(contents, "\n")

	answer, err := s.complete(ctx, query, retrieved)
	if err != nil {
		observability.Metrics().RecordQuery(time.Since(start), len(results), err)
		return nil, wrapErr(KindModelUnavailable, op, err)
	}

	s.logger.Info("query answered", "retrieved", len(results), "duration", time.Since(start))
	observability.Metrics().RecordQuery(time.Since(start), len(results), nil)
	return &QueryResult{
		Query:            query,
		Answer:           answer,
		RetrievedContext: retrieved,
		Scores:           scores,
	}, nil
}

// ViewAll lists every stored chunk.
func (s *Service) ViewAll(ctx context.Context) (*Collection, error) {
	const op = "view_all"

	chunks, err := s.repo.List(ctx)
	if err != nil {
		return nil, wrapErr(KindIndex, op, err)
	}

	col := &Collection{
		Documents: make([]string, len(chunks)),
		Metadatas: make([]vector.Metadata, len(chunks)),
		IDs:       make([]string, len(chunks)),
	}
	for i, c := range chunks {
		col.Documents[i] = c.Content
		col.Metadatas[i] = c.Meta
		col.IDs[i] = c.ChunkID
	}
	return col, nil
}

// DeleteAll removes every stored chunk.
func (s *Service) DeleteAll(ctx context.Context) error {
	const op = "delete_all"

	if err := s.repo.DeleteAll(ctx); err != nil {
		return wrapErr(KindIndex, op, err)
	}
	s.logger.Info("all documents deleted")
	observability.Metrics().StoredChunksGauge.Set(0)
	return nil
}

func (s *Service) extractText(ctx context.Context, filename string, data []byte) (string, error) {
	_, span := observability.StartExtractSpan(ctx, filename)
	defer span.End()

	text, err := s.extractor.Text(data)
	if err != nil {
		observability.RecordError(span, err)
		return "", err
	}
	return text, nil
}

func (s *Service) embed(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, span := observability.StartEmbedSpan(ctx, len(texts))
	defer span.End()

	vecs, err := s.provider.Embed(ctx, texts)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	if len(vecs) != len(texts) {
		err := fmt.Errorf("embedding count mismatch: got %d vectors for %d texts", len(vecs), len(texts))
		observability.RecordError(span, err)
		return nil, err
	}
	return vecs, nil
}

func (s *Service) complete(ctx context.Context, query, retrieved string) (string, error) {
	ctx, span := observability.StartLLMSpan(ctx, s.provider.Name())
	defer span.End()

	start := time.Now()
	prompt := llm.UserPrompt(answerSystem, fmt.Sprintf(answerTemplate, retrieved, query))
	resp, err := s.provider.Complete(ctx, prompt, s.genOpts)
	if err != nil {
		observability.RecordError(span, err)
		observability.Metrics().RecordLLMRequest(time.Since(start), 0, err)
		return "", err
	}

	observability.RecordLLMMetrics(span, resp.InputTokens, resp.OutputTokens, time.Since(start))
	observability.Metrics().RecordLLMRequest(time.Since(start), resp.InputTokens+resp.OutputTokens, nil)
	return llm.StripThinkingTags(resp.Content), nil
}

// pointID maps a chunk ID to a stable storage point ID. Append mode uses a
// random ID so repeated uploads of the same file accumulate.
func (s *Service) pointID(chunkID string) string {
	if s.policy == DuplicateAppend {
		return uuid.NewString()
	}
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}
