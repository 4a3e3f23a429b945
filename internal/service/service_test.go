package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/askpdf/askpdf/internal/chunker"
	"github.com/askpdf/askpdf/internal/llm"
	"github.com/askpdf/askpdf/internal/observability"
	"github.com/askpdf/askpdf/internal/vector"
)

// fakeExtractor returns canned text regardless of input bytes.
type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) Text(data []byte) (string, error) {
	return f.text, f.err
}

// fakeProvider embeds deterministically (byte histogram, so identical text
// maps to identical vectors) and answers with a fixed template.
type fakeProvider struct {
	completeErr error
	embedErr    error
	lastPrompt  *llm.Prompt
	lastOpts    *llm.RequestOptions
}

func (f *fakeProvider) Complete(ctx context.Context, prompt *llm.Prompt, opts *llm.RequestOptions) (*llm.Response, error) {
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	f.lastPrompt = prompt
	f.lastOpts = opts
	return &llm.Response{Content: "the answer", Model: "fake", InputTokens: 10, OutputTokens: 2}, nil
}

func (f *fakeProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec := make([]float32, 16)
		for _, b := range []byte(t) {
			vec[int(b)%16]++
		}
		out[i] = vec
	}
	return out, nil
}

func (f *fakeProvider) Name() string { return "fake" }

func newTestService(t *testing.T, text string, policy DuplicatePolicy) (*Service, *fakeProvider, *vector.MemoryRepository) {
	t.Helper()
	provider := &fakeProvider{}
	repo := vector.NewMemory()
	svc := New(&fakeExtractor{text: text}, chunker.New(100, 20), provider, repo, policy, nil, nil)
	return svc, provider, repo
}

func TestUploadStoresChunks(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 20)
	svc, _, repo := newTestService(t, text, DuplicateReplace)

	res, err := svc.Upload(context.Background(), "fox.pdf", []byte("%PDF"))
	require.NoError(t, err)
	require.Equal(t, "File processed and stored successfully", res.Message)

	want := len(chunker.New(100, 20).Split(text))
	require.Equal(t, want, res.ChunksStored)

	stored, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, want)
}

func TestUploadChunkIDsAndMetadata(t *testing.T) {
	svc, _, _ := newTestService(t, "short document text", DuplicateReplace)

	_, err := svc.Upload(context.Background(), "doc.pdf", []byte("%PDF"))
	require.NoError(t, err)

	col, err := svc.ViewAll(context.Background())
	require.NoError(t, err)
	require.Len(t, col.IDs, 1)
	require.Equal(t, "doc.pdf_chunk_0", col.IDs[0])
	require.Equal(t, "doc.pdf", col.Metadatas[0].Source)
	require.Equal(t, 0, col.Metadatas[0].ChunkIndex)
	require.Equal(t, "PDF", col.Metadatas[0].Category)
	require.Equal(t, "short document text", col.Documents[0])
}

func TestUploadValidation(t *testing.T) {
	svc, _, _ := newTestService(t, "text", DuplicateReplace)

	_, err := svc.Upload(context.Background(), "", []byte("%PDF"))
	require.Error(t, err)
	require.Equal(t, KindValidation, KindOf(err))

	_, err = svc.Upload(context.Background(), "doc.pdf", nil)
	require.Error(t, err)
	require.Equal(t, KindValidation, KindOf(err))
}

func TestUploadExtractionFailure(t *testing.T) {
	provider := &fakeProvider{}
	repo := vector.NewMemory()
	svc := New(&fakeExtractor{err: errors.New("bad header")}, chunker.New(100, 20), provider, repo, DuplicateReplace, nil, nil)

	_, err := svc.Upload(context.Background(), "broken.pdf", []byte("not a pdf"))
	require.Error(t, err)
	require.Equal(t, KindExtraction, KindOf(err))
}

func TestUploadNoExtractableText(t *testing.T) {
	svc, _, repo := newTestService(t, "   \n\n  ", DuplicateReplace)

	res, err := svc.Upload(context.Background(), "scanned.pdf", []byte("%PDF"))
	require.NoError(t, err)
	require.Equal(t, 0, res.ChunksStored)
	require.Equal(t, "No text could be extracted from the file", res.Message)

	stored, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, stored)
}

func TestUploadEmbedFailure(t *testing.T) {
	svc, provider, _ := newTestService(t, "some text", DuplicateReplace)
	provider.embedErr = errors.New("connection refused")

	_, err := svc.Upload(context.Background(), "doc.pdf", []byte("%PDF"))
	require.Error(t, err)
	require.Equal(t, KindModelUnavailable, KindOf(err))
}

func TestReuploadReplace(t *testing.T) {
	svc, _, repo := newTestService(t, "same document text", DuplicateReplace)

	for i := 0; i < 3; i++ {
		_, err := svc.Upload(context.Background(), "doc.pdf", []byte("%PDF"))
		require.NoError(t, err)
	}

	stored, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 1)
}

func TestReuploadAppend(t *testing.T) {
	svc, _, repo := newTestService(t, "same document text", DuplicateAppend)

	for i := 0; i < 3; i++ {
		_, err := svc.Upload(context.Background(), "doc.pdf", []byte("%PDF"))
		require.NoError(t, err)
	}

	stored, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 3)
}

func TestReuploadReject(t *testing.T) {
	svc, _, repo := newTestService(t, "same document text", DuplicateReject)

	first, err := svc.Upload(context.Background(), "doc.pdf", []byte("%PDF"))
	require.NoError(t, err)
	require.Equal(t, 1, first.ChunksStored)

	second, err := svc.Upload(context.Background(), "doc.pdf", []byte("%PDF"))
	require.NoError(t, err)
	require.Equal(t, "File already processed and stored", second.Message)
	require.Equal(t, 1, second.ChunksStored)

	stored, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 1)
}

func TestQueryRoundTrip(t *testing.T) {
	svc, provider, _ := newTestService(t, "the capital of France is Paris", DuplicateReplace)

	_, err := svc.Upload(context.Background(), "facts.pdf", []byte("%PDF"))
	require.NoError(t, err)

	res, err := svc.Query(context.Background(), "what is the capital of France?")
	require.NoError(t, err)
	require.Equal(t, "what is the capital of France?", res.Query)
	require.Equal(t, "the answer", res.Answer)
	require.Contains(t, res.RetrievedContext, "Paris")
	require.Len(t, res.Scores, 1)

	// The prompt handed to the model must carry the retrieved context and
	// the question.
	require.NotNil(t, provider.lastPrompt)
	content := provider.lastPrompt.Messages[0].Content
	require.Contains(t, content, "Paris")
	require.Contains(t, content, "what is the capital of France?")
}

func TestQueryUsesConfiguredGeneration(t *testing.T) {
	provider := &fakeProvider{}
	repo := vector.NewMemory()
	temp := 0.2
	maxTokens := 64
	opts := &llm.RequestOptions{Temperature: &temp, MaxTokens: &maxTokens}
	svc := New(&fakeExtractor{text: "text"}, chunker.New(100, 20), provider, repo, DuplicateReplace, opts, nil)

	_, err := svc.Query(context.Background(), "question")
	require.NoError(t, err)
	require.NotNil(t, provider.lastOpts)
	require.Equal(t, 0.2, *provider.lastOpts.Temperature)
	require.Equal(t, 64, *provider.lastOpts.MaxTokens)
}

func TestReuploadReplaceGaugeStable(t *testing.T) {
	svc, _, _ := newTestService(t, "same document text", DuplicateReplace)

	_, err := svc.Upload(context.Background(), "doc.pdf", []byte("%PDF"))
	require.NoError(t, err)
	after := observability.Metrics().StoredChunksGauge.Value()

	// Replacing a file must not inflate the stored-chunks gauge.
	_, err = svc.Upload(context.Background(), "doc.pdf", []byte("%PDF"))
	require.NoError(t, err)
	require.Equal(t, after, observability.Metrics().StoredChunksGauge.Value())
}

func TestQueryScoresDescending(t *testing.T) {
	text := strings.Repeat("alpha beta gamma delta epsilon zeta eta theta. ", 30)
	svc, _, _ := newTestService(t, text, DuplicateReplace)

	_, err := svc.Upload(context.Background(), "words.pdf", []byte("%PDF"))
	require.NoError(t, err)

	res, err := svc.Query(context.Background(), "alpha beta gamma")
	require.NoError(t, err)
	require.LessOrEqual(t, len(res.Scores), RetrievalTopK)
	for i := 1; i < len(res.Scores); i++ {
		require.GreaterOrEqual(t, res.Scores[i-1], res.Scores[i])
	}
}

func TestQueryEmptyIndex(t *testing.T) {
	svc, _, _ := newTestService(t, "", DuplicateReplace)

	res, err := svc.Query(context.Background(), "anything there?")
	require.NoError(t, err)
	require.Equal(t, "", res.RetrievedContext)
	require.Empty(t, res.Scores)
	require.Equal(t, "the answer", res.Answer)
}

func TestQueryValidation(t *testing.T) {
	svc, _, _ := newTestService(t, "", DuplicateReplace)

	_, err := svc.Query(context.Background(), "   ")
	require.Error(t, err)
	require.Equal(t, KindValidation, KindOf(err))
}

func TestQueryModelUnavailable(t *testing.T) {
	svc, provider, _ := newTestService(t, "text", DuplicateReplace)
	provider.completeErr = errors.New("model not loaded")

	_, err := svc.Query(context.Background(), "question")
	require.Error(t, err)
	require.Equal(t, KindModelUnavailable, KindOf(err))
}

func TestViewAllParallelSlices(t *testing.T) {
	text := strings.Repeat("one two three four five six seven eight nine ten. ", 20)
	svc, _, _ := newTestService(t, text, DuplicateReplace)

	_, err := svc.Upload(context.Background(), "nums.pdf", []byte("%PDF"))
	require.NoError(t, err)

	col, err := svc.ViewAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, len(col.Documents), len(col.Metadatas))
	require.Equal(t, len(col.Documents), len(col.IDs))
	for i := range col.IDs {
		require.Equal(t, fmt.Sprintf("nums.pdf_chunk_%d", col.Metadatas[i].ChunkIndex), col.IDs[i])
	}
}

func TestDeleteAllThenViewAll(t *testing.T) {
	svc, _, _ := newTestService(t, "document text", DuplicateReplace)

	_, err := svc.Upload(context.Background(), "doc.pdf", []byte("%PDF"))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteAll(context.Background()))

	col, err := svc.ViewAll(context.Background())
	require.NoError(t, err)
	require.Empty(t, col.Documents)
	require.Empty(t, col.IDs)
}

func TestValidDuplicatePolicy(t *testing.T) {
	require.True(t, ValidDuplicatePolicy(DuplicateReplace))
	require.True(t, ValidDuplicatePolicy(DuplicateAppend))
	require.True(t, ValidDuplicatePolicy(DuplicateReject))
	require.False(t, ValidDuplicatePolicy("upsert"))
}
