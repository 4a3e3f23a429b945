package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/askpdf/askpdf/internal/chunker"
	"github.com/askpdf/askpdf/internal/llm"
	"github.com/askpdf/askpdf/internal/service"
	"github.com/askpdf/askpdf/internal/vector"
)

type stubExtractor struct{ text string }

func (s *stubExtractor) Text(data []byte) (string, error) { return s.text, nil }

type stubProvider struct{}

func (p *stubProvider) Complete(ctx context.Context, prompt *llm.Prompt, opts *llm.RequestOptions) (*llm.Response, error) {
	return &llm.Response{Content: "stub answer", Model: "stub"}, nil
}

func (p *stubProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (p *stubProvider) Name() string { return "stub" }

func newTestAPI(t *testing.T, text string) *APIServer {
	t.Helper()
	svc := service.New(&stubExtractor{text: text}, chunker.New(100, 20), &stubProvider{}, vector.NewMemory(), service.DuplicateReplace, nil, nil)
	health := NewHealthServer("test")
	health.SetReady(true)
	return NewAPIServer(DefaultAPIConfig(), svc, health)
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	fw.Write(content)
	w.Close()
	return &buf, w.FormDataContentType()
}

func TestAPI_Upload(t *testing.T) {
	api := newTestAPI(t, "some document text")

	body, contentType := multipartBody(t, "file", "doc.pdf", []byte("%PDF fake"))
	req := httptest.NewRequest(http.MethodPost, "/upload/", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	api.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var res service.UploadResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if res.ChunksStored != 1 {
		t.Fatalf("expected 1 chunk stored, got %d", res.ChunksStored)
	}
	if res.Message != "File processed and stored successfully" {
		t.Fatalf("unexpected message: %q", res.Message)
	}
}

func TestAPI_UploadMissingFile(t *testing.T) {
	api := newTestAPI(t, "text")

	body, contentType := multipartBody(t, "attachment", "doc.pdf", []byte("%PDF"))
	req := httptest.NewRequest(http.MethodPost, "/upload/", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	api.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	var payload errorPayload
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error payload: %v", err)
	}
	if payload.Kind != string(service.KindValidation) {
		t.Fatalf("expected validation kind, got %q", payload.Kind)
	}
}

func TestAPI_UploadMethodNotAllowed(t *testing.T) {
	api := newTestAPI(t, "text")

	req := httptest.NewRequest(http.MethodGet, "/upload/", nil)
	w := httptest.NewRecorder()
	api.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestAPI_Query(t *testing.T) {
	api := newTestAPI(t, "the sky is blue")

	body, contentType := multipartBody(t, "file", "sky.pdf", []byte("%PDF"))
	up := httptest.NewRequest(http.MethodPost, "/upload/", body)
	up.Header.Set("Content-Type", contentType)
	api.Handler().ServeHTTP(httptest.NewRecorder(), up)

	req := httptest.NewRequest(http.MethodGet, "/query/?query=what+color+is+the+sky", nil)
	w := httptest.NewRecorder()
	api.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var res service.QueryResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if res.Answer != "stub answer" {
		t.Fatalf("unexpected answer: %q", res.Answer)
	}
	if res.RetrievedContext != "the sky is blue" {
		t.Fatalf("unexpected context: %q", res.RetrievedContext)
	}
	if len(res.Scores) != 1 {
		t.Fatalf("expected 1 score, got %d", len(res.Scores))
	}
}

func TestAPI_QueryMissingParam(t *testing.T) {
	api := newTestAPI(t, "text")

	req := httptest.NewRequest(http.MethodGet, "/query/", nil)
	w := httptest.NewRecorder()
	api.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestAPI_ViewAllEmpty(t *testing.T) {
	api := newTestAPI(t, "text")

	req := httptest.NewRequest(http.MethodGet, "/view_all/", nil)
	w := httptest.NewRecorder()
	api.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var msg map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &msg); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if msg["message"] != "No documents found." {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestAPI_ViewAllAfterUpload(t *testing.T) {
	api := newTestAPI(t, "indexed content")

	body, contentType := multipartBody(t, "file", "doc.pdf", []byte("%PDF"))
	up := httptest.NewRequest(http.MethodPost, "/upload/", body)
	up.Header.Set("Content-Type", contentType)
	api.Handler().ServeHTTP(httptest.NewRecorder(), up)

	req := httptest.NewRequest(http.MethodGet, "/view_all/", nil)
	w := httptest.NewRecorder()
	api.Handler().ServeHTTP(w, req)

	var col service.Collection
	if err := json.Unmarshal(w.Body.Bytes(), &col); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if len(col.IDs) != 1 || col.IDs[0] != "doc.pdf_chunk_0" {
		t.Fatalf("unexpected ids: %v", col.IDs)
	}
	if col.Metadatas[0].Category != "PDF" {
		t.Fatalf("unexpected metadata: %+v", col.Metadatas[0])
	}
}

func TestAPI_DeleteAll(t *testing.T) {
	api := newTestAPI(t, "content")

	body, contentType := multipartBody(t, "file", "doc.pdf", []byte("%PDF"))
	up := httptest.NewRequest(http.MethodPost, "/upload/", body)
	up.Header.Set("Content-Type", contentType)
	api.Handler().ServeHTTP(httptest.NewRecorder(), up)

	del := httptest.NewRequest(http.MethodDelete, "/delete_all/", nil)
	w := httptest.NewRecorder()
	api.Handler().ServeHTTP(w, del)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	view := httptest.NewRequest(http.MethodGet, "/view_all/", nil)
	w = httptest.NewRecorder()
	api.Handler().ServeHTTP(w, view)

	var msg map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &msg); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if msg["message"] != "No documents found." {
		t.Fatalf("store not empty after delete_all: %s", w.Body.String())
	}
}

func TestAPI_DeleteAllMethodNotAllowed(t *testing.T) {
	api := newTestAPI(t, "text")

	req := httptest.NewRequest(http.MethodGet, "/delete_all/", nil)
	w := httptest.NewRecorder()
	api.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestAPI_HealthMounted(t *testing.T) {
	api := newTestAPI(t, "text")

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	api.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestAPI_MetricsMounted(t *testing.T) {
	api := newTestAPI(t, "text")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	api.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("askpdf_uploads_total")) {
		t.Fatal("expected upload counter in metrics output")
	}
}

func TestAPI_CORSPreflight(t *testing.T) {
	api := newTestAPI(t, "text")

	req := httptest.NewRequest(http.MethodOptions, "/query/", nil)
	w := httptest.NewRecorder()
	api.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("expected CORS header")
	}
}
