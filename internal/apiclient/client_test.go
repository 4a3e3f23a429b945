package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClient_Upload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/upload/" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("missing file field: %v", err)
		}
		defer file.Close()
		if header.Filename != "doc.pdf" {
			t.Fatalf("unexpected filename: %s", header.Filename)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"message":       "File processed and stored successfully",
			"chunks_stored": 4,
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	res, err := c.Upload(context.Background(), "doc.pdf", strings.NewReader("%PDF fake"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if res.ChunksStored != 4 {
		t.Fatalf("expected 4 chunks, got %d", res.ChunksStored)
	}
}

func TestClient_Query(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/query/" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("query"); got != "what is up?" {
			t.Fatalf("unexpected query param: %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"query":             "what is up?",
			"answer":            "not much",
			"retrieved_context": "ctx",
			"scores":            []float32{0.9},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	res, err := c.Query(context.Background(), "what is up?")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if res.Answer != "not much" {
		t.Fatalf("unexpected answer: %q", res.Answer)
	}
	if len(res.Scores) != 1 {
		t.Fatalf("expected 1 score, got %d", len(res.Scores))
	}
}

func TestClient_ViewAllEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"message": "No documents found."})
	}))
	defer srv.Close()

	c := New(srv.URL)
	res, err := c.ViewAll(context.Background())
	if err != nil {
		t.Fatalf("view all: %v", err)
	}
	if res.Message != "No documents found." {
		t.Fatalf("unexpected message: %q", res.Message)
	}
	if len(res.IDs) != 0 {
		t.Fatalf("expected no ids, got %v", res.IDs)
	}
}

func TestClient_ViewAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"documents": []string{"hello world"},
			"metadatas": []map[string]any{{"source": "doc.pdf", "chunk_index": 0, "category": "PDF"}},
			"ids":       []string{"doc.pdf_chunk_0"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	res, err := c.ViewAll(context.Background())
	if err != nil {
		t.Fatalf("view all: %v", err)
	}
	if len(res.IDs) != 1 || res.IDs[0] != "doc.pdf_chunk_0" {
		t.Fatalf("unexpected ids: %v", res.IDs)
	}
	if res.Metadatas[0].Source != "doc.pdf" {
		t.Fatalf("unexpected metadata: %+v", res.Metadatas[0])
	}
}

func TestClient_DeleteAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Fatalf("expected DELETE, got %s", r.Method)
		}
		json.NewEncoder(w).Encode(map[string]string{"message": "All documents have been deleted."})
	}))
	defer srv.Close()

	c := New(srv.URL)
	msg, err := c.DeleteAll(context.Background())
	if err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if msg != "All documents have been deleted." {
		t.Fatalf("unexpected message: %q", msg)
	}
}

func TestClient_DecodesErrorPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "upload: not a parseable PDF",
			"kind":  "extraction",
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Upload(context.Background(), "bad.pdf", strings.NewReader("garbage"))
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", apiErr.StatusCode)
	}
	if apiErr.Kind != "extraction" {
		t.Fatalf("expected extraction kind, got %q", apiErr.Kind)
	}
}

func TestClient_TrimsTrailingSlash(t *testing.T) {
	c := New("http://localhost:8200/")
	if c.baseURL != "http://localhost:8200" {
		t.Fatalf("unexpected base URL: %q", c.baseURL)
	}
}
