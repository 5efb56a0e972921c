package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/formcoach/api/internal/config"
)

func newTestGeminiClient(baseURL string) *GeminiClient {
	return NewGeminiClient(&config.GeminiConfig{
		APIKey:  "test-key",
		BaseURL: baseURL,
		Model:   "gemini-2.5-flash",
	})
}

func TestUploadFile(t *testing.T) {
	var sessionHits, uploadHits int32

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/upload/v1beta/files", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&sessionHits, 1)
		if got := r.Header.Get("x-goog-api-key"); got != "test-key" {
			t.Errorf("api key header = %q", got)
		}
		if got := r.Header.Get("X-Goog-Upload-Protocol"); got != "resumable" {
			t.Errorf("upload protocol = %q", got)
		}
		if got := r.Header.Get("X-Goog-Upload-Header-Content-Type"); got != "video/mp4" {
			t.Errorf("declared content type = %q", got)
		}
		w.Header().Set("X-Goog-Upload-URL", srv.URL+"/upload-session")
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/upload-session", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&uploadHits, 1)
		if got := r.Header.Get("X-Goog-Upload-Command"); got != "upload, finalize" {
			t.Errorf("upload command = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"file": map[string]string{
				"name":  "files/abc123",
				"uri":   "https://generativelanguage.googleapis.com/v1beta/files/abc123",
				"state": FileStateProcessing,
			},
		})
	})

	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte("video bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := newTestGeminiClient(srv.URL)
	file, err := c.UploadFile(context.Background(), path, "video/mp4", "clip.mp4")
	if err != nil {
		t.Fatalf("UploadFile: %v", err)
	}

	if file.Name != "files/abc123" {
		t.Errorf("file name = %q", file.Name)
	}
	if file.State != FileStateProcessing {
		t.Errorf("file state = %q, want PROCESSING", file.State)
	}
	if sessionHits != 1 || uploadHits != 1 {
		t.Errorf("session hits = %d, upload hits = %d, want 1 and 1", sessionHits, uploadHits)
	}
}

func TestPollFileActive(t *testing.T) {
	var polls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&polls, 1)
		state := FileStateProcessing
		if n >= 3 {
			state = FileStateActive
		}
		fmt.Fprintf(w, `{"name": "files/abc123", "uri": "uri123", "state": %q}`, state)
	}))
	defer srv.Close()

	c := newTestGeminiClient(srv.URL)
	file, err := c.PollFileActive(context.Background(), "files/abc123", time.Millisecond, time.Second)
	if err != nil {
		t.Fatalf("PollFileActive: %v", err)
	}

	if file.State != FileStateActive {
		t.Errorf("file state = %q, want ACTIVE", file.State)
	}
	if polls < 3 {
		t.Errorf("polls = %d, want at least 3", polls)
	}
}

func TestPollFileActiveFailedState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"name": "files/abc123", "state": %q, "error": {"code": 3, "message": "could not decode video"}}`, FileStateFailed)
	}))
	defer srv.Close()

	c := newTestGeminiClient(srv.URL)
	_, err := c.PollFileActive(context.Background(), "files/abc123", time.Millisecond, time.Second)

	var stateErr *FileStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("PollFileActive: got %v, want FileStateError", err)
	}
	if stateErr.State != FileStateFailed {
		t.Errorf("state = %q, want FAILED", stateErr.State)
	}
	if stateErr.Reason != "could not decode video" {
		t.Errorf("reason = %q", stateErr.Reason)
	}
}

func TestPollFileActiveTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"name": "files/abc123", "state": %q}`, FileStateProcessing)
	}))
	defer srv.Close()

	c := newTestGeminiClient(srv.URL)
	_, err := c.PollFileActive(context.Background(), "files/abc123", time.Millisecond, 20*time.Millisecond)

	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("PollFileActive: got %v, want ErrPollTimeout", err)
	}
}

func TestGenerateContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if len(req.Contents) != 1 || len(req.Contents[0].Parts) != 2 {
			t.Errorf("unexpected request shape: %+v", req)
		}
		if req.GenerationConfig == nil || req.GenerationConfig.ResponseMIMEType != "application/json" {
			t.Errorf("generation config = %+v", req.GenerationConfig)
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"candidates": []map[string]interface{}{
				{
					"content": map[string]interface{}{
						"parts": []map[string]string{
							{"text": `{"exercise": "Squat", "analysis": []}`},
						},
					},
				},
			},
		})
	}))
	defer srv.Close()

	c := newTestGeminiClient(srv.URL)
	text, err := c.GenerateContent(context.Background(), "analyze this", "uri123", "video/mp4", json.RawMessage(`{"type": "OBJECT"}`))
	if err != nil {
		t.Fatalf("GenerateContent: %v", err)
	}

	if text != `{"exercise": "Squat", "analysis": []}` {
		t.Errorf("text = %q", text)
	}
}

func TestGenerateContentNoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates": []}`)
	}))
	defer srv.Close()

	c := newTestGeminiClient(srv.URL)
	if _, err := c.GenerateContent(context.Background(), "analyze this", "uri123", "video/mp4", nil); err == nil {
		t.Fatal("GenerateContent: expected error for empty candidates")
	}
}
