package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/formcoach/api/internal/client"
	"github.com/formcoach/api/internal/config"
)

func TestParseAnalysis(t *testing.T) {
	text := `Here is the analysis you asked for:
{"exercise": "Deadlift", "analysis": [{"timestamp": "00:03", "suggestion": "Brace your core before the pull."}]}
Let me know if you need more detail.`

	result, err := ParseAnalysis(text)
	if err != nil {
		t.Fatalf("ParseAnalysis: %v", err)
	}

	if result.Exercise != "Deadlift" {
		t.Errorf("exercise = %q, want Deadlift", result.Exercise)
	}
	if len(result.Analysis) != 1 {
		t.Fatalf("analysis items = %d, want 1", len(result.Analysis))
	}
	if result.Analysis[0].Timestamp != "00:03" {
		t.Errorf("timestamp = %q, want 00:03", result.Analysis[0].Timestamp)
	}
}

func TestParseAnalysisInvalidJSON(t *testing.T) {
	for _, text := range []string{
		"the model refused to answer",
		`{"exercise": "Squat", "analysis": [`,
		"",
	} {
		_, err := ParseAnalysis(text)

		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			t.Errorf("ParseAnalysis(%q): got %v, want ParseError", text, err)
		}
	}
}

func TestParseAnalysisIgnoresUnknownFields(t *testing.T) {
	text := `{"exercise": "Squat", "confidence": 0.93, "analysis": []}`

	result, err := ParseAnalysis(text)
	if err != nil {
		t.Fatalf("ParseAnalysis: %v", err)
	}
	if result.Exercise != "Squat" {
		t.Errorf("exercise = %q, want Squat", result.Exercise)
	}
}

func TestExtensionFor(t *testing.T) {
	tests := []struct {
		contentType string
		want        string
	}{
		{"video/mp4", ".mp4"},
		{"video/mp4; codecs=avc1", ".mp4"},
		{"video/quicktime", ".mov"},
		{"video/webm", ".webm"},
		{"application/octet-stream; ;", ".mp4"},
	}

	for _, tt := range tests {
		if got := extensionFor(tt.contentType); got != tt.want {
			t.Errorf("extensionFor(%q) = %q, want %q", tt.contentType, got, tt.want)
		}
	}
}

func newTestAnalysisService(storage *fakeStorage) *AnalysisService {
	return &AnalysisService{
		storage:      storage,
		httpClient:   &http.Client{Timeout: 5 * time.Second},
		rawBucket:    "raw-workouts",
		signedURLTTL: 5 * time.Minute,
		pollInterval: time.Millisecond,
		pollTimeout:  time.Second,
	}
}

func TestAnalysisServiceHasRequestTimeout(t *testing.T) {
	svc := NewAnalysisService(nil, nil, &config.Config{})
	if svc.httpClient == nil || svc.httpClient.Timeout == 0 {
		t.Fatal("download client must carry an explicit timeout")
	}
}

func TestFetchVideo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/quicktime")
		w.Write([]byte("raw video bytes"))
	}))
	defer srv.Close()

	svc := newTestAnalysisService(&fakeStorage{signedURL: srv.URL})

	localPath, contentType, err := svc.fetchVideo(context.Background(), "user1/squat.mov")
	if err != nil {
		t.Fatalf("fetchVideo: %v", err)
	}
	defer os.Remove(localPath)

	if contentType != "video/quicktime" {
		t.Errorf("content type = %q, want video/quicktime", contentType)
	}
	if !strings.HasSuffix(localPath, ".mov") {
		t.Errorf("local path %q does not carry .mov extension", localPath)
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		t.Fatalf("reading downloaded file: %v", err)
	}
	if string(data) != "raw video bytes" {
		t.Errorf("downloaded content = %q", data)
	}
}

func TestFetchVideoDefaultsContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil // suppress sniffing
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	svc := newTestAnalysisService(&fakeStorage{signedURL: srv.URL})

	localPath, contentType, err := svc.fetchVideo(context.Background(), "clip")
	if err != nil {
		t.Fatalf("fetchVideo: %v", err)
	}
	defer os.Remove(localPath)

	if contentType != "video/mp4" {
		t.Errorf("content type = %q, want video/mp4 default", contentType)
	}
}

func TestFetchVideoNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such key", http.StatusNotFound)
	}))
	defer srv.Close()

	svc := newTestAnalysisService(&fakeStorage{signedURL: srv.URL})

	_, _, err := svc.fetchVideo(context.Background(), "user1/missing.mp4")

	var transferErr *TransferError
	if !errors.As(err, &transferErr) {
		t.Fatalf("fetchVideo: got %v, want TransferError", err)
	}
	if transferErr.Key != "user1/missing.mp4" {
		t.Errorf("transfer error key = %q, want user1/missing.mp4", transferErr.Key)
	}
}

func TestAnalyzeTimeoutCleansUpTempFile(t *testing.T) {
	videoSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Write([]byte("raw video bytes"))
	}))
	defer videoSrv.Close()

	mux := http.NewServeMux()
	geminiSrv := httptest.NewServer(mux)
	defer geminiSrv.Close()

	mux.HandleFunc("/upload/v1beta/files", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Goog-Upload-URL", geminiSrv.URL+"/upload-session")
	})
	mux.HandleFunc("/upload-session", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"file": {"name": "files/abc123", "uri": "uri123", "state": "PROCESSING"}}`)
	})
	mux.HandleFunc("/v1beta/files/abc123", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"name": "files/abc123", "state": "PROCESSING"}`)
	})

	before, _ := filepath.Glob(filepath.Join(os.TempDir(), "workout-*"))

	svc := newTestAnalysisService(&fakeStorage{signedURL: videoSrv.URL})
	svc.gemini = client.NewGeminiClient(&config.GeminiConfig{
		APIKey:  "test-key",
		BaseURL: geminiSrv.URL,
		Model:   "gemini-2.5-flash",
	})
	svc.pollInterval = time.Millisecond
	svc.pollTimeout = 20 * time.Millisecond

	_, err := svc.Analyze(context.Background(), "user1/squat.mp4")
	if !errors.Is(err, client.ErrPollTimeout) {
		t.Fatalf("Analyze: got %v, want ErrPollTimeout", err)
	}

	after, _ := filepath.Glob(filepath.Join(os.TempDir(), "workout-*"))
	if len(after) != len(before) {
		t.Errorf("temp files leaked: %d before, %d after", len(before), len(after))
	}
}

func TestFetchVideoSignError(t *testing.T) {
	svc := newTestAnalysisService(&fakeStorage{signErr: errors.New("credentials rejected")})

	_, _, err := svc.fetchVideo(context.Background(), "user1/squat.mp4")

	var storageErr *StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("fetchVideo: got %v, want StorageError", err)
	}
	if storageErr.Op != "sign" {
		t.Errorf("storage error op = %q, want sign", storageErr.Op)
	}
}
