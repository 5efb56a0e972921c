package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/formcoach/api/internal/config"
)

// File states reported by the Gemini Files API. An uploaded file starts in
// PROCESSING and must reach ACTIVE before it can be referenced in a
// generation request.
const (
	FileStateProcessing = "PROCESSING"
	FileStateActive     = "ACTIVE"
	FileStateFailed     = "FAILED"
	FileStateDeleted    = "DELETED"
)

// ErrPollTimeout is returned when an uploaded file does not become ACTIVE
// within the configured wait.
var ErrPollTimeout = errors.New("timed out waiting for file to become ACTIVE")

// FileStateError reports a file that reached a terminal non-ACTIVE state.
type FileStateError struct {
	State  string
	Reason string
}

func (e *FileStateError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "no details"
	}
	return fmt.Sprintf("file state %s: %s", e.State, reason)
}

// File is the service-side handle for an uploaded asset.
type File struct {
	Name  string `json:"name"`
	URI   string `json:"uri"`
	State string `json:"state"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// GeminiClient handles communication with the Gemini API
type GeminiClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// NewGeminiClient creates a new Gemini API client
func NewGeminiClient(cfg *config.GeminiConfig) *GeminiClient {
	return &GeminiClient{
		httpClient: &http.Client{
			Timeout: 300 * time.Second,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}
}

// UploadFile streams a local file to the Files API as a named asset. The
// upload is resumable-style: a start request yields a session URL, then the
// bytes are sent in a single finalizing request so the file is never buffered
// in memory.
func (c *GeminiClient) UploadFile(ctx context.Context, path, mimeType, displayName string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	startBody, err := json.Marshal(map[string]interface{}{
		"file": map[string]string{"display_name": displayName},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	startReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload/v1beta/files", bytes.NewReader(startBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	startReq.Header.Set("Content-Type", "application/json")
	startReq.Header.Set("x-goog-api-key", c.apiKey)
	startReq.Header.Set("X-Goog-Upload-Protocol", "resumable")
	startReq.Header.Set("X-Goog-Upload-Command", "start")
	startReq.Header.Set("X-Goog-Upload-Header-Content-Length", strconv.FormatInt(info.Size(), 10))
	startReq.Header.Set("X-Goog-Upload-Header-Content-Type", mimeType)

	log.Printf("[Gemini API] → upload start %s (%d bytes)", displayName, info.Size())

	startResp, err := c.httpClient.Do(startReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer startResp.Body.Close()

	if startResp.StatusCode < 200 || startResp.StatusCode >= 300 {
		body, _ := io.ReadAll(startResp.Body)
		return nil, fmt.Errorf("gemini API error (status %d): %s", startResp.StatusCode, string(body))
	}

	uploadURL := startResp.Header.Get("X-Goog-Upload-URL")
	if uploadURL == "" {
		return nil, fmt.Errorf("upload session missing X-Goog-Upload-URL header")
	}

	uploadReq, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, f)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	uploadReq.ContentLength = info.Size()
	uploadReq.Header.Set("X-Goog-Upload-Offset", "0")
	uploadReq.Header.Set("X-Goog-Upload-Command", "upload, finalize")

	uploadResp, err := c.httpClient.Do(uploadReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer uploadResp.Body.Close()

	respBody, err := io.ReadAll(uploadResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if uploadResp.StatusCode < 200 || uploadResp.StatusCode >= 300 {
		return nil, fmt.Errorf("gemini API error (status %d): %s", uploadResp.StatusCode, string(respBody))
	}

	var result struct {
		File File `json:"file"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	log.Printf("[Gemini API] ← uploaded %s as %s (state: %s)", displayName, result.File.Name, result.File.State)
	return &result.File, nil
}

// GetFile retrieves the latest metadata for an uploaded file
func (c *GeminiClient) GetFile(ctx context.Context, name string) (*File, error) {
	var result File
	if err := c.get(ctx, "/v1beta/"+name, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// PollFileActive polls an uploaded file at a fixed interval until it becomes
// ACTIVE. A terminal FAILED/DELETED state returns a FileStateError; running
// out of maxWait returns ErrPollTimeout.
func (c *GeminiClient) PollFileActive(ctx context.Context, name string, interval, maxWait time.Duration) (*File, error) {
	deadline := time.Now().Add(maxWait)
	attempt := 0

	for time.Now().Before(deadline) {
		attempt++
		file, err := c.GetFile(ctx, name)
		if err != nil {
			log.Printf("[Gemini API] Poll file #%d (name=%s) — error: %v", attempt, name, err)
			return nil, err
		}

		log.Printf("[Gemini API] Poll file #%d (name=%s) — state: %s", attempt, name, file.State)

		switch file.State {
		case FileStateActive:
			return file, nil
		case FileStateFailed, FileStateDeleted:
			reason := ""
			if file.Error != nil {
				reason = file.Error.Message
			}
			return nil, &FileStateError{State: file.State, Reason: reason}
		}

		select {
		case <-ctx.Done():
			log.Printf("[Gemini API] Poll file (name=%s) — context cancelled", name)
			return nil, ctx.Err()
		case <-time.After(interval):
			continue
		}
	}

	return nil, ErrPollTimeout
}

type generatePart struct {
	Text     string            `json:"text,omitempty"`
	FileData *generateFileData `json:"fileData,omitempty"`
}

type generateFileData struct {
	FileURI  string `json:"fileUri"`
	MimeType string `json:"mimeType"`
}

type generateContent struct {
	Role  string         `json:"role"`
	Parts []generatePart `json:"parts"`
}

type generateRequest struct {
	Contents         []generateContent `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	ResponseMIMEType string          `json:"responseMimeType,omitempty"`
	ResponseSchema   json.RawMessage `json:"responseSchema,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

// GenerateContent asks the model about an ACTIVE uploaded file, constraining
// the output to the given JSON schema, and returns the response text.
func (c *GeminiClient) GenerateContent(ctx context.Context, prompt, fileURI, mimeType string, schema json.RawMessage) (string, error) {
	reqBody := generateRequest{
		Contents: []generateContent{
			{
				Role: "user",
				Parts: []generatePart{
					{Text: prompt},
					{FileData: &generateFileData{FileURI: fileURI, MimeType: mimeType}},
				},
			},
		},
		GenerationConfig: &generationConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   schema,
		},
	}

	endpoint := fmt.Sprintf("/v1beta/models/%s:generateContent", c.model)
	var result generateResponse
	if err := c.post(ctx, endpoint, reqBody, &result); err != nil {
		return "", err
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	return result.Candidates[0].Content.Parts[0].Text, nil
}

// IsConfigured returns true if the client has valid configuration
func (c *GeminiClient) IsConfigured() bool {
	return c.apiKey != ""
}

// post sends a POST request with JSON body
func (c *GeminiClient) post(ctx context.Context, endpoint string, body interface{}, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

// get sends a GET request and parses JSON response
func (c *GeminiClient) get(ctx context.Context, endpoint string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

// doRequest executes an HTTP request and parses the response
func (c *GeminiClient) doRequest(req *http.Request, result interface{}) error {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	log.Printf("[Gemini API] → %s %s", req.Method, req.URL.Path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[Gemini API] ✗ %s %s — request failed: %v", req.Method, req.URL.Path, err)
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("[Gemini API] ✗ %s %s — failed to read response: %v", req.Method, req.URL.Path, err)
		return fmt.Errorf("failed to read response: %w", err)
	}

	log.Printf("[Gemini API] ← %d %s %s", resp.StatusCode, req.Method, req.URL.Path)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gemini API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		log.Printf("[Gemini API] ✗ unmarshal error for %s %s: %v", req.Method, req.URL.Path, err)
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}
