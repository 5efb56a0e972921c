package service

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const defaultVideoMIME = "video/mp4"

// fetchVideo resolves a signed read URL for a raw video and streams the
// object into a uniquely named temp file without buffering it in memory.
// The caller owns the returned file and is responsible for removing it.
func (s *AnalysisService) fetchVideo(ctx context.Context, videoKey string) (localPath, contentType string, err error) {
	signedURL, err := s.storage.SignedURL(ctx, s.rawBucket, videoKey, s.signedURLTTL)
	if err != nil {
		return "", "", &StorageError{Op: "sign", Bucket: s.rawBucket, Key: videoKey, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, signedURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("failed to fetch storage object: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", &TransferError{Key: videoKey, Status: resp.Status}
	}

	contentType = resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = defaultVideoMIME
	}

	name := fmt.Sprintf("workout-%d-%s%s", time.Now().UnixMilli(), uuid.New().String()[:8], extensionFor(contentType))
	out, err := os.Create(filepath.Join(os.TempDir(), name))
	if err != nil {
		return "", "", fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", "", fmt.Errorf("failed to write temp file: %w", err)
	}

	return out.Name(), contentType, nil
}

// extensionFor picks a local file extension for the declared content type.
func extensionFor(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ".mp4"
	}
	switch mediaType {
	case "video/mp4":
		return ".mp4"
	case "video/quicktime":
		return ".mov"
	case "video/webm":
		return ".webm"
	}
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".mp4"
}
