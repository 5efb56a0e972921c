package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/formcoach/api/internal/client"
	"github.com/formcoach/api/internal/config"
	"github.com/formcoach/api/internal/media"
	"github.com/formcoach/api/internal/model"
	"github.com/formcoach/api/internal/subtitle"
)

// VideoOverlayer defines the interface for caption burn-in
type VideoOverlayer interface {
	Overlay(ctx context.Context, videoKey string, analysis *model.AnalysisResult, width, height int) (string, error)
}

// OverlayService burns a timestamped critique into a stored workout video
// and publishes the result to the analyzed bucket.
type OverlayService struct {
	storage          client.StorageClient
	rawBucket        string
	analyzedBucket   string
	signedURLTTL     time.Duration
	transcodeTimeout time.Duration
	fallbackWidth    int
	fallbackHeight   int

	// Seams for tests; default to the ffmpeg-backed implementations.
	probe func(url string) media.Dimensions
	burn  func(ctx context.Context, sourceURL, scriptPath string, timeout time.Duration) (string, error)
}

// NewOverlayService creates a new overlay service
func NewOverlayService(storage client.StorageClient, cfg *config.Config) *OverlayService {
	return &OverlayService{
		storage:          storage,
		rawBucket:        cfg.Storage.RawBucket,
		analyzedBucket:   cfg.Storage.AnalyzedBucket,
		signedURLTTL:     cfg.Pipeline.OverlayURLTTL,
		transcodeTimeout: cfg.Pipeline.TranscodeTimeout,
		fallbackWidth:    cfg.Pipeline.FallbackWidth,
		fallbackHeight:   cfg.Pipeline.FallbackHeight,
		probe:            media.ProbeDimensions,
		burn:             media.BurnCaptions,
	}
}

// OverlayRaw parses analysis text before overlaying, for callers that hold
// the critique as raw JSON rather than a structured result.
func (s *OverlayService) OverlayRaw(ctx context.Context, videoKey, analysisText string, width, height int) (string, error) {
	result, err := ParseAnalysis(analysisText)
	if err != nil {
		return "", err
	}
	return s.Overlay(ctx, videoKey, result, width, height)
}

// Overlay renders the analysis as burned-in captions on the video at
// videoKey and uploads the annotated copy under the derived destination key,
// which it returns. When width or height is missing the video is probed,
// falling back to the configured canvas if probing yields nothing. The raw
// source object is removed best-effort after a successful publish.
func (s *OverlayService) Overlay(ctx context.Context, videoKey string, analysis *model.AnalysisResult, width, height int) (string, error) {
	if analysis == nil || len(analysis.Analysis) == 0 {
		return "", ErrEmptyAnalysis
	}

	signedURL, err := s.storage.SignedURL(ctx, s.rawBucket, videoKey, s.signedURLTTL)
	if err != nil {
		return "", &StorageError{Op: "sign", Bucket: s.rawBucket, Key: videoKey, Err: err}
	}

	if width <= 0 || height <= 0 {
		if d := s.probe(signedURL); d.OK() {
			width, height = d.Width, d.Height
		} else {
			width, height = s.fallbackWidth, s.fallbackHeight
			log.Printf("probe yielded no dimensions for %s, falling back to %dx%d", videoKey, width, height)
		}
	}

	script := subtitle.Build(analysis.Analysis, width, height)
	scriptPath := filepath.Join(os.TempDir(), fmt.Sprintf("overlay-%d-%s.ass", time.Now().UnixMilli(), uuid.New().String()[:8]))
	if err := os.WriteFile(scriptPath, []byte(script), 0o644); err != nil {
		return "", fmt.Errorf("failed to write caption script: %w", err)
	}

	outputPath, err := s.burn(ctx, signedURL, scriptPath, s.transcodeTimeout)
	if err != nil {
		removeQuietly(scriptPath)
		return "", err
	}

	destKey := DeriveAnalyzedKey(videoKey)
	if err := s.publish(ctx, outputPath, scriptPath, destKey); err != nil {
		return "", err
	}

	// The raw source has served its purpose once the annotated copy is
	// published. A miss here (e.g. a concurrent run already removed it) is
	// non-fatal.
	if err := s.storage.Remove(ctx, s.rawBucket, videoKey); err != nil {
		log.Printf("failed to delete %s/%s: %v", s.rawBucket, videoKey, err)
	}

	return destKey, nil
}

// publish uploads the finished video and always removes both local
// artifacts, whether or not the upload succeeded.
func (s *OverlayService) publish(ctx context.Context, outputPath, scriptPath, destKey string) error {
	defer func() {
		removeQuietly(outputPath)
		removeQuietly(scriptPath)
	}()

	out, err := os.Open(outputPath)
	if err != nil {
		return &PublishError{Key: destKey, Err: err}
	}
	defer out.Close()

	if err := s.storage.Upload(ctx, s.analyzedBucket, destKey, out, defaultVideoMIME); err != nil {
		return &PublishError{Key: destKey, Err: err}
	}

	return nil
}

// DeriveAnalyzedKey maps a raw video key to the key its annotated copy is
// published under: same directory, basename suffixed "-analyzed", mp4
// container. Root-level keys stay root-level.
func DeriveAnalyzedKey(videoKey string) string {
	base := strings.TrimSuffix(path.Base(videoKey), path.Ext(videoKey))
	name := base + "-analyzed.mp4"

	dir := path.Dir(videoKey)
	if dir == "." || dir == "/" {
		return name
	}
	return dir + "/" + name
}

func removeQuietly(p string) {
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		log.Printf("failed to remove temp file %s: %v", p, err)
	}
}
