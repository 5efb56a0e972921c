package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/formcoach/api/internal/client"
	"github.com/formcoach/api/internal/config"
	"github.com/formcoach/api/internal/model"
)

const analysisPrompt = `You are an expert gym personal coach specializing in improving the quality of people's workouts. You are given a video of me working out. Do the following:

1. Determine the exercise being done
2. Analyze my form and technique for each repetition
2a. For each observation, note the timestamp and suggestions you recommend to improve the workout. The timestamp should line up with the video frame at the begining of the observation.
2b. Keep suggestions short, concise, and straightforward yet detailed enough to help me improve my form and technique.
2c. Space suggestions out evenly so that they are not too close together.
3. Output your response strictly in JSON in this format:
{
  "exercise": "Incline Bench Press",
  "analysis": [
    {
      "timestamp": "00:01",
      "suggestion": "Maintain this controlled descent in all your reps. Consider tucking your elbows in slightly (to about a 45-60 degree angle from your torso) to increase lat engagement and potentially reduce shoulder strain."
    }
  ]
}`

// analysisSchema constrains the model output to the structure ParseAnalysis
// expects: both fields required, in declaration order.
var analysisSchema = json.RawMessage(`{
  "type": "OBJECT",
  "properties": {
    "exercise": {"type": "STRING"},
    "analysis": {
      "type": "ARRAY",
      "items": {
        "type": "OBJECT",
        "properties": {
          "timestamp": {"type": "STRING"},
          "suggestion": {"type": "STRING"}
        },
        "required": ["timestamp", "suggestion"],
        "propertyOrdering": ["timestamp", "suggestion"]
      }
    }
  },
  "required": ["exercise", "analysis"],
  "propertyOrdering": ["exercise", "analysis"]
}`)

// VideoAnalyzer defines the interface for workout video analysis
type VideoAnalyzer interface {
	Analyze(ctx context.Context, videoKey string) (*model.AnalysisResult, error)
}

// AnalysisService obtains a structured form critique for a stored workout
// video from the Gemini API.
type AnalysisService struct {
	storage      client.StorageClient
	gemini       *client.GeminiClient
	httpClient   *http.Client
	rawBucket    string
	signedURLTTL time.Duration
	pollInterval time.Duration
	pollTimeout  time.Duration
}

// NewAnalysisService creates a new analysis service
func NewAnalysisService(storage client.StorageClient, gemini *client.GeminiClient, cfg *config.Config) *AnalysisService {
	return &AnalysisService{
		storage: storage,
		gemini:  gemini,
		httpClient: &http.Client{
			Timeout: 300 * time.Second,
		},
		rawBucket:    cfg.Storage.RawBucket,
		signedURLTTL: cfg.Pipeline.AnalyzeURLTTL,
		pollInterval: cfg.Gemini.PollInterval,
		pollTimeout:  cfg.Gemini.PollTimeout,
	}
}

// Analyze downloads the video at videoKey, uploads it to the Gemini Files
// API, waits for the asset to become ACTIVE, and asks the model for a
// timestamped critique. The local copy is removed on every exit path.
func (s *AnalysisService) Analyze(ctx context.Context, videoKey string) (*model.AnalysisResult, error) {
	localPath, contentType, err := s.fetchVideo(ctx, videoKey)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
			log.Printf("failed to remove temp video %s: %v", localPath, err)
		}
	}()

	displayName := path.Base(videoKey)
	if displayName == "." || displayName == "/" {
		displayName = "workout.mp4"
	}

	file, err := s.gemini.UploadFile(ctx, localPath, contentType, displayName)
	if err != nil {
		return nil, fmt.Errorf("failed to upload video for analysis: %w", err)
	}

	active, err := s.gemini.PollFileActive(ctx, file.Name, s.pollInterval, s.pollTimeout)
	if err != nil {
		return nil, err
	}

	text, err := s.gemini.GenerateContent(ctx, analysisPrompt, active.URI, contentType, analysisSchema)
	if err != nil {
		return nil, fmt.Errorf("analysis generation failed: %w", err)
	}

	result, err := ParseAnalysis(text)
	if err != nil {
		return nil, err
	}
	if len(result.Analysis) == 0 {
		return nil, ErrEmptyAnalysis
	}

	return result, nil
}

// ParseAnalysis decodes the model's response text into an AnalysisResult.
// Unknown fields are ignored; invalid JSON yields a ParseError.
func ParseAnalysis(text string) (*model.AnalysisResult, error) {
	text = extractJSON(text)

	var result model.AnalysisResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, &ParseError{Err: err}
	}

	return &result, nil
}

// extractJSON attempts to extract JSON from a response that may contain extra text
func extractJSON(s string) string {
	// Find the first { and last }
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")

	if start != -1 && end != -1 && end > start {
		return s[start : end+1]
	}
	return s
}
