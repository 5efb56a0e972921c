package model

import (
	"encoding/json"
	"time"
)

// JobStatus is the lifecycle state of a background analysis job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Job represents one background analysis job in the system.
type Job struct {
	ID          string          `json:"id"`
	Status      JobStatus       `json:"status"`
	CurrentStep string          `json:"currentStep,omitempty"`
	Error       *string         `json:"error,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	StartedAt   *time.Time      `json:"startedAt,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

// AnalysisJobPayload contains the data for an analysis job.
type AnalysisJobPayload struct {
	UserID   string        `json:"userId"`
	VideoKey string        `json:"videoKey"`
	Notes    string        `json:"notes,omitempty"`
	Metadata VideoMetadata `json:"metadata"`
}

// AnalysisJobResult is stored on a succeeded analysis job.
type AnalysisJobResult struct {
	WorkoutID      string `json:"workoutId"`
	Exercise       string `json:"exercise"`
	DestinationKey string `json:"destinationKey"`
}

// JobStatusResponse is the public view of a job.
type JobStatusResponse struct {
	JobID       string             `json:"jobId"`
	Status      JobStatus          `json:"status"`
	CurrentStep string             `json:"currentStep,omitempty"`
	Error       *string            `json:"error,omitempty"`
	Result      *AnalysisJobResult `json:"result,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
	StartedAt   *time.Time         `json:"startedAt,omitempty"`
	CompletedAt *time.Time         `json:"completedAt,omitempty"`
}
