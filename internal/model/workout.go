package model

import "time"

// Workout is a persisted workout record. VideoURL holds the storage key of the
// annotated video in the analyzed bucket.
type Workout struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Title      string    `json:"title"`
	Notes      string    `json:"notes,omitempty"`
	VideoURL   string    `json:"videoUrl"`
	RecordedAt time.Time `json:"recordedAt"`
	CreatedAt  time.Time `json:"createdAt"`
}

// VideoMetadata carries optional caller-supplied frame dimensions. When either
// is zero the pipeline probes the video instead.
type VideoMetadata struct {
	Width  int `json:"width" validate:"omitempty,min=1"`
	Height int `json:"height" validate:"omitempty,min=1"`
}

// CreateWorkoutRequest starts the analysis pipeline for an uploaded raw video.
type CreateWorkoutRequest struct {
	UserID   string        `json:"userId" validate:"required"`
	VideoKey string        `json:"videoKey" validate:"required"`
	Notes    string        `json:"notes,omitempty"`
	Metadata VideoMetadata `json:"metadata"`
}

// CreateWorkoutResponse acknowledges a queued analysis job.
type CreateWorkoutResponse struct {
	JobID     string    `json:"jobId"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// ListWorkoutsResponse wraps a page of workouts for one user.
type ListWorkoutsResponse struct {
	Workouts []Workout `json:"workouts"`
	Limit    int       `json:"limit"`
	Offset   int       `json:"offset"`
}
