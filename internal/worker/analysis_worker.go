package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/formcoach/api/internal/model"
	"github.com/formcoach/api/internal/service"
)

// AnalysisWorker runs the full pipeline for one uploaded workout video:
// form analysis, caption overlay, and persisting the finished workout.
type AnalysisWorker struct {
	workouts  *service.WorkoutService
	analyzer  service.VideoAnalyzer
	overlayer service.VideoOverlayer
}

// NewAnalysisWorker creates a new analysis worker
func NewAnalysisWorker(workouts *service.WorkoutService, analyzer service.VideoAnalyzer, overlayer service.VideoOverlayer) *AnalysisWorker {
	return &AnalysisWorker{
		workouts:  workouts,
		analyzer:  analyzer,
		overlayer: overlayer,
	}
}

// ProcessTask handles one queued analysis job.
func (w *AnalysisWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var taskPayload struct {
		JobID   string          `json:"jobId"`
		Payload json.RawMessage `json:"payload"`
	}

	if err := json.Unmarshal(t.Payload(), &taskPayload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	jobID := taskPayload.JobID
	log.Printf("Starting analysis job: %s", jobID)

	var payload model.AnalysisJobPayload
	if err := json.Unmarshal(taskPayload.Payload, &payload); err != nil {
		w.workouts.FailJob(ctx, jobID, "Invalid payload")
		return fmt.Errorf("failed to unmarshal analysis payload: %w", err)
	}

	if w.analyzer == nil || w.overlayer == nil {
		w.workouts.FailJob(ctx, jobID, "Analysis pipeline is not configured")
		return fmt.Errorf("analysis pipeline not configured")
	}

	w.workouts.MarkJobRunning(ctx, jobID, "Analyzing form...")

	analysis, err := w.analyzer.Analyze(ctx, payload.VideoKey)
	if err != nil {
		w.workouts.FailJob(ctx, jobID, err.Error())
		return fmt.Errorf("analysis failed for job %s: %w", jobID, err)
	}

	w.workouts.MarkJobRunning(ctx, jobID, "Rendering captions...")

	destKey, err := w.overlayer.Overlay(ctx, payload.VideoKey, analysis, payload.Metadata.Width, payload.Metadata.Height)
	if err != nil {
		w.workouts.FailJob(ctx, jobID, err.Error())
		return fmt.Errorf("overlay failed for job %s: %w", jobID, err)
	}

	w.workouts.MarkJobRunning(ctx, jobID, "Saving workout...")

	workout := &model.Workout{
		ID:         uuid.New().String(),
		UserID:     payload.UserID,
		Title:      analysis.Exercise,
		Notes:      payload.Notes,
		VideoURL:   destKey,
		RecordedAt: time.Now(),
		CreatedAt:  time.Now(),
	}
	if workout.Title == "" {
		workout.Title = "Workout"
	}

	if err := w.workouts.SaveWorkout(ctx, workout); err != nil {
		w.workouts.FailJob(ctx, jobID, "Failed to save workout")
		return fmt.Errorf("failed to save workout for job %s: %w", jobID, err)
	}

	w.workouts.CompleteJob(ctx, jobID, &model.AnalysisJobResult{
		WorkoutID:      workout.ID,
		Exercise:       analysis.Exercise,
		DestinationKey: destKey,
	})

	log.Printf("Analysis job %s completed (workout %s)", jobID, workout.ID)
	return nil
}
