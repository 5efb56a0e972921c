package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/formcoach/api/internal/model"
)

// TaskTypeAnalysis is the asynq task type for the analysis pipeline.
const TaskTypeAnalysis = "workout:analyze"

const jobTTL = 24 * time.Hour

// WorkoutService handles workout records and the jobs that produce them
type WorkoutService struct {
	redis       *redis.Client
	asynqClient *asynq.Client
}

func NewWorkoutService(redisClient *redis.Client, asynqClient *asynq.Client) *WorkoutService {
	return &WorkoutService{
		redis:       redisClient,
		asynqClient: asynqClient,
	}
}

// CreateWorkout records a queued analysis job for an uploaded raw video and
// enqueues the pipeline task that will process it.
func (s *WorkoutService) CreateWorkout(ctx context.Context, req *model.CreateWorkoutRequest) (*model.CreateWorkoutResponse, error) {
	jobID := uuid.New().String()
	now := time.Now()

	payload := &model.AnalysisJobPayload{
		UserID:   req.UserID,
		VideoKey: req.VideoKey,
		Notes:    req.Notes,
		Metadata: req.Metadata,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	job := &model.Job{
		ID:        jobID,
		Status:    model.JobStatusQueued,
		Payload:   payloadBytes,
		CreatedAt: now,
	}

	if err := s.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	task, err := newAnalysisTask(jobID, payloadBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	_, err = s.asynqClient.Enqueue(task,
		asynq.Queue("analysis"),
		asynq.MaxRetry(2),
		asynq.Retention(jobTTL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	return &model.CreateWorkoutResponse{
		JobID:     jobID,
		Status:    model.JobStatusQueued,
		CreatedAt: now,
	}, nil
}

// GetJobStatus returns the public view of an analysis job.
func (s *WorkoutService) GetJobStatus(ctx context.Context, jobID string) (*model.JobStatusResponse, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	resp := &model.JobStatusResponse{
		JobID:       job.ID,
		Status:      job.Status,
		CurrentStep: job.CurrentStep,
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}

	if job.Status == model.JobStatusSucceeded && len(job.Result) > 0 {
		var result model.AnalysisJobResult
		if err := json.Unmarshal(job.Result, &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result: %w", err)
		}
		resp.Result = &result
	}

	return resp, nil
}

// GetWorkout retrieves a single workout record.
func (s *WorkoutService) GetWorkout(ctx context.Context, workoutID string) (*model.Workout, error) {
	data, err := s.redis.Get(ctx, fmt.Sprintf("workout:%s", workoutID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrWorkoutNotFound
		}
		return nil, err
	}

	var workout model.Workout
	if err := json.Unmarshal(data, &workout); err != nil {
		return nil, err
	}

	return &workout, nil
}

// SaveWorkout persists a workout record and prepends it to the owner's list.
func (s *WorkoutService) SaveWorkout(ctx context.Context, workout *model.Workout) error {
	data, err := json.Marshal(workout)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, fmt.Sprintf("workout:%s", workout.ID), data, 0).Err(); err != nil {
		return err
	}

	return s.redis.LPush(ctx, fmt.Sprintf("user:%s:workouts", workout.UserID), workout.ID).Err()
}

// ListWorkouts returns a page of the user's workouts, newest first. Records
// whose entry has expired or been removed are skipped.
func (s *WorkoutService) ListWorkouts(ctx context.Context, userID string, limit, offset int) (*model.ListWorkoutsResponse, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	ids, err := s.redis.LRange(ctx, fmt.Sprintf("user:%s:workouts", userID), int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, err
	}

	workouts := make([]model.Workout, 0, len(ids))
	for _, id := range ids {
		workout, err := s.GetWorkout(ctx, id)
		if err != nil {
			if err == ErrWorkoutNotFound {
				continue
			}
			return nil, err
		}
		workouts = append(workouts, *workout)
	}

	return &model.ListWorkoutsResponse{
		Workouts: workouts,
		Limit:    limit,
		Offset:   offset,
	}, nil
}

// Job persistence helpers, shared with the worker.

func (s *WorkoutService) SaveJob(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, fmt.Sprintf("job:%s", job.ID), data, jobTTL).Err()
}

func (s *WorkoutService) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	data, err := s.redis.Get(ctx, fmt.Sprintf("job:%s", jobID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}

	return &job, nil
}

// MarkJobRunning flips a job to running and records the step it is on.
func (s *WorkoutService) MarkJobRunning(ctx context.Context, jobID, step string) {
	s.updateJob(ctx, jobID, func(job *model.Job) {
		job.Status = model.JobStatusRunning
		job.CurrentStep = step
		if job.StartedAt == nil {
			now := time.Now()
			job.StartedAt = &now
		}
	})
}

// CompleteJob records a successful result on the job.
func (s *WorkoutService) CompleteJob(ctx context.Context, jobID string, result *model.AnalysisJobResult) {
	resultBytes, err := json.Marshal(result)
	if err != nil {
		s.FailJob(ctx, jobID, "failed to record result")
		return
	}

	s.updateJob(ctx, jobID, func(job *model.Job) {
		job.Status = model.JobStatusSucceeded
		job.CurrentStep = ""
		job.Result = resultBytes
		now := time.Now()
		job.CompletedAt = &now
	})
}

// FailJob records a terminal failure on the job.
func (s *WorkoutService) FailJob(ctx context.Context, jobID, errMsg string) {
	s.updateJob(ctx, jobID, func(job *model.Job) {
		job.Status = model.JobStatusFailed
		job.Error = &errMsg
		now := time.Now()
		job.CompletedAt = &now
	})
}

func (s *WorkoutService) updateJob(ctx context.Context, jobID string, mutate func(*model.Job)) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		log.Printf("Failed to get job %s: %v", jobID, err)
		return
	}

	mutate(job)
	if err := s.SaveJob(ctx, job); err != nil {
		log.Printf("Failed to save job %s: %v", jobID, err)
	}
}

func newAnalysisTask(jobID string, payload []byte) (*asynq.Task, error) {
	taskPayload := map[string]interface{}{
		"jobId":   jobID,
		"payload": payload,
	}
	data, err := json.Marshal(taskPayload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeAnalysis, data), nil
}
