package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/formcoach/api/internal/model"
	"github.com/formcoach/api/internal/service"
	"github.com/formcoach/api/pkg/response"
)

type WorkoutHandler struct {
	service   *service.WorkoutService
	validator *validator.Validate
}

func NewWorkoutHandler(svc *service.WorkoutService, v *validator.Validate) *WorkoutHandler {
	return &WorkoutHandler{
		service:   svc,
		validator: v,
	}
}

// Create handles POST /api/workouts
func (h *WorkoutHandler) Create(c *fiber.Ctx) error {
	var req model.CreateWorkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.CreateWorkout(c.Context(), &req)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// GetJob handles GET /api/workouts/jobs/:jobId
func (h *WorkoutHandler) GetJob(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.GetJobStatus(c.Context(), jobID)
	if err != nil {
		if err == service.ErrJobNotFound {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// GetByID handles GET /api/workouts/:id
func (h *WorkoutHandler) GetByID(c *fiber.Ctx) error {
	workoutID := c.Params("id")
	if workoutID == "" {
		return response.ValidationError(c, "Workout ID is required", nil)
	}

	workout, err := h.service.GetWorkout(c.Context(), workoutID)
	if err != nil {
		if err == service.ErrWorkoutNotFound {
			return response.NotFound(c, "Workout not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, workout)
}

// ListByUser handles GET /api/users/:userId/workouts
func (h *WorkoutHandler) ListByUser(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if userID == "" {
		return response.ValidationError(c, "User ID is required", nil)
	}

	limit := c.QueryInt("limit", 20)
	offset := c.QueryInt("offset", 0)

	result, err := h.service.ListWorkouts(c.Context(), userID, limit, offset)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
