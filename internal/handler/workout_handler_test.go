package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/formcoach/api/internal/service"
	"github.com/formcoach/api/pkg/response"
)

func newTestApp() *fiber.App {
	// The service is never reached in these tests; requests fail validation
	// before any backend call.
	h := NewWorkoutHandler(service.NewWorkoutService(nil, nil), validator.New())

	app := fiber.New()
	app.Post("/api/workouts", h.Create)
	app.Get("/api/workouts/jobs/:jobId", h.GetJob)
	app.Get("/api/workouts/:id", h.GetByID)
	app.Get("/api/users/:userId/workouts", h.ListByUser)
	return app
}

func TestCreateWorkoutInvalidBody(t *testing.T) {
	app := newTestApp()

	req := httptest.NewRequest(http.MethodPost, "/api/workouts", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCreateWorkoutMissingFields(t *testing.T) {
	app := newTestApp()

	req := httptest.NewRequest(http.MethodPost, "/api/workouts", strings.NewReader(`{"notes": "leg day"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	var body response.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}

	if body.Error.Code != response.CodeValidationError {
		t.Errorf("error code = %q, want %q", body.Error.Code, response.CodeValidationError)
	}

	details, ok := body.Error.Details.(map[string]interface{})
	if !ok {
		t.Fatalf("details = %#v, want field map", body.Error.Details)
	}
	for _, field := range []string{"UserID", "VideoKey"} {
		if _, present := details[field]; !present {
			t.Errorf("details missing %s: %#v", field, details)
		}
	}
}

func TestCreateWorkoutRejectsNegativeDimensions(t *testing.T) {
	app := newTestApp()

	payload := `{"userId": "u1", "videoKey": "u1/squat.mp4", "metadata": {"width": -1, "height": 720}}`
	req := httptest.NewRequest(http.MethodPost, "/api/workouts", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}
