package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/formcoach/api/internal/client"
	"github.com/formcoach/api/internal/config"
)

func TestHealthReportsServices(t *testing.T) {
	// Nothing is reachable or configured here, so every collaborator must
	// report false while the endpoint itself stays healthy.
	redisClient := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
	})
	gemini := client.NewGeminiClient(&config.GeminiConfig{})

	app := fiber.New()
	app.Get("/health", healthHandler(redisClient, gemini, nil))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Status   string          `json:"status"`
		Services map[string]bool `json:"services"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}

	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
	for _, svc := range []string{"gemini", "storage", "redis"} {
		up, present := body.Services[svc]
		if !present {
			t.Errorf("services missing %q: %#v", svc, body.Services)
		}
		if up {
			t.Errorf("service %q reported up with nothing configured", svc)
		}
	}
}
