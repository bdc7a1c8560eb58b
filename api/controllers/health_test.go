package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/angelmondragon/groupbuy-backend/pkg/config"
	"github.com/angelmondragon/groupbuy-backend/pkg/db"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func testConfig() *config.Config {
	return &config.Config{App: config.AppConfig{Env: "test"}}
}

func TestHealthLive(t *testing.T) {
	resp := httptest.NewRecorder()
	HealthLive(testConfig())(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if got := resp.Header().Get(envHeader); got != "test" {
		t.Fatalf("unexpected env header %q", got)
	}
}

func TestHealthReadyAllUp(t *testing.T) {
	deps := map[string]db.Pinger{
		"database": pingerFunc(func(context.Context) error { return nil }),
		"redis":    nil,
	}
	resp := httptest.NewRecorder()
	HealthReady(testConfig(), testLogger(), deps)(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data struct {
			Checks map[string]string `json:"checks"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.Checks["database"] != "ok" || envelope.Data.Checks["redis"] != "disabled" {
		t.Fatalf("unexpected checks %v", envelope.Data.Checks)
	}
}

func TestHealthReadyReportsDependencyFailure(t *testing.T) {
	deps := map[string]db.Pinger{
		"database": pingerFunc(func(context.Context) error { return errors.New("connection refused") }),
	}
	resp := httptest.NewRecorder()
	HealthReady(testConfig(), testLogger(), deps)(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}
