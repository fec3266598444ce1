package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func resetHealthChecker() {
	healthChecker = &HealthChecker{
		components: make(map[string]ComponentHealth),
		startTime:  time.Now(),
	}
}

func TestRegisterComponent(t *testing.T) {
	resetHealthChecker()

	RegisterComponent("write", true, "reachable")

	if len(healthChecker.components) != 1 {
		t.Errorf("expected 1 component, got %d", len(healthChecker.components))
	}

	comp := healthChecker.components["write"]
	if !comp.Healthy {
		t.Error("component should be healthy")
	}
	if comp.Message != "reachable" {
		t.Errorf("expected message 'reachable', got '%s'", comp.Message)
	}
}

func TestGetHealthAllHealthy(t *testing.T) {
	resetHealthChecker()
	healthChecker.version = "1.0.0"

	RegisterComponent("cloud", true, "")
	RegisterComponent("coordinator", true, "")

	health := GetHealth()

	if health.Status != "healthy" {
		t.Errorf("expected status 'healthy', got '%s'", health.Status)
	}
	if len(health.Components) != 2 {
		t.Errorf("expected 2 components, got %d", len(health.Components))
	}
	if health.Version != "1.0.0" {
		t.Errorf("expected version '1.0.0', got '%s'", health.Version)
	}
}

func TestGetHealthOneUnhealthy(t *testing.T) {
	resetHealthChecker()

	RegisterComponent("cloud", true, "")
	RegisterComponent("coordinator", false, "not connected")

	health := GetHealth()

	if health.Status != "unhealthy" {
		t.Errorf("expected status 'unhealthy', got '%s'", health.Status)
	}
	if health.Components["coordinator"] != "unhealthy: not connected" {
		t.Errorf("unexpected coordinator status: %s", health.Components["coordinator"])
	}
}

func TestGetReadinessAllReady(t *testing.T) {
	resetHealthChecker()

	RegisterComponent("cloud", true, "")
	RegisterComponent("coordinator", true, "")

	readiness := GetReadiness()

	if readiness.Status != "ready" {
		t.Errorf("expected status 'ready', got '%s'", readiness.Status)
	}
}

func TestGetReadinessMissingCriticalComponent(t *testing.T) {
	resetHealthChecker()

	RegisterComponent("cloud", true, "")
	// coordinator not registered

	readiness := GetReadiness()

	if readiness.Status != "not_ready" {
		t.Errorf("expected status 'not_ready', got '%s'", readiness.Status)
	}
	if readiness.Message == "" {
		t.Error("expected message explaining why not ready")
	}
}

func TestGetReadinessCriticalComponentUnhealthy(t *testing.T) {
	resetHealthChecker()

	RegisterComponent("cloud", true, "")
	RegisterComponent("coordinator", false, "no active replica")

	readiness := GetReadiness()

	if readiness.Status != "not_ready" {
		t.Errorf("expected status 'not_ready', got '%s'", readiness.Status)
	}
}

func TestHealthHandler(t *testing.T) {
	resetHealthChecker()
	healthChecker.version = "test"

	RegisterComponent("cloud", true, "")

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	HealthHandler()(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var health HealthStatus
	if err := json.NewDecoder(w.Body).Decode(&health); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if health.Status != "healthy" {
		t.Errorf("expected healthy status, got %s", health.Status)
	}
	if health.Version != "test" {
		t.Errorf("expected version 'test', got %s", health.Version)
	}
}

func TestHealthHandlerUnhealthy(t *testing.T) {
	resetHealthChecker()

	RegisterComponent("cloud", false, "dns lookup failed")

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	HealthHandler()(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}

	var health HealthStatus
	if err := json.NewDecoder(w.Body).Decode(&health); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if health.Status != "unhealthy" {
		t.Errorf("expected unhealthy status, got %s", health.Status)
	}
}

func TestReadyHandler(t *testing.T) {
	resetHealthChecker()

	RegisterComponent("cloud", true, "")
	RegisterComponent("coordinator", true, "")

	req := httptest.NewRequest("GET", "/ready", nil)
	w := httptest.NewRecorder()

	ReadyHandler()(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var readiness HealthStatus
	if err := json.NewDecoder(w.Body).Decode(&readiness); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if readiness.Status != "ready" {
		t.Errorf("expected ready status, got %s", readiness.Status)
	}
}

func TestReadyHandlerNotReady(t *testing.T) {
	resetHealthChecker()

	RegisterComponent("cloud", true, "")
	// coordinator not registered

	req := httptest.NewRequest("GET", "/ready", nil)
	w := httptest.NewRecorder()

	ReadyHandler()(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}

	var readiness HealthStatus
	if err := json.NewDecoder(w.Body).Decode(&readiness); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if readiness.Status != "not_ready" {
		t.Errorf("expected not_ready status, got %s", readiness.Status)
	}
}

func TestLivenessHandler(t *testing.T) {
	resetHealthChecker()

	req := httptest.NewRequest("GET", "/live", nil)
	w := httptest.NewRecorder()

	LivenessHandler()(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var response map[string]string
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["status"] != "alive" {
		t.Errorf("expected status 'alive', got '%s'", response["status"])
	}
	if response["uptime"] == "" {
		t.Error("uptime should not be empty")
	}
}

func TestUpdateComponent(t *testing.T) {
	resetHealthChecker()

	RegisterComponent("cloud", true, "ok")
	UpdateComponent("cloud", false, "timeout")

	comp := healthChecker.components["cloud"]
	if comp.Healthy {
		t.Error("component should be unhealthy after update")
	}
	if comp.Message != "timeout" {
		t.Errorf("expected message 'timeout', got '%s'", comp.Message)
	}
}
