package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/asterdex-mlm/internal/http/response"
	"github.com/asterdex-mlm/internal/service"

	"github.com/gin-gonic/gin"
)

func serviceErrorBody(t *testing.T, err error) map[string]interface{} {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("POST", "/api/v1/packages/1/stop", nil)

	RespondServiceError(c, err)

	var body map[string]interface{}
	if decodeErr := json.Unmarshal(w.Body.Bytes(), &body); decodeErr != nil {
		t.Fatalf("unmarshal body failed: %v", decodeErr)
	}
	return body
}

func TestRespondServiceErrorMapsKinds(t *testing.T) {
	body := serviceErrorBody(t, fmt.Errorf("stop package 1: %w", service.ErrPackageNotFound))
	if body["status_code"].(float64) != response.CodeNotFound {
		t.Fatalf("status_code want 404 got %v", body["status_code"])
	}
	if body["kind"] != string(service.KindNotFound) {
		t.Fatalf("kind want %s got %v", service.KindNotFound, body["kind"])
	}

	body = serviceErrorBody(t, service.ErrInsufficientFunds)
	if body["status_code"].(float64) != response.CodeUnprocessable {
		t.Fatalf("status_code want 422 got %v", body["status_code"])
	}
}

func TestRespondServiceErrorHidesInternalErrors(t *testing.T) {
	body := serviceErrorBody(t, errors.New("dial tcp 10.0.0.5:5432: connection refused"))
	if body["msg"] != "internal error" {
		t.Fatalf("internal error message leaked: %v", body["msg"])
	}
	if _, ok := body["kind"]; ok {
		t.Fatalf("internal errors should not carry a kind")
	}
}

func TestRespondResultTreatsAlreadyProcessedAsSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("POST", "/api/v1/admin/members/1/wallet/adjust", nil)

	existing := gin.H{"reference_id": "adj-1"}
	RespondResult(c, existing, fmt.Errorf("credit: %w", service.ErrAlreadyProcessed))

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body failed: %v", err)
	}
	if body["status_code"].(float64) != response.CodeOK || body["already_processed"] != true {
		t.Fatalf("replay should be a flagged success, got %v", body)
	}
	data, ok := body["data"].(map[string]interface{})
	if !ok || data["reference_id"] != "adj-1" {
		t.Fatalf("replay should return the existing entry, got %v", body["data"])
	}
	if _, ok := body["kind"]; ok {
		t.Fatalf("replay should not carry an error kind")
	}

	body = serviceErrorBody(t, service.ErrAlreadyProcessed)
	if body["status_code"].(float64) != response.CodeOK || body["already_processed"] != true {
		t.Fatalf("already processed via RespondServiceError should succeed, got %v", body)
	}
}
