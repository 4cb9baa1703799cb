package apperror

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestHTTPErrorHandler_AppError(t *testing.T) {
	e := echo.New()
	log := slog.Default()
	handler := HTTPErrorHandler(log)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	appErr := NewBadRequest("invalid input")
	handler(appErr, c)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	errObj := resp["error"].(map[string]any)
	if errObj["code"] != "bad_request" {
		t.Errorf("Code = %v, want bad_request", errObj["code"])
	}
	if errObj["message"] != "invalid input" {
		t.Errorf("Message = %v, want 'invalid input'", errObj["message"])
	}
}

func TestHTTPErrorHandler_AppErrorDetails(t *testing.T) {
	e := echo.New()
	handler := HTTPErrorHandler(slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	appErr := ErrValidation.WithDetails(map[string]any{"field": "episodes_total"})
	handler(appErr, c)

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	errObj := resp["error"].(map[string]any)
	details, ok := errObj["details"].(map[string]any)
	if !ok {
		t.Fatal("details missing from response")
	}
	if details["field"] != "episodes_total" {
		t.Errorf("details['field'] = %v, want episodes_total", details["field"])
	}
}

func TestHTTPErrorHandler_EchoError(t *testing.T) {
	e := echo.New()
	log := slog.Default()
	handler := HTTPErrorHandler(log)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	echoErr := echo.NewHTTPError(http.StatusNotFound, "resource not found")
	handler(echoErr, c)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	errObj := resp["error"].(map[string]any)
	if errObj["code"] != "not_found" {
		t.Errorf("Code = %v, want not_found", errObj["code"])
	}
	if errObj["message"] != "resource not found" {
		t.Errorf("Message = %v, want 'resource not found'", errObj["message"])
	}
}

func TestHTTPErrorHandler_EchoError_AllStatusCodes(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantCode string
	}{
		{"not_found", http.StatusNotFound, "not_found"},
		{"bad_request", http.StatusBadRequest, "bad_request"},
		{"conflict", http.StatusConflict, "conflict"},
		{"unprocessable_entity", http.StatusUnprocessableEntity, "validation_error"},
		{"too_many_requests", http.StatusTooManyRequests, "rate_limited"},
		{"service_unavailable", http.StatusServiceUnavailable, "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			log := slog.Default()
			handler := HTTPErrorHandler(log)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			echoErr := echo.NewHTTPError(tt.status, "test message")
			handler(echoErr, c)

			if rec.Code != tt.status {
				t.Errorf("Status = %d, want %d", rec.Code, tt.status)
			}

			var resp map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("Failed to parse response: %v", err)
			}

			errObj := resp["error"].(map[string]any)
			if errObj["code"] != tt.wantCode {
				t.Errorf("Code = %v, want %v", errObj["code"], tt.wantCode)
			}
		})
	}
}

func TestHTTPErrorHandler_StructuredMessage(t *testing.T) {
	e := echo.New()
	log := slog.Default()
	handler := HTTPErrorHandler(log)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	structuredMsg := map[string]any{
		"error": map[string]any{
			"code":    "sync_in_progress",
			"message": "A catalog sync is already running",
		},
	}
	echoErr := echo.NewHTTPError(http.StatusConflict, structuredMsg)
	handler(echoErr, c)

	if rec.Code != http.StatusConflict {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusConflict)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	errObj := resp["error"].(map[string]any)
	if errObj["code"] != "sync_in_progress" {
		t.Errorf("Code = %v, want sync_in_progress", errObj["code"])
	}
	if errObj["message"] != "A catalog sync is already running" {
		t.Errorf("Message = %v, want 'A catalog sync is already running'", errObj["message"])
	}
}

func TestHTTPErrorHandler_InternalError(t *testing.T) {
	e := echo.New()
	log := slog.Default()
	handler := HTTPErrorHandler(log)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	genericErr := echo.NewHTTPError(http.StatusInternalServerError, "something went wrong")
	handler(genericErr, c)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestHTTPErrorHandler_HeadRequest(t *testing.T) {
	e := echo.New()
	log := slog.Default()
	handler := HTTPErrorHandler(log)

	req := httptest.NewRequest(http.MethodHead, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	appErr := NewNotFound("work", "movie-123")
	handler(appErr, c)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	// HEAD responses carry no body
	if rec.Body.Len() != 0 {
		t.Errorf("Body should be empty for HEAD request, got %d bytes", rec.Body.Len())
	}
}

func TestHTTPErrorHandler_CommittedResponse(t *testing.T) {
	e := echo.New()
	log := slog.Default()
	handler := HTTPErrorHandler(log)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	c.Response().WriteHeader(http.StatusOK)
	c.Response().Write([]byte("already written"))

	appErr := NewBadRequest("should not appear")
	handler(appErr, c)

	if rec.Code != http.StatusOK {
		t.Errorf("Status = %d, want %d (committed response)", rec.Code, http.StatusOK)
	}
}
