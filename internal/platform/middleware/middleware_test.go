package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/healthvault/vault/internal/platform/auth"
)

func TestRequestID_GeneratesNew(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		rid := c.Get("request_id").(string)
		if rid == "" {
			t.Error("expected request_id to be generated")
		}
		return c.String(http.StatusOK, "ok")
	}

	if err := RequestID()(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("expected X-Request-ID response header")
	}
}

func TestRequestID_PreservesExisting(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "my-custom-id")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		if rid := c.Get("request_id").(string); rid != "my-custom-id" {
			t.Errorf("expected my-custom-id, got %s", rid)
		}
		return c.String(http.StatusOK, "ok")
	}

	RequestID()(handler)(c)

	if rec.Header().Get(RequestIDHeader) != "my-custom-id" {
		t.Errorf("expected my-custom-id in response header, got %s", rec.Header().Get(RequestIDHeader))
	}
}

func TestRequestID_ReplacesOversized(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", 500))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	RequestID()(func(c echo.Context) error { return nil })(c)

	if got := rec.Header().Get(RequestIDHeader); len(got) > 128 {
		t.Errorf("expected oversized id to be replaced, got %d chars", len(got))
	}
}

func TestLogger_LogsRequestWithUser(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/reminders", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("request_id", "rid-1")

	handler := func(c echo.Context) error {
		c.SetRequest(c.Request().WithContext(auth.WithUser(c.Request().Context(), "uid-9", "")))
		return c.String(http.StatusOK, "ok")
	}

	if err := Logger(logger)(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	if entry["uid"] != "uid-9" || entry["request_id"] != "rid-1" {
		t.Errorf("unexpected log entry: %v", entry)
	}
	if entry["level"] != "info" || entry["status"] != float64(200) {
		t.Errorf("expected info/200, got %v/%v", entry["level"], entry["status"])
	}
}

func TestLogger_UsesErrorStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	Logger(logger)(func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "Reminder not found")
	})(c)

	var entry map[string]interface{}
	json.Unmarshal(buf.Bytes(), &entry)
	if entry["level"] != "warn" || entry["status"] != float64(404) {
		t.Errorf("expected warn/404, got %v/%v", entry["level"], entry["status"])
	}
}

func TestRecovery_CatchesPanic(t *testing.T) {
	var logs bytes.Buffer
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	req = req.WithContext(auth.WithUser(req.Context(), "uid-1", ""))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := Recovery(zerolog.New(&logs))(func(c echo.Context) error {
		panic("test panic")
	})(c)

	if err == nil {
		t.Fatal("expected error from recovered panic")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", httpErr.Code)
	}
	var pe *PanicError
	if !errors.As(httpErr.Internal, &pe) || pe.Value != "test panic" || len(pe.Stack) == 0 {
		t.Errorf("expected panic value and stack, got %#v", httpErr.Internal)
	}
	out := logs.String()
	if !strings.Contains(out, `"uid":"uid-1"`) || !strings.Contains(out, `"panic":"test panic"`) {
		t.Errorf("expected panic log with uid, got %s", out)
	}
}

func TestRecovery_RendersThroughErrorHandler(t *testing.T) {
	for _, tt := range []struct {
		name    string
		expose  bool
		details interface{}
	}{
		{"development", true, "panic: boom"},
		{"production", false, nil},
	} {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			e.HTTPErrorHandler = ErrorHandler(zerolog.Nop(), tt.expose)
			e.Use(Recovery(zerolog.Nop()))
			e.GET("/panic", func(c echo.Context) error { panic("boom") })

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

			if rec.Code != http.StatusInternalServerError {
				t.Fatalf("expected 500, got %d", rec.Code)
			}
			var body map[string]interface{}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["error"] != "Internal server error" {
				t.Errorf("unexpected error message %v", body["error"])
			}
			if body["details"] != tt.details {
				t.Errorf("expected details %v, got %v", tt.details, body["details"])
			}
		})
	}
}

func TestRecovery_RepanicsOnAbort(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	defer func() {
		if r := recover(); r != http.ErrAbortHandler {
			t.Errorf("expected ErrAbortHandler to propagate, got %v", r)
		}
	}()
	Recovery(zerolog.Nop())(func(c echo.Context) error {
		panic(http.ErrAbortHandler)
	})(c)
	t.Fatal("expected panic to propagate")
}

func TestRecovery_PassesThrough(t *testing.T) {
	logger := zerolog.New(os.Stderr).With().Logger()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/ok", nil), rec)

	if err := Recovery(logger)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func renderError(t *testing.T, err error, expose bool) (int, map[string]interface{}) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	ErrorHandler(zerolog.Nop(), expose)(err, c)

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return rec.Code, body
}

func TestErrorHandler_HTTPError(t *testing.T) {
	code, body := renderError(t, echo.NewHTTPError(http.StatusBadRequest, "Valid message required"), true)
	if code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
	if body["error"] != "Valid message required" {
		t.Errorf("unexpected body: %v", body)
	}
	if _, ok := body["details"]; ok {
		t.Error("expected no details on client errors without an internal cause")
	}
}

func TestErrorHandler_PlainErrorHidesDetailsInProduction(t *testing.T) {
	code, body := renderError(t, errors.New("pq: connection reset"), false)
	if code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", code)
	}
	if body["error"] != "Internal server error" {
		t.Errorf("unexpected error message: %v", body["error"])
	}
	if _, ok := body["details"]; ok {
		t.Error("expected details to be hidden")
	}
}

func TestErrorHandler_PlainErrorShowsDetailsInDevelopment(t *testing.T) {
	_, body := renderError(t, errors.New("pq: connection reset"), true)
	if body["details"] != "pq: connection reset" {
		t.Errorf("expected details, got %v", body["details"])
	}
}

func TestErrorHandler_InternalCause(t *testing.T) {
	err := echo.NewHTTPError(http.StatusInternalServerError, "Error uploading file").SetInternal(errors.New("bucket missing"))
	_, body := renderError(t, err, true)
	if body["error"] != "Error uploading file" || body["details"] != "bucket missing" {
		t.Errorf("unexpected body: %v", body)
	}
}
