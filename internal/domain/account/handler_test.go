package account

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/healthvault/vault/internal/platform/auth"
)

func newTestHandler() (*Handler, *echo.Echo) {
	return NewHandler(newTestService()), echo.New()
}

func jsonRequest(method, body string) *http.Request {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func asUser(req *http.Request, uid string) *http.Request {
	return req.WithContext(auth.WithUser(req.Context(), uid, ""))
}

func TestHandler_Register(t *testing.T) {
	h, e := newTestHandler()
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, `{"firebaseUid":"uid-1","email":"a@example.com","fullName":"Alice"}`), rec)
	if err := h.Register(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var body struct {
		Message string      `json:"message"`
		User    userSummary `json:"user"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.User.Email != "a@example.com" || body.User.ID == "" {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestHandler_Register_Duplicate(t *testing.T) {
	h, e := newTestHandler()
	body := `{"firebaseUid":"uid-1","email":"a@example.com","fullName":"Alice"}`
	h.Register(e.NewContext(jsonRequest(http.MethodPost, body), httptest.NewRecorder()))

	err := h.Register(e.NewContext(jsonRequest(http.MethodPost, body), httptest.NewRecorder()))
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest || he.Message != "User already exists" {
		t.Errorf("expected 400 User already exists, got %v", err)
	}
}

func TestHandler_GetProfile(t *testing.T) {
	h, e := newTestHandler()
	h.Register(e.NewContext(jsonRequest(http.MethodPost, `{"firebaseUid":"uid-1","email":"a@example.com","fullName":"Alice"}`), httptest.NewRecorder()))

	rec := httptest.NewRecorder()
	c := e.NewContext(asUser(httptest.NewRequest(http.MethodGet, "/", nil), "uid-1"), rec)
	if err := h.GetProfile(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"firebaseUid":"uid-1"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_GetProfile_NotFound(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(asUser(httptest.NewRequest(http.MethodGet, "/", nil), "ghost"), httptest.NewRecorder())
	err := h.GetProfile(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_UpdateProfile(t *testing.T) {
	h, e := newTestHandler()
	h.Register(e.NewContext(jsonRequest(http.MethodPost, `{"firebaseUid":"uid-1","email":"a@example.com","fullName":"Alice"}`), httptest.NewRecorder()))

	rec := httptest.NewRecorder()
	c := e.NewContext(asUser(jsonRequest(http.MethodPut, `{"fullName":"Alice Smith","phone":"+15550100"}`), "uid-1"), rec)
	if err := h.UpdateProfile(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"fullName":"Alice Smith"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}
