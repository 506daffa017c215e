package reminder

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

func request(method, body, uid string) *http.Request {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req.WithContext(auth.WithUser(req.Context(), uid, ""))
}

func TestHandler_CreateAndList(t *testing.T) {
	svc, _, _ := newTestService()
	h, e := NewHandler(svc), echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(request(http.MethodPost, `{"type":"Medication","title":"Pill","scheduledFor":"2024-06-14T08:00:00Z","notificationPreference":"SMS"}`, "uid-phone"), rec)
	if err := h.Create(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := request(http.MethodGet, "", "uid-phone")
	req.URL.RawQuery = "type=Medication"
	if err := h.List(e.NewContext(req, rec)); err != nil {
		t.Fatal(err)
	}
	var body struct {
		Reminders []Reminder `json:"reminders"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if len(body.Reminders) != 1 || body.Reminders[0].NotificationPreference != PreferenceSMS {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_Create_NoPhone(t *testing.T) {
	svc, _, _ := newTestService()
	h, e := NewHandler(svc), echo.New()
	c := e.NewContext(request(http.MethodPost, `{"type":"Medication","title":"Pill","scheduledFor":"2024-06-14T08:00:00Z","notificationPreference":"SMS"}`, "uid-nophone"), httptest.NewRecorder())

	err := h.Create(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest || he.Message != "Cannot create SMS reminder: user has no phone number on profile" {
		t.Errorf("expected 400 no phone, got %v", err)
	}
}

func TestHandler_Update_InvalidID(t *testing.T) {
	svc, _, _ := newTestService()
	h, e := NewHandler(svc), echo.New()
	c := e.NewContext(request(http.MethodPut, `{}`, "uid-phone"), httptest.NewRecorder())
	c.SetParamNames("reminderId")
	c.SetParamValues("not-a-uuid")

	var he *echo.HTTPError
	if err := h.Update(c); !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_Delete(t *testing.T) {
	svc, _, _ := newTestService()
	h, e := NewHandler(svc), echo.New()
	rem, _ := svc.Create(request(http.MethodGet, "", "").Context(), "uid-phone", CreateInput{Type: "Other", Title: "x", ScheduledFor: "2024-06-14"})

	rec := httptest.NewRecorder()
	c := e.NewContext(request(http.MethodDelete, "", "uid-phone"), rec)
	c.SetParamNames("reminderId")
	c.SetParamValues(rem.ID.String())
	if err := h.Delete(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c = e.NewContext(request(http.MethodDelete, "", "uid-phone"), httptest.NewRecorder())
	c.SetParamNames("reminderId")
	c.SetParamValues(rem.ID.String())
	var he *echo.HTTPError
	if err := h.Delete(c); !errors.As(err, &he) || he.Code != http.StatusNotFound || he.Message != "Reminder not found" {
		t.Errorf("expected 404, got %v", err)
	}
}
