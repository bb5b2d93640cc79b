package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/preop/preop/internal/platform/apperr"
	"github.com/preop/preop/internal/platform/validate"
)

func newTestHandler() (*Handler, *echo.Echo) {
	svc := newTestService()
	h := NewHandler(svc)
	e := echo.New()
	e.Validator = validate.New()
	return h, e
}

func TestHandler_Login(t *testing.T) {
	h, e := newTestHandler()
	h.svc.CreateAdmin(context.Background(), CreateAdminInput{
		Email: "root@clinic.org", Password: "supersecret", FirstName: "Rosa", LastName: "Díaz",
	})

	body := `{"email":"root@clinic.org","password":"supersecret"}`
	req := httptest.NewRequest(http.MethodPost, "/api/admin/login", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Login(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var res LoginResult
	json.Unmarshal(rec.Body.Bytes(), &res)
	if res.AccessToken == "" {
		t.Error("expected access token")
	}
	if strings.Contains(rec.Body.String(), "password_hash") {
		t.Error("password hash must not be serialized")
	}
}

func TestHandler_Login_BadCredentials(t *testing.T) {
	h, e := newTestHandler()

	body := `{"email":"root@clinic.org","password":"nope"}`
	req := httptest.NewRequest(http.MethodPost, "/api/admin/login", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Login(c)
	if !apperr.Is(err, apperr.KindAuth) {
		t.Errorf("expected auth error, got %v", err)
	}
}

func TestHandler_Login_MissingFields(t *testing.T) {
	h, e := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/admin/login", strings.NewReader(`{"email":"x"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Login(c)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestHandler_CreateProvider(t *testing.T) {
	h, e := newTestHandler()

	body := `{"name":"Hospital Metropolitano","phone":"+593 2 399 8000"}`
	req := httptest.NewRequest(http.MethodPost, "/api/providers", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreateProvider(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var p HealthProvider
	json.Unmarshal(rec.Body.Bytes(), &p)
	if p.Name != "Hospital Metropolitano" {
		t.Errorf("expected name, got %s", p.Name)
	}
}

func TestHandler_GetProvider_NotFound(t *testing.T) {
	h, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	if err := h.GetProvider(c); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestHandler_GetProvider_InvalidID(t *testing.T) {
	h, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	if err := h.GetProvider(c); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestHandler_ListProviders(t *testing.T) {
	h, e := newTestHandler()
	h.svc.CreateProvider(context.Background(), CreateProviderInput{Name: "A"})
	h.svc.CreateProvider(context.Background(), CreateProviderInput{Name: "B"})

	req := httptest.NewRequest(http.MethodGet, "/api/providers?limit=1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListProviders(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Total   int  `json:"total"`
		HasMore bool `json:"has_more"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 2 || !resp.HasMore {
		t.Errorf("unexpected page: %+v", resp)
	}
}
