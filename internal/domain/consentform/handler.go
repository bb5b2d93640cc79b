package consentform

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/preop/preop/internal/platform/apperr"
	"github.com/preop/preop/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Patients read the PDFs they are asked to sign.
	g := api.Group("", auth.RequireRole(auth.RoleSurgeon, auth.RoleAnesthesiologist, auth.RolePatient))
	g.GET("/consent-forms", h.List)
	g.GET("/consent-forms/:id", h.Get)
	g.GET("/consent-forms/:id/pdf", h.PDF)
}

func (h *Handler) List(c echo.Context) error {
	forms, err := h.svc.List(c.Request().Context(), c.QueryParam("type"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, forms)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id")
	}
	f, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, f)
}

func (h *Handler) PDF(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id")
	}
	f, err := h.svc.Content(c.Request().Context(), id)
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", f.FileName))
	return c.Blob(http.StatusOK, "application/pdf", f.Content)
}
