package admin

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/preop/preop/internal/platform/apperr"
	"github.com/preop/preop/internal/platform/auth"
	"github.com/preop/preop/internal/platform/validate"
	"github.com/preop/preop/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts admin routes. The login route must also be listed
// as a public path for the auth skipper. login may carry a rate limiter.
func (h *Handler) RegisterRoutes(api *echo.Group, login ...echo.MiddlewareFunc) {
	api.POST("/admin/login", h.Login, login...)

	adminGroup := api.Group("", auth.RequireRole(auth.RoleAdmin))
	adminGroup.GET("/providers", h.ListProviders)
	adminGroup.GET("/providers/:id", h.GetProvider)
	adminGroup.POST("/providers", h.CreateProvider)
}

func (h *Handler) Login(c echo.Context) error {
	var in LoginInput
	if err := validate.Bind(c, &in); err != nil {
		return err
	}
	res, err := h.svc.Login(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) CreateProvider(c echo.Context) error {
	var in CreateProviderInput
	if err := validate.Bind(c, &in); err != nil {
		return err
	}
	p, err := h.svc.CreateProvider(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetProvider(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id")
	}
	p, err := h.svc.GetProvider(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListProviders(c echo.Context) error {
	p := pagination.FromContext(c)
	providers, total, err := h.svc.ListProviders(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewPage(providers, total, p))
}
