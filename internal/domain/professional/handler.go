package professional

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

// RegisterRoutes mounts professional routes. login middleware applies to the
// two public login routes only.
func (h *Handler) RegisterRoutes(api *echo.Group, login ...echo.MiddlewareFunc) {
	api.POST("/surgeons/login", h.loginAs(RoleSurgeon), login...)
	api.POST("/anesthesiologists/login", h.loginAs(RoleAnesthesiologist), login...)

	adminGroup := api.Group("", auth.RequireRole(auth.RoleAdmin))
	adminGroup.POST("/professionals", h.Create)
	adminGroup.GET("/professionals", h.List)
	adminGroup.GET("/professionals/:id", h.Get)
	adminGroup.POST("/providers/:id/add-professional", h.LinkProvider)
}

func (h *Handler) loginAs(role Role) echo.HandlerFunc {
	return func(c echo.Context) error {
		var in LoginInput
		if err := validate.Bind(c, &in); err != nil {
			return err
		}
		res, err := h.svc.Login(c.Request().Context(), role, in)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, res)
	}
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := validate.Bind(c, &in); err != nil {
		return err
	}
	p, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id")
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	list, total, err := h.svc.List(c.Request().Context(), c.QueryParam("role"), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewPage(list, total, pg))
}

func (h *Handler) LinkProvider(c echo.Context) error {
	providerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid provider id")
	}
	var in LinkProviderInput
	if err := validate.Bind(c, &in); err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := h.svc.LinkProvider(ctx, in.ProfessionalID, providerID); err != nil {
		return err
	}
	p, err := h.svc.Get(ctx, in.ProfessionalID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}
