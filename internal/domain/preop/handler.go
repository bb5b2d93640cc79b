package preop

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/preop/preop/internal/platform/apperr"
	"github.com/preop/preop/internal/platform/auth"
	"github.com/preop/preop/internal/platform/validate"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readers := api.Group("", auth.RequireSelfOrRole("id", auth.RoleSurgeon, auth.RoleAnesthesiologist))
	readers.GET("/patients/:id/fasting-plan", h.GetFastingPlan)
	readers.GET("/patients/:id/suspensions", h.ListSuspensions)
	readers.GET("/patients/:id/notifications", h.ListReminders)

	anesth := api.Group("", auth.RequireRole(auth.RoleAnesthesiologist))
	anesth.PUT("/patients/:id/fasting-plan", h.UpsertFastingPlan)
	anesth.POST("/patients/:id/suspensions", h.CreateSuspension)
	anesth.DELETE("/patients/:id/suspensions/:suspensionId", h.DeleteSuspension)
	anesth.POST("/ai/generate-medication-instructions", h.Suggest)
}

func uuidParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid %s", name)
	}
	return id, nil
}

func (h *Handler) GetFastingPlan(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	plan, err := h.svc.GetFastingPlan(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, plan)
}

func (h *Handler) UpsertFastingPlan(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var in FastingPlanInput
	if err := validate.Bind(c, &in); err != nil {
		return err
	}
	plan, err := h.svc.UpsertFastingPlan(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, plan)
}

func (h *Handler) ListSuspensions(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	list, err := h.svc.ListSuspensions(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) CreateSuspension(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var in SuspensionInput
	if err := validate.Bind(c, &in); err != nil {
		return err
	}
	susp, err := h.svc.CreateSuspension(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, susp)
}

func (h *Handler) DeleteSuspension(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	suspID, err := uuidParam(c, "suspensionId")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteSuspension(c.Request().Context(), id, suspID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListReminders(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	list, err := h.svc.ListReminders(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) Suggest(c echo.Context) error {
	var in SuggestInput
	if err := validate.Bind(c, &in); err != nil {
		return err
	}
	out, err := h.svc.SuggestSuspensions(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}
