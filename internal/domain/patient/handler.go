package patient

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

// RegisterRoutes mounts patient routes. login middleware applies to the
// public login route only.
func (h *Handler) RegisterRoutes(api *echo.Group, login ...echo.MiddlewareFunc) {
	api.POST("/login", h.Login, login...)

	staff := api.Group("", auth.RequireRole(auth.RoleSurgeon, auth.RoleAnesthesiologist))
	staff.GET("/patients", h.List)
	staff.POST("/patients/:id/send-consent-email", h.SendConsentEmail)
	staff.GET("/patients/:id/portal-qr", h.PortalQR)

	surgeons := api.Group("", auth.RequireRole(auth.RoleSurgeon))
	surgeons.POST("/patients", h.Create)
	surgeons.PUT("/patients/:id/surgery-date", h.UpdateSurgeryDate)

	anesth := api.Group("", auth.RequireRole(auth.RoleAnesthesiologist))
	anesth.PUT("/patients/:id/anesthesia-consent", h.AttachAnesthesiaConsent)

	self := api.Group("", auth.RequireSelfOrRole("id", auth.RoleSurgeon, auth.RoleAnesthesiologist))
	self.GET("/patients/:id", h.Get)

	signers := api.Group("", auth.RequireSelfOrRole("id"))
	signers.PUT("/patients/:id/sign-surgical", h.signHandler(ConsentSurgical))
	signers.PUT("/patients/:id/sign-anesthesia", h.signHandler(ConsentAnesthesia))
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid id")
	}
	return id, nil
}

func optionalUUID(c echo.Context, name string) (*uuid.UUID, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperr.Validation("invalid %s", name)
	}
	return &id, nil
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

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := validate.Bind(c, &in); err != nil {
		return err
	}
	ctx := c.Request().Context()
	p, err := h.svc.CreatePatient(ctx, auth.PrincipalFromContext(ctx), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	p, err := h.svc.GetPatient(ctx, auth.PrincipalFromContext(ctx), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) List(c echo.Context) error {
	f := ListFilter{Search: c.QueryParam("search")}
	var err error
	if f.SurgeonID, err = optionalUUID(c, "surgeon_id"); err != nil {
		return err
	}
	if f.AnesthesiologistID, err = optionalUUID(c, "anesthesiologist_id"); err != nil {
		return err
	}
	if f.ProviderID, err = optionalUUID(c, "provider_id"); err != nil {
		return err
	}

	pg := pagination.FromContext(c)
	list, total, err := h.svc.ListPatients(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewPage(list, total, pg))
}

func (h *Handler) UpdateSurgeryDate(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in SurgeryDateInput
	if err := validate.Bind(c, &in); err != nil {
		return err
	}
	ctx := c.Request().Context()
	p, err := h.svc.UpdateSurgeryDate(ctx, auth.PrincipalFromContext(ctx), id, in.SurgeryAt)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) AttachAnesthesiaConsent(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in AnesthesiaConsentInput
	if err := validate.Bind(c, &in); err != nil {
		return err
	}
	ctx := c.Request().Context()
	p, err := h.svc.AttachAnesthesiaConsent(ctx, auth.PrincipalFromContext(ctx), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) signHandler(t ConsentType) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := parseID(c)
		if err != nil {
			return err
		}
		var in SignInput
		if err := validate.Bind(c, &in); err != nil {
			return err
		}
		ctx := c.Request().Context()
		p, err := h.svc.Sign(ctx, auth.PrincipalFromContext(ctx), id, t, in.Image)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, p)
	}
}

func (h *Handler) SendConsentEmail(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	receipt, err := h.svc.SendConsentEmail(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, receipt)
}

func (h *Handler) PortalQR(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	png, err := h.svc.PortalQR(c.Request().Context(), id)
	if err != nil {
		return err
	}
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.Blob(http.StatusOK, "image/png", png)
}
