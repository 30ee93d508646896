package directory

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/majdamija123/medconnect-backend/internal/platform/auth"
	"github.com/majdamija123/medconnect-backend/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// The doctor directory is readable by any authenticated user.
	api.GET("/doctors", h.ListDoctors)
	api.GET("/doctors/:id", h.GetDoctor)

	// Profile self-service
	api.GET("/doctors/me", h.GetMyDoctorProfile, auth.RequireRole(auth.RoleDoctor))
	api.PUT("/doctors/me", h.UpdateMyDoctorProfile, auth.RequireRole(auth.RoleDoctor))
	api.GET("/patients/me", h.GetMyPatientProfile, auth.RequireRole(auth.RolePatient))
	api.PUT("/patients/me", h.UpdateMyPatientProfile, auth.RequireRole(auth.RolePatient))

	// Doctors can look up the patients they treat.
	api.GET("/patients/:id", h.GetPatient, auth.RequireRole(auth.RoleDoctor))
}

func (h *Handler) ListDoctors(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListDoctors(c.Request().Context(), c.QueryParam("specialty"), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list doctors")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetDoctor(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	d, err := h.svc.GetDoctor(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "doctor not found")
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) GetMyDoctorProfile(c echo.Context) error {
	identity, _ := auth.IdentityFromContext(c.Request().Context())
	d, err := h.svc.GetDoctor(c.Request().Context(), identity.ProfileID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "doctor profile not found")
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) UpdateMyDoctorProfile(c echo.Context) error {
	identity, _ := auth.IdentityFromContext(c.Request().Context())

	var d DoctorProfile
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d.ID = identity.ProfileID
	d.UserID = identity.UserID

	if err := h.svc.UpdateDoctor(c.Request().Context(), &d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) GetMyPatientProfile(c echo.Context) error {
	identity, _ := auth.IdentityFromContext(c.Request().Context())
	p, err := h.svc.GetPatient(c.Request().Context(), identity.ProfileID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "patient profile not found")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdateMyPatientProfile(c echo.Context) error {
	identity, _ := auth.IdentityFromContext(c.Request().Context())

	var p PatientProfile
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.ID = identity.ProfileID
	p.UserID = identity.UserID

	if err := h.svc.UpdatePatient(c.Request().Context(), &p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.GetPatient(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return c.JSON(http.StatusOK, p)
}
