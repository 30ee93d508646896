package scheduling

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/majdamija123/medconnect-backend/internal/platform/auth"
	"github.com/majdamija123/medconnect-backend/pkg/pagination"
)

type Handler struct {
	svc       *Service
	directory ProfileDirectory
}

func NewHandler(svc *Service, directory ProfileDirectory) *Handler {
	return &Handler{svc: svc, directory: directory}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/doctors/:id/availability", h.GetAvailability)

	api.POST("/appointments", h.BookAppointment, auth.RequireRole(auth.RolePatient))
	api.GET("/appointments", h.ListAppointments)
	api.GET("/appointments/:id", h.GetAppointment)
	api.PATCH("/appointments/:id/confirm", h.ConfirmAppointment, auth.RequireRole(auth.RoleDoctor))
	api.PATCH("/appointments/:id/refuse", h.RefuseAppointment, auth.RequireRole(auth.RoleDoctor))
	api.PATCH("/appointments/:id/cancel", h.CancelAppointment)
	api.PATCH("/appointments/:id/reschedule", h.RescheduleAppointment, auth.RequireRole(auth.RolePatient))

	windows := api.Group("/doctors/me/windows", auth.RequireRole(auth.RoleDoctor))
	windows.GET("", h.ListWindows)
	windows.POST("", h.AddWindow)
	windows.DELETE("/:id", h.DeleteWindow)

	holidays := api.Group("/doctors/me/holidays", auth.RequireRole(auth.RoleDoctor))
	holidays.GET("", h.ListHolidays)
	holidays.POST("", h.AddHoliday)
	holidays.DELETE("/:id", h.DeleteHoliday)
}

// availabilityResponse lists the open starts of one day as "HH:MM" strings.
type availabilityResponse struct {
	DoctorName string   `json:"doctor_name"`
	Date       string   `json:"date"`
	Slots      []string `json:"slots"`
}

func (h *Handler) GetAvailability(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	dateParam := c.QueryParam("date")
	if dateParam == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "date query parameter is required")
	}
	date, err := time.Parse("2006-01-02", dateParam)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date must be formatted YYYY-MM-DD")
	}

	ctx := c.Request().Context()
	name, err := h.directory.DoctorName(ctx, doctorID)
	if errors.Is(err, pgx.ErrNoRows) {
		return echo.NewHTTPError(http.StatusNotFound, "doctor not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to resolve doctor")
	}

	slots, err := h.svc.AvailableSlots(ctx, doctorID, date)
	if err != nil {
		return domainError(err, "failed to compute availability")
	}

	starts := make([]string, 0, len(slots))
	for _, sl := range slots {
		starts = append(starts, sl.Start.Format("15:04"))
	}
	return c.JSON(http.StatusOK, availabilityResponse{
		DoctorName: name,
		Date:       dateParam,
		Slots:      starts,
	})
}

type bookRequest struct {
	DoctorID  uuid.UUID `json:"doctor_id"`
	StartTime time.Time `json:"start_time"`
	Reason    *string   `json:"reason"`
}

func (h *Handler) BookAppointment(c echo.Context) error {
	identity, _ := auth.IdentityFromContext(c.Request().Context())

	var req bookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.DoctorID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "doctor_id is required")
	}
	if req.StartTime.IsZero() {
		return echo.NewHTTPError(http.StatusBadRequest, "start_time is required")
	}

	appt, err := h.svc.Book(c.Request().Context(), identity.ProfileID, req.DoctorID, req.StartTime, req.Reason)
	if err != nil {
		return domainError(err, "failed to book appointment")
	}
	return c.JSON(http.StatusCreated, appt)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	identity, ok := auth.IdentityFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	pg := pagination.FromContext(c)
	status := AppointmentStatus(c.QueryParam("status"))
	items, total, err := h.svc.ListAppointments(c.Request().Context(), identity, status, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list appointments")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetAppointment(c echo.Context) error {
	identity, ok := auth.IdentityFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}

	appt, err := h.svc.GetAppointment(c.Request().Context(), identity, id)
	if err != nil {
		return domainError(err, "failed to fetch appointment")
	}
	return c.JSON(http.StatusOK, appt)
}

type transitionRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) ConfirmAppointment(c echo.Context) error {
	identity, _ := auth.IdentityFromContext(c.Request().Context())
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}

	appt, err := h.svc.Confirm(c.Request().Context(), identity, id)
	if err != nil {
		return domainError(err, "failed to confirm appointment")
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) RefuseAppointment(c echo.Context) error {
	identity, _ := auth.IdentityFromContext(c.Request().Context())
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}

	var req transitionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	appt, err := h.svc.Refuse(c.Request().Context(), identity, id, req.Reason)
	if err != nil {
		return domainError(err, "failed to refuse appointment")
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) CancelAppointment(c echo.Context) error {
	identity, ok := auth.IdentityFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}

	var req transitionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	appt, err := h.svc.Cancel(c.Request().Context(), identity, id, req.Reason)
	if err != nil {
		return domainError(err, "failed to cancel appointment")
	}
	return c.JSON(http.StatusOK, appt)
}

type rescheduleRequest struct {
	StartTime time.Time `json:"start_time"`
}

func (h *Handler) RescheduleAppointment(c echo.Context) error {
	identity, _ := auth.IdentityFromContext(c.Request().Context())
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}

	var req rescheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.StartTime.IsZero() {
		return echo.NewHTTPError(http.StatusBadRequest, "start_time is required")
	}

	appt, err := h.svc.Reschedule(c.Request().Context(), identity, id, req.StartTime)
	if err != nil {
		return domainError(err, "failed to reschedule appointment")
	}
	return c.JSON(http.StatusOK, appt)
}

type windowRequest struct {
	DayOfWeek int       `json:"day_of_week"`
	StartTime TimeOfDay `json:"start_time"`
	EndTime   TimeOfDay `json:"end_time"`
}

func (h *Handler) ListWindows(c echo.Context) error {
	identity, _ := auth.IdentityFromContext(c.Request().Context())
	items, err := h.svc.ListWindows(c.Request().Context(), identity.ProfileID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list windows")
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) AddWindow(c echo.Context) error {
	identity, _ := auth.IdentityFromContext(c.Request().Context())

	var req windowRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	w, err := h.svc.AddWindow(c.Request().Context(), identity.ProfileID, req.DayOfWeek, req.StartTime, req.EndTime)
	if err != nil {
		return domainError(err, "failed to create window")
	}
	return c.JSON(http.StatusCreated, w)
}

func (h *Handler) DeleteWindow(c echo.Context) error {
	identity, _ := auth.IdentityFromContext(c.Request().Context())
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid window id")
	}
	if err := h.svc.DeleteWindow(c.Request().Context(), identity.ProfileID, id); err != nil {
		return domainError(err, "failed to delete window")
	}
	return c.NoContent(http.StatusNoContent)
}

type holidayRequest struct {
	Date   string  `json:"date"`
	Reason *string `json:"reason"`
}

func (h *Handler) ListHolidays(c echo.Context) error {
	identity, _ := auth.IdentityFromContext(c.Request().Context())
	items, err := h.svc.ListHolidays(c.Request().Context(), identity.ProfileID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list holidays")
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) AddHoliday(c echo.Context) error {
	identity, _ := auth.IdentityFromContext(c.Request().Context())

	var req holidayRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date must be formatted YYYY-MM-DD")
	}

	hol, err := h.svc.AddHoliday(c.Request().Context(), identity.ProfileID, date, req.Reason)
	if err != nil {
		return domainError(err, "failed to create holiday")
	}
	return c.JSON(http.StatusCreated, hol)
}

func (h *Handler) DeleteHoliday(c echo.Context) error {
	identity, _ := auth.IdentityFromContext(c.Request().Context())
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid holiday id")
	}
	if err := h.svc.DeleteHoliday(c.Request().Context(), identity.ProfileID, id); err != nil {
		return domainError(err, "failed to delete holiday")
	}
	return c.NoContent(http.StatusNoContent)
}

// domainError maps scheduling errors to HTTP status codes. Unclassified
// errors surface as 500 with a generic message so internals do not leak.
func domainError(err error, fallback string) error {
	var (
		ve *ValidationError
		ce *ConflictError
		ae *AuthorizationError
		ne *NotFoundError
	)
	switch {
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusBadRequest, ve.Msg)
	case errors.As(err, &ce):
		return echo.NewHTTPError(http.StatusConflict, ce.Msg)
	case errors.As(err, &ae):
		return echo.NewHTTPError(http.StatusForbidden, ae.Msg)
	case errors.As(err, &ne):
		return echo.NewHTTPError(http.StatusNotFound, ne.Msg)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, fallback)
	}
}
