// Package notification stores and serves in-app notifications with template
// rendering and Echo HTTP handlers.
package notification

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/majdamija123/medconnect-backend/internal/platform/auth"
	"github.com/majdamija123/medconnect-backend/pkg/pagination"
)

// Kind categorizes a notification for client-side filtering.
type Kind string

const (
	KindAppointmentBooked      Kind = "appointment_booked"
	KindAppointmentConfirmed   Kind = "appointment_confirmed"
	KindAppointmentRefused     Kind = "appointment_refused"
	KindAppointmentCancelled   Kind = "appointment_cancelled"
	KindAppointmentRescheduled Kind = "appointment_rescheduled"
)

// Notification is a single in-app message addressed to a user profile.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Kind      Kind      `json:"kind"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists notifications. Writes participate in any transaction
// carried on the context so a notification commits atomically with the
// state change that caused it.
type Store interface {
	Create(ctx context.Context, n *Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*Notification, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Notification, int, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID) error
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
}

// Template defines a reusable notification template.
type Template struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Kind    Kind   `json:"kind"`
}

// TemplateEngine manages notification templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in templates pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		templates: make(map[string]*Template),
	}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:      "appointment-booked",
			Name:    "Appointment Booked",
			Title:   "New appointment request",
			Message: "{{patient_name}} requested an appointment on {{date}} at {{time}}.",
			Kind:    KindAppointmentBooked,
		},
		{
			ID:      "appointment-confirmed",
			Name:    "Appointment Confirmed",
			Title:   "Appointment confirmed",
			Message: "Dr. {{doctor_name}} confirmed your appointment on {{date}} at {{time}}.",
			Kind:    KindAppointmentConfirmed,
		},
		{
			ID:      "appointment-refused",
			Name:    "Appointment Refused",
			Title:   "Appointment refused",
			Message: "Dr. {{doctor_name}} refused your appointment on {{date}} at {{time}}. Reason: {{reason}}",
			Kind:    KindAppointmentRefused,
		},
		{
			ID:      "appointment-cancelled-by-doctor",
			Name:    "Appointment Cancelled by Doctor",
			Title:   "Appointment cancelled",
			Message: "Dr. {{doctor_name}} cancelled your appointment on {{date}} at {{time}}.",
			Kind:    KindAppointmentCancelled,
		},
		{
			ID:      "appointment-rescheduled",
			Name:    "Appointment Rescheduled",
			Title:   "Appointment rescheduled",
			Message: "{{patient_name}} moved an appointment to {{date}} at {{time}}. Please confirm the new time.",
			Kind:    KindAppointmentRescheduled,
		},
		{
			ID:      "appointment-cancelled-by-patient",
			Name:    "Appointment Cancelled by Patient",
			Title:   "Appointment cancelled",
			Message: "{{patient_name}} cancelled the appointment on {{date}} at {{time}}.",
			Kind:    KindAppointmentCancelled,
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render looks up a template by ID and performs {{key}} replacement using the
// supplied data map. Keys present in the template but absent from data are left
// as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (title, message string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	title = t.Title
	message = t.Message
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		title = strings.ReplaceAll(title, placeholder, v)
		message = strings.ReplaceAll(message, placeholder, v)
	}
	return title, message, nil
}

// Kind returns the kind associated with a template id, or the empty Kind.
func (e *TemplateEngine) Kind(templateID string) Kind {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if t, ok := e.templates[templateID]; ok {
		return t.Kind
	}
	return ""
}

// Service orchestrates creation and retrieval of notifications.
type Service struct {
	store     Store
	templates *TemplateEngine
}

// NewService constructs a notification Service.
func NewService(store Store, tpl *TemplateEngine) *Service {
	return &Service{store: store, templates: tpl}
}

// Notify creates a notification for the given user from a rendered template.
func (s *Service) Notify(ctx context.Context, userID uuid.UUID, templateID string, data map[string]string) (*Notification, error) {
	title, message, err := s.templates.Render(templateID, data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	n := &Notification{
		ID:      uuid.New(),
		UserID:  userID,
		Kind:    s.templates.Kind(templateID),
		Title:   title,
		Message: message,
	}
	if err := s.store.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	return n, nil
}

// GetForUser fetches a single notification, restricted to its addressee. A
// notification owned by someone else is reported as pgx.ErrNoRows so callers
// cannot distinguish it from one that does not exist.
func (s *Service) GetForUser(ctx context.Context, id, userID uuid.UUID) (*Notification, error) {
	n, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.UserID != userID {
		return nil, pgx.ErrNoRows
	}
	return n, nil
}

// ListForUser returns notifications for a user, newest first.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Notification, int, error) {
	return s.store.ListByUser(ctx, userID, limit, offset)
}

// MarkRead marks a notification as read. Users can only mark their own.
func (s *Service) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	return s.store.MarkRead(ctx, id, userID)
}

// UnreadCount returns the number of unread notifications for a user.
func (s *Service) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.store.CountUnread(ctx, userID)
}

// Handler exposes notification operations over HTTP via Echo.
type Handler struct {
	service *Service
}

// NewHandler creates a new notification Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{service: svc}
}

// RegisterRoutes registers all notification routes on the given Echo group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/notifications", h.HandleList)
	g.GET("/notifications/unread-count", h.HandleUnreadCount)
	g.GET("/notifications/:id", h.HandleGet)
	g.PATCH("/notifications/:id/read", h.HandleMarkRead)
}

// HandleGet handles GET /notifications/:id.
func (h *Handler) HandleGet(c echo.Context) error {
	id, ok := auth.IdentityFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	nid, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid notification id")
	}

	n, err := h.service.GetForUser(c.Request().Context(), nid, id.ProfileID)
	if errors.Is(err, pgx.ErrNoRows) {
		return echo.NewHTTPError(http.StatusNotFound, "notification not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch notification")
	}
	return c.JSON(http.StatusOK, n)
}

// HandleList handles GET /notifications.
func (h *Handler) HandleList(c echo.Context) error {
	id, ok := auth.IdentityFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	p := pagination.FromContext(c)
	list, total, err := h.service.ListForUser(c.Request().Context(), id.ProfileID, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list notifications")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(list, total, p.Limit, p.Offset))
}

// HandleUnreadCount handles GET /notifications/unread-count.
func (h *Handler) HandleUnreadCount(c echo.Context) error {
	id, ok := auth.IdentityFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	count, err := h.service.UnreadCount(c.Request().Context(), id.ProfileID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to count notifications")
	}
	return c.JSON(http.StatusOK, map[string]int{"unread": count})
}

// HandleMarkRead handles PATCH /notifications/:id/read.
func (h *Handler) HandleMarkRead(c echo.Context) error {
	id, ok := auth.IdentityFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	nid, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid notification id")
	}

	if err := h.service.MarkRead(c.Request().Context(), nid, id.ProfileID); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "notification not found")
	}
	return c.NoContent(http.StatusNoContent)
}
