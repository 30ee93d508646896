package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/majdamija123/medconnect-backend/internal/platform/auth"
	"github.com/majdamija123/medconnect-backend/internal/platform/clock"
)

func newTestHandler(t *testing.T) (*Handler, *fixture) {
	t.Helper()
	f := newFixture(t)
	return NewHandler(f.svc, mockDirectory{}), f
}

func handlerContext(method, target, body string, id *auth.Identity) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if id != nil {
		req = req.WithContext(auth.WithIdentity(req.Context(), *id))
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func httpStatus(t *testing.T, err error) int {
	t.Helper()
	if err == nil {
		return 0
	}
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T: %v", err, err)
	}
	return he.Code
}

func TestGetAvailability(t *testing.T) {
	h, f := newTestHandler(t)
	f.addWindow(t, 0, NewTimeOfDay(9, 0), NewTimeOfDay(12, 0))

	c, rec := handlerContext(http.MethodGet, "/doctors/"+testDoctorID.String()+"/availability?date=2026-03-02", "", nil)
	c.SetParamNames("id")
	c.SetParamValues(testDoctorID.String())

	if err := h.GetAvailability(c); err != nil {
		t.Fatalf("GetAvailability: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp availabilityResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.DoctorName != "Amina Haddad" {
		t.Errorf("doctor_name = %q", resp.DoctorName)
	}
	if resp.Date != "2026-03-02" {
		t.Errorf("date = %q", resp.Date)
	}
	if len(resp.Slots) != 6 || resp.Slots[0] != "09:00" || resp.Slots[5] != "11:30" {
		t.Errorf("slots = %v", resp.Slots)
	}
}

// failingDirectory returns the same error for every lookup.
type failingDirectory struct {
	err error
}

func (d failingDirectory) DoctorName(_ context.Context, _ uuid.UUID) (string, error) {
	return "", d.err
}

func (d failingDirectory) PatientName(_ context.Context, _ uuid.UUID) (string, error) {
	return "", d.err
}

func TestGetAvailability_DoctorLookupErrors(t *testing.T) {
	f := newFixture(t)
	f.addWindow(t, 0, NewTimeOfDay(9, 0), NewTimeOfDay(12, 0))

	tests := []struct {
		name       string
		lookupErr  error
		wantStatus int
	}{
		{"unknown doctor", pgx.ErrNoRows, http.StatusNotFound},
		{"directory failure", errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(f.svc, failingDirectory{err: tt.lookupErr})
			c, _ := handlerContext(http.MethodGet, "/doctors/"+testDoctorID.String()+"/availability?date=2026-03-02", "", nil)
			c.SetParamNames("id")
			c.SetParamValues(testDoctorID.String())

			if got := httpStatus(t, h.GetAvailability(c)); got != tt.wantStatus {
				t.Errorf("status = %d, want %d", got, tt.wantStatus)
			}
		})
	}
}

func TestGetAvailability_BadRequests(t *testing.T) {
	h, _ := newTestHandler(t)

	tests := []struct {
		name  string
		id    string
		query string
	}{
		{"missing date", testDoctorID.String(), ""},
		{"malformed date", testDoctorID.String(), "?date=02-03-2026"},
		{"bad doctor id", "not-a-uuid", "?date=2026-03-02"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := handlerContext(http.MethodGet, "/doctors/"+tt.id+"/availability"+tt.query, "", nil)
			c.SetParamNames("id")
			c.SetParamValues(tt.id)
			if got := httpStatus(t, h.GetAvailability(c)); got != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", got)
			}
		})
	}
}

func TestBookAppointment(t *testing.T) {
	h, f := newTestHandler(t)
	f.addWindow(t, 0, NewTimeOfDay(9, 0), NewTimeOfDay(12, 0))
	id := patientIdentity()

	body := `{"doctor_id":"` + testDoctorID.String() + `","start_time":"2026-03-02T09:00:00Z","reason":"check-up"}`
	c, rec := handlerContext(http.MethodPost, "/appointments", body, &id)

	if err := h.BookAppointment(c); err != nil {
		t.Fatalf("BookAppointment: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	var appt Appointment
	if err := json.Unmarshal(rec.Body.Bytes(), &appt); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if appt.Status != StatusPending {
		t.Errorf("status = %s, want PENDING", appt.Status)
	}
}

func TestBookAppointment_ErrorMapping(t *testing.T) {
	h, f := newTestHandler(t)
	f.addWindow(t, 0, NewTimeOfDay(9, 0), NewTimeOfDay(12, 0))
	id := patientIdentity()

	book := func(body string) int {
		c, _ := handlerContext(http.MethodPost, "/appointments", body, &id)
		return httpStatus(t, h.BookAppointment(c))
	}

	okBody := `{"doctor_id":"` + testDoctorID.String() + `","start_time":"2026-03-02T09:00:00Z"}`
	c, rec := handlerContext(http.MethodPost, "/appointments", okBody, &id)
	if err := h.BookAppointment(c); err != nil || rec.Code != http.StatusCreated {
		t.Fatalf("seed booking failed: err=%v status=%d", err, rec.Code)
	}

	// Same slot again conflicts.
	if got := book(okBody); got != http.StatusConflict {
		t.Errorf("double booking status = %d, want 409", got)
	}
	// Outside any window is a validation failure.
	if got := book(`{"doctor_id":"` + testDoctorID.String() + `","start_time":"2026-03-02T20:00:00Z"}`); got != http.StatusBadRequest {
		t.Errorf("out-of-window status = %d, want 400", got)
	}
	// Missing fields.
	if got := book(`{}`); got != http.StatusBadRequest {
		t.Errorf("empty body status = %d, want 400", got)
	}
}

func TestConfirmAppointment_StatusMapping(t *testing.T) {
	h, f := newTestHandler(t)
	f.addWindow(t, 0, NewTimeOfDay(9, 0), NewTimeOfDay(12, 0))
	appt := f.book(t, testMonday.Add(9*time.Hour))

	confirm := func(id auth.Identity, apptID string) (int, *httptest.ResponseRecorder) {
		c, rec := handlerContext(http.MethodPatch, "/appointments/"+apptID+"/confirm", "", &id)
		c.SetParamNames("id")
		c.SetParamValues(apptID)
		return httpStatus(t, h.ConfirmAppointment(c)), rec
	}

	foreign := auth.Identity{UserID: "other", Role: auth.RoleDoctor, ProfileID: testPatientID}
	if got, _ := confirm(foreign, appt.ID.String()); got != http.StatusForbidden {
		t.Errorf("foreign doctor status = %d, want 403", got)
	}

	if got, rec := confirm(doctorIdentity(), appt.ID.String()); got != 0 || rec.Code != http.StatusOK {
		t.Fatalf("owner confirm: status=%d rec=%d", got, rec.Code)
	}

	// Already confirmed.
	if got, _ := confirm(doctorIdentity(), appt.ID.String()); got != http.StatusConflict {
		t.Errorf("second confirm status = %d, want 409", got)
	}

	// Unknown id.
	if got, _ := confirm(doctorIdentity(), "00000000-0000-0000-0000-000000000099"); got != http.StatusNotFound {
		t.Errorf("missing appointment status = %d, want 404", got)
	}
}

func TestRefuseAppointment_RequiresReason(t *testing.T) {
	h, f := newTestHandler(t)
	f.addWindow(t, 0, NewTimeOfDay(9, 0), NewTimeOfDay(12, 0))
	appt := f.book(t, testMonday.Add(9*time.Hour))
	id := doctorIdentity()

	c, _ := handlerContext(http.MethodPatch, "/appointments/"+appt.ID.String()+"/refuse", `{}`, &id)
	c.SetParamNames("id")
	c.SetParamValues(appt.ID.String())
	if got := httpStatus(t, h.RefuseAppointment(c)); got != http.StatusBadRequest {
		t.Errorf("missing reason status = %d, want 400", got)
	}

	c, rec := handlerContext(http.MethodPatch, "/appointments/"+appt.ID.String()+"/refuse", `{"reason":"no availability"}`, &id)
	c.SetParamNames("id")
	c.SetParamValues(appt.ID.String())
	if err := h.RefuseAppointment(c); err != nil {
		t.Fatalf("RefuseAppointment: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestCancelAppointment_PatientTooLate(t *testing.T) {
	h, f := newTestHandler(t)
	f.addWindow(t, 0, NewTimeOfDay(9, 0), NewTimeOfDay(12, 0))
	appt := f.book(t, testMonday.Add(9*time.Hour))

	f.svc.clock = clock.At(testMonday.Add(7 * time.Hour))

	id := patientIdentity()
	c, _ := handlerContext(http.MethodPatch, "/appointments/"+appt.ID.String()+"/cancel", `{}`, &id)
	c.SetParamNames("id")
	c.SetParamValues(appt.ID.String())
	if got := httpStatus(t, h.CancelAppointment(c)); got != http.StatusConflict {
		t.Errorf("late patient cancel status = %d, want 409", got)
	}
}

func TestRescheduleAppointment(t *testing.T) {
	h, f := newTestHandler(t)
	f.addWindow(t, 0, NewTimeOfDay(9, 0), NewTimeOfDay(12, 0))
	appt := f.book(t, testMonday.Add(9*time.Hour))

	id := patientIdentity()
	c, rec := handlerContext(http.MethodPatch, "/appointments/"+appt.ID.String()+"/reschedule",
		`{"start_time":"2026-03-02T10:00:00Z"}`, &id)
	c.SetParamNames("id")
	c.SetParamValues(appt.ID.String())

	if err := h.RescheduleAppointment(c); err != nil {
		t.Fatalf("RescheduleAppointment: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var got Appointment
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !got.StartTime.Equal(testMonday.Add(10 * time.Hour)) {
		t.Errorf("start = %v, want 10:00", got.StartTime)
	}
	if got.Status != StatusPending {
		t.Errorf("status = %s, want PENDING", got.Status)
	}
}

func TestRescheduleAppointment_BadRequests(t *testing.T) {
	h, f := newTestHandler(t)
	f.addWindow(t, 0, NewTimeOfDay(9, 0), NewTimeOfDay(12, 0))
	appt := f.book(t, testMonday.Add(9*time.Hour))
	id := patientIdentity()

	// Missing start_time.
	c, _ := handlerContext(http.MethodPatch, "/appointments/"+appt.ID.String()+"/reschedule", `{}`, &id)
	c.SetParamNames("id")
	c.SetParamValues(appt.ID.String())
	if got := httpStatus(t, h.RescheduleAppointment(c)); got != http.StatusBadRequest {
		t.Errorf("missing start_time status = %d, want 400", got)
	}

	// Target slot outside every window.
	c, _ = handlerContext(http.MethodPatch, "/appointments/"+appt.ID.String()+"/reschedule",
		`{"start_time":"2026-03-02T14:00:00Z"}`, &id)
	c.SetParamNames("id")
	c.SetParamValues(appt.ID.String())
	if got := httpStatus(t, h.RescheduleAppointment(c)); got != http.StatusBadRequest {
		t.Errorf("out-of-window status = %d, want 400", got)
	}
}

func TestWindowEndpoints(t *testing.T) {
	h, _ := newTestHandler(t)
	id := doctorIdentity()

	c, rec := handlerContext(http.MethodPost, "/doctors/me/windows", `{"day_of_week":0,"start_time":"09:00","end_time":"12:00"}`, &id)
	if err := h.AddWindow(c); err != nil {
		t.Fatalf("AddWindow: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	var w AvailabilityWindow
	if err := json.Unmarshal(rec.Body.Bytes(), &w); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if w.StartTime != NewTimeOfDay(9, 0) || w.EndTime != NewTimeOfDay(12, 0) {
		t.Errorf("window times = %v-%v", w.StartTime, w.EndTime)
	}

	// Inverted bounds.
	c, _ = handlerContext(http.MethodPost, "/doctors/me/windows", `{"day_of_week":0,"start_time":"12:00","end_time":"09:00"}`, &id)
	if got := httpStatus(t, h.AddWindow(c)); got != http.StatusBadRequest {
		t.Errorf("inverted window status = %d, want 400", got)
	}

	c, rec = handlerContext(http.MethodGet, "/doctors/me/windows", "", &id)
	if err := h.ListWindows(c); err != nil {
		t.Fatalf("ListWindows: %v", err)
	}
	var list []*AvailabilityWindow
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("got %d windows, want 1", len(list))
	}

	c, rec = handlerContext(http.MethodDelete, "/doctors/me/windows/"+w.ID.String(), "", &id)
	c.SetParamNames("id")
	c.SetParamValues(w.ID.String())
	if err := h.DeleteWindow(c); err != nil {
		t.Fatalf("DeleteWindow: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", rec.Code)
	}
}

func TestHolidayEndpoints(t *testing.T) {
	h, _ := newTestHandler(t)
	id := doctorIdentity()

	c, rec := handlerContext(http.MethodPost, "/doctors/me/holidays", `{"date":"2026-03-02","reason":"conference"}`, &id)
	if err := h.AddHoliday(c); err != nil {
		t.Fatalf("AddHoliday: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}

	// One holiday per date.
	c, _ = handlerContext(http.MethodPost, "/doctors/me/holidays", `{"date":"2026-03-02"}`, &id)
	if got := httpStatus(t, h.AddHoliday(c)); got != http.StatusConflict {
		t.Errorf("duplicate holiday status = %d, want 409", got)
	}

	// Malformed date.
	c, _ = handlerContext(http.MethodPost, "/doctors/me/holidays", `{"date":"March 2nd"}`, &id)
	if got := httpStatus(t, h.AddHoliday(c)); got != http.StatusBadRequest {
		t.Errorf("bad date status = %d, want 400", got)
	}
}
