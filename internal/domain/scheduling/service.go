package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/majdamija123/medconnect-backend/internal/platform/auth"
	"github.com/majdamija123/medconnect-backend/internal/platform/clock"
	"github.com/majdamija123/medconnect-backend/internal/platform/db"
)

// cancelWindow is the minimum lead time a patient needs to cancel.
const cancelWindow = 24 * time.Hour

// Notifier delivers an in-app notification to a profile. Implemented by the
// notification service; the indirection keeps scheduling testable without a
// database-backed store.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, templateID string, data map[string]string) error
}

// ProfileDirectory resolves display names for notification text.
type ProfileDirectory interface {
	DoctorName(ctx context.Context, id uuid.UUID) (string, error)
	PatientName(ctx context.Context, id uuid.UUID) (string, error)
}

// Service implements slot listing, booking, and the appointment lifecycle.
type Service struct {
	windows      WindowRepository
	holidays     HolidayRepository
	appointments AppointmentRepository
	tx           db.TxRunner
	notifier     Notifier
	directory    ProfileDirectory
	clock        clock.Clock
	slotLen      time.Duration
}

// NewService constructs a scheduling Service. slotLen is the booking
// granularity, normally 30 minutes.
func NewService(windows WindowRepository, holidays HolidayRepository, appointments AppointmentRepository, tx db.TxRunner, notifier Notifier, directory ProfileDirectory, clk clock.Clock, slotLen time.Duration) *Service {
	return &Service{
		windows:      windows,
		holidays:     holidays,
		appointments: appointments,
		tx:           tx,
		notifier:     notifier,
		directory:    directory,
		clock:        clk,
		slotLen:      slotLen,
	}
}

// AvailableSlots returns the bookable slots for a doctor on a calendar date,
// sorted by start time. A holiday on that date empties the whole day.
func (s *Service) AvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Slot, error) {
	holiday, err := s.holidays.ExistsOn(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("check holiday: %w", err)
	}
	if holiday {
		return []Slot{}, nil
	}

	windows, err := s.windows.ListByDoctorAndDay(ctx, doctorID, Weekday(date))
	if err != nil {
		return nil, fmt.Errorf("list windows: %w", err)
	}
	busy, err := s.appointments.ListActiveOnDate(ctx, doctorID, date, nil)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	slots := buildDaySlots(date, windows, busy, s.clock.Now(), s.slotLen)
	sort.SliceStable(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })
	return slots, nil
}

// AddWindow creates a recurring availability window for the doctor.
func (s *Service) AddWindow(ctx context.Context, doctorID uuid.UUID, dayOfWeek int, start, end TimeOfDay) (*AvailabilityWindow, error) {
	if dayOfWeek < 0 || dayOfWeek > 6 {
		return nil, validationf("day_of_week must be between 0 (Monday) and 6 (Sunday)")
	}
	if start >= end {
		return nil, validationf("start_time must be before end_time")
	}

	w := &AvailabilityWindow{
		ID:        uuid.New(),
		DoctorID:  doctorID,
		DayOfWeek: dayOfWeek,
		StartTime: start,
		EndTime:   end,
	}
	if err := s.windows.Create(ctx, w); err != nil {
		return nil, fmt.Errorf("create window: %w", err)
	}
	return w, nil
}

// ListWindows returns all of the doctor's recurring windows.
func (s *Service) ListWindows(ctx context.Context, doctorID uuid.UUID) ([]*AvailabilityWindow, error) {
	return s.windows.ListByDoctor(ctx, doctorID)
}

// DeleteWindow removes a window the doctor owns.
func (s *Service) DeleteWindow(ctx context.Context, doctorID, windowID uuid.UUID) error {
	w, err := s.windows.GetByID(ctx, windowID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notFoundf("availability window not found")
		}
		return fmt.Errorf("get window: %w", err)
	}
	if w.DoctorID != doctorID {
		return forbiddenf("availability window belongs to another doctor")
	}
	return s.windows.Delete(ctx, windowID)
}

// AddHoliday blocks out a full calendar date. A doctor can hold at most one
// holiday per date.
func (s *Service) AddHoliday(ctx context.Context, doctorID uuid.UUID, date time.Time, reason *string) (*HolidayException, error) {
	exists, err := s.holidays.ExistsOn(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("check holiday: %w", err)
	}
	if exists {
		return nil, conflictf("a holiday already exists on %s", date.Format("2006-01-02"))
	}

	h := &HolidayException{
		ID:       uuid.New(),
		DoctorID: doctorID,
		Date:     date,
		Reason:   reason,
	}
	if err := s.holidays.Create(ctx, h); err != nil {
		return nil, fmt.Errorf("create holiday: %w", err)
	}
	return h, nil
}

// ListHolidays returns all of the doctor's holiday exceptions.
func (s *Service) ListHolidays(ctx context.Context, doctorID uuid.UUID) ([]*HolidayException, error) {
	return s.holidays.ListByDoctor(ctx, doctorID)
}

// DeleteHoliday removes a holiday the doctor owns.
func (s *Service) DeleteHoliday(ctx context.Context, doctorID, holidayID uuid.UUID) error {
	h, err := s.holidays.GetByID(ctx, holidayID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notFoundf("holiday not found")
		}
		return fmt.Errorf("get holiday: %w", err)
	}
	if h.DoctorID != doctorID {
		return forbiddenf("holiday belongs to another doctor")
	}
	return s.holidays.Delete(ctx, holidayID)
}

// Book creates a PENDING appointment for a patient. The availability and
// conflict checks run inside a transaction holding an advisory lock on the
// doctor's day, so two concurrent bookings for the same slot cannot both
// pass the conflict check.
func (s *Service) Book(ctx context.Context, patientID, doctorID uuid.UUID, start time.Time, reason *string) (*Appointment, error) {
	now := s.clock.Now()
	if start.Before(now) {
		return nil, validationf("appointments cannot be booked in the past")
	}
	end := start.Add(s.slotLen)

	var appt *Appointment
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.appointments.LockDoctorDay(ctx, doctorID, start); err != nil {
			return fmt.Errorf("lock doctor day: %w", err)
		}

		holiday, err := s.holidays.ExistsOn(ctx, doctorID, start)
		if err != nil {
			return fmt.Errorf("check holiday: %w", err)
		}
		if holiday {
			return conflictf("the doctor is unavailable on %s", start.Format("2006-01-02"))
		}

		windows, err := s.windows.ListByDoctorAndDay(ctx, doctorID, Weekday(start))
		if err != nil {
			return fmt.Errorf("list windows: %w", err)
		}
		busy, err := s.appointments.ListActiveOnDate(ctx, doctorID, start, nil)
		if err != nil {
			return fmt.Errorf("list appointments: %w", err)
		}
		if err := checkBookable(start, end, windows, busy); err != nil {
			return err
		}

		appt = &Appointment{
			ID:        uuid.New(),
			DoctorID:  doctorID,
			PatientID: patientID,
			StartTime: start,
			EndTime:   end,
			Status:    StatusPending,
			Reason:    reason,
		}
		if err := s.appointments.Create(ctx, appt); err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}

		return s.notifyDoctor(ctx, appt, "appointment-booked")
	})
	if err != nil {
		return nil, err
	}
	return appt, nil
}

// Reschedule moves a patient's active appointment to a new slot. The new
// slot goes through the same checks as a fresh booking, under the same
// advisory lock, except that the appointment being moved is excluded from
// the conflict scan so it never collides with itself. The appointment
// returns to PENDING so the doctor re-confirms the new time.
func (s *Service) Reschedule(ctx context.Context, caller auth.Identity, apptID uuid.UUID, newStart time.Time) (*Appointment, error) {
	now := s.clock.Now()
	if newStart.Before(now) {
		return nil, validationf("appointments cannot be moved into the past")
	}
	newEnd := newStart.Add(s.slotLen)

	var appt *Appointment
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		a, err := s.appointments.GetByID(ctx, apptID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return notFoundf("appointment not found")
			}
			return fmt.Errorf("get appointment: %w", err)
		}
		if !caller.IsPatient() || a.PatientID != caller.ProfileID {
			return forbiddenf("only the appointment's patient can reschedule it")
		}
		if !a.Status.IsActive() {
			return conflictf("cannot reschedule an appointment in status %s", a.Status)
		}
		if a.StartTime.Sub(now) <= cancelWindow {
			return conflictf("appointments can only be rescheduled more than 24 hours before they start")
		}

		if err := s.appointments.LockDoctorDay(ctx, a.DoctorID, newStart); err != nil {
			return fmt.Errorf("lock doctor day: %w", err)
		}

		holiday, err := s.holidays.ExistsOn(ctx, a.DoctorID, newStart)
		if err != nil {
			return fmt.Errorf("check holiday: %w", err)
		}
		if holiday {
			return conflictf("the doctor is unavailable on %s", newStart.Format("2006-01-02"))
		}

		windows, err := s.windows.ListByDoctorAndDay(ctx, a.DoctorID, Weekday(newStart))
		if err != nil {
			return fmt.Errorf("list windows: %w", err)
		}
		busy, err := s.appointments.ListActiveOnDate(ctx, a.DoctorID, newStart, &a.ID)
		if err != nil {
			return fmt.Errorf("list appointments: %w", err)
		}
		if err := checkBookable(newStart, newEnd, windows, busy); err != nil {
			return err
		}

		a.StartTime = newStart
		a.EndTime = newEnd
		a.Status = StatusPending
		if err := s.appointments.Update(ctx, a); err != nil {
			return fmt.Errorf("update appointment: %w", err)
		}

		appt = a
		return s.notifyDoctor(ctx, a, "appointment-rescheduled")
	})
	if err != nil {
		return nil, err
	}
	return appt, nil
}

// Confirm moves a PENDING appointment to CONFIRMED. Only the owning doctor
// may confirm, and only while the start time is still in the future.
func (s *Service) Confirm(ctx context.Context, caller auth.Identity, apptID uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, apptID, func(a *Appointment) error {
		if !caller.IsDoctor() || a.DoctorID != caller.ProfileID {
			return forbiddenf("only the appointment's doctor can confirm it")
		}
		if a.Status != StatusPending {
			return conflictf("cannot confirm an appointment in status %s", a.Status)
		}
		if !a.StartTime.After(s.clock.Now()) {
			return conflictf("cannot confirm an appointment whose start time has passed")
		}
		a.Status = StatusConfirmed
		return nil
	}, func(ctx context.Context, a *Appointment) error {
		return s.notifyPatient(ctx, a, "appointment-confirmed", nil)
	})
}

// Refuse moves a PENDING appointment to REFUSED. The owning doctor must give
// a reason, which is recorded in the doctor-private notes.
func (s *Service) Refuse(ctx context.Context, caller auth.Identity, apptID uuid.UUID, reason string) (*Appointment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, validationf("a reason is required to refuse an appointment")
	}
	return s.transition(ctx, apptID, func(a *Appointment) error {
		if !caller.IsDoctor() || a.DoctorID != caller.ProfileID {
			return forbiddenf("only the appointment's doctor can refuse it")
		}
		if a.Status != StatusPending {
			return conflictf("cannot refuse an appointment in status %s", a.Status)
		}
		a.Status = StatusRefused
		a.DoctorNotes = &reason
		return nil
	}, func(ctx context.Context, a *Appointment) error {
		return s.notifyPatient(ctx, a, "appointment-refused", map[string]string{"reason": reason})
	})
}

// Cancel moves an appointment to CANCELLED. Doctors can cancel their
// CONFIRMED appointments at any time, with an optional reason recorded in
// the doctor-private notes. Patients can cancel their PENDING or CONFIRMED
// appointments up to 24 hours before the start; the cancellation marker goes
// to the patient-visible notes and the doctor is notified in the same
// transaction as the status change.
func (s *Service) Cancel(ctx context.Context, caller auth.Identity, apptID uuid.UUID, reason string) (*Appointment, error) {
	reason = strings.TrimSpace(reason)
	switch {
	case caller.IsDoctor():
		return s.transition(ctx, apptID, func(a *Appointment) error {
			if a.DoctorID != caller.ProfileID {
				return forbiddenf("only the appointment's doctor can cancel it")
			}
			if a.Status != StatusConfirmed {
				return conflictf("doctors can only cancel confirmed appointments, not %s", a.Status)
			}
			a.Status = StatusCancelled
			if reason != "" {
				a.DoctorNotes = &reason
			}
			return nil
		}, func(ctx context.Context, a *Appointment) error {
			return s.notifyPatient(ctx, a, "appointment-cancelled-by-doctor", nil)
		})
	case caller.IsPatient():
		return s.transition(ctx, apptID, func(a *Appointment) error {
			if a.PatientID != caller.ProfileID {
				return forbiddenf("only the appointment's patient can cancel it")
			}
			if !a.Status.IsActive() {
				return conflictf("cannot cancel an appointment in status %s", a.Status)
			}
			if a.StartTime.Sub(s.clock.Now()) <= cancelWindow {
				return conflictf("appointments can only be cancelled more than 24 hours before they start")
			}
			a.Status = StatusCancelled
			note := "Cancelled by patient"
			if reason != "" {
				note += ": " + reason
			}
			a.PatientNotes = &note
			return nil
		}, func(ctx context.Context, a *Appointment) error {
			return s.notifyDoctor(ctx, a, "appointment-cancelled-by-patient")
		})
	default:
		return nil, forbiddenf("role %s cannot cancel appointments", caller.Role)
	}
}

// transition loads an appointment, applies a state change, and persists it
// together with its notification in one transaction.
func (s *Service) transition(ctx context.Context, apptID uuid.UUID, apply func(*Appointment) error, notify func(context.Context, *Appointment) error) (*Appointment, error) {
	var appt *Appointment
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		a, err := s.appointments.GetByID(ctx, apptID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return notFoundf("appointment not found")
			}
			return fmt.Errorf("get appointment: %w", err)
		}
		if err := apply(a); err != nil {
			return err
		}
		if err := s.appointments.Update(ctx, a); err != nil {
			return fmt.Errorf("update appointment: %w", err)
		}
		if err := notify(ctx, a); err != nil {
			return err
		}
		appt = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return appt, nil
}

// GetAppointment returns an appointment to one of its two participants.
func (s *Service) GetAppointment(ctx context.Context, caller auth.Identity, apptID uuid.UUID) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, apptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundf("appointment not found")
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	if a.DoctorID != caller.ProfileID && a.PatientID != caller.ProfileID {
		return nil, forbiddenf("appointment belongs to another user")
	}
	return a, nil
}

// ListAppointments returns the caller's own appointments, optionally
// filtered by status.
func (s *Service) ListAppointments(ctx context.Context, caller auth.Identity, status AppointmentStatus, limit, offset int) ([]*Appointment, int, error) {
	if caller.IsDoctor() {
		return s.appointments.ListByDoctor(ctx, caller.ProfileID, status, limit, offset)
	}
	return s.appointments.ListByPatient(ctx, caller.ProfileID, status, limit, offset)
}

func (s *Service) notifyDoctor(ctx context.Context, a *Appointment, templateID string) error {
	name, err := s.directory.PatientName(ctx, a.PatientID)
	if err != nil {
		return fmt.Errorf("resolve patient name: %w", err)
	}
	data := map[string]string{
		"patient_name": name,
		"date":         a.StartTime.Format("2006-01-02"),
		"time":         a.StartTime.Format("15:04"),
	}
	if err := s.notifier.Notify(ctx, a.DoctorID, templateID, data); err != nil {
		return fmt.Errorf("notify doctor: %w", err)
	}
	return nil
}

func (s *Service) notifyPatient(ctx context.Context, a *Appointment, templateID string, extra map[string]string) error {
	name, err := s.directory.DoctorName(ctx, a.DoctorID)
	if err != nil {
		return fmt.Errorf("resolve doctor name: %w", err)
	}
	data := map[string]string{
		"doctor_name": name,
		"date":        a.StartTime.Format("2006-01-02"),
		"time":        a.StartTime.Format("15:04"),
	}
	for k, v := range extra {
		data[k] = v
	}
	if err := s.notifier.Notify(ctx, a.PatientID, templateID, data); err != nil {
		return fmt.Errorf("notify patient: %w", err)
	}
	return nil
}
