package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type WindowRepository interface {
	Create(ctx context.Context, w *AvailabilityWindow) error
	GetByID(ctx context.Context, id uuid.UUID) (*AvailabilityWindow, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*AvailabilityWindow, error)
	ListByDoctorAndDay(ctx context.Context, doctorID uuid.UUID, dayOfWeek int) ([]*AvailabilityWindow, error)
}

type HolidayRepository interface {
	Create(ctx context.Context, h *HolidayException) error
	GetByID(ctx context.Context, id uuid.UUID) (*HolidayException, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*HolidayException, error)
	ExistsOn(ctx context.Context, doctorID uuid.UUID, date time.Time) (bool, error)
}

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, status AppointmentStatus, limit, offset int) ([]*Appointment, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, status AppointmentStatus, limit, offset int) ([]*Appointment, int, error)
	// ListActiveOnDate returns pending and confirmed appointments for the
	// doctor whose interval intersects the given calendar date. excludeID,
	// when non-nil, drops that appointment from the result so reschedule
	// checks do not collide with themselves.
	ListActiveOnDate(ctx context.Context, doctorID uuid.UUID, date time.Time, excludeID *uuid.UUID) ([]*Appointment, error)
	// LockDoctorDay serializes concurrent bookings for one doctor and date.
	// It must be called inside a transaction; the lock is released on commit
	// or rollback.
	LockDoctorDay(ctx context.Context, doctorID uuid.UUID, date time.Time) error
}
