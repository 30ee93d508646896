package auth

import (
	"context"

	"github.com/google/uuid"
)

// Role identifies which side of the practice a user acts for.
type Role string

const (
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleDoctor || r == RolePatient
}

// Identity is the authenticated caller, resolved once from the access token.
// ProfileID is the doctor or patient profile the account is linked to,
// depending on Role.
type Identity struct {
	UserID    string
	Role      Role
	ProfileID uuid.UUID
}

// IsDoctor reports whether the identity belongs to a doctor account.
func (id Identity) IsDoctor() bool {
	return id.Role == RoleDoctor
}

// IsPatient reports whether the identity belongs to a patient account.
func (id Identity) IsPatient() bool {
	return id.Role == RolePatient
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the identity attached by the auth middleware.
// The zero Identity is returned when the request was not authenticated.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}
