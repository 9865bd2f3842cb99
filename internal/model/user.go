package model

// Roles carried in the access token issued by the identity collaborator.
const (
	RoleResident = "RESIDENT"
	RoleAdmin    = "ADMIN"
)

// User is the caller identity handed to the engine.  Users are owned by an
// external directory; the engine never loads or stores them and receives the
// identity explicitly on every call.
//
// Fields:
//  ID   – user identifier (JWT subject).
//  Role – RESIDENT or ADMIN.
type User struct {
	ID   uint64
	Role string
}

// CanBook reports whether the user is authorized to create reservations and
// join waitlists.
func (u User) CanBook() bool {
	return u.ID != 0 && (u.Role == RoleResident || u.Role == RoleAdmin)
}

// IsAdmin reports whether the user may use the administrative views.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }
