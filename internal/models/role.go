package models

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleReviewer Role = "reviewer"
	RoleUnit     Role = "unit"
)

func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// Actor is the signed-in user on whose behalf an operation runs.
type Actor struct {
	ID   string
	Name string
	Role Role
}
