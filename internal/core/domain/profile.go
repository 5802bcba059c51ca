package domain

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleStaff Role = "staff"
	RoleAdmin Role = "admin"
)

func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleStaff
}

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleUser, RoleStaff, RoleAdmin:
		return Role(s), true
	}
	return "", false
}

type Profile struct {
	ID        string
	FullName  string
	Email     string
	Phone     string
	Role      Role
	CreatedAt time.Time
}

type ProfileUpdate struct {
	FullName string
	Phone    string
}
