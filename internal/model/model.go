package model

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleTutor   Role = "tutor"
	RoleParent  Role = "parent"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTutor, RoleParent, RoleAdmin:
		return true
	default:
		return false
	}
}

// HasProfile reports whether users with this role carry a profile record.
// Admins have none.
func (r Role) HasProfile() bool {
	return r == RoleStudent || r == RoleTutor || r == RoleParent
}

type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	Role         Role
	IsActive     bool
	CreatedAt    time.Time
}

type StudentProfile struct {
	UserID      uuid.UUID
	FirstName   string
	LastName    string
	SchoolLevel string
}

type TutorProfile struct {
	UserID     uuid.UUID
	FirstName  string
	LastName   string
	Bio        *string
	Subjects   []string
	HourlyRate float64
	IsVerified bool
}

type ParentProfile struct {
	UserID    uuid.UUID
	FirstName string
	LastName  string
	Phone     *string
}

// Profile is a tagged union over the role-specific profile variants.
// Exactly one variant is set for student/tutor/parent roles; all three are
// nil for admins.
type Profile struct {
	Role    Role
	Student *StudentProfile
	Tutor   *TutorProfile
	Parent  *ParentProfile
}
