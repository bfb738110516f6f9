package users

import (
	"time"

	"onboarding/internal/domain/auth"
)

const (
	StatusPending = "pending"

	DefaultListLimit = 10
	MaxListLimit     = 100
)

type User struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	EmployeeID       string     `json:"employee_id,omitempty"`
	PasswordHash     string     `json:"-"`
	Role             auth.Role  `json:"role"`
	IsActive         bool       `json:"isActive"`
	Phone            string     `json:"phone,omitempty"`
	EmergencyContact string     `json:"emergency_contact,omitempty"`
	Address          string     `json:"address,omitempty"`
	ManagerID        string     `json:"manager_id,omitempty"`
	Position         string     `json:"position,omitempty"`
	Department       string     `json:"department,omitempty"`
	EmploymentType   string     `json:"employment_type,omitempty"`
	StartDate        string     `json:"start_date,omitempty"`
	Status           string     `json:"status"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	LastLogin        *time.Time `json:"last_login"`
}

type CreateInput struct {
	Name             string
	Email            string
	Password         string
	Role             string
	EmployeeID       string
	Phone            string
	EmergencyContact string
	Address          string
	ManagerID        string
	Position         string
	Department       string
	EmploymentType   string
	StartDate        string
	Status           string
	IsActive         *bool
}

// Changes holds a partial profile update; nil fields are left untouched.
type Changes struct {
	Name             *string
	EmployeeID       *string
	Email            *string
	Phone            *string
	EmergencyContact *string
	ManagerID        *string
	Address          *string
	Position         *string
	Department       *string
	EmploymentType   *string
	StartDate        *string
}

func (c Changes) Empty() bool {
	return c.Name == nil && c.EmployeeID == nil && c.Email == nil && c.Phone == nil &&
		c.EmergencyContact == nil && c.ManagerID == nil && c.Address == nil && c.Position == nil &&
		c.Department == nil && c.EmploymentType == nil && c.StartDate == nil
}

// Patch is what a store writes. UpdatedAt is always set.
type Patch struct {
	Role      *auth.Role
	IsActive  *bool
	Profile   Changes
	UpdatedAt time.Time
}

type Page struct {
	Users []User `json:"users"`
	Total int64  `json:"total"`
	Skip  int    `json:"skip"`
	Limit int    `json:"limit"`
}

type UpdateResult int

const (
	Unchanged UpdateResult = iota
	Updated
)

func (r UpdateResult) Changed() bool {
	return r == Updated
}
