package models

import "time"

type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleEmployee, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// Actor is a person acting on tasks. Identity and roles are owned elsewhere;
// this is the local lookup copy.
type Actor struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name" validate:"required,max=120"`
	Role        Role      `json:"role" yaml:"role" validate:"required,oneof=employee manager admin"`
	HomeStoreID *string   `json:"home_store_id,omitempty" yaml:"home_store_id"`
	Active      bool      `json:"active" yaml:"-"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
}
