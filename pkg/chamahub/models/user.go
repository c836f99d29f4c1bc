package models

import (
	"time"

	"gorm.io/gorm"
)

// SystemRole represents a user's system-wide role, independent of any
// per-group role. A user can be a system admin without being an admin of any
// individual chama.
type SystemRole string

const (
	SystemRoleAdmin SystemRole = "admin"
	SystemRoleUser  SystemRole = "user"
)

// User represents a person known to the system: either a registered account
// holder or a guest member enrolled by name and phone number by a group
// official. Guests have no password and a generated ExternalID.
type User struct {
	ID           uint           `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	ExternalID   string         `gorm:"index" json:"external_id,omitempty"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `json:"-"` // Empty for guest members
	FullName     string         `gorm:"not null" json:"full_name"`
	PhoneNumber  string         `json:"phone_number,omitempty"`
	Active       bool           `gorm:"default:true" json:"active"`
	SystemRole   SystemRole     `gorm:"type:varchar(20);default:'user'" json:"system_role"`

	// Relationships
	GroupMemberships []GroupMembership `gorm:"foreignKey:UserID" json:"group_memberships,omitempty"`
	Contributions    []Contribution    `gorm:"foreignKey:UserID" json:"contributions,omitempty"`
	Loans            []Loan            `gorm:"foreignKey:UserID" json:"loans,omitempty"`
}

// IsGuest reports whether the user was enrolled without credentials.
func (u *User) IsGuest() bool {
	return u.PasswordHash == ""
}
