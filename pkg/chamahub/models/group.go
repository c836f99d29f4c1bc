package models

import (
	"time"

	"gorm.io/gorm"
)

// Group represents a chama: a savings collective that members contribute to
// and borrow from. MonthlyTarget is the expected contribution total per
// calendar month; zero means the group has not set a target.
type Group struct {
	ID            uint           `gorm:"primarykey" json:"id"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
	Name          string         `gorm:"not null" json:"name"`
	Description   string         `json:"description"`
	MonthlyTarget float64        `gorm:"default:0" json:"monthly_target"`
	CreatedByID   uint           `json:"created_by_id"`

	// Relationships
	Members       []GroupMembership `gorm:"foreignKey:GroupID" json:"members,omitempty"`
	Contributions []Contribution    `gorm:"foreignKey:GroupID" json:"contributions,omitempty"`
	Loans         []Loan            `gorm:"foreignKey:GroupID" json:"loans,omitempty"`
}
