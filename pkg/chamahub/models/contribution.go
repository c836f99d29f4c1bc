package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// PaymentMethod represents how money changed hands
type PaymentMethod string

const (
	PaymentMethodMpesa PaymentMethod = "M-Pesa"
	PaymentMethodBank  PaymentMethod = "Bank Transfer"
	PaymentMethodCash  PaymentMethod = "Cash"
)

// IsValid reports whether the payment method is one of the closed set.
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodMpesa, PaymentMethodBank, PaymentMethodCash:
		return true
	}
	return false
}

// Contribution represents a member's payment into a group's pot. Once
// recorded a contribution is immutable: there is no edit or delete path.
type Contribution struct {
	ID               uint           `gorm:"primarykey" json:"id"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
	GroupID          uint           `gorm:"not null;index" json:"group_id"`
	UserID           uint           `gorm:"not null;index" json:"user_id"`
	Amount           float64        `gorm:"not null" json:"amount"`
	PaymentMethod    PaymentMethod  `gorm:"type:varchar(20);not null" json:"payment_method"`
	Description      string         `json:"description"`
	ContributionDate time.Time      `gorm:"not null;index" json:"contribution_date"`
	RecordedByID     uint           `gorm:"not null" json:"recorded_by_id"`

	// Relationships
	Group      Group `gorm:"foreignKey:GroupID" json:"group,omitempty"`
	User       User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	RecordedBy User  `gorm:"foreignKey:RecordedByID" json:"recorded_by,omitempty"`
}

// Reference returns a short human-readable receipt code derived from the ID.
func (c *Contribution) Reference() string {
	return fmt.Sprintf("CTB-%06d", c.ID)
}
