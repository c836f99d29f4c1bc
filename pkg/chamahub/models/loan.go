package models

import (
	"time"

	"gorm.io/gorm"
)

// LoanStatus represents where a loan is in its lifecycle
type LoanStatus string

const (
	LoanStatusPending  LoanStatus = "pending"
	LoanStatusActive   LoanStatus = "active"
	LoanStatusOverdue  LoanStatus = "overdue"
	LoanStatusRepaid   LoanStatus = "repaid"
	LoanStatusRejected LoanStatus = "rejected"
)

// Loan represents money lent from a group's pot to one of its members.
// Balance is the outstanding amount including interest; it reaches zero when
// the loan is fully repaid.
type Loan struct {
	ID                  uint           `gorm:"primarykey" json:"id"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`
	GroupID             uint           `gorm:"not null;index" json:"group_id"`
	UserID              uint           `gorm:"not null;index" json:"user_id"`
	Amount              float64        `gorm:"not null" json:"amount"`
	InterestRate        float64        `gorm:"not null" json:"interest_rate"` // Percent, flat
	Purpose             string         `gorm:"not null" json:"purpose"`
	PaymentPeriodMonths int            `gorm:"not null" json:"payment_period_months"`
	Status              LoanStatus     `gorm:"type:varchar(20);default:'pending'" json:"status"`
	ApplicationDate     time.Time      `gorm:"not null" json:"application_date"`
	IssuedDate          *time.Time     `json:"issued_date"`
	DueDate             *time.Time     `json:"due_date"`
	Balance             float64        `gorm:"default:0" json:"balance"`

	// Relationships
	Group      Group           `gorm:"foreignKey:GroupID" json:"group,omitempty"`
	User       User            `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Repayments []LoanRepayment `gorm:"foreignKey:LoanID" json:"repayments,omitempty"`
}

// IsOverdue reports whether an active loan is past its due date.
func (l *Loan) IsOverdue(now time.Time) bool {
	return l.Status == LoanStatusActive && l.DueDate != nil && now.After(*l.DueDate)
}

// LoanRepayment represents a payment made against a loan's balance.
type LoanRepayment struct {
	ID            uint           `gorm:"primarykey" json:"id"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
	LoanID        uint           `gorm:"not null;index" json:"loan_id"`
	Amount        float64        `gorm:"not null" json:"amount"`
	PaymentMethod PaymentMethod  `gorm:"type:varchar(20);not null" json:"payment_method"`
	Reference     string         `json:"reference"`
	RecordedByID  uint           `gorm:"not null" json:"recorded_by_id"`

	// Relationships
	Loan       Loan `gorm:"foreignKey:LoanID" json:"loan,omitempty"`
	RecordedBy User `gorm:"foreignKey:RecordedByID" json:"recorded_by,omitempty"`
}
