package models

import (
	"strings"
	"time"
)

const LoanTable = "prestamos"

// Loan status is free text on the wire; only "devuelto" carries meaning.
const (
	LoanStatusActive   = "activo"
	LoanStatusReturned = "devuelto"
)

type Loan struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     uint       `gorm:"index;not null" json:"user_id"`
	ToolID     uint       `gorm:"index;not null" json:"tool_id"`
	BorrowedAt *time.Time `gorm:"index" json:"borrowed_at,omitempty"`
	DueAt      *time.Time `json:"due_at,omitempty"`
	ReturnedAt *time.Time `gorm:"index" json:"returned_at,omitempty"`
	Status     *string    `gorm:"size:50" json:"status,omitempty"`
	Notes      *string    `gorm:"size:1000" json:"notes,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
	Tool *Tool `gorm:"foreignKey:ToolID" json:"-"`
}

func (Loan) TableName() string { return LoanTable }

// IsReturned is true when status says "devuelto" (any casing) or a real
// return date is recorded. Everything else counts as an active loan.
func (l *Loan) IsReturned() bool {
	if l.ReturnedAt != nil {
		return true
	}
	return l.Status != nil && strings.EqualFold(strings.TrimSpace(*l.Status), LoanStatusReturned)
}

func (l *Loan) IsActive() bool { return !l.IsReturned() }
