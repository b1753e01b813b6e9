package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"Gin_postgres_tool_loans/models"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const msgToolBusy = "the tool already has an active loan"

// LoanRepository is the storage surface the loan service needs. The GORM
// implementation lives in db.Repo; tests plug in an in-memory fake.
type LoanRepository interface {
	FindLoans(ctx context.Context, f LoanFilter) ([]models.Loan, error)
	FindLoanByID(ctx context.Context, id uint) (*models.Loan, error)
	UserExists(ctx context.Context, id uint) (bool, error)
	ToolExists(ctx context.Context, id uint) (bool, error)
	// ActiveLoanExistsForTool reports whether the tool has an active loan,
	// ignoring the loan with excludeID when excludeID > 0.
	ActiveLoanExistsForTool(ctx context.Context, toolID, excludeID uint) (bool, error)
	InsertLoan(ctx context.Context, l *models.Loan) error
	UpdateLoan(ctx context.Context, id uint, updates map[string]any) (*models.Loan, error)
	DeleteLoan(ctx context.Context, id uint) error
	SetToolAvailability(ctx context.Context, toolID uint, available bool) error
	// Transact runs fn against a repository bound to one transaction; fn
	// returning an error rolls everything back.
	Transact(ctx context.Context, fn func(LoanRepository) error) error
}

type LoanFilter struct {
	UserID uint
	ToolID uint
	Status string // matched case-insensitively
}

// ParseLoanFilter validates the list query parameters, all optional.
func ParseLoanFilter(userID, toolID, status string) (LoanFilter, error) {
	var f LoanFilter
	var details []string

	if userID != "" {
		n, err := strconv.ParseUint(userID, 10, 32)
		if err != nil || n == 0 {
			details = append(details, "user_id: must be a positive integer")
		} else {
			f.UserID = uint(n)
		}
	}
	if toolID != "" {
		n, err := strconv.ParseUint(toolID, 10, 32)
		if err != nil || n == 0 {
			details = append(details, "tool_id: must be a positive integer")
		} else {
			f.ToolID = uint(n)
		}
	}
	if status != "" {
		s := strings.TrimSpace(status)
		if len(s) < 1 || len(s) > 50 {
			details = append(details, "status: must be between 1 and 50 characters")
		} else {
			f.Status = s
		}
	}

	if len(details) > 0 {
		return LoanFilter{}, NewValidation(details)
	}
	return f, nil
}

type LoanCreateInput struct {
	UserID     int64      `json:"user_id"`
	ToolID     int64      `json:"tool_id"`
	BorrowedAt *time.Time `json:"borrowed_at"`
	DueAt      *time.Time `json:"due_at"`
	ReturnedAt *time.Time `json:"returned_at"`
	Status     *string    `json:"status"`
	Notes      *string    `json:"notes"`
}

func (in *LoanCreateInput) validate() []string {
	var details []string
	if in.UserID <= 0 {
		details = append(details, "user_id: must be a positive integer")
	}
	if in.ToolID <= 0 {
		details = append(details, "tool_id: must be a positive integer")
	}
	if in.Status != nil {
		s := strings.TrimSpace(*in.Status)
		if len(s) < 2 || len(s) > 50 {
			details = append(details, "status: must be between 2 and 50 characters")
		}
	}
	if in.Notes != nil && len(*in.Notes) > 1000 {
		details = append(details, "notes: must be at most 1000 characters")
	}
	return details
}

// LoanPatch is a partial update: absent fields are kept, explicit nulls
// cleared. user_id, tool_id and borrowed_at cannot be nulled out.
type LoanPatch struct {
	UserID     models.Optional[int64]     `json:"user_id"`
	ToolID     models.Optional[int64]     `json:"tool_id"`
	BorrowedAt models.Optional[time.Time] `json:"borrowed_at"`
	DueAt      models.Optional[time.Time] `json:"due_at"`
	ReturnedAt models.Optional[time.Time] `json:"returned_at"`
	Status     models.Optional[string]    `json:"status"`
	Notes      models.Optional[string]    `json:"notes"`
}

func (p *LoanPatch) validate() []string {
	var details []string
	if p.UserID.Set && (!p.UserID.Valid || p.UserID.Value <= 0) {
		details = append(details, "user_id: must be a positive integer")
	}
	if p.ToolID.Set && (!p.ToolID.Valid || p.ToolID.Value <= 0) {
		details = append(details, "tool_id: must be a positive integer")
	}
	if p.BorrowedAt.Set && !p.BorrowedAt.Valid {
		details = append(details, "borrowed_at: must not be null")
	}
	if p.Status.Set && p.Status.Valid {
		s := strings.TrimSpace(p.Status.Value)
		if len(s) < 2 || len(s) > 50 {
			details = append(details, "status: must be between 2 and 50 characters")
		}
	}
	if p.Notes.Set && p.Notes.Valid && len(p.Notes.Value) > 1000 {
		details = append(details, "notes: must be at most 1000 characters")
	}
	return details
}

func (p *LoanPatch) updates() map[string]any {
	m := map[string]any{}
	if p.UserID.Set {
		m["user_id"] = uint(p.UserID.Value)
	}
	if p.ToolID.Set {
		m["tool_id"] = uint(p.ToolID.Value)
	}
	if p.BorrowedAt.Set {
		m["borrowed_at"] = p.BorrowedAt.Ptr()
	}
	if p.DueAt.Set {
		m["due_at"] = p.DueAt.Ptr()
	}
	if p.ReturnedAt.Set {
		m["returned_at"] = p.ReturnedAt.Ptr()
	}
	if p.Status.Set {
		if p.Status.Valid {
			s := strings.TrimSpace(p.Status.Value)
			m["status"] = &s
		} else {
			m["status"] = (*string)(nil)
		}
	}
	if p.Notes.Set {
		m["notes"] = p.Notes.Ptr()
	}
	return m
}

type LoanUser struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type LoanTool struct {
	ID        uint    `json:"id"`
	Name      string  `json:"name"`
	Status    *string `json:"status"`
	Available bool    `json:"available"`
}

type LoanDTO struct {
	ID         uint       `json:"id"`
	UserID     uint       `json:"user_id"`
	ToolID     uint       `json:"tool_id"`
	BorrowedAt *time.Time `json:"borrowed_at"`
	DueAt      *time.Time `json:"due_at"`
	ReturnedAt *time.Time `json:"returned_at"`
	Status     *string    `json:"status"`
	Notes      *string    `json:"notes"`
	User       *LoanUser  `json:"user"`
	Tool       *LoanTool  `json:"tool"`
}

func loanDTO(l *models.Loan) *LoanDTO {
	d := &LoanDTO{
		ID:         l.ID,
		UserID:     l.UserID,
		ToolID:     l.ToolID,
		BorrowedAt: l.BorrowedAt,
		DueAt:      l.DueAt,
		ReturnedAt: l.ReturnedAt,
		Status:     l.Status,
		Notes:      l.Notes,
	}
	if l.User != nil {
		d.User = &LoanUser{ID: l.User.ID, Name: l.User.Name, Email: l.User.Email}
	}
	if l.Tool != nil {
		d.Tool = &LoanTool{ID: l.Tool.ID, Name: l.Tool.Name, Status: l.Tool.Status, Available: l.Tool.Available}
	}
	return d
}

// LoanService keeps the loan table and the tool availability projection
// consistent: a tool has at most one active loan, and available is true iff
// no active loan references it. Every mutation runs check, write and
// projection inside a single transaction; the partial unique index created
// in db.Migrate backs the check under concurrency.
type LoanService struct {
	repo LoanRepository
	log  zerolog.Logger
}

func NewLoanService(repo LoanRepository, log zerolog.Logger) *LoanService {
	return &LoanService{repo: repo, log: log}
}

func (s *LoanService) List(ctx context.Context, f LoanFilter) ([]LoanDTO, error) {
	loans, err := s.repo.FindLoans(ctx, f)
	if err != nil {
		return nil, wrap(err)
	}
	out := make([]LoanDTO, 0, len(loans))
	for i := range loans {
		out = append(out, *loanDTO(&loans[i]))
	}
	return out, nil
}

func (s *LoanService) Get(ctx context.Context, id uint) (*LoanDTO, error) {
	l, err := s.repo.FindLoanByID(ctx, id)
	if err != nil {
		return nil, wrap(err)
	}
	if l == nil {
		return nil, NewNotFound("loan")
	}
	return loanDTO(l), nil
}

func (s *LoanService) Create(ctx context.Context, in LoanCreateInput) (*LoanDTO, error) {
	if details := in.validate(); len(details) > 0 {
		return nil, NewValidation(details)
	}

	userID := uint(in.UserID)
	toolID := uint(in.ToolID)

	now := time.Now().UTC()
	loan := &models.Loan{
		UserID:     userID,
		ToolID:     toolID,
		BorrowedAt: in.BorrowedAt,
		DueAt:      in.DueAt,
		ReturnedAt: in.ReturnedAt,
		Notes:      in.Notes,
	}
	if loan.BorrowedAt == nil {
		loan.BorrowedAt = &now
	}
	if in.Status != nil {
		st := strings.TrimSpace(*in.Status)
		loan.Status = &st
	} else {
		st := models.LoanStatusActive
		loan.Status = &st
	}
	active := loan.IsActive()

	err := s.repo.Transact(ctx, func(tx LoanRepository) error {
		if ok, err := tx.UserExists(ctx, userID); err != nil {
			return err
		} else if !ok {
			return NewReference("user")
		}
		if ok, err := tx.ToolExists(ctx, toolID); err != nil {
			return err
		} else if !ok {
			return NewReference("tool")
		}

		if active {
			busy, err := tx.ActiveLoanExistsForTool(ctx, toolID, 0)
			if err != nil {
				return err
			}
			if busy {
				return NewConflict(msgToolBusy)
			}
		}

		if err := tx.InsertLoan(ctx, loan); err != nil {
			// The partial unique index fires when a concurrent create won the
			// race after our fast-path check.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return NewConflict(msgToolBusy)
			}
			return err
		}

		// A loan born returned leaves tool availability alone.
		if active {
			return tx.SetToolAvailability(ctx, toolID, false)
		}
		return nil
	})
	if err != nil {
		return nil, wrap(err)
	}

	s.log.Info().Uint("loan_id", loan.ID).Uint("tool_id", toolID).Bool("active", active).Msg("loan created")
	return s.Get(ctx, loan.ID)
}

func (s *LoanService) Update(ctx context.Context, id uint, p LoanPatch) (*LoanDTO, error) {
	existing, err := s.repo.FindLoanByID(ctx, id)
	if err != nil {
		return nil, wrap(err)
	}
	if existing == nil {
		return nil, NewNotFound("loan")
	}

	if details := p.validate(); len(details) > 0 {
		return nil, NewValidation(details)
	}

	// Merge patch over the stored row to judge the proposed state.
	proposed := models.Loan{
		UserID:     existing.UserID,
		ToolID:     existing.ToolID,
		Status:     existing.Status,
		ReturnedAt: existing.ReturnedAt,
	}
	if p.UserID.Set {
		proposed.UserID = uint(p.UserID.Value)
	}
	if p.ToolID.Set {
		proposed.ToolID = uint(p.ToolID.Value)
	}
	if p.Status.Set {
		proposed.Status = p.Status.Ptr()
	}
	if p.ReturnedAt.Set {
		proposed.ReturnedAt = p.ReturnedAt.Ptr()
	}

	var updated *models.Loan
	err = s.repo.Transact(ctx, func(tx LoanRepository) error {
		if ok, err := tx.UserExists(ctx, proposed.UserID); err != nil {
			return err
		} else if !ok {
			return NewReference("user")
		}
		if ok, err := tx.ToolExists(ctx, proposed.ToolID); err != nil {
			return err
		} else if !ok {
			return NewReference("tool")
		}

		if proposed.IsActive() {
			busy, err := tx.ActiveLoanExistsForTool(ctx, proposed.ToolID, id)
			if err != nil {
				return err
			}
			if busy {
				return NewConflict(msgToolBusy)
			}
		}

		var err error
		updated, err = tx.UpdateLoan(ctx, id, p.updates())
		if err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return NewConflict(msgToolBusy)
			}
			return err
		}

		// The projection follows this loan's own returned state. Safe only
		// because the check above guarantees no other active loan shares the
		// tool.
		return tx.SetToolAvailability(ctx, updated.ToolID, updated.IsReturned())
	})
	if err != nil {
		return nil, wrap(err)
	}

	s.log.Info().Uint("loan_id", id).Bool("returned", updated.IsReturned()).Msg("loan updated")
	return s.Get(ctx, id)
}

func (s *LoanService) Remove(ctx context.Context, id uint) error {
	existing, err := s.repo.FindLoanByID(ctx, id)
	if err != nil {
		return wrap(err)
	}
	if existing == nil {
		return NewNotFound("loan")
	}

	err = s.repo.Transact(ctx, func(tx LoanRepository) error {
		if err := tx.DeleteLoan(ctx, id); err != nil {
			return err
		}
		// Deleting the active loan frees its tool.
		if existing.IsActive() {
			return tx.SetToolAvailability(ctx, existing.ToolID, true)
		}
		return nil
	})
	if err != nil {
		return wrap(err)
	}

	s.log.Info().Uint("loan_id", id).Uint("tool_id", existing.ToolID).Msg("loan deleted")
	return nil
}
