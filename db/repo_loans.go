package db

import (
	"context"
	"errors"

	"Gin_postgres_tool_loans/models"
	"Gin_postgres_tool_loans/services"

	"gorm.io/gorm"
)

func (r *Repo) FindLoans(ctx context.Context, f services.LoanFilter) ([]models.Loan, error) {
	q := r.DB.WithContext(ctx).
		Preload("User").
		Preload("Tool").
		Order("borrowed_at DESC")
	if f.UserID > 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.ToolID > 0 {
		q = q.Where("tool_id = ?", f.ToolID)
	}
	if f.Status != "" {
		q = q.Where("LOWER(status) = LOWER(?)", f.Status)
	}
	var loans []models.Loan
	if err := q.Find(&loans).Error; err != nil {
		return nil, err
	}
	return loans, nil
}

func (r *Repo) FindLoanByID(ctx context.Context, id uint) (*models.Loan, error) {
	var l models.Loan
	err := r.DB.WithContext(ctx).
		Preload("User").
		Preload("Tool").
		First(&l, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *Repo) UserExists(ctx context.Context, id uint) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

func (r *Repo) ActiveLoanExistsForTool(ctx context.Context, toolID, excludeID uint) (bool, error) {
	q := r.DB.WithContext(ctx).Model(&models.Loan{}).
		Where("tool_id = ? AND returned_at IS NULL AND LOWER(COALESCE(status, '')) <> ?",
			toolID, models.LoanStatusReturned)
	if excludeID > 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var n int64
	err := q.Count(&n).Error
	return n > 0, err
}

func (r *Repo) InsertLoan(ctx context.Context, l *models.Loan) error {
	return r.DB.WithContext(ctx).Create(l).Error
}

func (r *Repo) UpdateLoan(ctx context.Context, id uint, updates map[string]any) (*models.Loan, error) {
	if len(updates) > 0 {
		if err := r.DB.WithContext(ctx).Model(&models.Loan{}).
			Where("id = ?", id).
			Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return r.FindLoanByID(ctx, id)
}

func (r *Repo) DeleteLoan(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Delete(&models.Loan{}, id).Error
}
