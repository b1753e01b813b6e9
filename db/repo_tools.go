package db

import (
	"context"
	"errors"

	"Gin_postgres_tool_loans/models"

	"gorm.io/gorm"
)

func (r *Repo) FindTools(ctx context.Context) ([]models.Tool, error) {
	var tools []models.Tool
	err := r.DB.WithContext(ctx).Order("created_at DESC").Find(&tools).Error
	return tools, err
}

func (r *Repo) FindToolByID(ctx context.Context, id uint) (*models.Tool, error) {
	var t models.Tool
	err := r.DB.WithContext(ctx).First(&t, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Repo) ToolExists(ctx context.Context, id uint) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.Tool{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

func (r *Repo) ToolNameExists(ctx context.Context, name string, excludeID uint) (bool, error) {
	q := r.DB.WithContext(ctx).Model(&models.Tool{}).Where("LOWER(name) = LOWER(?)", name)
	if excludeID > 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var n int64
	err := q.Count(&n).Error
	return n > 0, err
}

func (r *Repo) ToolHasLoans(ctx context.Context, toolID uint) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.Loan{}).Where("tool_id = ?", toolID).Count(&n).Error
	return n > 0, err
}

func (r *Repo) InsertTool(ctx context.Context, t *models.Tool) error {
	return r.DB.WithContext(ctx).Create(t).Error
}

func (r *Repo) UpdateTool(ctx context.Context, id uint, updates map[string]any) (*models.Tool, error) {
	if len(updates) > 0 {
		if err := r.DB.WithContext(ctx).Model(&models.Tool{}).
			Where("id = ?", id).
			Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return r.FindToolByID(ctx, id)
}

func (r *Repo) DeleteTool(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Delete(&models.Tool{}, id).Error
}

func (r *Repo) SetToolAvailability(ctx context.Context, toolID uint, available bool) error {
	return r.DB.WithContext(ctx).Model(&models.Tool{}).
		Where("id = ?", toolID).
		Update("available", available).Error
}
