package db

import (
	"context"
	"errors"

	"Gin_postgres_tool_loans/models"
	"Gin_postgres_tool_loans/services"

	"gorm.io/gorm"
)

func (r *Repo) FindUsers(ctx context.Context, f services.UserFilter) ([]models.User, error) {
	q := r.DB.WithContext(ctx).Order("created_at DESC")
	if f.Email != "" {
		q = q.Where("LOWER(email) = LOWER(?)", f.Email)
	}
	if f.RoleID > 0 {
		q = q.Where("role_id = ?", f.RoleID)
	}
	var users []models.User
	if err := q.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *Repo) FindUserByID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	err := r.DB.WithContext(ctx).First(&u, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repo) FindUserByEmail(ctx context.Context, email string, excludeID uint) (*models.User, error) {
	q := r.DB.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email)
	if excludeID > 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var u models.User
	err := q.First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repo) InsertUser(ctx context.Context, u *models.User) error {
	return r.DB.WithContext(ctx).Create(u).Error
}

func (r *Repo) UpdateUser(ctx context.Context, id uint, updates map[string]any) (*models.User, error) {
	if len(updates) > 0 {
		if err := r.DB.WithContext(ctx).Model(&models.User{}).
			Where("id = ?", id).
			Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return r.FindUserByID(ctx, id)
}

func (r *Repo) DeleteUser(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Delete(&models.User{}, id).Error
}

func (r *Repo) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.User{}).Count(&n).Error
	return n, err
}

// TouchUserSeen uses database time, avoiding clock skew between instances.
func (r *Repo) TouchUserSeen(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("last_seen_at", gorm.Expr("NOW()")).Error
}
