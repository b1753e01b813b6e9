package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"Gin_postgres_tool_loans/models"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const msgToolNameTaken = "a tool with that name already exists"

type ToolRepository interface {
	FindTools(ctx context.Context) ([]models.Tool, error)
	FindToolByID(ctx context.Context, id uint) (*models.Tool, error)
	// ToolNameExists matches case-insensitively, skipping excludeID when > 0.
	ToolNameExists(ctx context.Context, name string, excludeID uint) (bool, error)
	ToolHasLoans(ctx context.Context, toolID uint) (bool, error)
	InsertTool(ctx context.Context, t *models.Tool) error
	UpdateTool(ctx context.Context, id uint, updates map[string]any) (*models.Tool, error)
	DeleteTool(ctx context.Context, id uint) error
}

type ToolCreateInput struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	TypeID      *int64  `json:"type_id"`
	BrandID     *int64  `json:"brand_id"`
	Status      *string `json:"status"`
	AcquiredAt  *string `json:"acquired_at"` // YYYY-MM-DD
	Available   *bool   `json:"available"`
	WarehouseID *int64  `json:"warehouse_id"`
}

func (in *ToolCreateInput) validate() []string {
	var details []string
	if n := len(strings.TrimSpace(in.Name)); n < 2 || n > 100 {
		details = append(details, "name: must be between 2 and 100 characters")
	}
	if in.TypeID != nil && *in.TypeID <= 0 {
		details = append(details, "type_id: must be a positive integer")
	}
	if in.BrandID != nil && *in.BrandID <= 0 {
		details = append(details, "brand_id: must be a positive integer")
	}
	if in.Status != nil && len(*in.Status) > 50 {
		details = append(details, "status: must be at most 50 characters")
	}
	if in.AcquiredAt != nil {
		if _, err := time.Parse(time.DateOnly, *in.AcquiredAt); err != nil {
			details = append(details, "acquired_at: must be a YYYY-MM-DD date")
		}
	}
	if in.WarehouseID != nil && *in.WarehouseID <= 0 {
		details = append(details, "warehouse_id: must be a positive integer")
	}
	return details
}

type ToolPatch struct {
	Name        models.Optional[string] `json:"name"`
	Description models.Optional[string] `json:"description"`
	TypeID      models.Optional[int64]  `json:"type_id"`
	BrandID     models.Optional[int64]  `json:"brand_id"`
	Status      models.Optional[string] `json:"status"`
	AcquiredAt  models.Optional[string] `json:"acquired_at"`
	Available   models.Optional[bool]   `json:"available"`
	WarehouseID models.Optional[int64]  `json:"warehouse_id"`
}

func (p *ToolPatch) validate() []string {
	var details []string
	if p.Name.Set {
		if n := len(strings.TrimSpace(p.Name.Value)); !p.Name.Valid || n < 2 || n > 100 {
			details = append(details, "name: must be between 2 and 100 characters")
		}
	}
	if p.TypeID.Set && p.TypeID.Valid && p.TypeID.Value <= 0 {
		details = append(details, "type_id: must be a positive integer")
	}
	if p.BrandID.Set && p.BrandID.Valid && p.BrandID.Value <= 0 {
		details = append(details, "brand_id: must be a positive integer")
	}
	if p.Status.Set && p.Status.Valid && len(p.Status.Value) > 50 {
		details = append(details, "status: must be at most 50 characters")
	}
	if p.AcquiredAt.Set && p.AcquiredAt.Valid {
		if _, err := time.Parse(time.DateOnly, p.AcquiredAt.Value); err != nil {
			details = append(details, "acquired_at: must be a YYYY-MM-DD date")
		}
	}
	if p.Available.Set && !p.Available.Valid {
		details = append(details, "available: must be a boolean")
	}
	if p.WarehouseID.Set && p.WarehouseID.Valid && p.WarehouseID.Value <= 0 {
		details = append(details, "warehouse_id: must be a positive integer")
	}
	return details
}

type ToolDTO struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	TypeID      *uint     `json:"type_id"`
	BrandID     *uint     `json:"brand_id"`
	Status      *string   `json:"status"`
	AcquiredAt  *string   `json:"acquired_at"` // YYYY-MM-DD
	Available   bool      `json:"available"`
	WarehouseID *uint     `json:"warehouse_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toolDTO(t *models.Tool) *ToolDTO {
	d := &ToolDTO{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		TypeID:      t.TypeID,
		BrandID:     t.BrandID,
		Status:      t.Status,
		Available:   t.Available,
		WarehouseID: t.WarehouseID,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if t.AcquiredAt != nil {
		s := t.AcquiredAt.Format(time.DateOnly)
		d.AcquiredAt = &s
	}
	return d
}

type ToolService struct {
	repo ToolRepository
	log  zerolog.Logger
}

func NewToolService(repo ToolRepository, log zerolog.Logger) *ToolService {
	return &ToolService{repo: repo, log: log}
}

func (s *ToolService) List(ctx context.Context) ([]ToolDTO, error) {
	tools, err := s.repo.FindTools(ctx)
	if err != nil {
		return nil, wrap(err)
	}
	out := make([]ToolDTO, 0, len(tools))
	for i := range tools {
		out = append(out, *toolDTO(&tools[i]))
	}
	return out, nil
}

func (s *ToolService) Get(ctx context.Context, id uint) (*ToolDTO, error) {
	t, err := s.repo.FindToolByID(ctx, id)
	if err != nil {
		return nil, wrap(err)
	}
	if t == nil {
		return nil, NewNotFound("tool")
	}
	return toolDTO(t), nil
}

func (s *ToolService) Create(ctx context.Context, in ToolCreateInput) (*ToolDTO, error) {
	if details := in.validate(); len(details) > 0 {
		return nil, NewValidation(details)
	}

	name := strings.TrimSpace(in.Name)
	if taken, err := s.repo.ToolNameExists(ctx, name, 0); err != nil {
		return nil, wrap(err)
	} else if taken {
		return nil, NewConflict(msgToolNameTaken)
	}

	t := &models.Tool{
		Name:        name,
		Description: in.Description,
		Status:      in.Status,
		Available:   true,
	}
	if in.TypeID != nil {
		v := uint(*in.TypeID)
		t.TypeID = &v
	}
	if in.BrandID != nil {
		v := uint(*in.BrandID)
		t.BrandID = &v
	}
	if in.WarehouseID != nil {
		v := uint(*in.WarehouseID)
		t.WarehouseID = &v
	}
	if in.AcquiredAt != nil {
		d, _ := time.Parse(time.DateOnly, *in.AcquiredAt)
		t.AcquiredAt = &d
	}
	if in.Available != nil {
		t.Available = *in.Available
	}

	if err := s.repo.InsertTool(ctx, t); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, NewConflict(msgToolNameTaken)
		}
		return nil, wrap(err)
	}

	s.log.Info().Uint("tool_id", t.ID).Str("name", t.Name).Msg("tool created")
	return toolDTO(t), nil
}

func (s *ToolService) Update(ctx context.Context, id uint, p ToolPatch) (*ToolDTO, error) {
	existing, err := s.repo.FindToolByID(ctx, id)
	if err != nil {
		return nil, wrap(err)
	}
	if existing == nil {
		return nil, NewNotFound("tool")
	}

	if details := p.validate(); len(details) > 0 {
		return nil, NewValidation(details)
	}

	updates := map[string]any{}
	if p.Name.Set {
		name := strings.TrimSpace(p.Name.Value)
		if !strings.EqualFold(name, existing.Name) {
			taken, err := s.repo.ToolNameExists(ctx, name, id)
			if err != nil {
				return nil, wrap(err)
			}
			if taken {
				return nil, NewConflict(msgToolNameTaken)
			}
		}
		updates["name"] = name
	}
	if p.Description.Set {
		updates["description"] = p.Description.Ptr()
	}
	if p.TypeID.Set {
		updates["type_id"] = optionalUint(p.TypeID)
	}
	if p.BrandID.Set {
		updates["brand_id"] = optionalUint(p.BrandID)
	}
	if p.Status.Set {
		updates["status"] = p.Status.Ptr()
	}
	if p.AcquiredAt.Set {
		if p.AcquiredAt.Valid {
			d, _ := time.Parse(time.DateOnly, p.AcquiredAt.Value)
			updates["acquired_at"] = &d
		} else {
			updates["acquired_at"] = (*time.Time)(nil)
		}
	}
	if p.Available.Set {
		// available belongs to the loan lifecycle once loans reference the
		// tool; only a loan-free tool can have it edited directly.
		hasLoans, err := s.repo.ToolHasLoans(ctx, id)
		if err != nil {
			return nil, wrap(err)
		}
		if hasLoans {
			return nil, NewValidation([]string{"available: managed by the loan lifecycle once the tool has loans"})
		}
		updates["available"] = p.Available.Value
	}
	if p.WarehouseID.Set {
		updates["warehouse_id"] = optionalUint(p.WarehouseID)
	}

	t, err := s.repo.UpdateTool(ctx, id, updates)
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, NewConflict(msgToolNameTaken)
		}
		return nil, wrap(err)
	}
	return toolDTO(t), nil
}

func (s *ToolService) Remove(ctx context.Context, id uint) error {
	existing, err := s.repo.FindToolByID(ctx, id)
	if err != nil {
		return wrap(err)
	}
	if existing == nil {
		return NewNotFound("tool")
	}
	if err := s.repo.DeleteTool(ctx, id); err != nil {
		return wrap(err)
	}
	s.log.Info().Uint("tool_id", id).Msg("tool deleted")
	return nil
}

func optionalUint(o models.Optional[int64]) *uint {
	if !o.Valid {
		return nil
	}
	v := uint(o.Value)
	return &v
}
