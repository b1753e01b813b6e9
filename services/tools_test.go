package services

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"Gin_postgres_tool_loans/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToolRepo struct {
	tools    map[uint]*models.Tool
	hasLoans map[uint]bool
	nextID   uint
}

func newFakeToolRepo() *fakeToolRepo {
	return &fakeToolRepo{
		tools:    map[uint]*models.Tool{},
		hasLoans: map[uint]bool{},
		nextID:   1,
	}
}

func (f *fakeToolRepo) FindTools(context.Context) ([]models.Tool, error) {
	var out []models.Tool
	for _, t := range f.tools {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeToolRepo) FindToolByID(_ context.Context, id uint) (*models.Tool, error) {
	t, ok := f.tools[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (f *fakeToolRepo) ToolNameExists(_ context.Context, name string, excludeID uint) (bool, error) {
	for _, t := range f.tools {
		if t.ID != excludeID && strings.EqualFold(t.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeToolRepo) ToolHasLoans(_ context.Context, toolID uint) (bool, error) {
	return f.hasLoans[toolID], nil
}

func (f *fakeToolRepo) InsertTool(_ context.Context, t *models.Tool) error {
	t.ID = f.nextID
	f.nextID++
	cp := *t
	f.tools[t.ID] = &cp
	return nil
}

func (f *fakeToolRepo) UpdateTool(_ context.Context, id uint, updates map[string]any) (*models.Tool, error) {
	t, ok := f.tools[id]
	if !ok {
		return nil, nil
	}
	for k, v := range updates {
		switch k {
		case "name":
			t.Name = v.(string)
		case "description":
			t.Description = v.(*string)
		case "type_id":
			t.TypeID = v.(*uint)
		case "brand_id":
			t.BrandID = v.(*uint)
		case "status":
			t.Status = v.(*string)
		case "acquired_at":
			t.AcquiredAt = v.(*time.Time)
		case "available":
			t.Available = v.(bool)
		case "warehouse_id":
			t.WarehouseID = v.(*uint)
		}
	}
	cp := *t
	return &cp, nil
}

func (f *fakeToolRepo) DeleteTool(_ context.Context, id uint) error {
	delete(f.tools, id)
	return nil
}

func TestCreateToolDefaultsToAvailable(t *testing.T) {
	f := newFakeToolRepo()
	svc := NewToolService(f, zerolog.Nop())

	dto, err := svc.Create(context.Background(), ToolCreateInput{Name: " Taladro "})
	require.NoError(t, err)
	assert.Equal(t, "Taladro", dto.Name)
	assert.True(t, dto.Available)
}

func TestCreateToolParsesAcquiredAt(t *testing.T) {
	f := newFakeToolRepo()
	svc := NewToolService(f, zerolog.Nop())

	date := "2024-06-15"
	dto, err := svc.Create(context.Background(), ToolCreateInput{Name: "Sierra", AcquiredAt: &date})
	require.NoError(t, err)
	require.NotNil(t, dto.AcquiredAt)
	assert.Equal(t, date, *dto.AcquiredAt)

	bad := "15/06/2024"
	_, err = svc.Create(context.Background(), ToolCreateInput{Name: "Otra", AcquiredAt: &bad})
	serr := requireKind(t, err, KindValidation)
	assert.Contains(t, serr.Details[0], "acquired_at")
}

func TestCreateToolDuplicateNameAnyCase(t *testing.T) {
	f := newFakeToolRepo()
	svc := NewToolService(f, zerolog.Nop())
	ctx := context.Background()

	_, err := svc.Create(ctx, ToolCreateInput{Name: "Taladro"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, ToolCreateInput{Name: "TALADRO"})
	serr := requireKind(t, err, KindConflict)
	assert.Equal(t, msgToolNameTaken, serr.Message)
	assert.Len(t, f.tools, 1)
}

func TestUpdateToolRenameRules(t *testing.T) {
	f := newFakeToolRepo()
	svc := NewToolService(f, zerolog.Nop())
	ctx := context.Background()

	taladro, err := svc.Create(ctx, ToolCreateInput{Name: "Taladro"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, ToolCreateInput{Name: "Sierra"})
	require.NoError(t, err)

	// Case-only rename of your own tool is fine.
	dto, err := svc.Update(ctx, taladro.ID, ToolPatch{Name: models.NewOptional("TALADRO")})
	require.NoError(t, err)
	assert.Equal(t, "TALADRO", dto.Name)

	// Colliding with another tool is not.
	_, err = svc.Update(ctx, taladro.ID, ToolPatch{Name: models.NewOptional("sierra")})
	requireKind(t, err, KindConflict)
}

func TestUpdateToolAvailabilityGuard(t *testing.T) {
	f := newFakeToolRepo()
	svc := NewToolService(f, zerolog.Nop())
	ctx := context.Background()

	created, err := svc.Create(ctx, ToolCreateInput{Name: "Taladro"})
	require.NoError(t, err)

	// Editable while nothing references the tool.
	dto, err := svc.Update(ctx, created.ID, ToolPatch{Available: models.NewOptional(false)})
	require.NoError(t, err)
	assert.False(t, dto.Available)

	// Locked once loans exist.
	f.hasLoans[created.ID] = true
	_, err = svc.Update(ctx, created.ID, ToolPatch{Available: models.NewOptional(true)})
	serr := requireKind(t, err, KindValidation)
	assert.Contains(t, serr.Details[0], "available")
	assert.False(t, f.tools[created.ID].Available)
}

func TestUpdateToolNullableFields(t *testing.T) {
	f := newFakeToolRepo()
	svc := NewToolService(f, zerolog.Nop())
	ctx := context.Background()

	desc := "percutor 800W"
	created, err := svc.Create(ctx, ToolCreateInput{Name: "Taladro", Description: &desc})
	require.NoError(t, err)
	require.NotNil(t, created.Description)

	dto, err := svc.Update(ctx, created.ID, ToolPatch{
		Description: models.NullOptional[string](),
		AcquiredAt:  models.NullOptional[string](),
	})
	require.NoError(t, err)
	assert.Nil(t, dto.Description)
	assert.Nil(t, dto.AcquiredAt)
}

func TestToolNotFound(t *testing.T) {
	svc := NewToolService(newFakeToolRepo(), zerolog.Nop())
	ctx := context.Background()

	_, err := svc.Get(ctx, 42)
	requireKind(t, err, KindNotFound)

	_, err = svc.Update(ctx, 42, ToolPatch{})
	requireKind(t, err, KindNotFound)

	err = svc.Remove(ctx, 42)
	requireKind(t, err, KindNotFound)
}

func TestRemoveTool(t *testing.T) {
	f := newFakeToolRepo()
	svc := NewToolService(f, zerolog.Nop())
	ctx := context.Background()

	created, err := svc.Create(ctx, ToolCreateInput{Name: "Taladro"})
	require.NoError(t, err)

	require.NoError(t, svc.Remove(ctx, created.ID))
	assert.Empty(t, f.tools)
}
