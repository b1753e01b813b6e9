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
	"gorm.io/gorm"
)

// fakeRepo is an in-memory LoanRepository. Like the real database it
// enforces the one-active-loan-per-tool index on writes, surfacing
// gorm.ErrDuplicatedKey the way the translated Postgres error would.
type fakeRepo struct {
	users  map[uint]*models.User
	tools  map[uint]*models.Tool
	loans  map[uint]*models.Loan
	nextID uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:  map[uint]*models.User{},
		tools:  map[uint]*models.Tool{},
		loans:  map[uint]*models.Loan{},
		nextID: 1,
	}
}

func (f *fakeRepo) addUser(id uint, name, email string) {
	f.users[id] = &models.User{ID: id, Name: name, Email: email}
}

func (f *fakeRepo) addTool(id uint, name string) {
	f.tools[id] = &models.Tool{ID: id, Name: name, Available: true}
}

func (f *fakeRepo) withSnapshots(l models.Loan) models.Loan {
	l.User = f.users[l.UserID]
	l.Tool = f.tools[l.ToolID]
	return l
}

func (f *fakeRepo) FindLoans(_ context.Context, filter LoanFilter) ([]models.Loan, error) {
	var out []models.Loan
	for _, l := range f.loans {
		if filter.UserID > 0 && l.UserID != filter.UserID {
			continue
		}
		if filter.ToolID > 0 && l.ToolID != filter.ToolID {
			continue
		}
		if filter.Status != "" {
			if l.Status == nil || !strings.EqualFold(*l.Status, filter.Status) {
				continue
			}
		}
		out = append(out, f.withSnapshots(*l))
	}
	sort.Slice(out, func(i, j int) bool {
		var a, b time.Time
		if out[i].BorrowedAt != nil {
			a = *out[i].BorrowedAt
		}
		if out[j].BorrowedAt != nil {
			b = *out[j].BorrowedAt
		}
		return a.After(b)
	})
	return out, nil
}

func (f *fakeRepo) FindLoanByID(_ context.Context, id uint) (*models.Loan, error) {
	l, ok := f.loans[id]
	if !ok {
		return nil, nil
	}
	cp := f.withSnapshots(*l)
	return &cp, nil
}

func (f *fakeRepo) UserExists(_ context.Context, id uint) (bool, error) {
	_, ok := f.users[id]
	return ok, nil
}

func (f *fakeRepo) ToolExists(_ context.Context, id uint) (bool, error) {
	_, ok := f.tools[id]
	return ok, nil
}

func (f *fakeRepo) ActiveLoanExistsForTool(_ context.Context, toolID, excludeID uint) (bool, error) {
	for _, l := range f.loans {
		if l.ToolID == toolID && l.ID != excludeID && l.IsActive() {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) InsertLoan(ctx context.Context, l *models.Loan) error {
	if l.IsActive() {
		if busy, _ := f.ActiveLoanExistsForTool(ctx, l.ToolID, 0); busy {
			return gorm.ErrDuplicatedKey
		}
	}
	l.ID = f.nextID
	f.nextID++
	cp := *l
	f.loans[l.ID] = &cp
	return nil
}

func (f *fakeRepo) UpdateLoan(ctx context.Context, id uint, updates map[string]any) (*models.Loan, error) {
	l, ok := f.loans[id]
	if !ok {
		return nil, nil
	}
	cp := *l
	for k, v := range updates {
		switch k {
		case "user_id":
			cp.UserID = v.(uint)
		case "tool_id":
			cp.ToolID = v.(uint)
		case "borrowed_at":
			cp.BorrowedAt = v.(*time.Time)
		case "due_at":
			cp.DueAt = v.(*time.Time)
		case "returned_at":
			cp.ReturnedAt = v.(*time.Time)
		case "status":
			cp.Status = v.(*string)
		case "notes":
			cp.Notes = v.(*string)
		}
	}
	if cp.IsActive() {
		if busy, _ := f.ActiveLoanExistsForTool(ctx, cp.ToolID, id); busy {
			return nil, gorm.ErrDuplicatedKey
		}
	}
	f.loans[id] = &cp
	out := f.withSnapshots(cp)
	return &out, nil
}

func (f *fakeRepo) DeleteLoan(_ context.Context, id uint) error {
	delete(f.loans, id)
	return nil
}

func (f *fakeRepo) SetToolAvailability(_ context.Context, toolID uint, available bool) error {
	if t, ok := f.tools[toolID]; ok {
		t.Available = available
	}
	return nil
}

func (f *fakeRepo) Transact(_ context.Context, fn func(LoanRepository) error) error {
	return fn(f)
}

// blindRepo simulates losing the read-check race: the fast-path check never
// sees a competitor, so only the unique index can save the invariant.
type blindRepo struct{ *fakeRepo }

func (b blindRepo) ActiveLoanExistsForTool(context.Context, uint, uint) (bool, error) {
	return false, nil
}

func (b blindRepo) Transact(_ context.Context, fn func(LoanRepository) error) error {
	return fn(b)
}

func newLoanFixture() (*fakeRepo, *LoanService) {
	f := newFakeRepo()
	f.addUser(1, "Ana", "ana@example.com")
	f.addUser(2, "Luis", "luis@example.com")
	f.addTool(1, "taladro")
	f.addTool(2, "martillo")
	return f, NewLoanService(f, zerolog.Nop())
}

func requireKind(t *testing.T, err error, kind Kind) *Error {
	t.Helper()
	require.Error(t, err)
	serr, ok := err.(*Error)
	require.True(t, ok, "expected *services.Error, got %T: %v", err, err)
	require.Equal(t, kind, serr.Kind)
	return serr
}

// At most one active loan per tool, checked over the whole store.
func assertLoanInvariant(t *testing.T, f *fakeRepo) {
	t.Helper()
	active := map[uint]int{}
	for _, l := range f.loans {
		if l.IsActive() {
			active[l.ToolID]++
		}
	}
	for toolID, n := range active {
		assert.LessOrEqual(t, n, 1, "tool %d has %d active loans", toolID, n)
	}
	for toolID, tool := range f.tools {
		assert.Equal(t, active[toolID] == 0, tool.Available,
			"tool %d availability out of sync with loan table", toolID)
	}
}

func strptr(s string) *string { return &s }

func TestCreateLoanDefaultsToActiveAndFlipsAvailability(t *testing.T) {
	f, svc := newLoanFixture()

	loan, err := svc.Create(context.Background(), LoanCreateInput{UserID: 1, ToolID: 1})
	require.NoError(t, err)

	assert.Equal(t, models.LoanStatusActive, *loan.Status)
	require.NotNil(t, loan.BorrowedAt)
	assert.Nil(t, loan.ReturnedAt)

	require.NotNil(t, loan.User)
	assert.Equal(t, "Ana", loan.User.Name)
	assert.Equal(t, "ana@example.com", loan.User.Email)
	require.NotNil(t, loan.Tool)
	assert.Equal(t, "taladro", loan.Tool.Name)
	assert.False(t, loan.Tool.Available)

	assert.False(t, f.tools[1].Available)
	assertLoanInvariant(t, f)
}

func TestCreateLoanBornReturnedLeavesToolAlone(t *testing.T) {
	f, svc := newLoanFixture()

	now := time.Now().UTC()
	loan, err := svc.Create(context.Background(), LoanCreateInput{
		UserID: 1, ToolID: 1, ReturnedAt: &now,
	})
	require.NoError(t, err)
	require.NotNil(t, loan.ReturnedAt)
	assert.True(t, f.tools[1].Available)

	// Status alone is enough too, any casing.
	loan, err = svc.Create(context.Background(), LoanCreateInput{
		UserID: 1, ToolID: 2, Status: strptr("Devuelto"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Devuelto", *loan.Status)
	assert.True(t, f.tools[2].Available)
	assertLoanInvariant(t, f)
}

func TestCreateLoanConflictOnActiveTool(t *testing.T) {
	f, svc := newLoanFixture()

	first, err := svc.Create(context.Background(), LoanCreateInput{UserID: 1, ToolID: 1})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), LoanCreateInput{UserID: 2, ToolID: 1})
	requireKind(t, err, KindConflict)

	// Loser left no trace: one loan, first untouched, tool still taken.
	assert.Len(t, f.loans, 1)
	assert.Equal(t, first.UserID, f.loans[first.ID].UserID)
	assert.False(t, f.tools[1].Available)
	assertLoanInvariant(t, f)
}

func TestCreateLoanConflictFromUniqueIndexAfterLostRace(t *testing.T) {
	f, svc := newLoanFixture()
	_, err := svc.Create(context.Background(), LoanCreateInput{UserID: 1, ToolID: 1})
	require.NoError(t, err)

	// The blind repo's fast-path check sees nothing; the duplicate-key error
	// from the index must still come back as a conflict.
	blind := NewLoanService(blindRepo{f}, zerolog.Nop())
	_, err = blind.Create(context.Background(), LoanCreateInput{UserID: 2, ToolID: 1})
	requireKind(t, err, KindConflict)
	assert.Len(t, f.loans, 1)
}

func TestCreateLoanDanglingReferences(t *testing.T) {
	f, svc := newLoanFixture()

	_, err := svc.Create(context.Background(), LoanCreateInput{UserID: 99, ToolID: 1})
	serr := requireKind(t, err, KindReference)
	assert.Contains(t, serr.Message, "user")

	_, err = svc.Create(context.Background(), LoanCreateInput{UserID: 1, ToolID: 99})
	serr = requireKind(t, err, KindReference)
	assert.Contains(t, serr.Message, "tool")

	// Nothing persisted, availability untouched.
	assert.Empty(t, f.loans)
	assert.True(t, f.tools[1].Available)
}

func TestCreateLoanValidation(t *testing.T) {
	_, svc := newLoanFixture()

	long := strings.Repeat("x", 1001)
	_, err := svc.Create(context.Background(), LoanCreateInput{
		UserID: 0, ToolID: 1, Status: strptr("a"), Notes: &long,
	})
	serr := requireKind(t, err, KindValidation)
	require.Len(t, serr.Details, 3)
	assert.Contains(t, serr.Details[0], "user_id")
	assert.Contains(t, serr.Details[1], "status")
	assert.Contains(t, serr.Details[2], "notes")
}

func TestGetLoanNotFound(t *testing.T) {
	_, svc := newLoanFixture()
	_, err := svc.Get(context.Background(), 42)
	requireKind(t, err, KindNotFound)
}

func TestListLoansFiltersAndOrdering(t *testing.T) {
	f, svc := newLoanFixture()
	ctx := context.Background()

	t1 := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(24 * time.Hour)
	t3 := t1.Add(48 * time.Hour)

	_, err := svc.Create(ctx, LoanCreateInput{UserID: 1, ToolID: 1, BorrowedAt: &t1})
	require.NoError(t, err)
	_, err = svc.Create(ctx, LoanCreateInput{UserID: 2, ToolID: 2, BorrowedAt: &t3})
	require.NoError(t, err)
	_, err = svc.Create(ctx, LoanCreateInput{UserID: 1, ToolID: 1, BorrowedAt: &t2, Status: strptr(models.LoanStatusReturned)})
	require.NoError(t, err)

	all, err := svc.List(ctx, LoanFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, t3, *all[0].BorrowedAt)
	assert.Equal(t, t2, *all[1].BorrowedAt)
	assert.Equal(t, t1, *all[2].BorrowedAt)

	byUser, err := svc.List(ctx, LoanFilter{UserID: 2})
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	assert.Equal(t, uint(2), byUser[0].UserID)

	byTool, err := svc.List(ctx, LoanFilter{ToolID: 1})
	require.NoError(t, err)
	assert.Len(t, byTool, 2)

	// Status matching ignores case.
	returned, err := svc.List(ctx, LoanFilter{Status: "DEVUELTO"})
	require.NoError(t, err)
	require.Len(t, returned, 1)

	assertLoanInvariant(t, f)
}

func TestParseLoanFilterRejectsBadValues(t *testing.T) {
	_, err := ParseLoanFilter("abc", "", "")
	serr := requireKind(t, err, KindValidation)
	assert.Contains(t, serr.Details[0], "user_id")

	_, err = ParseLoanFilter("", "0", "")
	requireKind(t, err, KindValidation)

	_, err = ParseLoanFilter("", "", strings.Repeat("s", 51))
	requireKind(t, err, KindValidation)

	fl, err := ParseLoanFilter("3", "7", "activo")
	require.NoError(t, err)
	assert.Equal(t, uint(3), fl.UserID)
	assert.Equal(t, uint(7), fl.ToolID)
	assert.Equal(t, "activo", fl.Status)
}

func TestUpdateLoanPartialPatchSemantics(t *testing.T) {
	f, svc := newLoanFixture()
	ctx := context.Background()

	created, err := svc.Create(ctx, LoanCreateInput{UserID: 1, ToolID: 1, Notes: strptr("a")})
	require.NoError(t, err)

	// Empty patch: nothing changes, no self-conflict against its own
	// active-loan row.
	updated, err := svc.Update(ctx, created.ID, LoanPatch{})
	require.NoError(t, err)
	require.NotNil(t, updated.Notes)
	assert.Equal(t, "a", *updated.Notes)
	assert.Equal(t, models.LoanStatusActive, *updated.Status)
	assert.False(t, f.tools[1].Available)

	// Explicit null clears.
	updated, err = svc.Update(ctx, created.ID, LoanPatch{Notes: models.NullOptional[string]()})
	require.NoError(t, err)
	assert.Nil(t, updated.Notes)

	// Value sets.
	updated, err = svc.Update(ctx, created.ID, LoanPatch{Notes: models.NewOptional("b")})
	require.NoError(t, err)
	require.NotNil(t, updated.Notes)
	assert.Equal(t, "b", *updated.Notes)

	assertLoanInvariant(t, f)
}

func TestReturnLoanFreesToolAndIsIdempotent(t *testing.T) {
	f, svc := newLoanFixture()
	ctx := context.Background()

	created, err := svc.Create(ctx, LoanCreateInput{UserID: 1, ToolID: 1})
	require.NoError(t, err)
	require.False(t, f.tools[1].Available)

	updated, err := svc.Update(ctx, created.ID, LoanPatch{Status: models.NewOptional(models.LoanStatusReturned)})
	require.NoError(t, err)
	assert.True(t, f.tools[1].Available)
	assert.Equal(t, models.LoanStatusReturned, *updated.Status)

	// Returning an already-returned loan neither errors nor flips the tool.
	_, err = svc.Update(ctx, created.ID, LoanPatch{Status: models.NewOptional(models.LoanStatusReturned)})
	require.NoError(t, err)
	assert.True(t, f.tools[1].Available)

	assertLoanInvariant(t, f)
}

func TestReturnLoanViaReturnedAt(t *testing.T) {
	f, svc := newLoanFixture()
	ctx := context.Background()

	created, err := svc.Create(ctx, LoanCreateInput{UserID: 1, ToolID: 1})
	require.NoError(t, err)

	now := time.Now().UTC()
	updated, err := svc.Update(ctx, created.ID, LoanPatch{ReturnedAt: models.NewOptional(now)})
	require.NoError(t, err)
	require.NotNil(t, updated.ReturnedAt)
	// Status text still says active, but the date wins the predicate.
	assert.Equal(t, models.LoanStatusActive, *updated.Status)
	assert.True(t, f.tools[1].Available)
	assertLoanInvariant(t, f)
}

func TestReactivateLoanTakesToolBack(t *testing.T) {
	f, svc := newLoanFixture()
	ctx := context.Background()

	created, err := svc.Create(ctx, LoanCreateInput{UserID: 1, ToolID: 1, Status: strptr(models.LoanStatusReturned)})
	require.NoError(t, err)
	require.True(t, f.tools[1].Available)

	_, err = svc.Update(ctx, created.ID, LoanPatch{Status: models.NewOptional(models.LoanStatusActive)})
	require.NoError(t, err)
	assert.False(t, f.tools[1].Available)
	assertLoanInvariant(t, f)
}

func TestReactivateConflictsWithNewerActiveLoan(t *testing.T) {
	_, svc := newLoanFixture()
	ctx := context.Background()

	old, err := svc.Create(ctx, LoanCreateInput{UserID: 1, ToolID: 1, Status: strptr(models.LoanStatusReturned)})
	require.NoError(t, err)
	_, err = svc.Create(ctx, LoanCreateInput{UserID: 2, ToolID: 1})
	require.NoError(t, err)

	_, err = svc.Update(ctx, old.ID, LoanPatch{Status: models.NewOptional(models.LoanStatusActive)})
	requireKind(t, err, KindConflict)
}

func TestUpdateLoanMoveToBusyToolConflicts(t *testing.T) {
	_, svc := newLoanFixture()
	ctx := context.Background()

	mine, err := svc.Create(ctx, LoanCreateInput{UserID: 1, ToolID: 1})
	require.NoError(t, err)
	_, err = svc.Create(ctx, LoanCreateInput{UserID: 2, ToolID: 2})
	require.NoError(t, err)

	_, err = svc.Update(ctx, mine.ID, LoanPatch{ToolID: models.NewOptional[int64](2)})
	requireKind(t, err, KindConflict)
}

// Moving an active loan to a free tool updates only the new tool's
// availability; the old tool is deliberately not recomputed.
func TestUpdateLoanMoveToFreeToolTouchesOnlyNewTool(t *testing.T) {
	f, svc := newLoanFixture()
	ctx := context.Background()

	mine, err := svc.Create(ctx, LoanCreateInput{UserID: 1, ToolID: 1})
	require.NoError(t, err)
	require.False(t, f.tools[1].Available)

	_, err = svc.Update(ctx, mine.ID, LoanPatch{ToolID: models.NewOptional[int64](2)})
	require.NoError(t, err)
	assert.False(t, f.tools[2].Available)
	assert.False(t, f.tools[1].Available, "old tool is deliberately left stale")
}

func TestUpdateLoanDanglingReferences(t *testing.T) {
	_, svc := newLoanFixture()
	ctx := context.Background()

	created, err := svc.Create(ctx, LoanCreateInput{UserID: 1, ToolID: 1})
	require.NoError(t, err)

	_, err = svc.Update(ctx, created.ID, LoanPatch{UserID: models.NewOptional[int64](99)})
	requireKind(t, err, KindReference)

	_, err = svc.Update(ctx, created.ID, LoanPatch{ToolID: models.NewOptional[int64](99)})
	requireKind(t, err, KindReference)
}

func TestUpdateLoanValidation(t *testing.T) {
	_, svc := newLoanFixture()
	ctx := context.Background()

	created, err := svc.Create(ctx, LoanCreateInput{UserID: 1, ToolID: 1})
	require.NoError(t, err)

	// user_id cannot be nulled out.
	_, err = svc.Update(ctx, created.ID, LoanPatch{UserID: models.NullOptional[int64]()})
	serr := requireKind(t, err, KindValidation)
	assert.Contains(t, serr.Details[0], "user_id")

	_, err = svc.Update(ctx, created.ID, LoanPatch{BorrowedAt: models.NullOptional[time.Time]()})
	requireKind(t, err, KindValidation)
}

func TestUpdateLoanNotFound(t *testing.T) {
	_, svc := newLoanFixture()
	_, err := svc.Update(context.Background(), 42, LoanPatch{})
	requireKind(t, err, KindNotFound)
}

func TestDeleteActiveLoanFreesTool(t *testing.T) {
	f, svc := newLoanFixture()
	ctx := context.Background()

	created, err := svc.Create(ctx, LoanCreateInput{UserID: 1, ToolID: 1})
	require.NoError(t, err)
	require.False(t, f.tools[1].Available)

	require.NoError(t, svc.Remove(ctx, created.ID))
	assert.True(t, f.tools[1].Available)
	assert.Empty(t, f.loans)
	assertLoanInvariant(t, f)
}

func TestDeleteReturnedLoanLeavesToolAlone(t *testing.T) {
	f, svc := newLoanFixture()
	ctx := context.Background()

	returned, err := svc.Create(ctx, LoanCreateInput{UserID: 1, ToolID: 1, Status: strptr(models.LoanStatusReturned)})
	require.NoError(t, err)
	_, err = svc.Create(ctx, LoanCreateInput{UserID: 2, ToolID: 1})
	require.NoError(t, err)
	require.False(t, f.tools[1].Available)

	// Deleting the returned loan must not free a tool that is still out.
	require.NoError(t, svc.Remove(ctx, returned.ID))
	assert.False(t, f.tools[1].Available)
	assertLoanInvariant(t, f)
}

func TestDeleteLoanNotFound(t *testing.T) {
	_, svc := newLoanFixture()
	err := svc.Remove(context.Background(), 42)
	requireKind(t, err, KindNotFound)
}
