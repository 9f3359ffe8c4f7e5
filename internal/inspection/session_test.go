package inspection

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storeops/be-inspections/internal/draft"
	apperrors "github.com/storeops/be-inspections/internal/errors"
)

// fakeSource returns a fresh two-item "Food Prep" checklist on every call.
type fakeSource struct {
	calls int
	err   error
}

func (f *fakeSource) LoadChecklist(ctx context.Context) ([]WorkingCategory, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []WorkingCategory{
		{
			ID:    "food-prep",
			Title: "Food Prep",
			Icon:  "utensils",
			Items: []WorkingItem{
				{ID: "item-a", Description: "Surfaces sanitized"},
				{ID: "item-b", Description: "Utensils clean"},
			},
		},
	}, nil
}

func newTestSession(t *testing.T) (*Session, *fakeSource, *draft.MemStore) {
	t.Helper()
	source := &fakeSource{}
	store := draft.NewMemStore()
	s := NewSession(source, store, zerolog.Nop())
	require.NoError(t, s.Initialize(context.Background()))
	return s, source, store
}

func statusPtr(s ItemStatus) *ItemStatus { return &s }
func strPtr(s string) *string            { return &s }
func boolPtr(b bool) *bool               { return &b }

func TestInitializeSeedsBlankState(t *testing.T) {
	s, source, store := newTestSession(t)

	require.Equal(t, StateReady, s.State())
	require.Equal(t, 1, source.calls)

	cs := s.CompletionStatus()
	assert.Equal(t, CompletionStatus{TotalItems: 2, CompletedItems: 0, PercentComplete: 0}, cs)

	// The blank working state is persisted immediately.
	var cats []WorkingCategory
	found, err := store.Get(draft.KeyInspectionData, &cats)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, cats, 1)
	assert.Equal(t, StatusUnanswered, cats[0].Items[0].Status)
}

func TestInitializeRestoresDraft(t *testing.T) {
	store := draft.NewMemStore()
	require.NoError(t, store.Put(draft.KeyInspectionData, []WorkingCategory{
		{ID: "food-prep", Title: "Food Prep", Items: []WorkingItem{
			{ID: "item-a", Description: "Surfaces sanitized", Status: StatusYes},
		}},
	}))
	require.NoError(t, store.Put(draft.KeyStoreInfo, StoreInfo{StoreNumber: "1234567", InspectedBy: "Jane"}))

	source := &fakeSource{}
	s := NewSession(source, store, zerolog.Nop())
	require.NoError(t, s.Initialize(context.Background()))

	// A valid draft is adopted verbatim without hitting the taxonomy source.
	assert.Equal(t, 0, source.calls)
	assert.Equal(t, "1234567", s.StoreInfo().StoreNumber)
	assert.Equal(t, CompletionStatus{TotalItems: 1, CompletedItems: 1, PercentComplete: 100}, s.CompletionStatus())
}

func TestInitializeFetchFailure(t *testing.T) {
	source := &fakeSource{err: stderrors.New("backend down")}
	s := NewSession(source, draft.NewMemStore(), zerolog.Nop())

	err := s.Initialize(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateUninitialized, s.State())
	assert.NotEmpty(t, s.LastError())
}

func TestUpdateItemCompletionTransitions(t *testing.T) {
	s, _, _ := newTestSession(t)

	// Unanswered → answered bumps completedItems by exactly one.
	applied, err := s.UpdateItem("food-prep", "item-a", ItemUpdate{Status: statusPtr(StatusYes)})
	require.NoError(t, err)
	require.True(t, applied)
	assert.Equal(t, 1, s.CompletionStatus().CompletedItems)
	assert.Equal(t, 50, s.CompletionStatus().PercentComplete)

	// Answered → answered leaves completedItems unchanged.
	applied, err = s.UpdateItem("food-prep", "item-a", ItemUpdate{Status: statusPtr(StatusNo)})
	require.NoError(t, err)
	require.True(t, applied)
	assert.Equal(t, 1, s.CompletionStatus().CompletedItems)

	// Unknown (category, item) pair is a silent no-op.
	applied, err = s.UpdateItem("food-prep", "missing", ItemUpdate{Status: statusPtr(StatusYes)})
	require.NoError(t, err)
	assert.False(t, applied)
	applied, err = s.UpdateItem("missing", "item-a", ItemUpdate{Status: statusPtr(StatusYes)})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, 1, s.CompletionStatus().CompletedItems)
}

func TestUpdateItemRejectsUnknownStatus(t *testing.T) {
	s, _, _ := newTestSession(t)

	bad := ItemStatus("maybe")
	_, err := s.UpdateItem("food-prep", "item-a", ItemUpdate{Status: &bad})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.Code(err))
}

func TestIsCategoryComplete(t *testing.T) {
	s, _, _ := newTestSession(t)

	assert.False(t, s.IsCategoryComplete("food-prep"))
	assert.False(t, s.IsCategoryComplete("missing"))

	_, err := s.UpdateItem("food-prep", "item-a", ItemUpdate{Status: statusPtr(StatusYes)})
	require.NoError(t, err)
	assert.False(t, s.IsCategoryComplete("food-prep"))

	_, err = s.UpdateItem("food-prep", "item-b", ItemUpdate{Status: statusPtr(StatusNA)})
	require.NoError(t, err)
	assert.True(t, s.IsCategoryComplete("food-prep"))
}

func TestHappyPathScenario(t *testing.T) {
	s, _, _ := newTestSession(t)

	_, err := s.UpdateItem("food-prep", "item-a", ItemUpdate{Status: statusPtr(StatusYes)})
	require.NoError(t, err)
	_, err = s.UpdateItem("food-prep", "item-b", ItemUpdate{
		Status: statusPtr(StatusNo),
		Notes:  strPtr("dirty"),
		Fixed:  boolPtr(false),
	})
	require.NoError(t, err)

	assert.Equal(t, CompletionStatus{TotalItems: 2, CompletedItems: 2, PercentComplete: 100}, s.CompletionStatus())
	assert.True(t, s.IsCategoryComplete("food-prep"))

	issues := s.Issues()
	require.Len(t, issues, 1)
	assert.Equal(t, "food-prep", issues[0].CategoryID)
	assert.Equal(t, "Food Prep", issues[0].CategoryTitle)
	assert.Equal(t, "item-b", issues[0].Item.ID)
	assert.Equal(t, "dirty", issues[0].Item.Notes)
}

func TestPrepareSubmissionValidation(t *testing.T) {
	tests := []struct {
		name    string
		info    StoreInfo
		wantMsg string
	}{
		{"missing store number", StoreInfo{StoreNumber: "", InspectedBy: "Jane"}, "storeNumber"},
		{"malformed store number", StoreInfo{StoreNumber: "123", InspectedBy: "Jane"}, "7 digits"},
		{"missing inspector", StoreInfo{StoreNumber: "1234567", InspectedBy: "  "}, "inspectedBy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, _ := newTestSession(t)
			require.NoError(t, s.SetStoreInfo(tt.info))
			_, err := s.UpdateItem("food-prep", "item-a", ItemUpdate{Status: statusPtr(StatusYes)})
			require.NoError(t, err)
			_, err = s.UpdateItem("food-prep", "item-b", ItemUpdate{Status: statusPtr(StatusYes)})
			require.NoError(t, err)

			_, err = s.PrepareSubmission()
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.Code(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestPrepareSubmissionRejectsUnanswered(t *testing.T) {
	s, _, _ := newTestSession(t)
	require.NoError(t, s.SetStoreInfo(StoreInfo{StoreNumber: "1234567", InspectedBy: "Jane"}))

	_, err := s.UpdateItem("food-prep", "item-a", ItemUpdate{Status: statusPtr(StatusYes)})
	require.NoError(t, err)

	_, err = s.PrepareSubmission()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "item-b")
	assert.Contains(t, err.Error(), "unanswered")
}

func TestPrepareSubmissionIdempotent(t *testing.T) {
	s, _, _ := newTestSession(t)
	require.NoError(t, s.SetStoreInfo(StoreInfo{StoreNumber: " 1234567 ", InspectedBy: " Jane "}))
	_, err := s.UpdateItem("food-prep", "item-a", ItemUpdate{Status: statusPtr(StatusYes)})
	require.NoError(t, err)
	_, err = s.UpdateItem("food-prep", "item-b", ItemUpdate{Status: statusPtr(StatusNo), Notes: strPtr(" dirty ")})
	require.NoError(t, err)

	first, err := s.PrepareSubmission()
	require.NoError(t, err)
	second, err := s.PrepareSubmission()
	require.NoError(t, err)

	// Identical except for the timestamp.
	assert.Equal(t, first.StoreNumber, second.StoreNumber)
	assert.Equal(t, first.InspectedBy, second.InspectedBy)
	assert.Equal(t, first.Categories, second.Categories)

	// Normalization trims strings.
	assert.Equal(t, "1234567", first.StoreNumber)
	assert.Equal(t, "Jane", first.InspectedBy)
	assert.Equal(t, "dirty", first.Categories[0].Items[1].Notes)
	assert.Equal(t, "no", first.Categories[0].Items[1].Status)
}

func TestDraftRoundTrip(t *testing.T) {
	s, _, store := newTestSession(t)
	_, err := s.UpdateItem("food-prep", "item-b", ItemUpdate{Status: statusPtr(StatusNo), Notes: strPtr("dirty")})
	require.NoError(t, err)

	// A second session over the same store restores identical state.
	restored := NewSession(&fakeSource{}, store, zerolog.Nop())
	require.NoError(t, restored.Initialize(context.Background()))
	assert.Equal(t, s.Categories(), restored.Categories())
}

func TestReset(t *testing.T) {
	s, source, store := newTestSession(t)
	require.NoError(t, s.SetStoreInfo(StoreInfo{StoreNumber: "1234567", InspectedBy: "Jane"}))
	_, err := s.UpdateItem("food-prep", "item-a", ItemUpdate{Status: statusPtr(StatusYes)})
	require.NoError(t, err)

	require.NoError(t, s.Reset(context.Background()))

	assert.Equal(t, StateReady, s.State())
	assert.Equal(t, StoreInfo{}, s.StoreInfo())
	assert.Equal(t, 2, source.calls)
	assert.Equal(t, 0, s.CompletionStatus().CompletedItems)

	// The store info draft is gone; the inspection draft holds blank state.
	var info StoreInfo
	found, err := store.Get(draft.KeyStoreInfo, &info)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSubmitLifecycle(t *testing.T) {
	s, _, store := newTestSession(t)
	require.NoError(t, s.SetStoreInfo(StoreInfo{StoreNumber: "1234567", InspectedBy: "Jane"}))

	// Submitting is only reachable from Ready.
	require.NoError(t, s.BeginSubmit())
	require.Error(t, s.BeginSubmit())

	require.NoError(t, s.MarkSubmitted())
	assert.Equal(t, StateSubmitted, s.State())
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, StoreInfo{}, s.StoreInfo())
}

func TestMarkSubmitFailedKeepsState(t *testing.T) {
	s, _, _ := newTestSession(t)
	_, err := s.UpdateItem("food-prep", "item-a", ItemUpdate{Status: statusPtr(StatusYes)})
	require.NoError(t, err)

	require.NoError(t, s.BeginSubmit())
	s.MarkSubmitFailed(stderrors.New("write failed"))

	assert.Equal(t, StateReady, s.State())
	assert.Equal(t, "write failed", s.LastError())
	assert.Equal(t, 1, s.CompletionStatus().CompletedItems)
}

func TestPercentRounding(t *testing.T) {
	source := &fakeSource{}
	store := draft.NewMemStore()
	require.NoError(t, store.Put(draft.KeyInspectionData, []WorkingCategory{
		{ID: "c", Title: "C", Items: []WorkingItem{
			{ID: "i1", Description: "one", Status: StatusYes},
			{ID: "i2", Description: "two"},
			{ID: "i3", Description: "three"},
		}},
	}))
	s := NewSession(source, store, zerolog.Nop())
	require.NoError(t, s.Initialize(context.Background()))

	assert.Equal(t, 33, s.CompletionStatus().PercentComplete)

	_, err := s.UpdateItem("c", "i2", ItemUpdate{Status: statusPtr(StatusNA)})
	require.NoError(t, err)
	assert.Equal(t, 67, s.CompletionStatus().PercentComplete)
}

func TestEmptyChecklistCompletion(t *testing.T) {
	store := draft.NewMemStore()
	require.NoError(t, store.Put(draft.KeyInspectionData, []WorkingCategory{}))
	s := NewSession(&fakeSource{}, store, zerolog.Nop())
	require.NoError(t, s.Initialize(context.Background()))

	assert.Equal(t, CompletionStatus{TotalItems: 0, CompletedItems: 0, PercentComplete: 0}, s.CompletionStatus())
}
