package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/storeops/be-inspections/internal/errors"
	"github.com/storeops/be-inspections/internal/inspection"
	"github.com/storeops/be-inspections/internal/repository"
)

// fakeInspectionRepo is an in-memory InspectionRepo that mimics the
// version-guarded categories rewrite.
type fakeInspectionRepo struct {
	inspections map[string]*repository.Inspection
	nextID      int

	// staleReadVersion, when nonzero, overrides the version returned by
	// GetByID to simulate a concurrent writer landing between read and write.
	staleReadVersion int

	updateCalls []updateCall
}

type updateCall struct {
	id              string
	expectedVersion int
}

func newFakeInspectionRepo() *fakeInspectionRepo {
	return &fakeInspectionRepo{inspections: map[string]*repository.Inspection{}}
}

func (f *fakeInspectionRepo) Create(ctx context.Context, insp *repository.Inspection) error {
	f.nextID++
	insp.ID = "insp-" + string(rune('0'+f.nextID))
	insp.SubmittedAt = time.Now().UTC()
	insp.Version = 1
	copied := *insp
	f.inspections[insp.ID] = &copied
	return nil
}

func (f *fakeInspectionRepo) GetByID(ctx context.Context, id string) (*repository.Inspection, error) {
	insp, ok := f.inspections[id]
	if !ok {
		return nil, apperrors.NotFound("inspection", id)
	}
	copied := *insp
	copied.Categories = append([]repository.InspectionCategory(nil), insp.Categories...)
	if f.staleReadVersion != 0 {
		copied.Version = f.staleReadVersion
	}
	return &copied, nil
}

func (f *fakeInspectionRepo) ListRecent(ctx context.Context, limit int) ([]*repository.Inspection, error) {
	out := make([]*repository.Inspection, 0, len(f.inspections))
	for _, insp := range f.inspections {
		out = append(out, insp)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeInspectionRepo) UpdateCategories(ctx context.Context, id string, categories []repository.InspectionCategory, expectedVersion int) error {
	f.updateCalls = append(f.updateCalls, updateCall{id: id, expectedVersion: expectedVersion})
	insp, ok := f.inspections[id]
	if !ok {
		return apperrors.NotFound("inspection", id)
	}
	if insp.Version != expectedVersion {
		return apperrors.New(apperrors.ErrCodeConflict, "inspection was modified concurrently")
	}
	insp.Categories = categories
	insp.Version++
	return nil
}

// fakeEventSink records published events.
type fakeEventSink struct {
	submitted []submittedEvent
	updated   []issueEvent
}

type submittedEvent struct {
	inspectionID string
	storeNumber  string
	issueCount   int
}

type issueEvent struct {
	inspectionID string
	categoryID   string
	itemID       string
	fixed        bool
}

func (f *fakeEventSink) PublishInspectionSubmitted(ctx context.Context, inspectionID, storeNumber string, issueCount int) {
	f.submitted = append(f.submitted, submittedEvent{inspectionID, storeNumber, issueCount})
}

func (f *fakeEventSink) PublishIssueUpdated(ctx context.Context, inspectionID, categoryID, itemID string, fixed bool) {
	f.updated = append(f.updated, issueEvent{inspectionID, categoryID, itemID, fixed})
}

func testPayload() *inspection.SubmissionPayload {
	return &inspection.SubmissionPayload{
		StoreNumber: "1234567",
		InspectedBy: "Jane",
		ClientDate:  time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
		Categories: []repository.InspectionCategory{
			{
				ID:    "food-prep",
				Title: "Food Prep",
				Items: []repository.InspectionItem{
					{ID: "item-a", Description: "Surfaces sanitized", Status: "yes"},
					{ID: "item-b", Description: "Utensils clean", Status: "no", Notes: "dirty"},
				},
			},
		},
	}
}

func TestSubmit(t *testing.T) {
	repo := newFakeInspectionRepo()
	events := &fakeEventSink{}
	svc := NewInspectionService(repo, events, nopLogger())

	id, err := svc.Submit(context.Background(), testPayload())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	stored, err := svc.GetInspection(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "1234567", stored.StoreNumber)
	assert.Equal(t, 1, stored.Version)

	require.Len(t, events.submitted, 1)
	assert.Equal(t, submittedEvent{inspectionID: id, storeNumber: "1234567", issueCount: 1}, events.submitted[0])
}

func TestSubmitWithoutEventSink(t *testing.T) {
	svc := NewInspectionService(newFakeInspectionRepo(), nil, nopLogger())

	id, err := svc.Submit(context.Background(), testPayload())
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestListRecentClampsLimit(t *testing.T) {
	repo := newFakeInspectionRepo()
	svc := NewInspectionService(repo, nil, nopLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Submit(ctx, testPayload())
		require.NoError(t, err)
	}

	got, err := svc.ListRecent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	got, err = svc.ListRecent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = svc.ListRecent(ctx, maxListLimit+50)
	require.NoError(t, err)
}

func TestListIssuesFlattens(t *testing.T) {
	repo := newFakeInspectionRepo()
	svc := NewInspectionService(repo, nil, nopLogger())
	ctx := context.Background()

	id, err := svc.Submit(ctx, testPayload())
	require.NoError(t, err)

	issues, err := svc.ListIssues(ctx, 0)
	require.NoError(t, err)
	require.Len(t, issues, 1)

	issue := issues[0]
	assert.Equal(t, id, issue.InspectionID)
	assert.Equal(t, "food-prep", issue.CategoryID)
	assert.Equal(t, "Food Prep", issue.CategoryTitle)
	assert.Equal(t, "item-b", issue.ItemID)
	assert.Equal(t, "dirty", issue.Notes)
	assert.False(t, issue.Fixed)
}

func TestUpdateIssueStatus(t *testing.T) {
	repo := newFakeInspectionRepo()
	events := &fakeEventSink{}
	svc := NewInspectionService(repo, events, nopLogger())
	ctx := context.Background()

	id, err := svc.Submit(ctx, testPayload())
	require.NoError(t, err)

	require.NoError(t, svc.UpdateIssueStatus(ctx, id, "food-prep", "item-b", true))

	// The rewrite carried the version it read.
	require.Len(t, repo.updateCalls, 1)
	assert.Equal(t, updateCall{id: id, expectedVersion: 1}, repo.updateCalls[0])

	stored, err := svc.GetInspection(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Version)
	assert.True(t, stored.Categories[0].Items[1].Fixed)
	// The sibling item is untouched.
	assert.Equal(t, "yes", stored.Categories[0].Items[0].Status)
	assert.False(t, stored.Categories[0].Items[0].Fixed)

	require.Len(t, events.updated, 1)
	assert.Equal(t, issueEvent{inspectionID: id, categoryID: "food-prep", itemID: "item-b", fixed: true}, events.updated[0])
}

func TestUpdateIssueStatusUnknownPair(t *testing.T) {
	repo := newFakeInspectionRepo()
	svc := NewInspectionService(repo, nil, nopLogger())
	ctx := context.Background()

	id, err := svc.Submit(ctx, testPayload())
	require.NoError(t, err)

	err = svc.UpdateIssueStatus(ctx, id, "food-prep", "missing", true)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Empty(t, repo.updateCalls)

	err = svc.UpdateIssueStatus(ctx, "no-such-inspection", "food-prep", "item-b", true)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestUpdateIssueStatusVersionConflict(t *testing.T) {
	repo := newFakeInspectionRepo()
	svc := NewInspectionService(repo, nil, nopLogger())
	ctx := context.Background()

	id, err := svc.Submit(ctx, testPayload())
	require.NoError(t, err)

	// Another writer bumps the version between our read and write.
	repo.inspections[id].Version = 2
	repo.staleReadVersion = 1

	err = svc.UpdateIssueStatus(ctx, id, "food-prep", "item-b", true)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeConflict, apperrors.Code(err))
}
