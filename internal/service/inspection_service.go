package service

import (
	"context"
	"time"

	"github.com/storeops/be-inspections/internal/errors"
	"github.com/storeops/be-inspections/internal/inspection"
	"github.com/storeops/be-inspections/internal/logger"
	"github.com/storeops/be-inspections/internal/repository"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// InspectionRepo is the persistence surface the inspection service needs.
// Satisfied by *repository.InspectionRepository; tests substitute a fake.
type InspectionRepo interface {
	Create(ctx context.Context, insp *repository.Inspection) error
	GetByID(ctx context.Context, id string) (*repository.Inspection, error)
	ListRecent(ctx context.Context, limit int) ([]*repository.Inspection, error)
	UpdateCategories(ctx context.Context, id string, categories []repository.InspectionCategory, expectedVersion int) error
}

// EventSink receives inspection lifecycle events. Satisfied by
// *client.EventPublisher; publishing is always best-effort.
type EventSink interface {
	PublishInspectionSubmitted(ctx context.Context, inspectionID, storeNumber string, issueCount int)
	PublishIssueUpdated(ctx context.Context, inspectionID, categoryID, itemID string, fixed bool)
}

// IssueRecord is an item answered "no" within a submitted inspection,
// flattened for the admin dashboard. Derived, never persisted.
type IssueRecord struct {
	InspectionID  string    `json:"inspectionId"`
	StoreNumber   string    `json:"storeNumber"`
	SubmittedAt   time.Time `json:"submittedAt"`
	CategoryID    string    `json:"categoryId"`
	CategoryTitle string    `json:"categoryTitle"`
	ItemID        string    `json:"itemId"`
	Description   string    `json:"description"`
	Notes         string    `json:"notes"`
	Fixed         bool      `json:"fixed"`
}

// InspectionService is the submission pipeline plus the admin-facing reads
// over submitted inspections.
type InspectionService struct {
	repo   InspectionRepo
	events EventSink
	log    *logger.Logger
}

// NewInspectionService creates a new inspection service. events may be nil.
func NewInspectionService(repo InspectionRepo, events EventSink, log *logger.Logger) *InspectionService {
	return &InspectionService{repo: repo, events: events, log: log}
}

// Submit durably records a validated payload with one write and returns the
// store-generated ID. There is no retry and no idempotency key: re-invoking
// after a failure of unknown outcome can create a duplicate record, which
// the caller accepts by retrying manually.
func (s *InspectionService) Submit(ctx context.Context, payload *inspection.SubmissionPayload) (string, error) {
	insp := &repository.Inspection{
		StoreNumber: payload.StoreNumber,
		InspectedBy: payload.InspectedBy,
		ClientDate:  payload.ClientDate,
		Categories:  payload.Categories,
	}

	if err := s.repo.Create(ctx, insp); err != nil {
		return "", err
	}

	issueCount := 0
	for ci := range insp.Categories {
		for ii := range insp.Categories[ci].Items {
			if insp.Categories[ci].Items[ii].Status == string(inspection.StatusNo) {
				issueCount++
			}
		}
	}

	if s.events != nil {
		s.events.PublishInspectionSubmitted(ctx, insp.ID, insp.StoreNumber, issueCount)
	}

	s.log.Info().
		Str("inspection_id", insp.ID).
		Str("store_number", insp.StoreNumber).
		Str("inspected_by", insp.InspectedBy).
		Int("categories", len(insp.Categories)).
		Int("issues", issueCount).
		Msg("Inspection submitted")

	return insp.ID, nil
}

// GetInspection retrieves a submitted inspection by ID.
func (s *InspectionService) GetInspection(ctx context.Context, id string) (*repository.Inspection, error) {
	return s.repo.GetByID(ctx, id)
}

// ListRecent returns the most recent inspections, newest first.
func (s *InspectionService) ListRecent(ctx context.Context, limit int) ([]*repository.Inspection, error) {
	if limit < 1 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.repo.ListRecent(ctx, limit)
}

// ListIssues flattens all "no" answers across the most recent inspections.
func (s *InspectionService) ListIssues(ctx context.Context, limit int) ([]*IssueRecord, error) {
	inspections, err := s.ListRecent(ctx, limit)
	if err != nil {
		return nil, err
	}

	issues := make([]*IssueRecord, 0)
	for _, insp := range inspections {
		for ci := range insp.Categories {
			cat := &insp.Categories[ci]
			for ii := range cat.Items {
				item := &cat.Items[ii]
				if item.Status != string(inspection.StatusNo) {
					continue
				}
				issues = append(issues, &IssueRecord{
					InspectionID:  insp.ID,
					StoreNumber:   insp.StoreNumber,
					SubmittedAt:   insp.SubmittedAt,
					CategoryID:    cat.ID,
					CategoryTitle: cat.Title,
					ItemID:        item.ID,
					Description:   item.Description,
					Notes:         item.Notes,
					Fixed:         item.Fixed,
				})
			}
		}
	}
	return issues, nil
}

// UpdateIssueStatus changes one item's fixed flag within a submitted
// inspection. The rewrite of the nested categories array is guarded by the
// record's version, so a concurrent update surfaces as a conflict instead
// of silently discarding the other writer's change.
func (s *InspectionService) UpdateIssueStatus(ctx context.Context, inspectionID, categoryID, itemID string, fixed bool) error {
	insp, err := s.repo.GetByID(ctx, inspectionID)
	if err != nil {
		return err
	}

	found := false
	for ci := range insp.Categories {
		if insp.Categories[ci].ID != categoryID {
			continue
		}
		for ii := range insp.Categories[ci].Items {
			if insp.Categories[ci].Items[ii].ID == itemID {
				insp.Categories[ci].Items[ii].Fixed = fixed
				found = true
				break
			}
		}
		break
	}
	if !found {
		return errors.NotFound("issue", categoryID+"/"+itemID)
	}

	if err := s.repo.UpdateCategories(ctx, inspectionID, insp.Categories, insp.Version); err != nil {
		return err
	}

	if s.events != nil {
		s.events.PublishIssueUpdated(ctx, inspectionID, categoryID, itemID, fixed)
	}

	s.log.Info().
		Str("inspection_id", inspectionID).
		Str("category_id", categoryID).
		Str("item_id", itemID).
		Bool("fixed", fixed).
		Msg("Issue status updated")

	return nil
}
