package inspection

import (
	"context"
	"math"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/storeops/be-inspections/internal/draft"
	"github.com/storeops/be-inspections/internal/errors"
	"github.com/storeops/be-inspections/internal/repository"
)

// State is the lifecycle phase of a Session.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateLoading       State = "loading"
	StateReady         State = "ready"
	StateSubmitting    State = "submitting"
	StateSubmitted     State = "submitted"
)

// TaxonomySource provides a fresh working checklist with blank answers.
type TaxonomySource interface {
	LoadChecklist(ctx context.Context) ([]WorkingCategory, error)
}

var storeNumberPattern = regexp.MustCompile(`^\d{7}$`)

// Session owns the working copy of the store info and the categorized
// checklist. It is the single source of truth for the in-progress
// inspection; every successful mutation re-persists the full state to the
// draft store. Methods are safe for concurrent use, but the session has no
// cross-process coordination: two writers to the same draft directory
// last-write-win at the key level.
type Session struct {
	mu        sync.Mutex
	state     State
	lastError string

	storeInfo  StoreInfo
	categories []WorkingCategory

	source TaxonomySource
	drafts draft.Store
	log    zerolog.Logger
}

// NewSession creates an uninitialized session.
func NewSession(source TaxonomySource, drafts draft.Store, log zerolog.Logger) *Session {
	return &Session{
		state:  StateUninitialized,
		source: source,
		drafts: drafts,
		log:    log.With().Str("component", "inspection_session").Logger(),
	}
}

// Initialize restores persisted working state when a valid draft exists,
// otherwise fetches the current taxonomy and seeds blank answers. A failed
// taxonomy fetch leaves the session uninitialized and is surfaced to the
// caller, never retried automatically.
func (s *Session) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateLoading

	var info StoreInfo
	if found, err := s.drafts.Get(draft.KeyStoreInfo, &info); err != nil {
		s.log.Warn().Err(err).Msg("Discarding unreadable store info draft")
	} else if found {
		s.storeInfo = info
	}

	var categories []WorkingCategory
	restored := false
	if found, err := s.drafts.Get(draft.KeyInspectionData, &categories); err != nil {
		s.log.Warn().Err(err).Msg("Discarding unreadable inspection draft")
	} else if found {
		s.categories = categories
		restored = true
	}

	if !restored {
		if err := s.loadFreshLocked(ctx); err != nil {
			s.state = StateUninitialized
			s.lastError = err.Error()
			return err
		}
	}

	s.state = StateReady
	s.lastError = ""
	s.log.Info().
		Bool("restored", restored).
		Int("categories", len(s.categories)).
		Msg("Inspection session initialized")
	return nil
}

// loadFreshLocked fetches the taxonomy and persists the blank working state.
// Caller holds s.mu.
func (s *Session) loadFreshLocked(ctx context.Context) error {
	categories, err := s.source.LoadChecklist(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to load checklist")
	}
	s.categories = categories
	return s.drafts.Put(draft.KeyInspectionData, s.categories)
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastError returns the most recent surfaced failure, or "".
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// StoreInfo returns the current store info.
func (s *Session) StoreInfo() StoreInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storeInfo
}

// SetStoreInfo replaces the store info and persists it.
func (s *Session) SetStoreInfo(info StoreInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storeInfo = info
	return s.drafts.Put(draft.KeyStoreInfo, s.storeInfo)
}

// Categories returns a deep copy of the working checklist.
func (s *Session) Categories() []WorkingCategory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyCategories(s.categories)
}

// Category returns a deep copy of one category.
func (s *Session) Category(id string) (WorkingCategory, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.categories {
		if s.categories[i].ID == id {
			copied := copyCategories(s.categories[i : i+1])
			return copied[0], true
		}
	}
	return WorkingCategory{}, false
}

// UpdateItem overlays update onto the matching item and re-persists the
// full working state. An unknown (categoryID, itemID) pair is a no-op and
// reports applied=false without error.
func (s *Session) UpdateItem(categoryID, itemID string, update ItemUpdate) (applied bool, err error) {
	if update.Status != nil && !update.Status.Valid() {
		return false, errors.InvalidInput("status", "must be one of yes, no, na or empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.findItemLocked(categoryID, itemID)
	if item == nil {
		return false, nil
	}

	if update.Status != nil {
		item.Status = *update.Status
	}
	if update.Fixed != nil {
		item.Fixed = *update.Fixed
	}
	if update.Notes != nil {
		item.Notes = *update.Notes
	}

	return true, s.drafts.Put(draft.KeyInspectionData, s.categories)
}

func (s *Session) findItemLocked(categoryID, itemID string) *WorkingItem {
	for ci := range s.categories {
		if s.categories[ci].ID != categoryID {
			continue
		}
		for ii := range s.categories[ci].Items {
			if s.categories[ci].Items[ii].ID == itemID {
				return &s.categories[ci].Items[ii]
			}
		}
	}
	return nil
}

// CompletionStatus sums answered items across all categories.
// PercentComplete is 0 when the checklist is empty.
func (s *Session) CompletionStatus() CompletionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total, completed int
	for ci := range s.categories {
		for ii := range s.categories[ci].Items {
			total++
			if s.categories[ci].Items[ii].Status.Answered() {
				completed++
			}
		}
	}

	percent := 0
	if total > 0 {
		percent = int(math.Round(100 * float64(completed) / float64(total)))
	}
	return CompletionStatus{TotalItems: total, CompletedItems: completed, PercentComplete: percent}
}

// IsCategoryComplete reports whether the category exists and every item in
// it has been answered.
func (s *Session) IsCategoryComplete(categoryID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ci := range s.categories {
		if s.categories[ci].ID != categoryID {
			continue
		}
		for ii := range s.categories[ci].Items {
			if !s.categories[ci].Items[ii].Status.Answered() {
				return false
			}
		}
		return true
	}
	return false
}

// Issues flattens all items answered "no" across all categories.
func (s *Session) Issues() []Issue {
	s.mu.Lock()
	defer s.mu.Unlock()

	issues := make([]Issue, 0)
	for ci := range s.categories {
		cat := &s.categories[ci]
		for ii := range cat.Items {
			if cat.Items[ii].Status == StatusNo {
				issues = append(issues, Issue{
					CategoryID:    cat.ID,
					CategoryTitle: cat.Title,
					Item:          cat.Items[ii],
				})
			}
		}
	}
	return issues
}

// Reset unconditionally discards all progress: both draft keys are cleared,
// the store info is blanked and the taxonomy is re-fetched with all-blank
// answers. Confirmation, if any, is the caller's responsibility.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.drafts.Delete(draft.KeyInspectionData); err != nil {
		return err
	}
	if err := s.drafts.Delete(draft.KeyStoreInfo); err != nil {
		return err
	}

	s.storeInfo = StoreInfo{}
	s.categories = nil

	if err := s.loadFreshLocked(ctx); err != nil {
		s.state = StateUninitialized
		s.lastError = err.Error()
		return err
	}

	s.state = StateReady
	s.lastError = ""
	s.log.Info().Msg("Inspection session reset")
	return nil
}

// PrepareSubmission validates the working state and produces a normalized
// payload: trimmed strings, ClientDate stamped. It does not write anywhere;
// the submission pipeline owns the durable write.
func (s *Session) PrepareSubmission() (*SubmissionPayload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	storeNumber := strings.TrimSpace(s.storeInfo.StoreNumber)
	inspectedBy := strings.TrimSpace(s.storeInfo.InspectedBy)

	if storeNumber == "" {
		return nil, errors.InvalidInput("storeNumber", "store number is required")
	}
	if !storeNumberPattern.MatchString(storeNumber) {
		return nil, errors.InvalidInput("storeNumber", "store number must be exactly 7 digits")
	}
	if inspectedBy == "" {
		return nil, errors.InvalidInput("inspectedBy", "inspector name is required")
	}

	categories := make([]repository.InspectionCategory, 0, len(s.categories))
	for ci := range s.categories {
		cat := &s.categories[ci]
		if cat.ID == "" || strings.TrimSpace(cat.Title) == "" {
			return nil, errors.InvalidInput("categories", "category '"+cat.ID+"' is missing id or title")
		}

		items := make([]repository.InspectionItem, 0, len(cat.Items))
		for ii := range cat.Items {
			item := &cat.Items[ii]
			if item.ID == "" || strings.TrimSpace(item.Description) == "" {
				return nil, errors.InvalidInput("items",
					"item '"+item.ID+"' in category '"+cat.ID+"' is missing id or description")
			}
			if !item.Status.Answered() {
				return nil, errors.InvalidInput("items",
					"item '"+item.ID+"' in category '"+cat.ID+"' is unanswered")
			}
			items = append(items, repository.InspectionItem{
				ID:          item.ID,
				Description: strings.TrimSpace(item.Description),
				Status:      string(item.Status),
				Fixed:       item.Fixed,
				Notes:       strings.TrimSpace(item.Notes),
			})
		}

		categories = append(categories, repository.InspectionCategory{
			ID:    cat.ID,
			Title: strings.TrimSpace(cat.Title),
			Items: items,
		})
	}

	return &SubmissionPayload{
		StoreNumber: storeNumber,
		InspectedBy: inspectedBy,
		ClientDate:  time.Now().UTC(),
		Categories:  categories,
	}, nil
}

// BeginSubmit transitions Ready → Submitting.
func (s *Session) BeginSubmit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return errors.New(errors.ErrCodeConflict, "cannot submit in state '"+string(s.state)+"'")
	}
	s.state = StateSubmitting
	return nil
}

// MarkSubmitted destroys the working state after a durable write: both
// draft keys are cleared and the session enters Submitted.
func (s *Session) MarkSubmitted() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.drafts.Delete(draft.KeyInspectionData); err != nil {
		return err
	}
	if err := s.drafts.Delete(draft.KeyStoreInfo); err != nil {
		return err
	}

	s.storeInfo = StoreInfo{}
	s.categories = nil
	s.state = StateSubmitted
	s.lastError = ""
	return nil
}

// MarkSubmitFailed returns to Ready with the failure recorded, leaving the
// working state intact so the user can re-submit manually.
func (s *Session) MarkSubmitFailed(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateReady
	if err != nil {
		s.lastError = err.Error()
	}
}

func copyCategories(src []WorkingCategory) []WorkingCategory {
	out := make([]WorkingCategory, len(src))
	for i := range src {
		out[i] = src[i]
		out[i].Items = make([]WorkingItem, len(src[i].Items))
		copy(out[i].Items, src[i].Items)
	}
	return out
}
