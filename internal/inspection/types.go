package inspection

import (
	"time"

	"github.com/storeops/be-inspections/internal/repository"
)

// ItemStatus is the answer state of a working checklist item.
// The zero value means unanswered.
type ItemStatus string

const (
	StatusUnanswered ItemStatus = ""
	StatusYes        ItemStatus = "yes"
	StatusNo         ItemStatus = "no"
	StatusNA         ItemStatus = "na"
)

// Valid reports whether s is one of the known statuses.
func (s ItemStatus) Valid() bool {
	switch s {
	case StatusUnanswered, StatusYes, StatusNo, StatusNA:
		return true
	}
	return false
}

// Answered reports whether s is a non-null answer.
func (s ItemStatus) Answered() bool {
	return s == StatusYes || s == StatusNo || s == StatusNA
}

// StoreInfo identifies the store and inspector for the current session.
type StoreInfo struct {
	StoreNumber string `json:"storeNumber"`
	InspectedBy string `json:"inspectedBy"`
}

// WorkingItem is a checklist item with its ephemeral answer state.
// Fixed and Notes are only meaningful when Status is "no".
type WorkingItem struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Status      ItemStatus `json:"status"`
	Fixed       bool       `json:"fixed"`
	Notes       string     `json:"notes"`
}

// WorkingCategory is a category of the working checklist.
type WorkingCategory struct {
	ID    string        `json:"id"`
	Title string        `json:"title"`
	Icon  string        `json:"icon"`
	Items []WorkingItem `json:"items"`
}

// ItemUpdate is a partial overlay applied to one working item. Nil fields
// are left untouched.
type ItemUpdate struct {
	Status *ItemStatus `json:"status,omitempty"`
	Fixed  *bool       `json:"fixed,omitempty"`
	Notes  *string     `json:"notes,omitempty"`
}

// CompletionStatus summarizes answer progress across all categories.
type CompletionStatus struct {
	TotalItems      int `json:"totalItems"`
	CompletedItems  int `json:"completedItems"`
	PercentComplete int `json:"percentComplete"`
}

// Issue is a working item answered "no", annotated with its category.
type Issue struct {
	CategoryID    string      `json:"categoryId"`
	CategoryTitle string      `json:"categoryTitle"`
	Item          WorkingItem `json:"item"`
}

// SubmissionPayload is the validated, normalized state handed to the
// submission pipeline. ClientDate is stamped when the payload is prepared.
type SubmissionPayload struct {
	StoreNumber string                          `json:"storeNumber"`
	InspectedBy string                          `json:"inspectedBy"`
	ClientDate  time.Time                       `json:"clientDate"`
	Categories  []repository.InspectionCategory `json:"categories"`
}
