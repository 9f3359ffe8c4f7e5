package repository

import "time"

// ── Taxonomy types ───────────────────────────────────────────────────────────

// Category is a named grouping of checklist items. The ID is a slug derived
// from the title at creation time. SortOrder determines display sequence;
// values are unique per insert ordering but never compacted after deletes.
type Category struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Icon      string    `json:"icon"`
	SortOrder int       `json:"order"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Items     []*Item   `json:"items,omitempty"`
}

// Item is a single checklist question owned by a category.
type Item struct {
	ID          string    `json:"id"`
	CategoryID  string    `json:"categoryId"`
	Description string    `json:"description"`
	SortOrder   int       `json:"order"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ── Inspection snapshot types ────────────────────────────────────────────────
//
// An inspection stores a copy of the taxonomy as answered, not live
// references, so later taxonomy edits never alter historical records.
// The nested array is held in a single JSONB column.

// InspectionItem is one answered item within a submitted inspection.
type InspectionItem struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Status      string `json:"status"` // yes | no | na
	Fixed       bool   `json:"fixed"`
	Notes       string `json:"notes"`
}

// InspectionCategory is one category snapshot within a submitted inspection.
type InspectionCategory struct {
	ID    string           `json:"id"`
	Title string           `json:"title"`
	Items []InspectionItem `json:"items"`
}

// Inspection is a submitted, immutable-taxonomy inspection record.
// Version guards concurrent nested updates: every rewrite of Categories
// must carry the version it read, and the write fails on mismatch.
type Inspection struct {
	ID             string               `json:"id"`
	StoreNumber    string               `json:"storeNumber"`
	InspectedBy    string               `json:"inspectedBy"`
	ClientDate     time.Time            `json:"clientDate"`
	InspectionDate time.Time            `json:"inspectionDate"`
	SubmittedAt    time.Time            `json:"submittedAt"`
	LastUpdated    time.Time            `json:"lastUpdated"`
	Version        int                  `json:"version"`
	Categories     []InspectionCategory `json:"categories"`
}
