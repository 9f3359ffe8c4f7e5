package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/storeops/be-inspections/internal/database"
	"github.com/storeops/be-inspections/internal/errors"
)

// InspectionRepository handles submitted inspection records.
type InspectionRepository struct {
	db *database.DB
}

// NewInspectionRepository creates a new inspection repository.
func NewInspectionRepository(db *database.DB) *InspectionRepository {
	return &InspectionRepository{db: db}
}

// Create inserts a new inspection. The ID and the server-side timestamps
// (inspection_date, submitted_at, last_updated) are assigned by the
// database and written back into insp.
func (r *InspectionRepository) Create(ctx context.Context, insp *Inspection) error {
	categoriesJSON, err := json.Marshal(insp.Categories)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal inspection categories")
	}

	query := `
		INSERT INTO inspections (store_number, inspected_by, client_date, categories)
		VALUES ($1, $2, $3, $4)
		RETURNING id, inspection_date, submitted_at, last_updated, version
	`

	err = r.db.QueryRow(ctx, query,
		insp.StoreNumber,
		insp.InspectedBy,
		insp.ClientDate,
		categoriesJSON,
	).Scan(&insp.ID, &insp.InspectionDate, &insp.SubmittedAt, &insp.LastUpdated, &insp.Version)

	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create inspection")
	}
	return nil
}

// GetByID retrieves an inspection by ID.
func (r *InspectionRepository) GetByID(ctx context.Context, id string) (*Inspection, error) {
	query := `
		SELECT id, store_number, inspected_by, client_date,
		       inspection_date, submitted_at, last_updated, version, categories
		FROM inspections
		WHERE id = $1
	`

	insp, err := scanInspection(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("inspection", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get inspection")
	}
	return insp, nil
}

// ListRecent returns the most recently submitted inspections, newest first.
func (r *InspectionRepository) ListRecent(ctx context.Context, limit int) ([]*Inspection, error) {
	query := `
		SELECT id, store_number, inspected_by, client_date,
		       inspection_date, submitted_at, last_updated, version, categories
		FROM inspections
		ORDER BY submitted_at DESC
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list inspections")
	}
	defer rows.Close()

	inspections := make([]*Inspection, 0)
	for rows.Next() {
		insp, err := scanInspection(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan inspection")
		}
		inspections = append(inspections, insp)
	}
	return inspections, nil
}

// UpdateCategories rewrites the nested categories array of an inspection.
// The write only succeeds when the record still carries expectedVersion;
// a concurrent writer having bumped the version surfaces as a conflict,
// never as a silent overwrite.
func (r *InspectionRepository) UpdateCategories(ctx context.Context, id string, categories []InspectionCategory, expectedVersion int) error {
	categoriesJSON, err := json.Marshal(categories)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal inspection categories")
	}

	query := `
		UPDATE inspections
		SET categories = $2,
		    version = version + 1,
		    last_updated = NOW()
		WHERE id = $1 AND version = $3
	`

	tag, err := r.db.Exec(ctx, query, id, categoriesJSON, expectedVersion)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to update inspection")
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing record from a lost version race.
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM inspections WHERE id = $1)`, id).Scan(&exists); err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to check inspection existence")
		}
		if !exists {
			return errors.NotFound("inspection", id)
		}
		return errors.New(errors.ErrCodeConflict, "inspection was modified concurrently, retry the update")
	}
	return nil
}

type inspectionScanner interface {
	Scan(dest ...any) error
}

func scanInspection(row inspectionScanner) (*Inspection, error) {
	insp := &Inspection{}
	var categoriesJSON []byte

	err := row.Scan(
		&insp.ID,
		&insp.StoreNumber,
		&insp.InspectedBy,
		&insp.ClientDate,
		&insp.InspectionDate,
		&insp.SubmittedAt,
		&insp.LastUpdated,
		&insp.Version,
		&categoriesJSON,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(categoriesJSON, &insp.Categories); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to unmarshal inspection categories")
	}
	return insp, nil
}
