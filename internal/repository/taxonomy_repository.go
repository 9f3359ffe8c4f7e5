package repository

import (
	"context"
	stderrors "errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/storeops/be-inspections/internal/database"
	"github.com/storeops/be-inspections/internal/errors"
)

// pgUniqueViolation is the Postgres error code for duplicate keys.
const pgUniqueViolation = "23505"

// TaxonomyRepository handles category and item data operations.
type TaxonomyRepository struct {
	db *database.DB
}

// NewTaxonomyRepository creates a new taxonomy repository.
func NewTaxonomyRepository(db *database.DB) *TaxonomyRepository {
	return &TaxonomyRepository{db: db}
}

// ── Categories ───────────────────────────────────────────────────────────────

// ListCategories returns all categories ordered by sort_order, without items.
func (r *TaxonomyRepository) ListCategories(ctx context.Context) ([]*Category, error) {
	query := `
		SELECT id, title, icon, sort_order, created_at, updated_at
		FROM categories
		ORDER BY sort_order ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list categories")
	}
	defer rows.Close()

	categories := make([]*Category, 0)
	for rows.Next() {
		c := &Category{}
		if err := rows.Scan(&c.ID, &c.Title, &c.Icon, &c.SortOrder, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan category")
		}
		categories = append(categories, c)
	}
	return categories, nil
}

// ListChecklist returns all categories with their items, both in sort order.
func (r *TaxonomyRepository) ListChecklist(ctx context.Context) ([]*Category, error) {
	categories, err := r.ListCategories(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, category_id, description, sort_order, created_at, updated_at
		FROM items
		ORDER BY category_id ASC, sort_order ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list items")
	}
	defer rows.Close()

	byCategory := make(map[string][]*Item)
	for rows.Next() {
		item := &Item{}
		if err := rows.Scan(&item.ID, &item.CategoryID, &item.Description, &item.SortOrder, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan item")
		}
		byCategory[item.CategoryID] = append(byCategory[item.CategoryID], item)
	}

	for _, c := range categories {
		items := byCategory[c.ID]
		if items == nil {
			items = make([]*Item, 0)
		}
		c.Items = items
	}
	return categories, nil
}

// GetCategory retrieves a category by ID, without items.
func (r *TaxonomyRepository) GetCategory(ctx context.Context, id string) (*Category, error) {
	query := `
		SELECT id, title, icon, sort_order, created_at, updated_at
		FROM categories
		WHERE id = $1
	`

	c := &Category{}
	err := r.db.QueryRow(ctx, query, id).Scan(&c.ID, &c.Title, &c.Icon, &c.SortOrder, &c.CreatedAt, &c.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("category", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get category")
	}
	return c, nil
}

// CountCategories returns the number of categories. New categories take
// this count as their sort_order.
func (r *TaxonomyRepository) CountCategories(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM categories`).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to count categories")
	}
	return count, nil
}

// CreateCategory inserts a new category.
func (r *TaxonomyRepository) CreateCategory(ctx context.Context, c *Category) error {
	query := `
		INSERT INTO categories (id, title, icon, sort_order)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query, c.ID, c.Title, c.Icon, c.SortOrder).
		Scan(&c.CreatedAt, &c.UpdatedAt)

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return errors.New(errors.ErrCodeConflict, "category '"+c.ID+"' already exists")
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create category")
	}
	return nil
}

// UpdateCategory persists title and icon changes to an existing category.
func (r *TaxonomyRepository) UpdateCategory(ctx context.Context, c *Category) error {
	query := `
		UPDATE categories
		SET title = $2,
		    icon = $3,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRow(ctx, query, c.ID, c.Title, c.Icon).Scan(&c.UpdatedAt)
	if err == pgx.ErrNoRows {
		return errors.NotFound("category", c.ID)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to update category")
	}
	return nil
}

// DeleteCategory removes a category and all of its items in one transaction.
func (r *TaxonomyRepository) DeleteCategory(ctx context.Context, id string) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM items WHERE category_id = $1`, id); err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to delete category items")
		}

		tag, err := tx.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to delete category")
		}
		if tag.RowsAffected() == 0 {
			return errors.NotFound("category", id)
		}
		return nil
	})
}

// ── Items ────────────────────────────────────────────────────────────────────

// ListItems returns the items of one category in sort order.
func (r *TaxonomyRepository) ListItems(ctx context.Context, categoryID string) ([]*Item, error) {
	query := `
		SELECT id, category_id, description, sort_order, created_at, updated_at
		FROM items
		WHERE category_id = $1
		ORDER BY sort_order ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, categoryID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list items")
	}
	defer rows.Close()

	items := make([]*Item, 0)
	for rows.Next() {
		item := &Item{}
		if err := rows.Scan(&item.ID, &item.CategoryID, &item.Description, &item.SortOrder, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan item")
		}
		items = append(items, item)
	}
	return items, nil
}

// GetItem retrieves an item by ID.
func (r *TaxonomyRepository) GetItem(ctx context.Context, id string) (*Item, error) {
	query := `
		SELECT id, category_id, description, sort_order, created_at, updated_at
		FROM items
		WHERE id = $1
	`

	item := &Item{}
	err := r.db.QueryRow(ctx, query, id).
		Scan(&item.ID, &item.CategoryID, &item.Description, &item.SortOrder, &item.CreatedAt, &item.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("item", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get item")
	}
	return item, nil
}

// CountItems returns the number of items in a category.
func (r *TaxonomyRepository) CountItems(ctx context.Context, categoryID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM items WHERE category_id = $1`, categoryID).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to count items")
	}
	return count, nil
}

// CreateItem inserts a new item. The ID is generated by the database.
func (r *TaxonomyRepository) CreateItem(ctx context.Context, item *Item) error {
	query := `
		INSERT INTO items (category_id, description, sort_order)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query, item.CategoryID, item.Description, item.SortOrder).
		Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create item")
	}
	return nil
}

// UpdateItem persists description changes to an existing item.
func (r *TaxonomyRepository) UpdateItem(ctx context.Context, item *Item) error {
	query := `
		UPDATE items
		SET description = $2,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRow(ctx, query, item.ID, item.Description).Scan(&item.UpdatedAt)
	if err == pgx.ErrNoRows {
		return errors.NotFound("item", item.ID)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to update item")
	}
	return nil
}

// DeleteItem removes a single item.
func (r *TaxonomyRepository) DeleteItem(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to delete item")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("item", id)
	}
	return nil
}
