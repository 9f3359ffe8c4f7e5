package service

import (
	"context"
	"regexp"
	"strings"

	"github.com/storeops/be-inspections/internal/errors"
	"github.com/storeops/be-inspections/internal/inspection"
	"github.com/storeops/be-inspections/internal/logger"
	"github.com/storeops/be-inspections/internal/repository"
)

// TaxonomyRepo is the persistence surface the taxonomy service needs.
// Satisfied by *repository.TaxonomyRepository; tests substitute a fake.
type TaxonomyRepo interface {
	ListCategories(ctx context.Context) ([]*repository.Category, error)
	ListChecklist(ctx context.Context) ([]*repository.Category, error)
	GetCategory(ctx context.Context, id string) (*repository.Category, error)
	CountCategories(ctx context.Context) (int, error)
	CreateCategory(ctx context.Context, c *repository.Category) error
	UpdateCategory(ctx context.Context, c *repository.Category) error
	DeleteCategory(ctx context.Context, id string) error
	ListItems(ctx context.Context, categoryID string) ([]*repository.Item, error)
	GetItem(ctx context.Context, id string) (*repository.Item, error)
	CountItems(ctx context.Context, categoryID string) (int, error)
	CreateItem(ctx context.Context, item *repository.Item) error
	UpdateItem(ctx context.Context, item *repository.Item) error
	DeleteItem(ctx context.Context, id string) error
}

// TaxonomyService handles admin management of categories and items.
type TaxonomyService struct {
	repo TaxonomyRepo
	log  *logger.Logger
}

// NewTaxonomyService creates a new taxonomy service.
func NewTaxonomyService(repo TaxonomyRepo, log *logger.Logger) *TaxonomyService {
	return &TaxonomyService{repo: repo, log: log}
}

var slugCleanPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a category ID from its title: lowercase, non-alphanumeric
// runs collapsed to single dashes.
func Slugify(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	slug = slugCleanPattern.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// ListChecklist returns the full taxonomy in display order.
func (s *TaxonomyService) ListChecklist(ctx context.Context) ([]*repository.Category, error) {
	return s.repo.ListChecklist(ctx)
}

// LoadChecklist projects the taxonomy into blank working state for a new
// inspection session. Implements inspection.TaxonomySource.
func (s *TaxonomyService) LoadChecklist(ctx context.Context) ([]inspection.WorkingCategory, error) {
	categories, err := s.repo.ListChecklist(ctx)
	if err != nil {
		return nil, err
	}

	working := make([]inspection.WorkingCategory, 0, len(categories))
	for _, c := range categories {
		items := make([]inspection.WorkingItem, 0, len(c.Items))
		for _, item := range c.Items {
			items = append(items, inspection.WorkingItem{
				ID:          item.ID,
				Description: item.Description,
				Status:      inspection.StatusUnanswered,
				Fixed:       false,
				Notes:       "",
			})
		}
		working = append(working, inspection.WorkingCategory{
			ID:    c.ID,
			Title: c.Title,
			Icon:  c.Icon,
			Items: items,
		})
	}
	return working, nil
}

// CreateCategory creates a category. The ID is a slug of the title and the
// display order is the current category count; order values are never
// compacted after deletes.
func (s *TaxonomyService) CreateCategory(ctx context.Context, title, icon string) (*repository.Category, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.InvalidInput("title", "title is required")
	}

	slug := Slugify(title)
	if slug == "" {
		return nil, errors.InvalidInput("title", "title must contain at least one letter or digit")
	}

	count, err := s.repo.CountCategories(ctx)
	if err != nil {
		return nil, err
	}

	category := &repository.Category{
		ID:        slug,
		Title:     title,
		Icon:      NormalizeIcon(icon),
		SortOrder: count,
	}

	if err := s.repo.CreateCategory(ctx, category); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("category_id", category.ID).
		Str("title", category.Title).
		Int("order", category.SortOrder).
		Msg("Category created")

	return category, nil
}

// UpdateCategory updates a category's title and icon. The slug ID is stable
// across renames so historical inspections keep their references.
func (s *TaxonomyService) UpdateCategory(ctx context.Context, id, title, icon string) (*repository.Category, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.InvalidInput("title", "title is required")
	}

	category, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}

	category.Title = title
	category.Icon = NormalizeIcon(icon)

	if err := s.repo.UpdateCategory(ctx, category); err != nil {
		return nil, err
	}

	s.log.Info().Str("category_id", id).Msg("Category updated")
	return category, nil
}

// DeleteCategory removes a category and cascades to all of its items.
func (s *TaxonomyService) DeleteCategory(ctx context.Context, id string) error {
	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("category_id", id).Msg("Category deleted with items")
	return nil
}

// CreateItem appends an item to a category; order is the current sibling count.
func (s *TaxonomyService) CreateItem(ctx context.Context, categoryID, description string) (*repository.Item, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, errors.InvalidInput("description", "description is required")
	}

	if _, err := s.repo.GetCategory(ctx, categoryID); err != nil {
		return nil, err
	}

	count, err := s.repo.CountItems(ctx, categoryID)
	if err != nil {
		return nil, err
	}

	item := &repository.Item{
		CategoryID:  categoryID,
		Description: description,
		SortOrder:   count,
	}

	if err := s.repo.CreateItem(ctx, item); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("item_id", item.ID).
		Str("category_id", categoryID).
		Int("order", item.SortOrder).
		Msg("Item created")

	return item, nil
}

// UpdateItem updates an item's description.
func (s *TaxonomyService) UpdateItem(ctx context.Context, id, description string) (*repository.Item, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, errors.InvalidInput("description", "description is required")
	}

	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}

	item.Description = description
	if err := s.repo.UpdateItem(ctx, item); err != nil {
		return nil, err
	}

	s.log.Info().Str("item_id", id).Msg("Item updated")
	return item, nil
}

// DeleteItem removes a single item.
func (s *TaxonomyService) DeleteItem(ctx context.Context, id string) error {
	if err := s.repo.DeleteItem(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("item_id", id).Msg("Item deleted")
	return nil
}
