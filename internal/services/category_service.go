package services

import (
	"errors"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "spendlens/internal/errors"
	"spendlens/internal/models"
	"spendlens/internal/query"
)

var categorySchema = query.Schema{
	Fields: map[string]query.Field{
		"id":         {Column: "categories.id"},
		"name":       {Column: "categories.name"},
		"color":      {Column: "categories.color"},
		"icon":       {Column: "categories.icon"},
		"budget":     {Column: "categories.budget", Kind: query.Number},
		"is_default": {Column: "categories.is_default", Kind: query.Bool},
		"created_at": {Column: "categories.created_at", Kind: query.Time},
		"updated_at": {Column: "categories.updated_at", Kind: query.Time},
	},
	Search:      []string{"name"},
	DefaultSort: "name",
	IDColumn:    "categories.id",
}

// categoryService handles category-related business logic.
type categoryService struct {
	db *gorm.DB
}

// NewCategoryService creates a new CategoryServicer.
func NewCategoryService(db *gorm.DB) CategoryServicer {
	return &categoryService{db: db}
}

// CreateCategory creates a new category
func (s *categoryService) CreateCategory(userID, name, color, icon string, budget decimal.Decimal) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name is required")
	}
	if budget.IsNegative() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "budget must not be negative")
	}

	if err := ensureUniqueCategoryName(s.db, userID, name, ""); err != nil {
		return nil, err
	}

	if color == "" {
		color = models.DefaultCategoryColor
	}
	if icon == "" {
		icon = models.DefaultCategoryIcon
	}

	category := &models.Category{
		UserID: userID,
		Name:   name,
		Color:  color,
		Icon:   icon,
		Budget: budget,
	}

	if err := s.db.Create(category).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return category, nil
}

func ensureUniqueCategoryName(db *gorm.DB, userID, name, exceptID string) error {
	q := db.Model(&models.Category{}).Where("user_id = ? AND name = ?", userID, name)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return apperrors.ErrDuplicateCategory
	}
	return nil
}

// ListCategories returns a page of the user's categories.
func (s *categoryService) ListCategories(userID string, values url.Values) (*query.Page[models.Category], error) {
	base := s.db.Model(&models.Category{}).Where("categories.user_id = ?", userID)
	return query.Find[models.Category](base, categorySchema, values)
}

// GetCategoryByID retrieves a category with its items for a specific user
func (s *categoryService) GetCategoryByID(userID, categoryID string) (*models.Category, error) {
	category, err := findOwnedCategory(s.db.Preload("Items"), userID, categoryID)
	if err != nil {
		return nil, err
	}
	return category, nil
}

// findOwnedCategory loads a category owned by userID. Foreign categories are
// reported as not found.
func findOwnedCategory(db *gorm.DB, userID, categoryID string) (*models.Category, error) {
	var category models.Category
	if err := db.Where("id = ? AND user_id = ?", categoryID, userID).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &category, nil
}

// GetCategoryItems lists the items filed under a category.
func (s *categoryService) GetCategoryItems(userID, categoryID string) ([]models.Item, error) {
	category, err := s.GetCategoryByID(userID, categoryID)
	if err != nil {
		return nil, err
	}
	if category.Items == nil {
		return []models.Item{}, nil
	}
	return category.Items, nil
}

// UpdateCategory updates an existing category
func (s *categoryService) UpdateCategory(userID, categoryID string, update CategoryUpdate) (*models.Category, error) {
	category, err := findOwnedCategory(s.db, userID, categoryID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name is required")
		}
		if name != category.Name {
			if err := ensureUniqueCategoryName(s.db, userID, name, category.ID); err != nil {
				return nil, err
			}
		}
		updates["name"] = name
	}
	if update.Color != nil {
		updates["color"] = *update.Color
	}
	if update.Icon != nil {
		updates["icon"] = *update.Icon
	}
	if update.Budget != nil {
		if update.Budget.IsNegative() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "budget must not be negative")
		}
		updates["budget"] = *update.Budget
	}

	if len(updates) > 0 {
		if err := s.db.Model(category).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	return s.GetCategoryByID(userID, categoryID)
}

// DeleteCategory removes a category. Transactions that referenced it become
// uncategorized, item links are dropped and its offers go with it.
func (s *categoryService) DeleteCategory(userID, categoryID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		category, err := findOwnedCategory(tx, userID, categoryID)
		if err != nil {
			return err
		}

		if err := tx.Unscoped().Model(&models.Transaction{}).
			Where("user_id = ? AND category_id = ?", userID, category.ID).
			UpdateColumn("category_id", nil).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		if err := tx.Model(category).Association("Items").Clear(); err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		if err := tx.Unscoped().Where("category_id = ?", category.ID).Delete(&models.Offer{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		if err := tx.Unscoped().Delete(category).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
}

// AddItems links the given items into the category. The call fails without
// changes if any item is missing or already linked.
func (s *categoryService) AddItems(userID, categoryID string, itemIDs []string) (*models.Category, error) {
	itemIDs = uniqueIDs(itemIDs)
	if len(itemIDs) == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "item_ids is required")
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		category, err := findOwnedCategory(tx.Preload("Items"), userID, categoryID)
		if err != nil {
			return err
		}

		items, err := findOwnedItems(tx, userID, itemIDs)
		if err != nil {
			return err
		}

		linked := make(map[string]bool, len(category.Items))
		for _, it := range category.Items {
			linked[it.ID] = true
		}
		for _, it := range items {
			if linked[it.ID] {
				return apperrors.WithMessage(apperrors.ErrItemAlreadyInCategory, "Item "+it.Name+" is already in this category")
			}
		}

		if err := tx.Model(category).Association("Items").Append(items); err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetCategoryByID(userID, categoryID)
}

// RemoveItems unlinks the given items. Items that are not linked are ignored.
func (s *categoryService) RemoveItems(userID, categoryID string, itemIDs []string) (*models.Category, error) {
	itemIDs = uniqueIDs(itemIDs)
	if len(itemIDs) == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "item_ids is required")
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		category, err := findOwnedCategory(tx, userID, categoryID)
		if err != nil {
			return err
		}

		items, err := findOwnedItems(tx, userID, itemIDs)
		if err != nil {
			return err
		}

		if err := tx.Model(category).Association("Items").Delete(items); err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetCategoryByID(userID, categoryID)
}

// findOwnedItems loads every listed item, failing if any is missing or foreign.
func findOwnedItems(db *gorm.DB, userID string, itemIDs []string) ([]models.Item, error) {
	var items []models.Item
	if err := db.Where("id IN ? AND user_id = ?", itemIDs, userID).Find(&items).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if len(items) != len(itemIDs) {
		return nil, apperrors.ErrItemNotFound
	}
	return items, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
