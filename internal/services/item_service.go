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

var itemSchema = query.Schema{
	Fields: map[string]query.Field{
		"id":          {Column: "items.id"},
		"name":        {Column: "items.name"},
		"price":       {Column: "items.price", Kind: query.Number},
		"description": {Column: "items.description"},
		"is_active":   {Column: "items.is_active", Kind: query.Bool},
		"created_at":  {Column: "items.created_at", Kind: query.Time},
		"updated_at":  {Column: "items.updated_at", Kind: query.Time},
	},
	Search:      []string{"name", "description"},
	DefaultSort: "-created_at",
	IDColumn:    "items.id",
}

// itemService handles item-related business logic.
type itemService struct {
	db *gorm.DB
}

// NewItemService creates a new ItemServicer.
func NewItemService(db *gorm.DB) ItemServicer {
	return &itemService{db: db}
}

// CreateItem creates an item, optionally filing it into one of the user's categories.
func (s *itemService) CreateItem(userID, name string, price decimal.Decimal, description string, categoryID *string) (*models.Item, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "item name is required")
	}
	if price.IsNegative() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "price must not be negative")
	}

	item := &models.Item{
		UserID:      userID,
		Name:        name,
		Price:       price,
		Description: description,
		IsActive:    true,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var category *models.Category
		if categoryID != nil && *categoryID != "" {
			var err error
			if category, err = findOwnedCategory(tx, userID, *categoryID); err != nil {
				return err
			}
		}

		if err := tx.Create(item).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		if category != nil {
			if err := tx.Model(category).Association("Items").Append(item); err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetItemByID(userID, item.ID)
}

// ListItems returns a page of the user's items.
func (s *itemService) ListItems(userID string, values url.Values) (*query.Page[models.Item], error) {
	base := s.db.Model(&models.Item{}).Where("items.user_id = ?", userID)
	return query.Find[models.Item](base, itemSchema, values)
}

// GetItemByID retrieves an item with its categories for a specific user
func (s *itemService) GetItemByID(userID, itemID string) (*models.Item, error) {
	return findOwnedItem(s.db.Preload("Categories"), userID, itemID)
}

func findOwnedItem(db *gorm.DB, userID, itemID string) (*models.Item, error) {
	var item models.Item
	if err := db.Where("id = ? AND user_id = ?", itemID, userID).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrItemNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &item, nil
}

// UpdateItem updates an existing item
func (s *itemService) UpdateItem(userID, itemID string, update ItemUpdate) (*models.Item, error) {
	item, err := findOwnedItem(s.db, userID, itemID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "item name is required")
		}
		updates["name"] = name
	}
	if update.Price != nil {
		if update.Price.IsNegative() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "price must not be negative")
		}
		updates["price"] = *update.Price
	}
	if update.Description != nil {
		updates["description"] = *update.Description
	}
	if update.IsActive != nil {
		updates["is_active"] = *update.IsActive
	}

	if len(updates) > 0 {
		if err := s.db.Model(item).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	return s.GetItemByID(userID, itemID)
}

// DeleteItem removes an item from every category and deletes it.
func (s *itemService) DeleteItem(userID, itemID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		item, err := findOwnedItem(tx, userID, itemID)
		if err != nil {
			return err
		}

		if err := tx.Model(item).Association("Categories").Clear(); err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		if err := tx.Delete(item).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
}
