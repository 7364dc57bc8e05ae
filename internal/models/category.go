package models

import "github.com/shopspring/decimal"

// Default presentation values for categories.
const (
	DefaultCategoryColor = "#ffffff"
	DefaultCategoryIcon  = "category"
)

// Category groups a user's items and transactions. Names are unique per user.
type Category struct {
	Base
	UserID    string          `gorm:"type:uuid;not null;uniqueIndex:idx_categories_user_name" json:"user_id"`
	Name      string          `gorm:"not null;uniqueIndex:idx_categories_user_name" json:"name"`
	Color     string          `gorm:"not null;default:'#ffffff'" json:"color"`
	Icon      string          `gorm:"not null;default:'category'" json:"icon"`
	Budget    decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"budget"`
	IsDefault bool            `gorm:"default:false" json:"is_default"`

	// Relationships
	Items []Item `gorm:"many2many:category_items;" json:"items,omitempty"`
}
