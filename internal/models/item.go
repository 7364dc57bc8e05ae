package models

import "github.com/shopspring/decimal"

// Item is a named, priced product a user can file into categories.
type Item struct {
	Base
	UserID      string          `gorm:"type:uuid;not null;index" json:"user_id"`
	Name        string          `gorm:"not null;index" json:"name"`
	Price       decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"price"`
	Description string          `json:"description"`
	IsActive    bool            `gorm:"default:true" json:"is_active"`

	Categories []Category `gorm:"many2many:category_items;" json:"categories,omitempty"`
}
