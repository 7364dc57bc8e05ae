package models

import "time"

// Offer is a partner discount attached to a spending category.
type Offer struct {
	Base
	PlatformName       string    `gorm:"not null" json:"platform_name"`
	CategoryID         string    `gorm:"type:uuid;not null;index" json:"category_id"`
	Title              string    `gorm:"not null" json:"title"`
	DiscountPercentage float64   `gorm:"not null" json:"discount_percentage"`
	ImageURL           string    `json:"image_url,omitempty"`
	RedirectURL        string    `json:"redirect_url,omitempty"`
	ValidUntil         time.Time `gorm:"not null;index" json:"valid_until"`
	IsActive           bool      `gorm:"default:true;index" json:"is_active"`

	Category *Category `gorm:"foreignKey:CategoryID;constraint:OnDelete:CASCADE" json:"category,omitempty"`
}
