package services

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "spendlens/internal/errors"
	"spendlens/internal/models"
	"spendlens/internal/query"
)

var offerSchema = query.Schema{
	Fields: map[string]query.Field{
		"id":                  {Column: "offers.id"},
		"platform_name":       {Column: "offers.platform_name"},
		"category_id":         {Column: "offers.category_id"},
		"title":               {Column: "offers.title"},
		"discount_percentage": {Column: "offers.discount_percentage", Kind: query.Number},
		"valid_until":         {Column: "offers.valid_until", Kind: query.Time},
		"is_active":           {Column: "offers.is_active", Kind: query.Bool},
		"created_at":          {Column: "offers.created_at", Kind: query.Time},
	},
	Search:      []string{"title", "platform_name"},
	DefaultSort: "-created_at",
	IDColumn:    "offers.id",
}

// offerService handles partner offers.
type offerService struct {
	db        *gorm.DB
	analytics AnalyticsServicer
	now       func() time.Time
}

// NewOfferService creates a new OfferServicer. Personalization ranks
// categories through analytics.
func NewOfferService(db *gorm.DB, analytics AnalyticsServicer) OfferServicer {
	return &offerService{db: db, analytics: analytics, now: time.Now}
}

// PersonalizedOffers returns the live offers of the user's top spending category.
func (s *offerService) PersonalizedOffers(ctx context.Context, userID string) (*PersonalizedOffers, error) {
	top, err := s.analytics.TopSpendingCategory(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := &PersonalizedOffers{TopCategory: top, Offers: []models.Offer{}}
	if top == nil {
		return result, nil
	}

	err = s.db.WithContext(ctx).
		Where("category_id = ? AND is_active = ? AND valid_until > ?", top.CategoryID, true, s.now().UTC()).
		Order("discount_percentage DESC").
		Order("valid_until ASC").
		Find(&result.Offers).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

// ListOffers returns a page of all offers.
func (s *offerService) ListOffers(values url.Values) (*query.Page[models.Offer], error) {
	return query.Find[models.Offer](s.db.Model(&models.Offer{}), offerSchema, values)
}

// GetOfferByID retrieves an offer by ID.
func (s *offerService) GetOfferByID(offerID string) (*models.Offer, error) {
	return findOffer(s.db, offerID)
}

func findOffer(db *gorm.DB, offerID string) (*models.Offer, error) {
	var offer models.Offer
	if err := db.Where("id = ?", offerID).First(&offer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrOfferNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &offer, nil
}

// CreateOffer creates an offer for an existing category.
func (s *offerService) CreateOffer(in OfferInput) (*models.Offer, error) {
	switch {
	case in.PlatformName == nil || strings.TrimSpace(*in.PlatformName) == "":
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "platform_name is required")
	case in.Title == nil || strings.TrimSpace(*in.Title) == "":
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "title is required")
	case in.CategoryID == nil || *in.CategoryID == "":
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category_id is required")
	case in.DiscountPercentage == nil:
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "discount_percentage is required")
	case in.ValidUntil == nil:
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "valid_until is required")
	}
	if err := validateDiscount(*in.DiscountPercentage); err != nil {
		return nil, err
	}

	offer := &models.Offer{
		PlatformName:       strings.TrimSpace(*in.PlatformName),
		CategoryID:         *in.CategoryID,
		Title:              strings.TrimSpace(*in.Title),
		DiscountPercentage: *in.DiscountPercentage,
		ValidUntil:         in.ValidUntil.UTC(),
		IsActive:           true,
	}
	if in.ImageURL != nil {
		offer.ImageURL = *in.ImageURL
	}
	if in.RedirectURL != nil {
		offer.RedirectURL = *in.RedirectURL
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := ensureCategoryExists(tx, offer.CategoryID); err != nil {
			return err
		}
		if err := tx.Create(offer).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		// is_active has a column default, so false is written separately.
		if in.IsActive != nil && !*in.IsActive {
			if err := tx.Model(offer).Update("is_active", false).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetOfferByID(offer.ID)
}

// UpdateOffer applies the non-nil fields of in.
func (s *offerService) UpdateOffer(offerID string, in OfferInput) (*models.Offer, error) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		offer, err := findOffer(tx, offerID)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if in.PlatformName != nil {
			updates["platform_name"] = strings.TrimSpace(*in.PlatformName)
		}
		if in.Title != nil {
			updates["title"] = strings.TrimSpace(*in.Title)
		}
		if in.CategoryID != nil {
			if err := ensureCategoryExists(tx, *in.CategoryID); err != nil {
				return err
			}
			updates["category_id"] = *in.CategoryID
		}
		if in.DiscountPercentage != nil {
			if err := validateDiscount(*in.DiscountPercentage); err != nil {
				return err
			}
			updates["discount_percentage"] = *in.DiscountPercentage
		}
		if in.ImageURL != nil {
			updates["image_url"] = *in.ImageURL
		}
		if in.RedirectURL != nil {
			updates["redirect_url"] = *in.RedirectURL
		}
		if in.ValidUntil != nil {
			updates["valid_until"] = in.ValidUntil.UTC()
		}
		if in.IsActive != nil {
			updates["is_active"] = *in.IsActive
		}

		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(offer).Updates(updates).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetOfferByID(offerID)
}

// DeleteOffer removes an offer.
func (s *offerService) DeleteOffer(offerID string) error {
	offer, err := findOffer(s.db, offerID)
	if err != nil {
		return err
	}
	if err := s.db.Unscoped().Delete(offer).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

func validateDiscount(pct float64) error {
	if pct < 0 || pct > 100 {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "discount_percentage must be between 0 and 100")
	}
	return nil
}

func ensureCategoryExists(db *gorm.DB, categoryID string) error {
	var count int64
	if err := db.Model(&models.Category{}).Where("id = ?", categoryID).Count(&count).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count == 0 {
		return apperrors.ErrCategoryNotFound
	}
	return nil
}
