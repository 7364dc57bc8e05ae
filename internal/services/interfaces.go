package services

import (
	"context"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"spendlens/internal/models"
	"spendlens/internal/query"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(email, password, firstName, lastName string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	AttemptLogin(email, password string) (*models.User, error)
	UpdateProfile(userID string, update ProfileUpdate) (*models.User, error)
	ChangePassword(userID, currentPassword, newPassword string) (*models.User, error)
	DeleteAccount(userID, password string) error
}

// ProfileUpdate holds the optional fields of a profile update.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
}

// CategoryUpdate holds the optional fields of a category update.
type CategoryUpdate struct {
	Name   *string
	Color  *string
	Icon   *string
	Budget *decimal.Decimal
}

// CategoryServicer defines the contract for category-related business logic.
type CategoryServicer interface {
	CreateCategory(userID, name, color, icon string, budget decimal.Decimal) (*models.Category, error)
	ListCategories(userID string, values url.Values) (*query.Page[models.Category], error)
	GetCategoryByID(userID, categoryID string) (*models.Category, error)
	GetCategoryItems(userID, categoryID string) ([]models.Item, error)
	UpdateCategory(userID, categoryID string, update CategoryUpdate) (*models.Category, error)
	DeleteCategory(userID, categoryID string) error
	AddItems(userID, categoryID string, itemIDs []string) (*models.Category, error)
	RemoveItems(userID, categoryID string, itemIDs []string) (*models.Category, error)
}

// ItemUpdate holds the optional fields of an item update.
type ItemUpdate struct {
	Name        *string
	Price       *decimal.Decimal
	Description *string
	IsActive    *bool
}

// ItemServicer defines the contract for item-related business logic.
type ItemServicer interface {
	CreateItem(userID, name string, price decimal.Decimal, description string, categoryID *string) (*models.Item, error)
	ListItems(userID string, values url.Values) (*query.Page[models.Item], error)
	GetItemByID(userID, itemID string) (*models.Item, error)
	UpdateItem(userID, itemID string, update ItemUpdate) (*models.Item, error)
	DeleteItem(userID, itemID string) error
}

// CreateTransactionInput describes a transaction captured by text, voice or OCR.
type CreateTransactionInput struct {
	Source     models.TransactionSource
	Kind       models.TransactionKind
	Amount     decimal.Decimal
	Text       string
	VoicePath  string
	OCRPath    string
	Notes      string
	CategoryID *string
	ItemIDs    []string
}

// TransactionUpdate holds the optional fields of a transaction update.
// ClearCategory detaches the category and wins over CategoryID.
type TransactionUpdate struct {
	Kind          *models.TransactionKind
	Amount        *decimal.Decimal
	Text          *string
	Notes         *string
	CategoryID    *string
	ClearCategory bool
}

// ExportFilter narrows the rows returned for export.
type ExportFilter struct {
	Start      *time.Time
	End        *time.Time
	CategoryID *string
}

// TransactionServicer defines the contract for transaction-related business logic.
type TransactionServicer interface {
	CreateTransaction(userID string, in CreateTransactionInput) (*models.Transaction, error)
	ListTransactions(userID string, values url.Values) (*query.Page[models.Transaction], error)
	ListTransactionsByCategory(userID, categoryID string, values url.Values) (*query.Page[models.Transaction], error)
	GetTransactionsByDateRange(userID string, start, end time.Time) ([]models.Transaction, error)
	GetTransactionByID(userID, transactionID string) (*models.Transaction, error)
	UpdateTransaction(userID, transactionID string, update TransactionUpdate) (*models.Transaction, error)
	DeleteTransaction(userID, transactionID string) error
	ExportTransactions(userID string, filter ExportFilter) ([]models.Transaction, error)
}

// AnalyticsServicer defines the contract for spending aggregates.
type AnalyticsServicer interface {
	DefaultWindow() Window
	Location() *time.Location
	HomeAnalytics(ctx context.Context, userID string, w Window, expenseOnly bool) (*HomeAnalytics, error)
	TopSpendingCategory(ctx context.Context, userID string) (*TopCategory, error)
	TopCategories(ctx context.Context, userID string, limit int) ([]TopCategory, error)
	Summary(ctx context.Context, userID string) (*Summary, error)
	ByCategory(ctx context.Context, userID string, w *Window) (*CategoryReport, error)
	ByDate(ctx context.Context, userID string, period Period, w *Window) (*DateReport, error)
	Trends(ctx context.Context, userID string) (*Trends, error)
}

// OfferInput holds the fields of an offer create or update. Nil pointers are
// left unchanged on update.
type OfferInput struct {
	PlatformName       *string
	CategoryID         *string
	Title              *string
	DiscountPercentage *float64
	ImageURL           *string
	RedirectURL        *string
	ValidUntil         *time.Time
	IsActive           *bool
}

// PersonalizedOffers pairs the caller's top category with its live offers.
type PersonalizedOffers struct {
	TopCategory *TopCategory   `json:"top_category"`
	Offers      []models.Offer `json:"offers"`
}

// OfferServicer defines the contract for partner offers.
type OfferServicer interface {
	PersonalizedOffers(ctx context.Context, userID string) (*PersonalizedOffers, error)
	ListOffers(values url.Values) (*query.Page[models.Offer], error)
	GetOfferByID(offerID string) (*models.Offer, error)
	CreateOffer(in OfferInput) (*models.Offer, error)
	UpdateOffer(offerID string, in OfferInput) (*models.Offer, error)
	DeleteOffer(offerID string) error
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}
