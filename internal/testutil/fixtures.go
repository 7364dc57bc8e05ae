package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"spendlens/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:    email,
		Password: string(hash),
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestCategory creates a category with a unique name.
func CreateTestCategory(t *testing.T, db *gorm.DB, userID string) *models.Category {
	t.Helper()
	return CreateTestCategoryNamed(t, db, userID, fmt.Sprintf("Test Category %d", nextID()))
}

// CreateTestCategoryNamed creates a category with the given name.
func CreateTestCategoryNamed(t *testing.T, db *gorm.DB, userID, name string) *models.Category {
	t.Helper()

	category := &models.Category{
		UserID: userID,
		Name:   name,
		Color:  models.DefaultCategoryColor,
		Icon:   models.DefaultCategoryIcon,
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// CreateTestItem creates an item with the given price.
func CreateTestItem(t *testing.T, db *gorm.DB, userID string, price string) *models.Item {
	t.Helper()

	item := &models.Item{
		UserID:   userID,
		Name:     fmt.Sprintf("Test Item %d", nextID()),
		Price:    decimal.RequireFromString(price),
		IsActive: true,
	}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("failed to create test item: %v", err)
	}
	return item
}

// LinkItem adds item to category's item set.
func LinkItem(t *testing.T, db *gorm.DB, category *models.Category, item *models.Item) {
	t.Helper()

	if err := db.Model(category).Association("Items").Append(item); err != nil {
		t.Fatalf("failed to link item to category: %v", err)
	}
}

// CreateTestTransaction creates an expense of the given amount, stamped now.
func CreateTestTransaction(t *testing.T, db *gorm.DB, userID string, categoryID *string, amount string) *models.Transaction {
	t.Helper()
	return CreateTestTransactionAt(t, db, userID, categoryID, models.TransactionKindExpense, amount, time.Now().UTC())
}

// CreateTestTransactionAt creates a transaction with an explicit kind and creation time.
func CreateTestTransactionAt(t *testing.T, db *gorm.DB, userID string, categoryID *string, kind models.TransactionKind, amount string, createdAt time.Time) *models.Transaction {
	t.Helper()

	tx := &models.Transaction{
		Base:       models.Base{CreatedAt: createdAt.UTC(), UpdatedAt: createdAt.UTC()},
		UserID:     userID,
		CategoryID: categoryID,
		Kind:       kind,
		Amount:     decimal.RequireFromString(amount),
		Source:     models.TransactionSourceText,
		Text:       fmt.Sprintf("test transaction %d", nextID()),
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return tx
}

// CreateTestOffer creates an active offer for a category valid for a week.
func CreateTestOffer(t *testing.T, db *gorm.DB, categoryID string) *models.Offer {
	t.Helper()

	offer := &models.Offer{
		PlatformName:       "Test Platform",
		CategoryID:         categoryID,
		Title:              fmt.Sprintf("Offer %d", nextID()),
		DiscountPercentage: 15,
		ValidUntil:         time.Now().UTC().Add(7 * 24 * time.Hour),
		IsActive:           true,
	}
	if err := db.Create(offer).Error; err != nil {
		t.Fatalf("failed to create test offer: %v", err)
	}
	return offer
}

// StrPtr returns a pointer to s.
func StrPtr(s string) *string {
	return &s
}
