package services

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "spendlens/internal/errors"
	"spendlens/internal/models"
	"spendlens/internal/query"
)

var transactionSchema = query.Schema{
	Fields: map[string]query.Field{
		"id":          {Column: "transactions.id"},
		"amount":      {Column: "transactions.amount", Kind: query.Number},
		"kind":        {Column: "transactions.kind"},
		"source":      {Column: "transactions.source"},
		"text":        {Column: "transactions.text"},
		"notes":       {Column: "transactions.notes"},
		"voice_path":  {Column: "transactions.voice_path"},
		"ocr_path":    {Column: "transactions.ocr_path"},
		"category_id": {Column: "transactions.category_id"},
		"created_at":  {Column: "transactions.created_at", Kind: query.Time},
		"updated_at":  {Column: "transactions.updated_at", Kind: query.Time},
	},
	Search:      []string{"text", "notes"},
	DefaultSort: "-created_at",
	IDColumn:    "transactions.id",
	Preloads:    []string{"Category"},
}

// transactionService handles transaction-related business logic.
type transactionService struct {
	db *gorm.DB
}

// NewTransactionService creates a new TransactionServicer.
func NewTransactionService(db *gorm.DB) TransactionServicer {
	return &transactionService{db: db}
}

// CreateTransaction records a transaction. The category is the explicit
// category_id when given, otherwise the user's category that contains the
// first listed item, otherwise none.
func (s *transactionService) CreateTransaction(userID string, in CreateTransactionInput) (*models.Transaction, error) {
	if in.Kind == "" {
		in.Kind = models.TransactionKindExpense
	}
	if !in.Kind.Valid() {
		return nil, apperrors.ErrInvalidKind
	}
	if err := validateSource(in); err != nil {
		return nil, err
	}

	transaction := &models.Transaction{
		UserID:    userID,
		Kind:      in.Kind,
		Amount:    in.Amount,
		Source:    in.Source,
		Text:      strings.TrimSpace(in.Text),
		VoicePath: in.VoicePath,
		OCRPath:   in.OCRPath,
		Notes:     in.Notes,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		categoryID, err := resolveCategory(tx, userID, in.CategoryID, in.ItemIDs)
		if err != nil {
			return err
		}
		transaction.CategoryID = categoryID

		if err := tx.Create(transaction).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetTransactionByID(userID, transaction.ID)
}

func validateSource(in CreateTransactionInput) error {
	switch in.Source {
	case models.TransactionSourceText:
		if strings.TrimSpace(in.Text) == "" {
			return apperrors.WithMessage(apperrors.ErrInvalidInput, "text is required")
		}
	case models.TransactionSourceVoice:
		if in.VoicePath == "" {
			return apperrors.WithMessage(apperrors.ErrInvalidInput, "voice_path is required")
		}
	case models.TransactionSourceOCR:
		if in.OCRPath == "" {
			return apperrors.WithMessage(apperrors.ErrInvalidInput, "ocr_path is required")
		}
	default:
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "unknown transaction source")
	}
	return nil
}

func resolveCategory(tx *gorm.DB, userID string, categoryID *string, itemIDs []string) (*string, error) {
	if categoryID != nil && *categoryID != "" {
		category, err := findOwnedCategory(tx, userID, *categoryID)
		if err != nil {
			return nil, err
		}
		return &category.ID, nil
	}

	itemIDs = uniqueIDs(itemIDs)
	if len(itemIDs) == 0 {
		return nil, nil
	}

	item, err := findOwnedItem(tx, userID, itemIDs[0])
	if err != nil {
		return nil, err
	}

	var category models.Category
	err = tx.Joins("JOIN category_items ON category_items.category_id = categories.id").
		Where("category_items.item_id = ? AND categories.user_id = ?", item.ID, userID).
		Order("categories.created_at").
		First(&category).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.WithMessage(apperrors.ErrCategoryNotFound, "No category contains item "+item.Name)
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &category.ID, nil
}

func (s *transactionService) owned(userID string) *gorm.DB {
	return s.db.Model(&models.Transaction{}).Where("transactions.user_id = ?", userID)
}

// ListTransactions returns a page of the user's transactions.
func (s *transactionService) ListTransactions(userID string, values url.Values) (*query.Page[models.Transaction], error) {
	return query.Find[models.Transaction](s.owned(userID), transactionSchema, values)
}

// ListTransactionsByCategory returns a page of the transactions filed under one of the user's categories.
func (s *transactionService) ListTransactionsByCategory(userID, categoryID string, values url.Values) (*query.Page[models.Transaction], error) {
	if _, err := findOwnedCategory(s.db, userID, categoryID); err != nil {
		return nil, err
	}
	base := s.owned(userID).Where("transactions.category_id = ?", categoryID)
	return query.Find[models.Transaction](base, transactionSchema, values)
}

// GetTransactionsByDateRange returns transactions created in [start, end), newest first.
func (s *transactionService) GetTransactionsByDateRange(userID string, start, end time.Time) ([]models.Transaction, error) {
	if !end.After(start) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "end_date must be after start_date")
	}

	transactions := []models.Transaction{}
	err := s.owned(userID).
		Preload("Category").
		Where("transactions.created_at >= ? AND transactions.created_at < ?", start.UTC(), end.UTC()).
		Order("transactions.created_at DESC").
		Find(&transactions).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return transactions, nil
}

// GetTransactionByID retrieves a transaction by ID for a specific user
func (s *transactionService) GetTransactionByID(userID, transactionID string) (*models.Transaction, error) {
	return findOwnedTransaction(s.db.Preload("Category"), userID, transactionID)
}

func findOwnedTransaction(db *gorm.DB, userID, transactionID string) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := db.Where("id = ? AND user_id = ?", transactionID, userID).First(&transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &transaction, nil
}

// UpdateTransaction updates an existing transaction
func (s *transactionService) UpdateTransaction(userID, transactionID string, update TransactionUpdate) (*models.Transaction, error) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		transaction, err := findOwnedTransaction(tx, userID, transactionID)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if update.Kind != nil {
			if !update.Kind.Valid() {
				return apperrors.ErrInvalidKind
			}
			updates["kind"] = *update.Kind
		}
		if update.Amount != nil {
			updates["amount"] = *update.Amount
		}
		if update.Text != nil {
			updates["text"] = strings.TrimSpace(*update.Text)
		}
		if update.Notes != nil {
			updates["notes"] = *update.Notes
		}
		switch {
		case update.ClearCategory:
			updates["category_id"] = nil
		case update.CategoryID != nil:
			category, err := findOwnedCategory(tx, userID, *update.CategoryID)
			if err != nil {
				return err
			}
			updates["category_id"] = category.ID
		}

		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(transaction).Updates(updates).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetTransactionByID(userID, transactionID)
}

// DeleteTransaction soft-deletes a transaction.
func (s *transactionService) DeleteTransaction(userID, transactionID string) error {
	transaction, err := findOwnedTransaction(s.db, userID, transactionID)
	if err != nil {
		return err
	}
	if err := s.db.Delete(transaction).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// ExportTransactions returns the rows to export, newest first.
func (s *transactionService) ExportTransactions(userID string, filter ExportFilter) ([]models.Transaction, error) {
	q := s.owned(userID).Preload("Category")
	if filter.Start != nil {
		q = q.Where("transactions.created_at >= ?", filter.Start.UTC())
	}
	if filter.End != nil {
		q = q.Where("transactions.created_at < ?", filter.End.UTC())
	}
	if filter.CategoryID != nil && *filter.CategoryID != "" {
		q = q.Where("transactions.category_id = ?", *filter.CategoryID)
	}

	var transactions []models.Transaction
	if err := q.Order("transactions.created_at DESC").Order("transactions.id DESC").Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if len(transactions) == 0 {
		return nil, apperrors.ErrNothingToExport
	}
	return transactions, nil
}
