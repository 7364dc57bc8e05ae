package models

import "github.com/shopspring/decimal"

// TransactionKind tells spending apart from earnings.
type TransactionKind string

const (
	TransactionKindExpense TransactionKind = "expense"
	TransactionKindIncome  TransactionKind = "income"
)

// Valid reports whether k is one of the known kinds.
func (k TransactionKind) Valid() bool {
	return k == TransactionKindExpense || k == TransactionKindIncome
}

// TransactionSource records how a transaction was captured.
type TransactionSource string

const (
	TransactionSourceText  TransactionSource = "text"
	TransactionSourceVoice TransactionSource = "voice"
	TransactionSourceOCR   TransactionSource = "ocr"
)

// Transaction is a single recorded amount. The embedded DeletedAt is the
// soft-delete flag; soft-deleted rows never reach analytics.
type Transaction struct {
	Base
	UserID     string            `gorm:"type:uuid;not null;index" json:"user_id"`
	CategoryID *string           `gorm:"type:uuid;index" json:"category_id,omitempty"`
	Kind       TransactionKind   `gorm:"not null;default:'expense'" json:"kind"`
	Amount     decimal.Decimal   `gorm:"type:decimal(20,4);not null;default:0" json:"amount"`
	Source     TransactionSource `gorm:"not null;default:'text'" json:"source"`
	Text       string            `json:"text,omitempty"`
	VoicePath  string            `json:"voice_path,omitempty"`
	OCRPath    string            `gorm:"column:ocr_path" json:"ocr_path,omitempty"`
	Notes      string            `json:"notes,omitempty"`

	// Relationships
	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}
