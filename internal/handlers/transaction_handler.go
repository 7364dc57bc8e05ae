package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "spendlens/internal/errors"
	"spendlens/internal/models"
	"spendlens/internal/services"
)

// RefreshTrigger schedules a background analytics push for a user.
type RefreshTrigger interface {
	Trigger(userID string)
}

// TransactionHandler handles transaction-related requests.
type TransactionHandler struct {
	transactionService services.TransactionServicer
	auditService       services.AuditServicer
	refresher          RefreshTrigger
	loc                *time.Location
}

// NewTransactionHandler creates a new TransactionHandler. Date-only query
// values are read in loc.
func NewTransactionHandler(transactionService services.TransactionServicer, auditService services.AuditServicer, refresher RefreshTrigger, loc *time.Location) *TransactionHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &TransactionHandler{
		transactionService: transactionService,
		auditService:       auditService,
		refresher:          refresher,
		loc:                loc,
	}
}

// TransactionFields are shared by every capture source.
type TransactionFields struct {
	Amount     *decimal.Decimal       `json:"amount" binding:"required"`
	Kind       models.TransactionKind `json:"kind" binding:"omitempty,transaction_kind"`
	CategoryID *string                `json:"category_id" binding:"omitempty,uuid"`
	ItemIDs    []string               `json:"item_ids" binding:"omitempty,dive,uuid"`
	Notes      string                 `json:"notes" binding:"max=500"`
}

// TextTransactionRequest records a typed transaction.
type TextTransactionRequest struct {
	TransactionFields
	Text string `json:"text" binding:"required,max=1000"`
}

// VoiceTransactionRequest records a transaction from a transcribed recording.
type VoiceTransactionRequest struct {
	TransactionFields
	VoicePath string `json:"voice_path" binding:"required,max=500"`
	Text      string `json:"text" binding:"max=1000"`
}

// OCRTransactionRequest records a transaction from a scanned receipt.
type OCRTransactionRequest struct {
	TransactionFields
	OCRPath string `json:"ocr_path" binding:"required,max=500"`
	Text    string `json:"text" binding:"max=1000"`
}

// UpdateTransactionRequest represents the request payload for updating a transaction
type UpdateTransactionRequest struct {
	Kind          *models.TransactionKind `json:"kind" binding:"omitempty,transaction_kind"`
	Amount        *decimal.Decimal        `json:"amount"`
	Text          *string                 `json:"text" binding:"omitempty,max=1000"`
	Notes         *string                 `json:"notes" binding:"omitempty,max=500"`
	CategoryID    *string                 `json:"category_id" binding:"omitempty,uuid"`
	ClearCategory bool                    `json:"clear_category"`
}

func (f TransactionFields) input(source models.TransactionSource) services.CreateTransactionInput {
	return services.CreateTransactionInput{
		Source:     source,
		Kind:       f.Kind,
		Amount:     *f.Amount,
		Notes:      f.Notes,
		CategoryID: f.CategoryID,
		ItemIDs:    f.ItemIDs,
	}
}

// CreateTextTransaction records a typed transaction
// @Summary     Create a text transaction
// @Description Records a transaction and pushes refreshed home analytics to the caller's WebSocket subscribers.
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body TextTransactionRequest true "Transaction details"
// @Success     201 {object} models.Transaction "Transaction created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Router      /transactions/text [post]
func (h *TransactionHandler) CreateTextTransaction(c *gin.Context) {
	var req TextTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	in := req.input(models.TransactionSourceText)
	in.Text = req.Text
	h.create(c, in)
}

// CreateVoiceTransaction records a transaction captured by voice
// @Summary     Create a voice transaction
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body VoiceTransactionRequest true "Transaction details"
// @Success     201 {object} models.Transaction "Transaction created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /transactions/voice [post]
func (h *TransactionHandler) CreateVoiceTransaction(c *gin.Context) {
	var req VoiceTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	in := req.input(models.TransactionSourceVoice)
	in.VoicePath = req.VoicePath
	in.Text = req.Text
	h.create(c, in)
}

// CreateOCRTransaction records a transaction captured from a receipt image
// @Summary     Create an OCR transaction
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body OCRTransactionRequest true "Transaction details"
// @Success     201 {object} models.Transaction "Transaction created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /transactions/ocr [post]
func (h *TransactionHandler) CreateOCRTransaction(c *gin.Context) {
	var req OCRTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	in := req.input(models.TransactionSourceOCR)
	in.OCRPath = req.OCRPath
	in.Text = req.Text
	h.create(c, in)
}

func (h *TransactionHandler) create(c *gin.Context, in services.CreateTransactionInput) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transaction, err := h.transactionService.CreateTransaction(userID, in)
	if err != nil {
		respondWithError(c, err)
		return
	}

	// The service has committed; the push runs in the background.
	h.refresher.Trigger(userID)

	h.auditService.Log(userID, services.AuditCreateTransaction, "transaction", transaction.ID, c.ClientIP(),
		map[string]interface{}{"source": in.Source, "kind": transaction.Kind, "amount": transaction.Amount, "category_id": transaction.CategoryID})

	c.JSON(http.StatusCreated, gin.H{"transaction": transaction})
}

// ListTransactions returns the user's transactions
// @Summary     List transactions
// @Description Paginated transactions. Supports page, limit, sort, fields, search (text, notes) and filters such as amount[gte]=10 or kind=income.
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       page   query int    false "Page number" default(1)
// @Param       limit  query int    false "Page size" default(10)
// @Param       sort   query string false "Sort fields, - for descending" default(-created_at)
// @Param       fields query string false "Comma separated fields to return"
// @Param       search query string false "Case-insensitive search"
// @Success     200 {object} map[string]interface{} "data and meta"
// @Failure     400 {object} ErrorResponse "Malformed query"
// @Router      /transactions [get]
func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	page, err := h.transactionService.ListTransactions(userID, c.Request.URL.Query())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// ListTransactionsByCategory returns the transactions of one category
// @Summary     List transactions by category
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       categoryId path string true "Category ID"
// @Success     200 {object} map[string]interface{} "data and meta"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Router      /transactions/category/{categoryId} [get]
func (h *TransactionHandler) ListTransactionsByCategory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	categoryID, err := parsePathID(c, "categoryId")
	if err != nil {
		respondWithError(c, err)
		return
	}

	page, err := h.transactionService.ListTransactionsByCategory(userID, categoryID, c.Request.URL.Query())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// GetTransactionsByDateRange returns transactions between two dates
// @Summary     Transactions by date range
// @Description Both bounds are required. Date-only values are whole days and end_date is inclusive.
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       start_date query string true "YYYY-MM-DD or RFC3339"
// @Param       end_date   query string true "YYYY-MM-DD or RFC3339"
// @Success     200 {array} models.Transaction
// @Failure     400 {object} ErrorResponse "Invalid dates"
// @Router      /transactions/date-range [get]
func (h *TransactionHandler) GetTransactionsByDateRange(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	start, end := c.Query("start_date"), c.Query("end_date")
	if start == "" || end == "" {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "start_date and end_date are required"))
		return
	}
	w, _, err := services.ParseWindow(start, end, h.loc, services.Window{})
	if err != nil {
		respondWithError(c, err)
		return
	}

	transactions, err := h.transactionService.GetTransactionsByDateRange(userID, w.Start, w.End)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": transactions, "count": len(transactions)})
}

// GetTransactionByID handles the retrieval of a specific transaction
// @Summary     Get transaction by ID
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Success     200 {object} models.Transaction
// @Failure     400 {object} ErrorResponse "Invalid transaction ID"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Router      /transactions/{id} [get]
func (h *TransactionHandler) GetTransactionByID(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	transaction, err := h.transactionService.GetTransactionByID(userID, transactionID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": transaction})
}

// UpdateTransaction handles updating a transaction
// @Summary     Update transaction
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                   true "Transaction ID"
// @Param       request body UpdateTransactionRequest true "Fields to change"
// @Success     200 {object} models.Transaction
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Router      /transactions/{id} [put]
func (h *TransactionHandler) UpdateTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	transaction, err := h.transactionService.UpdateTransaction(userID, transactionID, services.TransactionUpdate{
		Kind:          req.Kind,
		Amount:        req.Amount,
		Text:          req.Text,
		Notes:         req.Notes,
		CategoryID:    req.CategoryID,
		ClearCategory: req.ClearCategory,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	changes := map[string]interface{}{"kind": req.Kind, "amount": req.Amount, "category_id": req.CategoryID}
	if req.ClearCategory {
		changes["clear_category"] = true
	}
	if req.Text != nil || req.Notes != nil {
		changes["text_edited"] = true
	}
	h.auditService.Log(userID, services.AuditUpdateTransaction, "transaction", transactionID, c.ClientIP(), changes)

	c.JSON(http.StatusOK, gin.H{"transaction": transaction})
}

// DeleteTransaction handles deleting a transaction
// @Summary     Delete transaction
// @Description Soft-deletes the transaction; it no longer counts in analytics.
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Success     200 {object} MessageResponse "Transaction deleted"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Router      /transactions/{id} [delete]
func (h *TransactionHandler) DeleteTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.transactionService.DeleteTransaction(userID, transactionID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditDeleteTransaction, "transaction", transactionID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Transaction deleted successfully"})
}
