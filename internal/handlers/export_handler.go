package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "spendlens/internal/errors"
	"spendlens/internal/logger"
	"spendlens/internal/models"
	"spendlens/internal/services"
)

var csvHeader = []string{"Date", "Category", "Description", "Amount", "Kind", "Source"}

// ExportHandler streams a user's transactions as CSV or JSON downloads.
type ExportHandler struct {
	transactionService services.TransactionServicer
	loc                *time.Location
	now                func() time.Time
}

// NewExportHandler creates a new ExportHandler.
func NewExportHandler(transactionService services.TransactionServicer, loc *time.Location) *ExportHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &ExportHandler{transactionService: transactionService, loc: loc, now: time.Now}
}

// ExportRow is one transaction in a JSON export.
type ExportRow struct {
	ID          string                   `json:"id"`
	Date        time.Time                `json:"date"`
	Category    *string                  `json:"category"`
	Description string                   `json:"description"`
	Amount      decimal.Decimal          `json:"amount"`
	Kind        models.TransactionKind   `json:"kind"`
	Source      models.TransactionSource `json:"source"`
}

// ExportDocument is the JSON export body.
type ExportDocument struct {
	ExportDate        time.Time        `json:"export_date"`
	TotalTransactions int              `json:"total_transactions"`
	TotalAmount       decimal.Decimal  `json:"total_amount"`
	DateRange         *services.Window `json:"date_range"`
	Transactions      []ExportRow      `json:"transactions"`
}

func (h *ExportHandler) parseFilter(c *gin.Context) (services.ExportFilter, *services.Window, error) {
	var filter services.ExportFilter

	start, end := c.Query("start_date"), c.Query("end_date")
	open := services.Window{Start: time.Unix(0, 0).UTC(), End: h.now().AddDate(100, 0, 0)}
	w, ok, err := services.ParseWindow(start, end, h.loc, open)
	if err != nil {
		return filter, nil, err
	}
	if start != "" {
		filter.Start = &w.Start
	}
	if end != "" {
		filter.End = &w.End
	}

	if raw := c.Query("category_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid category_id")
		}
		categoryID := id.String()
		filter.CategoryID = &categoryID
	}

	if !ok {
		return filter, nil, nil
	}
	return filter, &w, nil
}

func (h *ExportHandler) rows(c *gin.Context) ([]models.Transaction, *services.Window, bool) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return nil, nil, false
	}

	filter, window, err := h.parseFilter(c)
	if err != nil {
		respondWithError(c, err)
		return nil, nil, false
	}

	transactions, err := h.transactionService.ExportTransactions(userID, filter)
	if err != nil {
		respondWithError(c, err)
		return nil, nil, false
	}
	return transactions, window, true
}

func (h *ExportHandler) attachment(c *gin.Context, ext string) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=transactions_%d.%s", h.now().Unix(), ext))
}

func categoryName(t models.Transaction) *string {
	if t.Category == nil {
		return nil
	}
	return &t.Category.Name
}

// ExportCSV downloads transactions as CSV
// @Summary     Export CSV
// @Tags        export
// @Produce     text/csv
// @Security    BearerAuth
// @Param       start_date  query string false "YYYY-MM-DD or RFC3339"
// @Param       end_date    query string false "YYYY-MM-DD (inclusive) or RFC3339"
// @Param       category_id query string false "Category ID"
// @Success     200 {string} string "CSV file"
// @Failure     404 {object} ErrorResponse "Nothing to export"
// @Router      /export/csv [get]
func (h *ExportHandler) ExportCSV(c *gin.Context) {
	transactions, _, ok := h.rows(c)
	if !ok {
		return
	}

	h.attachment(c, "csv")
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	_ = w.Write(csvHeader)
	for _, t := range transactions {
		category := "N/A"
		if name := categoryName(t); name != nil {
			category = *name
		}
		_ = w.Write([]string{
			t.CreatedAt.UTC().Format(time.RFC3339),
			csvText(category),
			csvText(t.Text),
			t.Amount.String(),
			string(t.Kind),
			string(t.Source),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		// The body is already streaming, so the client only sees a truncated file.
		logger.Get().Errorw("csv export write failed", "error", err, "rows", len(transactions))
	}
}

// csvText stops spreadsheet apps from evaluating user text as a formula.
func csvText(v string) string {
	if v != "" && strings.ContainsRune("=+-@\t\r", rune(v[0])) {
		return "'" + v
	}
	return v
}

// ExportJSON downloads transactions as JSON
// @Summary     Export JSON
// @Tags        export
// @Produce     json
// @Security    BearerAuth
// @Param       start_date  query string false "YYYY-MM-DD or RFC3339"
// @Param       end_date    query string false "YYYY-MM-DD (inclusive) or RFC3339"
// @Param       category_id query string false "Category ID"
// @Success     200 {object} ExportDocument
// @Failure     404 {object} ErrorResponse "Nothing to export"
// @Router      /export/json [get]
func (h *ExportHandler) ExportJSON(c *gin.Context) {
	transactions, window, ok := h.rows(c)
	if !ok {
		return
	}

	doc := ExportDocument{
		ExportDate:        h.now().UTC(),
		TotalTransactions: len(transactions),
		TotalAmount:       decimal.Zero,
		DateRange:         window,
		Transactions:      make([]ExportRow, 0, len(transactions)),
	}
	for _, t := range transactions {
		doc.TotalAmount = doc.TotalAmount.Add(t.Amount)
		doc.Transactions = append(doc.Transactions, ExportRow{
			ID:          t.ID,
			Date:        t.CreatedAt.UTC(),
			Category:    categoryName(t),
			Description: t.Text,
			Amount:      t.Amount,
			Kind:        t.Kind,
			Source:      t.Source,
		})
	}

	h.attachment(c, "json")
	c.JSON(http.StatusOK, doc)
}
