package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "spendlens/internal/errors"
	"spendlens/internal/services"
)

const (
	defaultTopCategories = 5
	maxTopCategories     = 50
)

// AnalyticsHandler serves spending aggregates. Every endpoint is computed on
// demand; failures surface as AGGREGATION_FAILED.
type AnalyticsHandler struct {
	analyticsService services.AnalyticsServicer
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(analyticsService services.AnalyticsServicer) *AnalyticsHandler {
	return &AnalyticsHandler{analyticsService: analyticsService}
}

// queryWindow reads start_date/end_date; ok is false when neither was sent.
func (h *AnalyticsHandler) queryWindow(c *gin.Context) (services.Window, bool, error) {
	return services.ParseWindow(c.Query("start_date"), c.Query("end_date"),
		h.analyticsService.Location(), h.analyticsService.DefaultWindow())
}

// Home returns total, daily buckets and category breakdown
// @Summary     Home analytics
// @Description Same payload as the WebSocket push. Defaults to the current month.
// @Tags        analytics
// @Produce     json
// @Security    BearerAuth
// @Param       start_date   query string false "YYYY-MM-DD or RFC3339"
// @Param       end_date     query string false "YYYY-MM-DD (inclusive) or RFC3339"
// @Param       expense_only query bool   false "Only count expenses"
// @Success     200 {object} services.HomeAnalytics
// @Failure     400 {object} ErrorResponse "Invalid dates"
// @Failure     500 {object} ErrorResponse "Aggregation failed"
// @Router      /analytics/home [get]
func (h *AnalyticsHandler) Home(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	w, _, err := h.queryWindow(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	expenseOnly := false
	if raw := c.Query("expense_only"); raw != "" {
		if expenseOnly, err = strconv.ParseBool(raw); err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "expense_only must be a boolean"))
			return
		}
	}

	summary, err := h.analyticsService.HomeAnalytics(c.Request.Context(), userID, w, expenseOnly)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// Summary returns all-time and current month totals
// @Summary     Spending summary
// @Tags        analytics
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} services.Summary
// @Failure     500 {object} ErrorResponse "Aggregation failed"
// @Router      /analytics/summary [get]
func (h *AnalyticsHandler) Summary(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	summary, err := h.analyticsService.Summary(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// ByCategory returns per-category totals
// @Summary     Spending by category
// @Description All time unless a date range is given.
// @Tags        analytics
// @Produce     json
// @Security    BearerAuth
// @Param       start_date query string false "YYYY-MM-DD or RFC3339"
// @Param       end_date   query string false "YYYY-MM-DD (inclusive) or RFC3339"
// @Success     200 {object} services.CategoryReport
// @Failure     400 {object} ErrorResponse "Invalid dates"
// @Failure     500 {object} ErrorResponse "Aggregation failed"
// @Router      /analytics/by-category [get]
func (h *AnalyticsHandler) ByCategory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	w, ok, err := h.queryWindow(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	var window *services.Window
	if ok {
		window = &w
	}

	report, err := h.analyticsService.ByCategory(c.Request.Context(), userID, window)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// ByDate returns totals bucketed by day, ISO week or month
// @Summary     Spending by date
// @Description Defaults to the last 30 days bucketed daily.
// @Tags        analytics
// @Produce     json
// @Security    BearerAuth
// @Param       period     query string false "daily, weekly or monthly" default(daily)
// @Param       start_date query string false "YYYY-MM-DD or RFC3339"
// @Param       end_date   query string false "YYYY-MM-DD (inclusive) or RFC3339"
// @Success     200 {object} services.DateReport
// @Failure     400 {object} ErrorResponse "Invalid period or dates"
// @Failure     500 {object} ErrorResponse "Aggregation failed"
// @Router      /analytics/by-date [get]
func (h *AnalyticsHandler) ByDate(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	period := services.Period(c.DefaultQuery("period", string(services.PeriodDaily)))
	if !period.Valid() {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "period must be daily, weekly or monthly"))
		return
	}

	w, ok, err := h.queryWindow(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	var window *services.Window
	if ok {
		window = &w
	}

	report, err := h.analyticsService.ByDate(c.Request.Context(), userID, period, window)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// TopCategories returns the largest expense categories
// @Summary     Top categories
// @Tags        analytics
// @Produce     json
// @Security    BearerAuth
// @Param       limit query int false "Number of categories" default(5)
// @Success     200 {array} services.TopCategory
// @Failure     400 {object} ErrorResponse "Invalid limit"
// @Failure     500 {object} ErrorResponse "Aggregation failed"
// @Router      /analytics/top-categories [get]
func (h *AnalyticsHandler) TopCategories(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	limit := defaultTopCategories
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxTopCategories {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "limit must be between 1 and 50"))
			return
		}
	}

	top, err := h.analyticsService.TopCategories(c.Request.Context(), userID, limit)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"categories": top})
}

// TopCategory returns the single largest expense category
// @Summary     Top spending category
// @Description top_category is null when the user has no categorized expenses.
// @Tags        analytics
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} map[string]interface{}
// @Failure     500 {object} ErrorResponse "Aggregation failed"
// @Router      /analytics/top-category [get]
func (h *AnalyticsHandler) TopCategory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	top, err := h.analyticsService.TopSpendingCategory(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"top_category": top})
}

// Trends compares this month with the previous one
// @Summary     Spending trends
// @Tags        analytics
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} services.Trends
// @Failure     500 {object} ErrorResponse "Aggregation failed"
// @Router      /analytics/trends [get]
func (h *AnalyticsHandler) Trends(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	trends, err := h.analyticsService.Trends(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, trends)
}
