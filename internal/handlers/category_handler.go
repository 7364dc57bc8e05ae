package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"spendlens/internal/models"
	"spendlens/internal/services"
)

// CategoryHandler handles category-related requests
type CategoryHandler struct {
	categoryService services.CategoryServicer
	auditService    services.AuditServicer
}

// NewCategoryHandler creates a new CategoryHandler
func NewCategoryHandler(categoryService services.CategoryServicer, auditService services.AuditServicer) *CategoryHandler {
	return &CategoryHandler{categoryService: categoryService, auditService: auditService}
}

// CreateCategoryRequest represents the request payload for creating a category
type CreateCategoryRequest struct {
	Name   string           `json:"name" binding:"required,max=100"`
	Color  string           `json:"color" binding:"omitempty,hex_color"`
	Icon   string           `json:"icon" binding:"max=50"`
	Budget *decimal.Decimal `json:"budget" binding:"omitempty,gte=0"`
}

// UpdateCategoryRequest represents the request payload for updating a category
type UpdateCategoryRequest struct {
	Name   *string          `json:"name" binding:"omitempty,min=1,max=100"`
	Color  *string          `json:"color" binding:"omitempty,hex_color"`
	Icon   *string          `json:"icon" binding:"omitempty,max=50"`
	Budget *decimal.Decimal `json:"budget" binding:"omitempty,gte=0"`
}

// CategoryItemsRequest lists the items to add to or remove from a category.
type CategoryItemsRequest struct {
	ItemIDs []string `json:"item_ids" binding:"required,min=1,dive,uuid"`
}

// CreateCategory handles the creation of a new category
// @Summary     Create a category
// @Description Create a new spending category
// @Tags        categories
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateCategoryRequest true "Category details"
// @Success     201 {object} models.Category "Category created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     409 {object} ErrorResponse "Duplicate name"
// @Router      /categories [post]
func (h *CategoryHandler) CreateCategory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	budget := decimal.Zero
	if req.Budget != nil {
		budget = *req.Budget
	}

	category, err := h.categoryService.CreateCategory(userID, req.Name, req.Color, req.Icon, budget)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditCreateCategory, "category", category.ID, c.ClientIP(),
		map[string]interface{}{"name": category.Name})

	c.JSON(http.StatusCreated, gin.H{"category": category})
}

// ListCategories returns the user's categories
// @Summary     List categories
// @Description Paginated categories. Supports page, limit, sort, fields, search (name) and field filters such as budget[gte]=100.
// @Tags        categories
// @Produce     json
// @Security    BearerAuth
// @Param       page   query int    false "Page number" default(1)
// @Param       limit  query int    false "Page size" default(10)
// @Param       sort   query string false "Comma separated sort fields, - for descending"
// @Param       fields query string false "Comma separated fields to return"
// @Param       search query string false "Case-insensitive name search"
// @Success     200 {object} map[string]interface{} "data and meta"
// @Failure     400 {object} ErrorResponse "Malformed query"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /categories [get]
func (h *CategoryHandler) ListCategories(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	page, err := h.categoryService.ListCategories(userID, c.Request.URL.Query())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// GetCategoryByID handles the retrieval of a specific category
// @Summary     Get category by ID
// @Description Get a category with its items
// @Tags        categories
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Category ID"
// @Success     200 {object} models.Category "Category details"
// @Failure     400 {object} ErrorResponse "Invalid category ID"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Router      /categories/{id} [get]
func (h *CategoryHandler) GetCategoryByID(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	categoryID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	category, err := h.categoryService.GetCategoryByID(userID, categoryID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"category": category})
}

// GetCategoryItems lists the items filed in a category
// @Summary     Get category items
// @Tags        categories
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Category ID"
// @Success     200 {array} models.Item
// @Failure     404 {object} ErrorResponse "Category not found"
// @Router      /categories/{id}/items [get]
func (h *CategoryHandler) GetCategoryItems(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	categoryID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	items, err := h.categoryService.GetCategoryItems(userID, categoryID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

// UpdateCategory handles updating a category
// @Summary     Update category
// @Tags        categories
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                true "Category ID"
// @Param       request body UpdateCategoryRequest true "Fields to change"
// @Success     200 {object} models.Category
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Failure     409 {object} ErrorResponse "Duplicate name"
// @Router      /categories/{id} [put]
func (h *CategoryHandler) UpdateCategory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	categoryID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	category, err := h.categoryService.UpdateCategory(userID, categoryID, services.CategoryUpdate{
		Name:   req.Name,
		Color:  req.Color,
		Icon:   req.Icon,
		Budget: req.Budget,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditUpdateCategory, "category", categoryID, c.ClientIP(),
		map[string]interface{}{"name": req.Name, "color": req.Color, "icon": req.Icon, "budget": req.Budget})

	c.JSON(http.StatusOK, gin.H{"category": category})
}

// DeleteCategory handles deleting a category
// @Summary     Delete category
// @Description Deletes the category. Its transactions become uncategorized and its item links and offers are removed.
// @Tags        categories
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Category ID"
// @Success     200 {object} MessageResponse "Category deleted"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Router      /categories/{id} [delete]
func (h *CategoryHandler) DeleteCategory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	categoryID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.categoryService.DeleteCategory(userID, categoryID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditDeleteCategory, "category", categoryID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Category deleted successfully"})
}

// AddItems files items into a category
// @Summary     Add items to category
// @Tags        categories
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string               true "Category ID"
// @Param       request body CategoryItemsRequest true "Item IDs"
// @Success     200 {object} models.Category
// @Failure     404 {object} ErrorResponse "Category or item not found"
// @Failure     409 {object} ErrorResponse "Item already in category"
// @Router      /categories/{id}/items [post]
func (h *CategoryHandler) AddItems(c *gin.Context) {
	h.changeItems(c, services.AuditAddCategoryItems, h.categoryService.AddItems)
}

// RemoveItems takes items out of a category
// @Summary     Remove items from category
// @Tags        categories
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string               true "Category ID"
// @Param       request body CategoryItemsRequest true "Item IDs"
// @Success     200 {object} models.Category
// @Failure     404 {object} ErrorResponse "Category not found"
// @Router      /categories/{id}/items [delete]
func (h *CategoryHandler) RemoveItems(c *gin.Context) {
	h.changeItems(c, services.AuditRemoveCategoryItems, h.categoryService.RemoveItems)
}

type itemsChange func(userID, categoryID string, itemIDs []string) (*models.Category, error)

func (h *CategoryHandler) changeItems(c *gin.Context, action string, change itemsChange) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	categoryID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CategoryItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	category, err := change(userID, categoryID, req.ItemIDs)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, action, "category", categoryID, c.ClientIP(),
		map[string]interface{}{"item_ids": req.ItemIDs})

	c.JSON(http.StatusOK, gin.H{"category": category})
}
