package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"spendlens/internal/services"
)

// ItemHandler handles item-related requests.
type ItemHandler struct {
	itemService     services.ItemServicer
	categoryService services.CategoryServicer
	auditService    services.AuditServicer
}

// NewItemHandler creates a new ItemHandler.
func NewItemHandler(itemService services.ItemServicer, categoryService services.CategoryServicer, auditService services.AuditServicer) *ItemHandler {
	return &ItemHandler{itemService: itemService, categoryService: categoryService, auditService: auditService}
}

// CreateItemRequest represents the request payload for creating an item
type CreateItemRequest struct {
	Name        string          `json:"name" binding:"required,max=100"`
	Price       decimal.Decimal `json:"price" binding:"gte=0"`
	Description string          `json:"description" binding:"max=500"`
	CategoryID  *string         `json:"category_id" binding:"omitempty,uuid"`
}

// UpdateItemRequest represents the request payload for updating an item
type UpdateItemRequest struct {
	Name        *string          `json:"name" binding:"omitempty,min=1,max=100"`
	Price       *decimal.Decimal `json:"price" binding:"omitempty,gte=0"`
	Description *string          `json:"description" binding:"omitempty,max=500"`
	IsActive    *bool            `json:"is_active"`
}

// ItemCategoryRequest names one item and one category.
type ItemCategoryRequest struct {
	ItemID     string `json:"item_id" binding:"required,uuid"`
	CategoryID string `json:"category_id" binding:"required,uuid"`
}

// CreateItem creates an item
// @Summary     Create an item
// @Tags        items
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateItemRequest true "Item details"
// @Success     201 {object} models.Item
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Router      /items [post]
func (h *ItemHandler) CreateItem(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	item, err := h.itemService.CreateItem(userID, req.Name, req.Price, req.Description, req.CategoryID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditCreateItem, "item", item.ID, c.ClientIP(),
		map[string]interface{}{"name": item.Name, "price": item.Price.String()})

	c.JSON(http.StatusCreated, gin.H{"item": item})
}

// ListItems returns the user's items
// @Summary     List items
// @Description Paginated items. Supports page, limit, sort, fields, search (name, description) and filters such as price[lte]=10.
// @Tags        items
// @Produce     json
// @Security    BearerAuth
// @Param       page   query int    false "Page number" default(1)
// @Param       limit  query int    false "Page size" default(10)
// @Param       search query string false "Case-insensitive search"
// @Success     200 {object} map[string]interface{} "data and meta"
// @Failure     400 {object} ErrorResponse "Malformed query"
// @Router      /items [get]
func (h *ItemHandler) ListItems(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	page, err := h.itemService.ListItems(userID, c.Request.URL.Query())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// GetItemByID returns an item
// @Summary     Get item by ID
// @Tags        items
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Item ID"
// @Success     200 {object} models.Item
// @Failure     404 {object} ErrorResponse "Item not found"
// @Router      /items/{id} [get]
func (h *ItemHandler) GetItemByID(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	itemID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	item, err := h.itemService.GetItemByID(userID, itemID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"item": item})
}

// UpdateItem updates an item
// @Summary     Update item
// @Tags        items
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string            true "Item ID"
// @Param       request body UpdateItemRequest true "Fields to change"
// @Success     200 {object} models.Item
// @Failure     404 {object} ErrorResponse "Item not found"
// @Router      /items/{id} [put]
func (h *ItemHandler) UpdateItem(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	itemID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	item, err := h.itemService.UpdateItem(userID, itemID, services.ItemUpdate{
		Name:        req.Name,
		Price:       req.Price,
		Description: req.Description,
		IsActive:    req.IsActive,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditUpdateItem, "item", itemID, c.ClientIP(),
		map[string]interface{}{"name": req.Name, "price": req.Price, "is_active": req.IsActive})

	c.JSON(http.StatusOK, gin.H{"item": item})
}

// DeleteItem deletes an item
// @Summary     Delete item
// @Tags        items
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Item ID"
// @Success     200 {object} MessageResponse
// @Failure     404 {object} ErrorResponse "Item not found"
// @Router      /items/{id} [delete]
func (h *ItemHandler) DeleteItem(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	itemID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.itemService.DeleteItem(userID, itemID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditDeleteItem, "item", itemID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Item deleted successfully"})
}

// AddToCategory files one item into one category
// @Summary     Add item to category
// @Tags        items
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body ItemCategoryRequest true "Item and category"
// @Success     200 {object} models.Category
// @Failure     404 {object} ErrorResponse "Item or category not found"
// @Failure     409 {object} ErrorResponse "Item already in category"
// @Router      /items/add-to-category [post]
func (h *ItemHandler) AddToCategory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ItemCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	category, err := h.categoryService.AddItems(userID, req.CategoryID, []string{req.ItemID})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditAddCategoryItems, "category", req.CategoryID, c.ClientIP(),
		map[string]interface{}{"item_ids": []string{req.ItemID}})

	c.JSON(http.StatusOK, gin.H{"category": category})
}

// RemoveFromCategory takes one item out of one category
// @Summary     Remove item from category
// @Tags        items
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body ItemCategoryRequest true "Item and category"
// @Success     200 {object} models.Category
// @Failure     404 {object} ErrorResponse "Category not found"
// @Router      /items/remove-from-category [post]
func (h *ItemHandler) RemoveFromCategory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ItemCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	category, err := h.categoryService.RemoveItems(userID, req.CategoryID, []string{req.ItemID})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditRemoveCategoryItems, "category", req.CategoryID, c.ClientIP(),
		map[string]interface{}{"item_ids": []string{req.ItemID}})

	c.JSON(http.StatusOK, gin.H{"category": category})
}
