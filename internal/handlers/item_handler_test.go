package handlers

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "spendlens/internal/errors"
	"spendlens/internal/models"
	"spendlens/internal/query"
	"spendlens/internal/services"
)

// --- mock item service ---

type mockItemService struct {
	createItemFn  func(userID, name string, price decimal.Decimal, description string, categoryID *string) (*models.Item, error)
	listItemsFn   func(userID string, values url.Values) (*query.Page[models.Item], error)
	getItemByIDFn func(userID, itemID string) (*models.Item, error)
	updateItemFn  func(userID, itemID string, update services.ItemUpdate) (*models.Item, error)
	deleteItemFn  func(userID, itemID string) error
}

func (m *mockItemService) CreateItem(userID, name string, price decimal.Decimal, description string, categoryID *string) (*models.Item, error) {
	if m.createItemFn != nil {
		return m.createItemFn(userID, name, price, description, categoryID)
	}
	return &models.Item{}, nil
}

func (m *mockItemService) ListItems(userID string, values url.Values) (*query.Page[models.Item], error) {
	if m.listItemsFn != nil {
		return m.listItemsFn(userID, values)
	}
	return &query.Page[models.Item]{Data: []models.Item{}}, nil
}

func (m *mockItemService) GetItemByID(userID, itemID string) (*models.Item, error) {
	if m.getItemByIDFn != nil {
		return m.getItemByIDFn(userID, itemID)
	}
	return &models.Item{}, nil
}

func (m *mockItemService) UpdateItem(userID, itemID string, update services.ItemUpdate) (*models.Item, error) {
	if m.updateItemFn != nil {
		return m.updateItemFn(userID, itemID, update)
	}
	return &models.Item{}, nil
}

func (m *mockItemService) DeleteItem(userID, itemID string) error {
	if m.deleteItemFn != nil {
		return m.deleteItemFn(userID, itemID)
	}
	return nil
}

var _ services.ItemServicer = (*mockItemService)(nil)

func setupItemRouter(handler *ItemHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(testUserID))
	auth.POST("/items", handler.CreateItem)
	auth.GET("/items", handler.ListItems)
	auth.POST("/items/add-to-category", handler.AddToCategory)
	auth.POST("/items/remove-from-category", handler.RemoveFromCategory)
	auth.GET("/items/:id", handler.GetItemByID)
	auth.PUT("/items/:id", handler.UpdateItem)
	auth.DELETE("/items/:id", handler.DeleteItem)
	return r
}

func TestItemHandler_CreateItem(t *testing.T) {
	t.Run("returns 201 and forwards category", func(t *testing.T) {
		itemSvc := &mockItemService{
			createItemFn: func(_, name string, price decimal.Decimal, _ string, categoryID *string) (*models.Item, error) {
				if categoryID == nil || *categoryID != testCategoryID {
					t.Errorf("expected category %s, got %v", testCategoryID, categoryID)
				}
				return &models.Item{Base: models.Base{ID: testItemID}, Name: name, Price: price}, nil
			},
		}
		r := setupItemRouter(NewItemHandler(itemSvc, &mockCategoryService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/items", `{"name":"Latte","price":4.5,"category_id":"`+testCategoryID+`"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		item := parseJSON(t, rec)["item"].(map[string]interface{})
		if item["price"] != 4.5 {
			t.Errorf("expected numeric price 4.5, got %v", item["price"])
		}
	})

	t.Run("returns 400 on negative price", func(t *testing.T) {
		r := setupItemRouter(NewItemHandler(&mockItemService{}, &mockCategoryService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/items", `{"name":"Latte","price":-1}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestItemHandler_GetItemByID(t *testing.T) {
	itemSvc := &mockItemService{
		getItemByIDFn: func(_, _ string) (*models.Item, error) {
			return nil, apperrors.ErrItemNotFound
		},
	}
	r := setupItemRouter(NewItemHandler(itemSvc, &mockCategoryService{}, &mockAuditService{}))

	rec := doRequest(r, "GET", "/items/"+testItemID, "")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	assertErrorCode(t, parseJSON(t, rec), "ITEM_NOT_FOUND")
}

func TestItemHandler_CategoryOperations(t *testing.T) {
	var added, removed []string
	catSvc := &mockCategoryService{
		addItemsFn: func(_, categoryID string, itemIDs []string) (*models.Category, error) {
			added = itemIDs
			return &models.Category{Base: models.Base{ID: categoryID}}, nil
		},
		removeItemsFn: func(_, categoryID string, itemIDs []string) (*models.Category, error) {
			removed = itemIDs
			return &models.Category{Base: models.Base{ID: categoryID}}, nil
		},
	}
	r := setupItemRouter(NewItemHandler(&mockItemService{}, catSvc, &mockAuditService{}))
	body := `{"item_id":"` + testItemID + `","category_id":"` + testCategoryID + `"}`

	rec := doRequest(r, "POST", "/items/add-to-category", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("add: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = doRequest(r, "POST", "/items/remove-from-category", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("remove: expected 200, got %d", rec.Code)
	}

	if len(added) != 1 || added[0] != testItemID || len(removed) != 1 || removed[0] != testItemID {
		t.Errorf("expected item forwarded to category service, got add=%v remove=%v", added, removed)
	}

	rec = doRequest(r, "POST", "/items/add-to-category", `{"item_id":"`+testItemID+`"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without category_id, got %d", rec.Code)
	}
}
