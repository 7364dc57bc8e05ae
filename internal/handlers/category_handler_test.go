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

// --- mock category service ---

type mockCategoryService struct {
	createCategoryFn   func(userID, name, color, icon string, budget decimal.Decimal) (*models.Category, error)
	listCategoriesFn   func(userID string, values url.Values) (*query.Page[models.Category], error)
	getCategoryByIDFn  func(userID, categoryID string) (*models.Category, error)
	getCategoryItemsFn func(userID, categoryID string) ([]models.Item, error)
	updateCategoryFn   func(userID, categoryID string, update services.CategoryUpdate) (*models.Category, error)
	deleteCategoryFn   func(userID, categoryID string) error
	addItemsFn         func(userID, categoryID string, itemIDs []string) (*models.Category, error)
	removeItemsFn      func(userID, categoryID string, itemIDs []string) (*models.Category, error)
}

func (m *mockCategoryService) CreateCategory(userID, name, color, icon string, budget decimal.Decimal) (*models.Category, error) {
	if m.createCategoryFn != nil {
		return m.createCategoryFn(userID, name, color, icon, budget)
	}
	return &models.Category{}, nil
}

func (m *mockCategoryService) ListCategories(userID string, values url.Values) (*query.Page[models.Category], error) {
	if m.listCategoriesFn != nil {
		return m.listCategoriesFn(userID, values)
	}
	return &query.Page[models.Category]{Data: []models.Category{}}, nil
}

func (m *mockCategoryService) GetCategoryByID(userID, categoryID string) (*models.Category, error) {
	if m.getCategoryByIDFn != nil {
		return m.getCategoryByIDFn(userID, categoryID)
	}
	return &models.Category{}, nil
}

func (m *mockCategoryService) GetCategoryItems(userID, categoryID string) ([]models.Item, error) {
	if m.getCategoryItemsFn != nil {
		return m.getCategoryItemsFn(userID, categoryID)
	}
	return []models.Item{}, nil
}

func (m *mockCategoryService) UpdateCategory(userID, categoryID string, update services.CategoryUpdate) (*models.Category, error) {
	if m.updateCategoryFn != nil {
		return m.updateCategoryFn(userID, categoryID, update)
	}
	return &models.Category{}, nil
}

func (m *mockCategoryService) DeleteCategory(userID, categoryID string) error {
	if m.deleteCategoryFn != nil {
		return m.deleteCategoryFn(userID, categoryID)
	}
	return nil
}

func (m *mockCategoryService) AddItems(userID, categoryID string, itemIDs []string) (*models.Category, error) {
	if m.addItemsFn != nil {
		return m.addItemsFn(userID, categoryID, itemIDs)
	}
	return &models.Category{}, nil
}

func (m *mockCategoryService) RemoveItems(userID, categoryID string, itemIDs []string) (*models.Category, error) {
	if m.removeItemsFn != nil {
		return m.removeItemsFn(userID, categoryID, itemIDs)
	}
	return &models.Category{}, nil
}

var _ services.CategoryServicer = (*mockCategoryService)(nil)

const (
	testCategoryID = "0190a0a0-0000-7000-8000-0000000000c1"
	testItemID     = "0190a0a0-0000-7000-8000-0000000000a1"
)

func setupCategoryRouter(handler *CategoryHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(testUserID))
	auth.POST("/categories", handler.CreateCategory)
	auth.GET("/categories", handler.ListCategories)
	auth.GET("/categories/:id", handler.GetCategoryByID)
	auth.GET("/categories/:id/items", handler.GetCategoryItems)
	auth.PUT("/categories/:id", handler.UpdateCategory)
	auth.DELETE("/categories/:id", handler.DeleteCategory)
	auth.POST("/categories/:id/items", handler.AddItems)
	auth.DELETE("/categories/:id/items", handler.RemoveItems)
	return r
}

func TestCategoryHandler_CreateCategory(t *testing.T) {
	t.Run("returns 201 on success", func(t *testing.T) {
		catSvc := &mockCategoryService{
			createCategoryFn: func(_, name, color, icon string, budget decimal.Decimal) (*models.Category, error) {
				if !budget.Equal(decimal.NewFromInt(300)) {
					t.Errorf("expected budget 300, got %s", budget)
				}
				return &models.Category{Base: models.Base{ID: testCategoryID}, Name: name, Color: color, Icon: icon}, nil
			},
		}
		r := setupCategoryRouter(NewCategoryHandler(catSvc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/categories", `{"name":"Food","color":"#FF0000","budget":300}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		cat := parseJSON(t, rec)["category"].(map[string]interface{})
		if cat["name"] != "Food" {
			t.Errorf("expected Food, got %v", cat["name"])
		}
	})

	t.Run("returns 400 on missing name", func(t *testing.T) {
		r := setupCategoryRouter(NewCategoryHandler(&mockCategoryService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/categories", `{"color":"#fff"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 400 on bad color or negative budget", func(t *testing.T) {
		r := setupCategoryRouter(NewCategoryHandler(&mockCategoryService{}, &mockAuditService{}))

		for _, body := range []string{
			`{"name":"Food","color":"red"}`,
			`{"name":"Food","budget":-1}`,
		} {
			rec := doRequest(r, "POST", "/categories", body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("%s: expected 400, got %d", body, rec.Code)
			}
		}
	})

	t.Run("returns 409 on duplicate", func(t *testing.T) {
		catSvc := &mockCategoryService{
			createCategoryFn: func(_, _, _, _ string, _ decimal.Decimal) (*models.Category, error) {
				return nil, apperrors.ErrDuplicateCategory
			},
		}
		r := setupCategoryRouter(NewCategoryHandler(catSvc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/categories", `{"name":"Food"}`)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "DUPLICATE_CATEGORY")
	})
}

func TestCategoryHandler_ListCategories(t *testing.T) {
	t.Run("passes query string through", func(t *testing.T) {
		var got url.Values
		catSvc := &mockCategoryService{
			listCategoriesFn: func(userID string, values url.Values) (*query.Page[models.Category], error) {
				if userID != testUserID {
					t.Errorf("expected caller %s, got %s", testUserID, userID)
				}
				got = values
				return &query.Page[models.Category]{
					Data: []models.Category{{Base: models.Base{ID: testCategoryID}, Name: "Food"}},
					Meta: query.Meta{Page: 2, Limit: 5, Skip: 5, Count: 6},
				}, nil
			},
		}
		r := setupCategoryRouter(NewCategoryHandler(catSvc, &mockAuditService{}))

		rec := doRequest(r, "GET", "/categories?page=2&limit=5&search=fo", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if got.Get("search") != "fo" || got.Get("page") != "2" {
			t.Errorf("expected query values forwarded, got %v", got)
		}
		result := parseJSON(t, rec)
		meta := result["meta"].(map[string]interface{})
		if meta["count"] != float64(6) {
			t.Errorf("expected count 6, got %v", meta["count"])
		}
		if len(result["data"].([]interface{})) != 1 {
			t.Error("expected one category in data")
		}
	})

	t.Run("returns 400 on malformed query", func(t *testing.T) {
		catSvc := &mockCategoryService{
			listCategoriesFn: func(_ string, _ url.Values) (*query.Page[models.Category], error) {
				return nil, apperrors.ErrValidationFailed
			},
		}
		r := setupCategoryRouter(NewCategoryHandler(catSvc, &mockAuditService{}))

		rec := doRequest(r, "GET", "/categories?budget[between]=1", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "VALIDATION_FAILED")
	})
}

func TestCategoryHandler_GetCategoryByID(t *testing.T) {
	t.Run("returns 400 on invalid id", func(t *testing.T) {
		r := setupCategoryRouter(NewCategoryHandler(&mockCategoryService{}, &mockAuditService{}))

		rec := doRequest(r, "GET", "/categories/42", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 404 when not owned", func(t *testing.T) {
		catSvc := &mockCategoryService{
			getCategoryByIDFn: func(_, _ string) (*models.Category, error) {
				return nil, apperrors.ErrCategoryNotFound
			},
		}
		r := setupCategoryRouter(NewCategoryHandler(catSvc, &mockAuditService{}))

		rec := doRequest(r, "GET", "/categories/"+testCategoryID, "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "CATEGORY_NOT_FOUND")
	})
}

func TestCategoryHandler_UpdateCategory(t *testing.T) {
	var got services.CategoryUpdate
	catSvc := &mockCategoryService{
		updateCategoryFn: func(_, _ string, update services.CategoryUpdate) (*models.Category, error) {
			got = update
			return &models.Category{Base: models.Base{ID: testCategoryID}}, nil
		},
	}
	r := setupCategoryRouter(NewCategoryHandler(catSvc, &mockAuditService{}))

	rec := doRequest(r, "PUT", "/categories/"+testCategoryID, `{"icon":"cart"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got.Icon == nil || *got.Icon != "cart" || got.Name != nil || got.Budget != nil {
		t.Errorf("expected only icon to be set, got %+v", got)
	}
}

func TestCategoryHandler_DeleteCategory(t *testing.T) {
	deleted := ""
	catSvc := &mockCategoryService{
		deleteCategoryFn: func(_, categoryID string) error {
			deleted = categoryID
			return nil
		},
	}
	audit := &mockAuditService{}
	r := setupCategoryRouter(NewCategoryHandler(catSvc, audit))

	rec := doRequest(r, "DELETE", "/categories/"+testCategoryID, "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if deleted != testCategoryID {
		t.Errorf("expected %s deleted, got %q", testCategoryID, deleted)
	}
	if len(audit.actions) != 1 || audit.actions[0] != "DELETE_CATEGORY" {
		t.Errorf("expected DELETE_CATEGORY audit entry, got %v", audit.actions)
	}
}

func TestCategoryHandler_Items(t *testing.T) {
	t.Run("add returns 409 when already linked", func(t *testing.T) {
		catSvc := &mockCategoryService{
			addItemsFn: func(_, _ string, itemIDs []string) (*models.Category, error) {
				if len(itemIDs) != 1 || itemIDs[0] != testItemID {
					t.Errorf("unexpected item ids %v", itemIDs)
				}
				return nil, apperrors.ErrItemAlreadyInCategory
			},
		}
		r := setupCategoryRouter(NewCategoryHandler(catSvc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/categories/"+testCategoryID+"/items", `{"item_ids":["`+testItemID+`"]}`)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "ITEM_ALREADY_IN_CATEGORY")
	})

	t.Run("rejects empty or malformed ids", func(t *testing.T) {
		r := setupCategoryRouter(NewCategoryHandler(&mockCategoryService{}, &mockAuditService{}))

		for _, body := range []string{`{"item_ids":[]}`, `{"item_ids":["abc"]}`} {
			rec := doRequest(r, "POST", "/categories/"+testCategoryID+"/items", body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("%s: expected 400, got %d", body, rec.Code)
			}
		}
	})

	t.Run("remove returns 200", func(t *testing.T) {
		r := setupCategoryRouter(NewCategoryHandler(&mockCategoryService{}, &mockAuditService{}))

		rec := doRequest(r, "DELETE", "/categories/"+testCategoryID+"/items", `{"item_ids":["`+testItemID+`"]}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})
}
