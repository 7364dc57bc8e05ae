package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "spendlens/internal/errors"
	"spendlens/internal/services"
)

// --- mock analytics service ---

type mockAnalyticsService struct {
	homeAnalyticsFn       func(ctx context.Context, userID string, w services.Window, expenseOnly bool) (*services.HomeAnalytics, error)
	topSpendingCategoryFn func(ctx context.Context, userID string) (*services.TopCategory, error)
	topCategoriesFn       func(ctx context.Context, userID string, limit int) ([]services.TopCategory, error)
	summaryFn             func(ctx context.Context, userID string) (*services.Summary, error)
	byCategoryFn          func(ctx context.Context, userID string, w *services.Window) (*services.CategoryReport, error)
	byDateFn              func(ctx context.Context, userID string, period services.Period, w *services.Window) (*services.DateReport, error)
	trendsFn              func(ctx context.Context, userID string) (*services.Trends, error)
}

var march = services.Window{
	Start: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
}

func (m *mockAnalyticsService) DefaultWindow() services.Window { return march }

func (m *mockAnalyticsService) Location() *time.Location { return time.UTC }

func (m *mockAnalyticsService) HomeAnalytics(ctx context.Context, userID string, w services.Window, expenseOnly bool) (*services.HomeAnalytics, error) {
	if m.homeAnalyticsFn != nil {
		return m.homeAnalyticsFn(ctx, userID, w, expenseOnly)
	}
	return &services.HomeAnalytics{}, nil
}

func (m *mockAnalyticsService) TopSpendingCategory(ctx context.Context, userID string) (*services.TopCategory, error) {
	if m.topSpendingCategoryFn != nil {
		return m.topSpendingCategoryFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockAnalyticsService) TopCategories(ctx context.Context, userID string, limit int) ([]services.TopCategory, error) {
	if m.topCategoriesFn != nil {
		return m.topCategoriesFn(ctx, userID, limit)
	}
	return []services.TopCategory{}, nil
}

func (m *mockAnalyticsService) Summary(ctx context.Context, userID string) (*services.Summary, error) {
	if m.summaryFn != nil {
		return m.summaryFn(ctx, userID)
	}
	return &services.Summary{}, nil
}

func (m *mockAnalyticsService) ByCategory(ctx context.Context, userID string, w *services.Window) (*services.CategoryReport, error) {
	if m.byCategoryFn != nil {
		return m.byCategoryFn(ctx, userID, w)
	}
	return &services.CategoryReport{}, nil
}

func (m *mockAnalyticsService) ByDate(ctx context.Context, userID string, period services.Period, w *services.Window) (*services.DateReport, error) {
	if m.byDateFn != nil {
		return m.byDateFn(ctx, userID, period, w)
	}
	return &services.DateReport{Period: period}, nil
}

func (m *mockAnalyticsService) Trends(ctx context.Context, userID string) (*services.Trends, error) {
	if m.trendsFn != nil {
		return m.trendsFn(ctx, userID)
	}
	return &services.Trends{}, nil
}

var _ services.AnalyticsServicer = (*mockAnalyticsService)(nil)

func setupAnalyticsRouter(handler *AnalyticsHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("/analytics", injectUserID(testUserID))
	auth.GET("/home", handler.Home)
	auth.GET("/summary", handler.Summary)
	auth.GET("/by-category", handler.ByCategory)
	auth.GET("/by-date", handler.ByDate)
	auth.GET("/top-categories", handler.TopCategories)
	auth.GET("/top-category", handler.TopCategory)
	auth.GET("/trends", handler.Trends)
	return r
}

func TestAnalyticsHandler_Home(t *testing.T) {
	t.Run("defaults to the current window", func(t *testing.T) {
		svc := &mockAnalyticsService{
			homeAnalyticsFn: func(_ context.Context, userID string, w services.Window, expenseOnly bool) (*services.HomeAnalytics, error) {
				if w != march || expenseOnly || userID != testUserID {
					t.Errorf("unexpected arguments %v %v %s", w, expenseOnly, userID)
				}
				return &services.HomeAnalytics{
					TotalAmount:      decimal.NewFromInt(175),
					AnalysisOverTime: services.Breakdown{{Key: "2024-03-10", Amount: decimal.NewFromInt(175)}},
					CategoryAnalysis: services.Breakdown{{Key: "Food", Amount: decimal.NewFromInt(175)}},
				}, nil
			},
		}
		r := setupAnalyticsRouter(NewAnalyticsHandler(svc))

		rec := doRequest(r, "GET", "/analytics/home", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		want := `{"total_amount":175,"analysis_over_time":{"2024-03-10":175},"category_analysis":{"Food":175}}`
		if rec.Body.String() != want {
			t.Errorf("expected %s, got %s", want, rec.Body.String())
		}
	})

	t.Run("parses range and expense_only", func(t *testing.T) {
		var gotWindow services.Window
		var gotExpenseOnly bool
		svc := &mockAnalyticsService{
			homeAnalyticsFn: func(_ context.Context, _ string, w services.Window, expenseOnly bool) (*services.HomeAnalytics, error) {
				gotWindow, gotExpenseOnly = w, expenseOnly
				return &services.HomeAnalytics{}, nil
			},
		}
		r := setupAnalyticsRouter(NewAnalyticsHandler(svc))

		rec := doRequest(r, "GET", "/analytics/home?start_date=2024-03-10&end_date=2024-03-11&expense_only=true", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		wantEnd := time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC)
		if !gotWindow.End.Equal(wantEnd) || !gotExpenseOnly {
			t.Errorf("unexpected window %v expense_only=%v", gotWindow, gotExpenseOnly)
		}
	})

	t.Run("returns 400 on bad input", func(t *testing.T) {
		r := setupAnalyticsRouter(NewAnalyticsHandler(&mockAnalyticsService{}))

		for _, path := range []string{
			"/analytics/home?expense_only=maybe",
			"/analytics/home?start_date=yesterday",
			"/analytics/home?start_date=2024-03-10&end_date=2024-03-01",
		} {
			rec := doRequest(r, "GET", path, "")
			if rec.Code != http.StatusBadRequest {
				t.Errorf("%s: expected 400, got %d", path, rec.Code)
			}
		}
	})

	t.Run("returns 500 on aggregation failure", func(t *testing.T) {
		svc := &mockAnalyticsService{
			homeAnalyticsFn: func(context.Context, string, services.Window, bool) (*services.HomeAnalytics, error) {
				return nil, apperrors.Wrap(apperrors.ErrAggregationFailed, errors.New("connection refused"))
			},
		}
		r := setupAnalyticsRouter(NewAnalyticsHandler(svc))

		rec := doRequest(r, "GET", "/analytics/home", "")

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "AGGREGATION_FAILED")
	})
}

func TestAnalyticsHandler_ByCategory(t *testing.T) {
	var got *services.Window
	svc := &mockAnalyticsService{
		byCategoryFn: func(_ context.Context, _ string, w *services.Window) (*services.CategoryReport, error) {
			got = w
			return &services.CategoryReport{}, nil
		},
	}
	r := setupAnalyticsRouter(NewAnalyticsHandler(svc))

	doRequest(r, "GET", "/analytics/by-category", "")
	if got != nil {
		t.Errorf("expected all-time report without dates, got %v", got)
	}

	doRequest(r, "GET", "/analytics/by-category?start_date=2024-03-01&end_date=2024-03-31", "")
	if got == nil || *got != march {
		t.Errorf("expected March window, got %v", got)
	}
}

func TestAnalyticsHandler_ByDate(t *testing.T) {
	t.Run("defaults to daily", func(t *testing.T) {
		var got services.Period
		svc := &mockAnalyticsService{
			byDateFn: func(_ context.Context, _ string, period services.Period, _ *services.Window) (*services.DateReport, error) {
				got = period
				return &services.DateReport{Period: period}, nil
			},
		}
		r := setupAnalyticsRouter(NewAnalyticsHandler(svc))

		rec := doRequest(r, "GET", "/analytics/by-date", "")

		if rec.Code != http.StatusOK || got != services.PeriodDaily {
			t.Errorf("expected daily 200, got %s %d", got, rec.Code)
		}
	})

	t.Run("rejects unknown period", func(t *testing.T) {
		r := setupAnalyticsRouter(NewAnalyticsHandler(&mockAnalyticsService{}))

		rec := doRequest(r, "GET", "/analytics/by-date?period=hourly", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestAnalyticsHandler_TopCategories(t *testing.T) {
	var got int
	svc := &mockAnalyticsService{
		topCategoriesFn: func(_ context.Context, _ string, limit int) ([]services.TopCategory, error) {
			got = limit
			return []services.TopCategory{}, nil
		},
	}
	r := setupAnalyticsRouter(NewAnalyticsHandler(svc))

	doRequest(r, "GET", "/analytics/top-categories", "")
	if got != 5 {
		t.Errorf("expected default limit 5, got %d", got)
	}

	rec := doRequest(r, "GET", "/analytics/top-categories?limit=0", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 on limit 0, got %d", rec.Code)
	}
}

func TestAnalyticsHandler_TopCategory(t *testing.T) {
	r := setupAnalyticsRouter(NewAnalyticsHandler(&mockAnalyticsService{}))

	rec := doRequest(r, "GET", "/analytics/top-category", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != `{"top_category":null}` {
		t.Errorf("expected null top category, got %s", rec.Body.String())
	}
}
