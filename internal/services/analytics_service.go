package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	apperrors "spendlens/internal/errors"
	"spendlens/internal/models"
)

// analyticsService computes spending aggregates. It holds no state between
// calls, so concurrent calls for any users are safe.
type analyticsService struct {
	db  *gorm.DB
	loc *time.Location
	now func() time.Time
}

// NewAnalyticsService creates a new AnalyticsServicer. Day and month
// boundaries are taken in loc.
func NewAnalyticsService(db *gorm.DB, loc *time.Location) AnalyticsServicer {
	if loc == nil {
		loc = time.UTC
	}
	return &analyticsService{db: db, loc: loc, now: time.Now}
}

// DefaultWindow is the current calendar month.
func (s *analyticsService) DefaultWindow() Window {
	return MonthWindow(s.now(), s.loc, 0)
}

// Location returns the zone used for bucket boundaries.
func (s *analyticsService) Location() *time.Location {
	return s.loc
}

// owned scopes a transaction query to one user, excluding soft-deleted rows.
func (s *analyticsService) owned(ctx context.Context, userID string) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.Transaction{}).Where("transactions.user_id = ?", userID)
}

func within(q *gorm.DB, w Window) *gorm.DB {
	return q.Where("transactions.created_at >= ? AND transactions.created_at < ?", w.Start.UTC(), w.End.UTC())
}

func aggregationFailed(stage string, err error) error {
	return apperrors.Wrap(apperrors.ErrAggregationFailed, fmt.Errorf("%s: %w", stage, err))
}

type totalRow struct {
	Total decimal.Decimal
	Count int64
}

type timedAmount struct {
	CreatedAt time.Time
	Amount    decimal.Decimal
}

// periodTotal sums in Go. SQLite keeps decimal columns as REAL, so SUM in SQL
// would hand back a float.
func (s *analyticsService) periodTotal(q *gorm.DB) (totalRow, error) {
	var points []timedAmount
	if err := q.Select("transactions.created_at AS created_at, transactions.amount AS amount").Scan(&points).Error; err != nil {
		return totalRow{}, err
	}
	row := totalRow{Total: decimal.Zero, Count: int64(len(points))}
	for _, p := range points {
		row.Total = row.Total.Add(p.Amount)
	}
	return row, nil
}

// ledgerRow is one owned transaction with its resolved category. Category
// columns are NULL for uncategorized rows.
type ledgerRow struct {
	CreatedAt  time.Time
	Amount     decimal.Decimal
	CategoryID *string
	Name       *string
	Color      *string
}

// joinCategory resolves the display name; missing or foreign categories stay NULL.
func joinCategory(q *gorm.DB) *gorm.DB {
	return q.Joins("LEFT JOIN categories ON categories.id = transactions.category_id " +
		"AND categories.user_id = transactions.user_id AND categories.deleted_at IS NULL")
}

func ledger(q *gorm.DB) ([]ledgerRow, error) {
	var rows []ledgerRow
	err := joinCategory(q).
		Select("transactions.created_at AS created_at, transactions.amount AS amount, " +
			"categories.id AS category_id, categories.name AS name, categories.color AS color").
		Scan(&rows).Error
	return rows, err
}

// HomeAnalytics returns the total, day buckets and category breakdown for
// userID over w. All three come from a single read so they always agree.
func (s *analyticsService) HomeAnalytics(ctx context.Context, userID string, w Window, expenseOnly bool) (*HomeAnalytics, error) {
	q := within(s.owned(ctx, userID), w)
	if expenseOnly {
		q = q.Where("transactions.kind = ?", models.TransactionKindExpense)
	}

	rows, err := ledger(q)
	if err != nil {
		return nil, aggregationFailed("home", err)
	}

	total := decimal.Zero
	points := make([]timedAmount, 0, len(rows))
	for _, r := range rows {
		total = total.Add(r.Amount)
		points = append(points, timedAmount{CreatedAt: r.CreatedAt, Amount: r.Amount})
	}

	return &HomeAnalytics{
		TotalAmount:      total,
		AnalysisOverTime: bucketize(points, s.periodKey(PeriodDaily)),
		CategoryAnalysis: categoryBreakdown(rows),
	}, nil
}

func bucketize(points []timedAmount, key func(time.Time) string) Breakdown {
	sums := make(map[string]decimal.Decimal)
	for _, p := range points {
		k := key(p.CreatedAt)
		sums[k] = sums[k].Add(p.Amount)
	}
	out := make(Breakdown, 0, len(sums))
	for k, v := range sums {
		out = append(out, Entry{Key: k, Amount: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// categoryBreakdown sums amounts per category name, largest first.
func categoryBreakdown(rows []ledgerRow) Breakdown {
	sums := make(map[string]decimal.Decimal)
	for _, r := range rows {
		label := UncategorizedLabel
		if r.Name != nil {
			label = *r.Name
		}
		sums[label] = sums[label].Add(r.Amount)
	}

	out := make(Breakdown, 0, len(sums))
	for k, v := range sums {
		out = append(out, Entry{Key: k, Amount: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// TopSpendingCategory returns the category with the largest expense total, or
// nil when the user has no categorized expenses.
func (s *analyticsService) TopSpendingCategory(ctx context.Context, userID string) (*TopCategory, error) {
	top, err := s.topCategories(ctx, userID, 1)
	if err != nil {
		return nil, err
	}
	if len(top) == 0 {
		return nil, nil
	}
	return &top[0], nil
}

// TopCategories returns up to limit expense categories ordered by total.
func (s *analyticsService) TopCategories(ctx context.Context, userID string, limit int) ([]TopCategory, error) {
	if limit <= 0 {
		limit = 5
	}
	return s.topCategories(ctx, userID, limit)
}

func (s *analyticsService) topCategories(ctx context.Context, userID string, limit int) ([]TopCategory, error) {
	var rows []ledgerRow
	err := s.owned(ctx, userID).
		Joins("JOIN categories ON categories.id = transactions.category_id "+
			"AND categories.user_id = transactions.user_id AND categories.deleted_at IS NULL").
		Where("transactions.kind = ? AND transactions.category_id IS NOT NULL", models.TransactionKindExpense).
		Select("transactions.amount AS amount, categories.id AS category_id, " +
			"categories.name AS name, categories.color AS color").
		Scan(&rows).Error
	if err != nil {
		return nil, aggregationFailed("top categories", err)
	}

	byID := make(map[string]*TopCategory)
	for _, r := range rows {
		tc, ok := byID[*r.CategoryID]
		if !ok {
			tc = &TopCategory{CategoryID: *r.CategoryID, TotalAmount: decimal.Zero}
			if r.Name != nil {
				tc.Name = *r.Name
			}
			if r.Color != nil {
				tc.Color = *r.Color
			}
			byID[*r.CategoryID] = tc
		}
		tc.TotalAmount = tc.TotalAmount.Add(r.Amount)
		tc.Count++
	}

	out := make([]TopCategory, 0, len(byID))
	for _, tc := range byID {
		out = append(out, *tc)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].TotalAmount.Cmp(out[j].TotalAmount); c != 0 {
			return c > 0
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Summary returns all-time and this-month totals plus the category count.
func (s *analyticsService) Summary(ctx context.Context, userID string) (*Summary, error) {
	month := s.DefaultWindow()
	var out Summary

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		row, err := s.periodTotal(s.owned(gctx, userID))
		if err != nil {
			return aggregationFailed("all-time total", err)
		}
		out.AllTime = PeriodTotal{TotalAmount: row.Total, TransactionCount: row.Count}
		return nil
	})
	g.Go(func() error {
		row, err := s.periodTotal(within(s.owned(gctx, userID), month))
		if err != nil {
			return aggregationFailed("monthly total", err)
		}
		out.ThisMonth = PeriodTotal{TotalAmount: row.Total, TransactionCount: row.Count, Period: &month}
		return nil
	})
	g.Go(func() error {
		err := s.db.WithContext(gctx).Model(&models.Category{}).
			Where("user_id = ?", userID).
			Count(&out.CategoriesCount).Error
		if err != nil {
			return aggregationFailed("category count", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &out, nil
}

// ByCategory reports per-category totals with their share of the grand total.
// A nil window covers all time.
func (s *analyticsService) ByCategory(ctx context.Context, userID string, w *Window) (*CategoryReport, error) {
	q := s.owned(ctx, userID)
	if w != nil {
		q = within(q, *w)
	}

	rows, err := ledger(q)
	if err != nil {
		return nil, aggregationFailed("by category", err)
	}

	report := &CategoryReport{GrandTotal: decimal.Zero, Categories: []CategorySpending{}}
	index := make(map[string]int)
	for _, r := range rows {
		report.GrandTotal = report.GrandTotal.Add(r.Amount)

		key := ""
		if r.CategoryID != nil {
			key = *r.CategoryID
		}
		i, ok := index[key]
		if !ok {
			cs := CategorySpending{
				CategoryID:  r.CategoryID,
				Name:        UncategorizedLabel,
				Color:       DefaultCategoryChartColor,
				TotalAmount: decimal.Zero,
			}
			if r.Name != nil {
				cs.Name = *r.Name
			}
			if r.Color != nil && *r.Color != "" {
				cs.Color = *r.Color
			}
			i = len(report.Categories)
			index[key] = i
			report.Categories = append(report.Categories, cs)
		}
		report.Categories[i].TotalAmount = report.Categories[i].TotalAmount.Add(r.Amount)
		report.Categories[i].Count++
	}

	for i := range report.Categories {
		cs := &report.Categories[i]
		cs.AverageAmount = cs.TotalAmount.Div(decimal.NewFromInt(cs.Count)).Round(2)
		cs.Percentage = percentOf(cs.TotalAmount, report.GrandTotal)
	}
	sort.SliceStable(report.Categories, func(i, j int) bool {
		if c := report.Categories[i].TotalAmount.Cmp(report.Categories[j].TotalAmount); c != 0 {
			return c > 0
		}
		return report.Categories[i].Name < report.Categories[j].Name
	})
	return report, nil
}

// ByDate buckets totals by day, ISO week or month. A nil window means the
// last 30 days.
func (s *analyticsService) ByDate(ctx context.Context, userID string, period Period, w *Window) (*DateReport, error) {
	if !period.Valid() {
		period = PeriodDaily
	}
	if w == nil {
		end := s.now()
		w = &Window{Start: end.AddDate(0, 0, -30), End: end}
	}

	var points []timedAmount
	err := within(s.owned(ctx, userID), *w).
		Select("transactions.created_at AS created_at, transactions.amount AS amount").
		Scan(&points).Error
	if err != nil {
		return nil, aggregationFailed("by date", err)
	}

	key := s.periodKey(period)
	counts := make(map[string]int64)
	for _, p := range points {
		counts[key(p.CreatedAt)]++
	}

	buckets := make([]DateBucket, 0, len(counts))
	for _, e := range bucketize(points, key) {
		buckets = append(buckets, DateBucket{Key: e.Key, TotalAmount: e.Amount, Count: counts[e.Key]})
	}
	return &DateReport{Period: period, Window: *w, Buckets: buckets}, nil
}

func (s *analyticsService) periodKey(period Period) func(time.Time) string {
	switch period {
	case PeriodWeekly:
		return func(t time.Time) string {
			year, week := t.In(s.loc).ISOWeek()
			return fmt.Sprintf("%04d-W%02d", year, week)
		}
	case PeriodMonthly:
		return func(t time.Time) string { return t.In(s.loc).Format("2006-01") }
	}
	return func(t time.Time) string { return t.In(s.loc).Format(time.DateOnly) }
}

// Trends compares this calendar month to the previous one.
func (s *analyticsService) Trends(ctx context.Context, userID string) (*Trends, error) {
	now := s.now()
	current := MonthWindow(now, s.loc, 0)
	previous := MonthWindow(now, s.loc, -1)

	var cur, prev totalRow
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		cur, err = s.periodTotal(within(s.owned(gctx, userID), current))
		return err
	})
	g.Go(func() (err error) {
		prev, err = s.periodTotal(within(s.owned(gctx, userID), previous))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, aggregationFailed("trends", err)
	}

	change := percentOf(cur.Total.Sub(prev.Total), prev.Total)
	direction := TrendStable
	switch change.Sign() {
	case 1:
		direction = TrendIncrease
	case -1:
		direction = TrendDecrease
	}

	return &Trends{
		CurrentMonth:  PeriodTotal{TotalAmount: cur.Total, TransactionCount: cur.Count, Period: &current},
		PreviousMonth: PeriodTotal{TotalAmount: prev.Total, TransactionCount: prev.Count, Period: &previous},
		Comparison: Comparison{
			Difference:       cur.Total.Sub(prev.Total),
			PercentageChange: change,
			Trend:            direction,
		},
	}, nil
}
