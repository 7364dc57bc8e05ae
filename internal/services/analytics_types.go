package services

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// UncategorizedLabel is the category label used for transactions without a
// resolvable category.
const UncategorizedLabel = "Uncategorized"

// DefaultCategoryChartColor is reported for uncategorized spending.
const DefaultCategoryChartColor = "#cccccc"

// Window is the half-open interval [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Entry is one labelled sum.
type Entry struct {
	Key    string
	Amount decimal.Decimal
}

// Breakdown is an ordered label to amount mapping. It marshals to a JSON
// object whose keys keep slice order.
type Breakdown []Entry

// MarshalJSON implements json.Marshaler.
func (b Breakdown) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(e.Amount.String())
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Get returns the amount recorded under key.
func (b Breakdown) Get(key string) (decimal.Decimal, bool) {
	for _, e := range b {
		if e.Key == key {
			return e.Amount, true
		}
	}
	return decimal.Zero, false
}

// Sum adds every amount in the breakdown.
func (b Breakdown) Sum() decimal.Decimal {
	total := decimal.Zero
	for _, e := range b {
		total = total.Add(e.Amount)
	}
	return total
}

// HomeAnalytics is the per-user summary pushed over the realtime channel and
// served by GET /analytics/home.
type HomeAnalytics struct {
	TotalAmount      decimal.Decimal `json:"total_amount"`
	AnalysisOverTime Breakdown       `json:"analysis_over_time"`
	CategoryAnalysis Breakdown       `json:"category_analysis"`
}

// TopCategory is the expense category with the largest sum.
type TopCategory struct {
	CategoryID  string          `json:"category_id"`
	Name        string          `json:"name"`
	Color       string          `json:"color"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Count       int64           `json:"count"`
}

// PeriodTotal is a sum and count over a window.
type PeriodTotal struct {
	TotalAmount      decimal.Decimal `json:"total_amount"`
	TransactionCount int64           `json:"transaction_count"`
	Period           *Window         `json:"period,omitempty"`
}

// Summary is the dashboard overview.
type Summary struct {
	AllTime         PeriodTotal `json:"all_time"`
	ThisMonth       PeriodTotal `json:"this_month"`
	CategoriesCount int64       `json:"categories_count"`
}

// CategorySpending is one row of the by-category report.
type CategorySpending struct {
	CategoryID    *string         `json:"category_id"`
	Name          string          `json:"name"`
	Color         string          `json:"color"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Count         int64           `json:"count"`
	AverageAmount decimal.Decimal `json:"average_amount"`
	Percentage    decimal.Decimal `json:"percentage"`
}

// CategoryReport is the by-category response.
type CategoryReport struct {
	GrandTotal decimal.Decimal    `json:"grand_total"`
	Categories []CategorySpending `json:"categories"`
}

// Period selects the by-date bucket size.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// Valid reports whether p is a known bucket size.
func (p Period) Valid() bool {
	return p == PeriodDaily || p == PeriodWeekly || p == PeriodMonthly
}

// DateBucket is one row of the by-date report.
type DateBucket struct {
	Key         string          `json:"key"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Count       int64           `json:"count"`
}

// DateReport is the by-date response.
type DateReport struct {
	Period  Period       `json:"period"`
	Window  Window       `json:"date_range"`
	Buckets []DateBucket `json:"analytics"`
}

// TrendDirection summarizes a month over month change.
type TrendDirection string

const (
	TrendIncrease TrendDirection = "increase"
	TrendDecrease TrendDirection = "decrease"
	TrendStable   TrendDirection = "stable"
)

// Comparison relates the current month to the previous one.
type Comparison struct {
	Difference       decimal.Decimal `json:"difference"`
	PercentageChange decimal.Decimal `json:"percentage_change"`
	Trend            TrendDirection  `json:"trend"`
}

// Trends compares this month with the previous one.
type Trends struct {
	CurrentMonth  PeriodTotal `json:"current_month"`
	PreviousMonth PeriodTotal `json:"previous_month"`
	Comparison    Comparison  `json:"comparison"`
}

// percentOf returns part/whole*100 rounded to two places, or zero when whole is zero.
func percentOf(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(decimal.NewFromInt(100)).Round(2)
}
