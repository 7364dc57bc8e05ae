package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendlens/internal/models"
	"spendlens/internal/services"
	"spendlens/internal/testutil"
)

type pushed struct {
	TotalAmount      decimal.Decimal            `json:"total_amount"`
	AnalysisOverTime map[string]decimal.Decimal `json:"analysis_over_time"`
	CategoryAnalysis map[string]decimal.Decimal `json:"category_analysis"`
}

func decode(t *testing.T, raw []byte) pushed {
	t.Helper()
	var p pushed
	require.NoError(t, json.Unmarshal(raw, &p))
	return p
}

func createText(t *testing.T, svc services.TransactionServicer, userID string, amount string, categoryID *string) {
	t.Helper()
	_, err := svc.CreateTransaction(userID, services.CreateTransactionInput{
		Source:     models.TransactionSourceText,
		Amount:     decimal.RequireFromString(amount),
		Text:       "coffee",
		CategoryID: categoryID,
	})
	require.NoError(t, err)
}

func TestRefreshPushesCommittedSummary(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	hub := NewHub()
	refresher := NewRefresher(services.NewAnalyticsService(db, time.UTC), hub, 5*time.Second)
	txs := services.NewTransactionService(db)

	user := testutil.CreateTestUser(t, db)
	other := testutil.CreateTestUser(t, db)
	food := testutil.CreateTestCategoryNamed(t, db, user.ID, "Food")

	mine, theirs := &fakeConn{}, &fakeConn{}
	hub.Register(mine, user.ID)
	hub.Register(theirs, other.ID)

	createText(t, txs, user.ID, "12.5", &food.ID)
	refresher.Trigger(user.ID)
	refresher.Wait()

	msgs := mine.received()
	require.Len(t, msgs, 1)
	got := decode(t, msgs[0])
	assert.True(t, got.TotalAmount.Equal(decimal.RequireFromString("12.5")), "total %s", got.TotalAmount)
	assert.True(t, got.CategoryAnalysis["Food"].Equal(decimal.RequireFromString("12.5")))
	assert.Len(t, got.AnalysisOverTime, 1)

	assert.Empty(t, theirs.received(), "another user's subscriber must not see the summary")
}

func TestRefreshFailureIsContained(t *testing.T) {
	db := testutil.SetupTestDB(t)
	user := testutil.CreateTestUser(t, db)

	hub := NewHub()
	c := &fakeConn{}
	hub.Register(c, user.ID)
	refresher := NewRefresher(services.NewAnalyticsService(db, time.UTC), hub, time.Second)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	assert.NotPanics(t, func() {
		refresher.Trigger(user.ID)
		refresher.Wait()
	})
	assert.Empty(t, c.received())
	assert.Equal(t, 1, hub.Len())
}

// blockingAnalytics never finishes before its context is done.
type blockingAnalytics struct {
	services.AnalyticsServicer
	sawDeadline chan bool
}

func (b *blockingAnalytics) DefaultWindow() services.Window { return services.Window{} }

func (b *blockingAnalytics) HomeAnalytics(ctx context.Context, _ string, _ services.Window, _ bool) (*services.HomeAnalytics, error) {
	_, ok := ctx.Deadline()
	b.sawDeadline <- ok
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRefreshIsBoundedByTimeout(t *testing.T) {
	hub := NewHub()
	c := &fakeConn{}
	hub.Register(c, "u1")

	analytics := &blockingAnalytics{sawDeadline: make(chan bool, 1)}
	refresher := NewRefresher(analytics, hub, 20*time.Millisecond)

	refresher.Trigger("u1")
	refresher.Wait()

	assert.True(t, <-analytics.sawDeadline)
	assert.Empty(t, c.received())
}

func TestConcurrentCreatesEventuallyPushLatest(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	hub := NewHub()
	refresher := NewRefresher(services.NewAnalyticsService(db, time.UTC), hub, 5*time.Second)
	txs := services.NewTransactionService(db)
	user := testutil.CreateTestUser(t, db)

	c := &fakeConn{}
	hub.Register(c, user.ID)

	const creates = 8
	var wg sync.WaitGroup
	for i := 0; i < creates; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := txs.CreateTransaction(user.ID, services.CreateTransactionInput{
				Source: models.TransactionSourceText,
				Amount: decimal.NewFromInt(2),
				Text:   "snack",
			})
			if !assert.NoError(t, err) {
				return
			}
			refresher.Trigger(user.ID)
		}()
	}
	wg.Wait()
	refresher.Wait()

	msgs := c.received()
	require.Len(t, msgs, creates, "one push per create")

	// Pushes may arrive out of creation order, but the refresh scheduled
	// after the last commit observes every transaction.
	want := decimal.NewFromInt(2 * creates)
	var sawAll bool
	for _, raw := range msgs {
		p := decode(t, raw)
		assert.True(t, p.TotalAmount.LessThanOrEqual(want))
		if p.TotalAmount.Equal(want) {
			sawAll = true
		}
	}
	assert.True(t, sawAll, "expected a push reflecting all %d transactions", creates)
}
