package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/table-order/models"
	"github.com/yeremiapane/table-order/testutil"
)

func seedOrder(t *testing.T, f *fixture, status string, total float64, at time.Time, table *uint, session string) models.Order {
	t.Helper()
	o := models.Order{
		TableID:   table,
		Items:     []models.OrderItem{{Name: "Thali", Quantity: 1, Price: total}},
		Total:     total,
		Status:    status,
		SessionID: session,
		CreatedAt: at,
	}
	require.NoError(t, f.db.Create(&o).Error)
	return o
}

func statsFixture(t *testing.T) (*fixture, *ReadViews) {
	f := newFixture(t)
	views := NewReadViews(f.pool, nil)
	views.now = testutil.NewClock(time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)).Now

	seedOrder(t, f, models.OrderPaid, 100, time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC), nil, "a")
	seedOrder(t, f, models.OrderPaid, 50.5, time.Date(2024, 3, 15, 11, 0, 0, 0, time.UTC), nil, "b")
	seedOrder(t, f, models.OrderPaid, 20, time.Date(2024, 3, 14, 19, 30, 0, 0, time.UTC), nil, "c")
	seedOrder(t, f, models.OrderPaid, 40, time.Date(2024, 2, 10, 13, 0, 0, 0, time.UTC), nil, "d")
	seedOrder(t, f, models.OrderPending, 999, time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC), nil, "e")
	seedOrder(t, f, models.OrderPaid, 500, time.Date(2023, 1, 1, 9, 0, 0, 0, time.UTC), nil, "f")
	return f, views
}

func TestDailyStats(t *testing.T) {
	_, views := statsFixture(t)

	stats, err := views.DailyStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.DailyStat{
		{Date: "2024-03-15", TotalOrders: 2, TotalIncome: 150.5, AvgOrderValue: 75.25},
		{Date: "2024-03-14", TotalOrders: 1, TotalIncome: 20, AvgOrderValue: 20},
	}, stats)
}

func TestMonthlyStats(t *testing.T) {
	_, views := statsFixture(t)

	stats, err := views.MonthlyStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.MonthlyStat{
		{Year: 2024, Month: 3, MonthLabel: "Mar 2024", TotalOrders: 3, TotalIncome: 170.5, AvgOrderValue: 56.83, BestDay: "Friday"},
		{Year: 2024, Month: 2, MonthLabel: "Feb 2024", TotalOrders: 1, TotalIncome: 40, AvgOrderValue: 40, BestDay: "Saturday"},
	}, stats)
}

func TestTotalIncomeCountsOnlyPaid(t *testing.T) {
	_, views := statsFixture(t)

	income, err := views.TotalIncome(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 710.5, income.TotalIncome)
}

func TestPaidOrdersForMonth(t *testing.T) {
	_, views := statsFixture(t)
	ctx := context.Background()

	march, err := views.PaidOrdersForMonth(ctx, "2024-03")
	require.NoError(t, err)
	require.Len(t, march, 3)
	assert.Equal(t, 20.0, march[0].Total)
	assert.Equal(t, 50.5, march[2].Total)

	current, err := views.PaidOrdersForMonth(ctx, "")
	require.NoError(t, err)
	assert.Len(t, current, 3)

	empty, err := views.PaidOrdersForMonth(ctx, "2022-07")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = views.PaidOrdersForMonth(ctx, "March")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSessionAndTableViews(t *testing.T) {
	f := newFixture(t)
	views := NewReadViews(f.pool, nil)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	second := seedOrder(t, f, models.OrderPending, 20, base.Add(time.Minute), uintPtr(2), "guest-1")
	first := seedOrder(t, f, models.OrderPending, 10, base, uintPtr(2), "guest-1")
	seedOrder(t, f, models.OrderPending, 30, base, uintPtr(2), "guest-2")

	bySession, err := views.OrdersBySession(ctx, "guest-1")
	require.NoError(t, err)
	require.Len(t, bySession, 2)
	assert.Equal(t, first.ID, bySession[0].ID)
	assert.Equal(t, second.ID, bySession[1].ID)

	byTable, err := views.OrdersByTable(ctx, 2, "guest-1")
	require.NoError(t, err)
	require.Len(t, byTable, 2)
	assert.Equal(t, second.ID, byTable[0].ID)

	none, err := views.OrdersByTable(ctx, 2, "")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	all, err := views.ListOrders(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, second.ID, all[0].ID)
}

func TestBestWeekdayTieGoesToEarlierDay(t *testing.T) {
	var counts [7]int64
	counts[time.Tuesday] = 2
	counts[time.Thursday] = 2
	assert.Equal(t, time.Tuesday, bestWeekday(counts))
	assert.Equal(t, time.Sunday, bestWeekday([7]int64{}))
}
