package services

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/yeremiapane/table-order/cache"
	"github.com/yeremiapane/table-order/models"
	"gorm.io/gorm"
)

const (
	dailyStatsDays    = 30
	monthlyStatsMonth = 12
)

// ReadViews serves the dashboard and customer read paths. Shared views go
// through the cache; per-session views always hit the database.
type ReadViews struct {
	db    TxRunner
	cache *cache.Cache
	now   func() time.Time
}

func NewReadViews(db TxRunner, c *cache.Cache) *ReadViews {
	return &ReadViews{db: db, cache: c, now: time.Now}
}

func (v *ReadViews) ListTables(ctx context.Context) ([]models.Table, error) {
	return cache.Fetch(ctx, v.cache, cache.KeyAllTables, func(ctx context.Context) ([]models.Table, error) {
		tables := []models.Table{}
		err := v.db.WithConn(ctx, func(db *gorm.DB) error {
			return db.Order("id ASC").Find(&tables).Error
		})
		return tables, err
	})
}

func (v *ReadViews) ListOrders(ctx context.Context) ([]models.Order, error) {
	return cache.Fetch(ctx, v.cache, cache.KeyAllOrders, func(ctx context.Context) ([]models.Order, error) {
		orders := []models.Order{}
		err := v.db.WithConn(ctx, func(db *gorm.DB) error {
			return db.Order("created_at DESC").Order("id DESC").Find(&orders).Error
		})
		return orders, err
	})
}

func (v *ReadViews) OrdersBySession(ctx context.Context, sessionID string) ([]models.Order, error) {
	orders := []models.Order{}
	err := v.db.WithConn(ctx, func(db *gorm.DB) error {
		return db.Where("session_id = ?", sessionID).
			Order("created_at ASC").Order("id ASC").
			Find(&orders).Error
	})
	return orders, err
}

// OrdersByTable returns nothing without a session so one guest cannot list another's orders.
func (v *ReadViews) OrdersByTable(ctx context.Context, tableID uint, sessionID string) ([]models.Order, error) {
	orders := []models.Order{}
	if strings.TrimSpace(sessionID) == "" {
		return orders, nil
	}
	err := v.db.WithConn(ctx, func(db *gorm.DB) error {
		return db.Where("table_id = ? AND session_id = ?", tableID, sessionID).
			Order("id ASC").
			Find(&orders).Error
	})
	return orders, err
}

func (v *ReadViews) TotalIncome(ctx context.Context) (models.IncomeSummary, error) {
	return cache.Fetch(ctx, v.cache, cache.KeyTotalIncome, func(ctx context.Context) (models.IncomeSummary, error) {
		var total float64
		err := v.db.WithConn(ctx, func(db *gorm.DB) error {
			return db.Model(&models.Order{}).
				Where("status = ?", models.OrderPaid).
				Select("COALESCE(SUM(total), 0)").
				Scan(&total).Error
		})
		return models.IncomeSummary{TotalIncome: round2(total)}, err
	})
}

type paidRow struct {
	Total     float64
	CreatedAt time.Time
}

func (v *ReadViews) paidSince(ctx context.Context, since time.Time) ([]paidRow, error) {
	var rows []paidRow
	err := v.db.WithConn(ctx, func(db *gorm.DB) error {
		return db.Model(&models.Order{}).
			Select("total", "created_at").
			Where("status = ? AND created_at >= ?", models.OrderPaid, since).
			Find(&rows).Error
	})
	return rows, err
}

// DailyStats covers the last 30 days of paid orders, newest day first.
func (v *ReadViews) DailyStats(ctx context.Context) ([]models.DailyStat, error) {
	return cache.Fetch(ctx, v.cache, cache.KeyStatsDaily, func(ctx context.Context) ([]models.DailyStat, error) {
		today := truncateDay(v.now().UTC())
		rows, err := v.paidSince(ctx, today.AddDate(0, 0, -dailyStatsDays))
		if err != nil {
			return nil, err
		}

		byDate := map[string]*models.DailyStat{}
		for _, r := range rows {
			key := r.CreatedAt.UTC().Format("2006-01-02")
			s, ok := byDate[key]
			if !ok {
				s = &models.DailyStat{Date: key}
				byDate[key] = s
			}
			s.TotalOrders++
			s.TotalIncome += r.Total
		}

		stats := make([]models.DailyStat, 0, len(byDate))
		for _, s := range byDate {
			s.TotalIncome = round2(s.TotalIncome)
			s.AvgOrderValue = round2(s.TotalIncome / float64(s.TotalOrders))
			stats = append(stats, *s)
		}
		sort.Slice(stats, func(i, j int) bool { return stats[i].Date > stats[j].Date })
		return stats, nil
	})
}

// MonthlyStats covers the last 12 months, newest month first.
func (v *ReadViews) MonthlyStats(ctx context.Context) ([]models.MonthlyStat, error) {
	return cache.Fetch(ctx, v.cache, cache.KeyStatsMonthly, func(ctx context.Context) ([]models.MonthlyStat, error) {
		today := truncateDay(v.now().UTC())
		rows, err := v.paidSince(ctx, today.AddDate(0, -monthlyStatsMonth, 0))
		if err != nil {
			return nil, err
		}

		type bucket struct {
			stat     models.MonthlyStat
			weekdays [7]int64
		}
		byMonth := map[[2]int]*bucket{}
		for _, r := range rows {
			t := r.CreatedAt.UTC()
			key := [2]int{t.Year(), int(t.Month())}
			b, ok := byMonth[key]
			if !ok {
				b = &bucket{stat: models.MonthlyStat{
					Year:       t.Year(),
					Month:      int(t.Month()),
					MonthLabel: t.Format("Jan 2006"),
				}}
				byMonth[key] = b
			}
			b.stat.TotalOrders++
			b.stat.TotalIncome += r.Total
			b.weekdays[t.Weekday()]++
		}

		stats := make([]models.MonthlyStat, 0, len(byMonth))
		for _, b := range byMonth {
			s := b.stat
			s.TotalIncome = round2(s.TotalIncome)
			s.AvgOrderValue = round2(s.TotalIncome / float64(s.TotalOrders))
			s.BestDay = bestWeekday(b.weekdays).String()
			stats = append(stats, s)
		}
		sort.Slice(stats, func(i, j int) bool {
			if stats[i].Year != stats[j].Year {
				return stats[i].Year > stats[j].Year
			}
			return stats[i].Month > stats[j].Month
		})
		return stats, nil
	})
}

// PaidOrdersForMonth returns paid orders of month (YYYY-MM, blank for the current month), oldest first.
func (v *ReadViews) PaidOrdersForMonth(ctx context.Context, month string) ([]models.Order, error) {
	var start time.Time
	if strings.TrimSpace(month) == "" {
		now := v.now().UTC()
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	} else {
		t, err := time.Parse("2006-01", strings.TrimSpace(month))
		if err != nil {
			return nil, invalid("month", "must be formatted as YYYY-MM")
		}
		start = t
	}
	end := start.AddDate(0, 1, 0)

	orders := []models.Order{}
	err := v.db.WithConn(ctx, func(db *gorm.DB) error {
		return db.Where("status = ? AND created_at >= ? AND created_at < ?", models.OrderPaid, start, end).
			Order("created_at ASC").Order("id ASC").
			Find(&orders).Error
	})
	return orders, err
}

// bestWeekday picks the weekday with most orders; ties go to the earlier day, Sunday first.
func bestWeekday(counts [7]int64) time.Weekday {
	best := time.Sunday
	for d := time.Monday; d <= time.Saturday; d++ {
		if counts[d] > counts[best] {
			best = d
		}
	}
	return best
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
