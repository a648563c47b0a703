package models

// DailyStat is one row of the last-30-days paid order report.
type DailyStat struct {
	Date          string  `json:"date"`
	TotalOrders   int64   `json:"total_orders"`
	TotalIncome   float64 `json:"total_income"`
	AvgOrderValue float64 `json:"avg_order_value"`
}

// MonthlyStat is one row of the last-12-months report.
type MonthlyStat struct {
	Year          int     `json:"year"`
	Month         int     `json:"month"`
	MonthLabel    string  `json:"month_label"`
	TotalOrders   int64   `json:"total_orders"`
	TotalIncome   float64 `json:"total_income"`
	AvgOrderValue float64 `json:"avg_order_value"`
	BestDay       string  `json:"best_day"`
}

type IncomeSummary struct {
	TotalIncome float64 `json:"total_income"`
}
