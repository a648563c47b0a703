package controllers

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/table-order/models"
	"github.com/yeremiapane/table-order/services"
	"github.com/yeremiapane/table-order/utils"
)

var csvHeader = []string{"Order ID", "Date", "Time", "Table", "Customer", "WhatsApp", "Items", "Total"}

type StatsController struct {
	Views *services.ReadViews
}

func NewStatsController(views *services.ReadViews) *StatsController {
	return &StatsController{Views: views}
}

func (sc *StatsController) TotalIncome(c *gin.Context) {
	income, err := sc.Views.TotalIncome(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Total income", income)
}

func (sc *StatsController) Daily(c *gin.Context) {
	stats, err := sc.Views.DailyStats(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Daily stats", stats)
}

func (sc *StatsController) Monthly(c *gin.Context) {
	stats, err := sc.Views.MonthlyStats(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Monthly stats", stats)
}

// MonthlyCSV -> download order paid untuk ?month=YYYY-MM (default bulan ini)
func (sc *StatsController) MonthlyCSV(c *gin.Context) {
	month := strings.TrimSpace(c.Query("month"))
	orders, err := sc.Views.PaidOrdersForMonth(c.Request.Context(), month)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	name := month
	if name == "" {
		name = "this_month"
	}
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=orders_"+name+".csv")
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	_ = w.Write(csvHeader)
	for i := range orders {
		_ = w.Write(csvRow(&orders[i]))
	}
	w.Flush()
	if err := w.Error(); err != nil {
		utils.ErrorLogger.WithError(err).Warn("failed to write CSV export")
	}
}

func csvRow(o *models.Order) []string {
	table := "-"
	if o.TableID != nil {
		table = "Table " + strconv.FormatUint(uint64(*o.TableID), 10)
	}
	created := o.CreatedAt.UTC()
	return []string{
		strconv.FormatUint(uint64(o.ID), 10),
		created.Format("2006-01-02"),
		created.Format("15:04"),
		table,
		deref(o.CustomerName),
		deref(o.WhatsApp),
		o.ItemsSummary(),
		strconv.FormatFloat(o.Total, 'f', 2, 64),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
