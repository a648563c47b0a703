package router

import (
	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/table-order/config"
	"github.com/yeremiapane/table-order/controllers"
	"github.com/yeremiapane/table-order/middlewares"
	"github.com/yeremiapane/table-order/services"
	"golang.org/x/time/rate"
)

func SetupRouter(app *services.App, cfg *config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(middlewares.LoggerMiddleware())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares(cfg.FrontendURL))
	r.Use(middlewares.NewRateLimiter(rate.Limit(50), 100).RateLimit())

	// Inisialisasi controller
	tableCtrl := controllers.NewTableController(app.Engine, app.Views)
	orderCtrl := controllers.NewOrderController(app.Engine, app.Views)
	statsCtrl := controllers.NewStatsController(app.Views)
	adminCtrl := controllers.NewAdminController(app.Auth)
	healthCtrl := controllers.NewHealthController(app.Pool)
	kdsCtrl := controllers.NewKDSController(app.Hub, cfg.FrontendURL)

	requireAdmin := middlewares.AuthMiddleware(app.Tokens)

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/health", healthCtrl.Health)
	r.GET("/ws", kdsCtrl.Handler)

	// Rate limiter ketat untuk login
	r.POST("/admin/login", middlewares.NewStrictRateLimiter(), adminCtrl.Login)

	// -- CUSTOMER (Tanpa Auth) --
	r.GET("/tables", tableCtrl.GetAllTables)
	r.POST("/orders", orderCtrl.CreateOrder)
	r.GET("/orders/session/:session_id", orderCtrl.GetSessionOrders)
	r.GET("/orders/table/:table_id", orderCtrl.GetOrdersByTable)

	// ----------------------------------------------------------------
	//                      ADMIN ROUTES
	// ----------------------------------------------------------------
	r.PUT("/tables/:table_id", requireAdmin, tableCtrl.UpdateTableStatus)

	r.GET("/orders", requireAdmin, orderCtrl.GetAllOrders)
	r.PUT("/orders/:order_id", requireAdmin, orderCtrl.UpdateOrderStatus)
	r.PUT("/orders/:order_id/pay", requireAdmin, orderCtrl.MarkPaid)

	r.GET("/income", requireAdmin, statsCtrl.TotalIncome)

	stats := r.Group("/stats")
	stats.Use(requireAdmin)
	{
		stats.GET("/daily", statsCtrl.Daily)
		stats.GET("/monthly", statsCtrl.Monthly)
		stats.GET("/monthly/csv", statsCtrl.MonthlyCSV)
	}

	return r
}
