package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/table-order/utils"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthController struct {
	DB Pinger
}

func NewHealthController(db Pinger) *HealthController {
	return &HealthController{DB: db}
}

func (hc *HealthController) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := hc.DB.Ping(ctx); err != nil {
		utils.ErrorLogger.WithError(err).Error("Health check DB failure")
		utils.RespondJSON(c, http.StatusServiceUnavailable, "degraded", gin.H{"db": "unavailable"})
		return
	}
	utils.RespondJSON(c, http.StatusOK, "ok", gin.H{"db": "connected"})
}
