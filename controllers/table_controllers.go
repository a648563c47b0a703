package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/table-order/services"
	"github.com/yeremiapane/table-order/utils"
)

type TableController struct {
	Engine *services.OrderEngine
	Views  *services.ReadViews
}

func NewTableController(engine *services.OrderEngine, views *services.ReadViews) *TableController {
	return &TableController{Engine: engine, Views: views}
}

// GetAllTables -> menampilkan seluruh meja
func (tc *TableController) GetAllTables(c *gin.Context) {
	tables, err := tc.Views.ListTables(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of tables", tables)
}

// UpdateTableStatus -> update status meja (admin)
func (tc *TableController) UpdateTableStatus(c *gin.Context) {
	tableID, ok := paramID(c, "table_id")
	if !ok {
		return
	}

	var body struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondMessage(c, http.StatusBadRequest, "status field required")
		return
	}

	if err := tc.Engine.UpdateTableStatus(c.Request.Context(), tableID, body.Status); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.InfoLogger.Infof("Table %d status set to %s", tableID, body.Status)
	utils.RespondJSON(c, http.StatusOK, "Table status updated", gin.H{"table_id": tableID, "status": body.Status})
}
