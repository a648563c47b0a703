package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/table-order/services"
	"github.com/yeremiapane/table-order/utils"
)

type OrderController struct {
	Engine *services.OrderEngine
	Views  *services.ReadViews
}

func NewOrderController(engine *services.OrderEngine, views *services.ReadViews) *OrderController {
	return &OrderController{Engine: engine, Views: views}
}

// CreateOrder -> order baru dari customer (status pending)
func (oc *OrderController) CreateOrder(c *gin.Context) {
	var body services.NewOrder
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondMessage(c, http.StatusBadRequest, "invalid JSON")
		return
	}

	order, err := oc.Engine.CreateOrder(c.Request.Context(), body)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.InfoLogger.WithField("order_id", order.ID).Info("New order created")
	utils.RespondJSON(c, http.StatusCreated, "Order created successfully", order)
}

// GetAllOrders -> semua order, terbaru dulu (admin)
func (oc *OrderController) GetAllOrders(c *gin.Context) {
	orders, err := oc.Views.ListOrders(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of orders", orders)
}

func (oc *OrderController) GetSessionOrders(c *gin.Context) {
	orders, err := oc.Views.OrdersBySession(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Orders for session", orders)
}

func (oc *OrderController) GetOrdersByTable(c *gin.Context) {
	tableID, ok := paramID(c, "table_id")
	if !ok {
		return
	}

	orders, err := oc.Views.OrdersByTable(c.Request.Context(), tableID, c.Query("session_id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Orders for table", orders)
}

// UpdateOrderStatus -> pending / preparing / paid (admin)
func (oc *OrderController) UpdateOrderStatus(c *gin.Context) {
	orderID, ok := paramID(c, "order_id")
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

	status := strings.TrimSpace(body.Status)
	if err := oc.Engine.UpdateOrderStatus(c.Request.Context(), orderID, status); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Status updated", gin.H{"order_id": orderID, "status": status})
}

// MarkPaid -> order lunas, meja dibebaskan (admin)
func (oc *OrderController) MarkPaid(c *gin.Context) {
	orderID, ok := paramID(c, "order_id")
	if !ok {
		return
	}

	if err := oc.Engine.MarkOrderPaid(c.Request.Context(), orderID); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.InfoLogger.WithField("order_id", orderID).Info("Order marked paid")
	utils.RespondJSON(c, http.StatusOK, "Order marked paid and table freed", gin.H{"order_id": orderID})
}
