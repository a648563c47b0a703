package models

import (
	"strconv"
	"strings"
	"time"
)

// Status order. Pending dan preparing untuk dapur, paid terminal.
const (
	OrderPending   = "pending"
	OrderPreparing = "preparing"
	OrderPaid      = "paid"
)

// OrderItem is one line of an order. Stored inside the order row as JSON.
type OrderItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Notes    string  `json:"notes,omitempty"`
}

type Order struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	TableID      *uint       `gorm:"index:idx_orders_table_session,priority:1" json:"table_id"`
	Items        []OrderItem `gorm:"type:text;serializer:json" json:"items"`
	Total        float64     `gorm:"type:decimal(10,2);not null;default:0" json:"total"`
	Status       string      `gorm:"type:varchar(20);not null;default:'pending';index:idx_orders_status" json:"status"`
	CustomerName *string     `gorm:"type:varchar(255)" json:"customer_name"`
	WhatsApp     *string     `gorm:"column:whatsapp;type:varchar(50)" json:"whatsapp"`
	SessionID    string      `gorm:"type:varchar(255);not null;index:idx_orders_session_id;index:idx_orders_table_session,priority:2" json:"session_id"`
	CreatedAt    time.Time   `gorm:"not null;index:idx_orders_created_at" json:"created_at"`
}

func ValidOrderStatus(status string) bool {
	switch status {
	case OrderPending, OrderPreparing, OrderPaid:
		return true
	}
	return false
}

// ItemsSummary renders items as "name xqty | name xqty".
func (o *Order) ItemsSummary() string {
	parts := make([]string, 0, len(o.Items))
	for _, item := range o.Items {
		parts = append(parts, item.Name+" x"+strconv.Itoa(item.Quantity))
	}
	return strings.Join(parts, " | ")
}
