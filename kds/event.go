package kds

import "time"

// Event names
const (
	EventOrderCreated = "order_created"
	EventOrderUpdated = "order_updated"
	EventTableUpdated = "table_updated"
)

// Event is what clients receive. Data carries only ids and the new status;
// clients refetch the full view.
type Event struct {
	ID   string         `json:"id"`
	Name string         `json:"event"`
	Data map[string]any `json:"data"`
	At   time.Time      `json:"at"`
}

func OrderCreated(orderID uint, tableID *uint, status string) (string, map[string]any) {
	data := map[string]any{"order_id": orderID, "status": status}
	if tableID != nil {
		data["table_id"] = *tableID
	}
	return EventOrderCreated, data
}

func OrderUpdated(orderID uint, status string) (string, map[string]any) {
	return EventOrderUpdated, map[string]any{"order_id": orderID, "status": status}
}

func TableUpdated(tableID uint, status string) (string, map[string]any) {
	return EventTableUpdated, map[string]any{"table_id": tableID, "status": status}
}
