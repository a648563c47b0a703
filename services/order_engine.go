package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/table-order/cache"
	"github.com/yeremiapane/table-order/kds"
	"github.com/yeremiapane/table-order/models"
	"github.com/yeremiapane/table-order/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TxRunner is implemented by *database.Pool.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error
	WithConn(ctx context.Context, fn func(db *gorm.DB) error) error
	SupportsReturning() bool
}

type Invalidator interface {
	Invalidate(ctx context.Context, groups ...cache.Group) cache.Result
}

type Publisher interface {
	Publish(name string, data map[string]any) kds.Result
}

// NewOrder is the customer-facing order request.
type NewOrder struct {
	TableID      *uint              `json:"table_id"`
	Items        []models.OrderItem `json:"items"`
	Total        float64            `json:"total"`
	CustomerName *string            `json:"customer_name"`
	WhatsApp     *string            `json:"whatsapp"`
	SessionID    string             `json:"session_id"`
}

func (n *NewOrder) validate() error {
	if strings.TrimSpace(n.SessionID) == "" {
		return invalid("session_id", "is required")
	}
	if n.Total < 0 {
		return invalid("total", "must not be negative")
	}
	for i, item := range n.Items {
		if strings.TrimSpace(item.Name) == "" {
			return invalid("items", "item %d has no name", i+1)
		}
		if item.Quantity < 1 {
			return invalid("items", "item %d quantity must be at least 1", i+1)
		}
	}
	return nil
}

type event struct {
	name string
	data map[string]any
}

// OrderEngine menjalankan semua operasi tulis order dan meja.
// Setiap operasi memakai satu transaksi; cache dan notifikasi hanya setelah commit.
type OrderEngine struct {
	db    TxRunner
	cache Invalidator
	pub   Publisher
	now   func() time.Time
}

func NewOrderEngine(db TxRunner, inv Invalidator, pub Publisher) *OrderEngine {
	return &OrderEngine{db: db, cache: inv, pub: pub, now: time.Now}
}

// CreateOrder menyimpan order baru (pending) dan me-reserve mejanya.
func (e *OrderEngine) CreateOrder(ctx context.Context, in NewOrder) (*models.Order, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	items := in.Items
	if items == nil {
		items = []models.OrderItem{}
	}
	order := models.Order{
		TableID:      in.TableID,
		Items:        items,
		Total:        in.Total,
		Status:       models.OrderPending,
		CustomerName: trimOptional(in.CustomerName),
		WhatsApp:     trimOptional(in.WhatsApp),
		SessionID:    strings.TrimSpace(in.SessionID),
		CreatedAt:    e.now().UTC(),
	}

	err := e.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		if order.TableID == nil {
			return nil
		}
		return setTableStatus(tx, *order.TableID, models.TableReserved)
	})
	if err != nil {
		return nil, err
	}

	e.afterCommit(ctx, cache.AllGroups, kdsEvent(kds.OrderCreated(order.ID, order.TableID, order.Status)))
	return &order, nil
}

// UpdateOrderStatus mengubah status order. Status paid diteruskan ke MarkOrderPaid
// supaya meja ikut dibebaskan.
func (e *OrderEngine) UpdateOrderStatus(ctx context.Context, id uint, status string) error {
	status = strings.TrimSpace(status)
	if !models.ValidOrderStatus(status) {
		return invalid("status", "must be one of pending, preparing, paid")
	}
	if status == models.OrderPaid {
		return e.MarkOrderPaid(ctx, id)
	}

	err := e.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&models.Order{}).
			Where("id = ? AND status <> ?", id, models.OrderPaid).
			Update("status", status)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}

		var n int64
		if err := tx.Model(&models.Order{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return notFound("order", id)
		}
		return ErrTerminalStatus
	})
	if err != nil {
		return err
	}

	e.afterCommit(ctx, []cache.Group{cache.GroupOrders}, kdsEvent(kds.OrderUpdated(id, status)))
	return nil
}

// MarkOrderPaid menandai order lunas dan membebaskan mejanya dalam satu transaksi.
// Order yang sudah paid tidak diubah lagi.
func (e *OrderEngine) MarkOrderPaid(ctx context.Context, id uint) error {
	var (
		tableID *uint
		changed bool
	)

	err := e.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		if e.db.SupportsReturning() {
			tableID, changed, err = payReturning(tx, id)
		} else {
			tableID, changed, err = payLocked(tx, id)
		}
		if err != nil || !changed || tableID == nil {
			return err
		}
		return setTableStatus(tx, *tableID, models.TableFree)
	})
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	events := []event{kdsEvent(kds.OrderUpdated(id, models.OrderPaid))}
	if tableID != nil {
		events = append(events, kdsEvent(kds.TableUpdated(*tableID, models.TableFree)))
	}
	e.afterCommit(ctx, cache.AllGroups, events...)
	return nil
}

// payReturning reads the table id in the same statement that marks the order paid.
func payReturning(tx *gorm.DB, id uint) (*uint, bool, error) {
	var rows []struct {
		TableID *uint
	}
	err := tx.Raw("UPDATE orders SET status = ? WHERE id = ? AND status <> ? RETURNING table_id",
		models.OrderPaid, id, models.OrderPaid).Scan(&rows).Error
	if err != nil {
		return nil, false, err
	}
	if len(rows) > 0 {
		return rows[0].TableID, true, nil
	}
	return nil, false, orderExists(tx, id)
}

// payLocked is the MySQL path: lock the row, then update it.
func payLocked(tx *gorm.DB, id uint) (*uint, bool, error) {
	var order models.Order
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "table_id", "status").
		First(&order, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, notFound("order", id)
	}
	if err != nil {
		return nil, false, err
	}
	if order.Status == models.OrderPaid {
		return nil, false, nil
	}
	if err := tx.Model(&models.Order{}).Where("id = ?", id).Update("status", models.OrderPaid).Error; err != nil {
		return nil, false, err
	}
	return order.TableID, true, nil
}

func orderExists(tx *gorm.DB, id uint) error {
	var n int64
	if err := tx.Model(&models.Order{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return notFound("order", id)
	}
	return nil
}

// UpdateTableStatus mengubah status meja secara manual (admin).
func (e *OrderEngine) UpdateTableStatus(ctx context.Context, id uint, status string) error {
	status = strings.TrimSpace(status)
	if !models.ValidTableStatus(status) {
		return invalid("status", "must be free or reserved")
	}

	err := e.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		return setTableStatus(tx, id, status)
	})
	if err != nil {
		return err
	}

	e.afterCommit(ctx, []cache.Group{cache.GroupTables}, kdsEvent(kds.TableUpdated(id, status)))
	return nil
}

// RowsAffected counts matched rows on every supported driver (mysql via clientFoundRows).
func setTableStatus(tx *gorm.DB, id uint, status string) error {
	res := tx.Model(&models.Table{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound("table", id)
	}
	return nil
}

// afterCommit runs once the write is durable. Nothing here can fail the request.
func (e *OrderEngine) afterCommit(ctx context.Context, groups []cache.Group, events ...event) {
	ctx = context.WithoutCancel(ctx)

	if e.cache != nil {
		if res := e.cache.Invalidate(ctx, groups...); res.Err != nil {
			utils.ErrorLogger.WithError(res.Err).WithField("keys", res.Keys).Warn("cache invalidation incomplete")
		}
	}
	if e.pub == nil {
		return
	}
	for _, ev := range events {
		if res := e.pub.Publish(ev.name, ev.data); res.Err != nil || res.Dropped {
			utils.ErrorLogger.WithError(res.Err).WithFields(logrus.Fields{
				"event":   ev.name,
				"dropped": res.Dropped,
			}).Warn("notification not queued cleanly")
		}
	}
}

func kdsEvent(name string, data map[string]any) event {
	return event{name: name, data: data}
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
