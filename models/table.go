package models

// Status meja
const (
	TableFree     = "free"
	TableReserved = "reserved"
)

type Table struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	Number string `gorm:"type:varchar(50);not null" json:"number"`
	Status string `gorm:"type:varchar(20);not null;default:'free'" json:"status"`
}

func ValidTableStatus(status string) bool {
	return status == TableFree || status == TableReserved
}
