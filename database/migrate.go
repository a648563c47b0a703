package database

import (
	"context"
	"fmt"

	"github.com/yeremiapane/table-order/models"
	"github.com/yeremiapane/table-order/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type SeedConfig struct {
	Tables        int
	AdminUsername string
	AdminPassword string
}

// Bootstrap migrates the schema and seeds tables and the admin account.
// Safe to run on every start.
func Bootstrap(ctx context.Context, p *Pool, seed SeedConfig) error {
	if err := Migrate(ctx, p); err != nil {
		return err
	}
	return p.WithTransaction(ctx, func(tx *gorm.DB) error {
		return seedData(tx, seed)
	})
}

func Migrate(ctx context.Context, p *Pool) error {
	db := p.db.WithContext(ctx)
	if err := db.AutoMigrate(&models.Table{}, &models.Order{}, &models.Admin{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	// Covering index untuk income dan stats, hanya order paid
	switch p.Dialect() {
	case "postgres", "sqlite":
		if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_orders_paid_created
			ON orders (created_at DESC) WHERE status = 'paid'`).Error; err != nil {
			return fmt.Errorf("create paid orders index: %w", err)
		}
	}

	utils.InfoLogger.Info("AutoMigrate completed.")
	return nil
}

func seedData(tx *gorm.DB, seed SeedConfig) error {
	var count int64
	if err := tx.Model(&models.Table{}).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 && seed.Tables > 0 {
		tables := make([]models.Table, 0, seed.Tables)
		for i := 1; i <= seed.Tables; i++ {
			tables = append(tables, models.Table{Number: fmt.Sprintf("T%d", i), Status: models.TableFree})
		}
		if err := tx.Create(&tables).Error; err != nil {
			return fmt.Errorf("seed tables: %w", err)
		}
		utils.InfoLogger.Infof("Seeded %d restaurant tables", seed.Tables)
	}

	if err := tx.Model(&models.Admin{}).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 && seed.AdminUsername != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(seed.AdminPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		admin := models.Admin{Username: seed.AdminUsername, Password: string(hashed)}
		if err := tx.Create(&admin).Error; err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		utils.InfoLogger.Infof("Seeded default admin user %s", seed.AdminUsername)
	}
	return nil
}
