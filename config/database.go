package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/yeremiapane/table-order/utils"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const defaultSQLiteDSN = "file:restaurant.db?_busy_timeout=5000&_txlock=immediate&_foreign_keys=on"

// InitDB opens gorm for the configured driver. Pool limits are applied later by database.NewPool.
func InitDB(cfg *Config) (*gorm.DB, error) {
	dialector, err := Dialector(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  NewGormLogger(),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.DBDriver, err)
	}
	return db, nil
}

func Dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "postgres":
		return postgres.Open(dsn), nil
	case "mysql":
		return mysql.Open(mysqlDSN(dsn)), nil
	case "sqlite":
		if dsn == "" {
			dsn = defaultSQLiteDSN
		}
		return sqlite.Open(dsn), nil
	}
	return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
}

// mysqlDSN memastikan RowsAffected menghitung baris yang cocok, bukan yang berubah,
// supaya update status yang sama tidak terbaca sebagai not found.
func mysqlDSN(dsn string) string {
	params := url.Values{}
	base := dsn
	if i := strings.Index(dsn, "?"); i >= 0 {
		base = dsn[:i]
		if parsed, err := url.ParseQuery(dsn[i+1:]); err == nil {
			params = parsed
		}
	}
	params.Set("clientFoundRows", "true")
	params.Set("parseTime", "true")
	return base + "?" + params.Encode()
}

// NewGormLogger routes gorm's slow-query and error logs into logrus.
func NewGormLogger() logger.Interface {
	return logger.New(utils.ErrorLogger, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}
