package config

import (
	"github.com/spf13/viper"
)

const (
	DBURL          = "DB_URL"
	DBMaxOpenConns = "DB_MAX_OPEN_CONNS"
	DBMaxIdleConns = "DB_MAX_IDLE_CONNS"
	DBMigrate      = "DB_MIGRATE"
)

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	// Migrate applies the embedded schema on startup
	Migrate bool
}

// NewDatabaseConfig creates a new database configuration using Viper
func NewDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		URL:          viper.GetString(DBURL),
		MaxOpenConns: viper.GetInt(DBMaxOpenConns),
		MaxIdleConns: viper.GetInt(DBMaxIdleConns),
		Migrate:      viper.GetBool(DBMigrate),
	}
}

// GetConnectionString returns the PostgreSQL connection string
func (c *DatabaseConfig) GetConnectionString() string {
	return c.URL
}
