package config

import (
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB opens the postgres connection described by the configuration.
func InitDB(cfg *Config) (*gorm.DB, error) {
	level := logger.Warn
	if cfg.IsProduction {
		level = logger.Silent
	}

	return gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
}
