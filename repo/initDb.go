package repo

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Open connects to PostgreSQL and migrates the ledger schema.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// 迁移 schema
	if err := db.AutoMigrate(&Deployment{}); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return NewStore(db), nil
}
