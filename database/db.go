package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"mandanten-backend/models"
)

// Connect opens the master catalog database (tenant records, users,
// memberships). Per-tenant databases are opened through the PoolManager,
// never here.
func Connect(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect master database: %w", err)
	}
	return db, nil
}

// AutoMigrate applies master catalog migrations. Tenant databases are
// provisioned externally and are not migrated by this service.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.TenantRecord{},
		&models.TenantMembership{},
	)
}
