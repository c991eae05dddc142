package models

import (
	"log"

	"github.com/karibu/produce_backend/config"
	"gorm.io/gorm"
)

// AutoMigrateAll creates or updates every table on db.
func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Produce{},
		&StockLedger{},
		&StockMovement{},
		&Procurement{},
		&Sale{},
		&CreditSale{},
		&OutboxMessage{},
		&ReconciliationReport{},
	)
}

func MigrateTable() {
	if err := AutoMigrateAll(config.GetDB()); err != nil {
		log.Fatal(err)
	}
}
