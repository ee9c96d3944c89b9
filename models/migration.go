package models

import (
	"log"

	"github.com/myjantes/atelier_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&User{},
		&Service{},
		&Quote{}, &Invoice{}, &LineItem{},
		&InvoiceCounter{},
		&MediaFile{},
		&Reservation{},
		&NotificationRecord{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
