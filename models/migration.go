package models

import (
	"log"

	"bitbucket.org/mmdatafocus/livestock_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Farmer{}, &Farm{}, &Animal{}, &FarmOfficer{},
		&Vaccine{}, &VaccineBatch{}, &StockMovement{},
		&VaccineAllocation{}, &Vaccination{},
		&Budget{}, &Disbursement{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
