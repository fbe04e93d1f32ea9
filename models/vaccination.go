package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/livestock_backend/config"
	"bitbucket.org/mmdatafocus/livestock_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Vaccination struct {
	ID               int                `gorm:"primary_key" json:"id"`
	AnimalId         int                `gorm:"index;not null" json:"animal_id"`
	VaccineId        int                `gorm:"index;not null" json:"vaccine_id"`
	AllocationId     *int               `json:"allocation_id"`
	Dose             decimal.Decimal    `gorm:"type:decimal(8,2);not null" json:"dose"`
	DateAdministered time.Time          `gorm:"type:date;not null" json:"date_administered"`
	AdministeredBy   int                `gorm:"index;not null" json:"administered_by"`
	Cost             *decimal.Decimal   `gorm:"type:decimal(12,2)" json:"cost"`
	Notes            string             `gorm:"type:text" json:"notes"`
	Animal           *Animal            `json:"animal,omitempty"`
	Vaccine          *Vaccine           `json:"vaccine,omitempty"`
	Allocation       *VaccineAllocation `gorm:"foreignKey:AllocationId" json:"allocation,omitempty"`
	CreatedAt        time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt        gorm.DeletedAt     `gorm:"index" json:"deleted_at"`
}

type NewVaccination struct {
	AnimalId         int              `json:"animal_id" validate:"required"`
	VaccineId        int              `json:"vaccine_id" validate:"required"`
	AllocationId     *int             `json:"allocation_id"`
	Dose             decimal.Decimal  `json:"dose" validate:"required"`
	DateAdministered time.Time        `json:"date_administered" validate:"required"`
	Cost             *decimal.Decimal `json:"cost"`
	Notes            string           `json:"notes"`
}

type UpdateVaccinationInput struct {
	Dose             *decimal.Decimal `json:"dose"`
	DateAdministered *time.Time       `json:"date_administered"`
	Cost             *decimal.Decimal `json:"cost"`
	Notes            *string          `json:"notes"`
}

// FarmVaccinationSummary is the per-farm coverage card. Vaccinated counts
// distinct animals, so repeat doses do not inflate coverage, and Pending never
// goes below zero even if vaccination rows reference animals moved off the
// farm since.
type FarmVaccinationSummary struct {
	FarmId              int        `json:"farm_id"`
	TotalAnimals        int64      `json:"total_animals"`
	Vaccinated          int64      `json:"vaccinated"`
	Pending             int64      `json:"pending"`
	LastVaccinationDate *time.Time `json:"last_vaccination_date"`
}

// RecordVaccination writes a dose given to an animal. Only staff record
// vaccinations; the acting user is stamped as the administering officer.
func RecordVaccination(ctx context.Context, actor Actor, input *NewVaccination) (*Vaccination, error) {
	if err := actor.RequireStaff("record vaccinations"); err != nil {
		return nil, err
	}
	if err := utils.ValidateStruct(*input); err != nil {
		return nil, err
	}
	if !input.Dose.IsPositive() {
		return nil, &utils.ValidationError{Field: "dose", Message: "dose must be greater than zero"}
	}
	if err := utils.ValidateResourceId[Animal](ctx, input.AnimalId); err != nil {
		return nil, err
	}
	if err := utils.ValidateResourceId[Vaccine](ctx, input.VaccineId); err != nil {
		return nil, err
	}
	if input.AllocationId != nil {
		if err := utils.ValidateResourceId[VaccineAllocation](ctx, *input.AllocationId); err != nil {
			return nil, err
		}
	}

	db := config.GetDB()
	vaccination := Vaccination{
		AnimalId:         input.AnimalId,
		VaccineId:        input.VaccineId,
		AllocationId:     input.AllocationId,
		Dose:             input.Dose,
		DateAdministered: input.DateAdministered,
		AdministeredBy:   actor.UserId,
		Cost:             input.Cost,
		Notes:            input.Notes,
	}
	if err := db.WithContext(ctx).Create(&vaccination).Error; err != nil {
		config.LogError(config.GetLogger(), "models", "RecordVaccination", "create", input, err)
		return nil, err
	}
	return &vaccination, nil
}

// UpdateVaccination corrects dose, date, cost or notes on an existing record.
// The animal, vaccine and administering officer are immutable once recorded.
func UpdateVaccination(ctx context.Context, actor Actor, id int, input *UpdateVaccinationInput) (*Vaccination, error) {
	if err := actor.RequireStaff("update vaccinations"); err != nil {
		return nil, err
	}
	vaccination, err := utils.FetchModel[Vaccination](ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.Dose != nil {
		if !input.Dose.IsPositive() {
			return nil, &utils.ValidationError{Field: "dose", Message: "dose must be greater than zero"}
		}
		updates["dose"] = *input.Dose
	}
	if input.DateAdministered != nil {
		updates["date_administered"] = *input.DateAdministered
	}
	if input.Cost != nil {
		updates["cost"] = *input.Cost
	}
	if input.Notes != nil {
		updates["notes"] = *input.Notes
	}
	if len(updates) == 0 {
		return vaccination, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(vaccination).Updates(updates).Error; err != nil {
		config.LogError(config.GetLogger(), "models", "UpdateVaccination", "update", id, err)
		return nil, err
	}
	return utils.FetchModel[Vaccination](ctx, id)
}

func GetVaccination(ctx context.Context, id int) (*Vaccination, error) {
	return utils.FetchModel[Vaccination](ctx, id, "Animal", "Vaccine", "Allocation")
}

// ListVaccinations returns records visible to the actor, newest dose first.
// Farmers see doses for animals on their own farms, officers the doses they
// administered themselves, admins everything.
func ListVaccinations(ctx context.Context, actor Actor) ([]*Vaccination, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&Vaccination{}).
		Preload("Animal").Preload("Vaccine").
		Order("date_administered DESC, id DESC")

	switch actor.Role {
	case RoleAdmin:
	case RoleOfficer:
		dbCtx = dbCtx.Where("administered_by = ?", actor.UserId)
	case RoleFarmer:
		farmIds := db.WithContext(ctx).Session(&gorm.Session{NewDB: true}).
			Model(&Farm{}).Select("id").Where("farmer_id = ?", actor.FarmerId)
		animalIds := db.WithContext(ctx).Session(&gorm.Session{NewDB: true}).
			Model(&Animal{}).Select("id").Where("farm_id IN (?)", farmIds)
		dbCtx = dbCtx.Where("animal_id IN (?)", animalIds)
	default:
		return nil, &utils.ForbiddenError{Reason: "unknown role"}
	}

	var vaccinations []*Vaccination
	if err := dbCtx.Find(&vaccinations).Error; err != nil {
		return nil, err
	}
	return vaccinations, nil
}

// DeleteVaccination tombstones a record. The dose stays visible to report
// queries that opt into tombstoned rows but drops out of coverage counts.
func DeleteVaccination(ctx context.Context, actor Actor, id int) (*Vaccination, error) {
	if err := actor.RequireStaff("delete vaccinations"); err != nil {
		return nil, err
	}
	vaccination, err := utils.FetchModel[Vaccination](ctx, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(vaccination).Error; err != nil {
		config.LogError(config.GetLogger(), "models", "DeleteVaccination", "delete", id, err)
		return nil, err
	}
	return vaccination, nil
}

// GetFarmVaccinationSummary computes the coverage card for one farm.
func GetFarmVaccinationSummary(ctx context.Context, farmId int) (*FarmVaccinationSummary, error) {
	if err := utils.ValidateResourceId[Farm](ctx, farmId); err != nil {
		return nil, err
	}
	db := config.GetDB()
	summary := FarmVaccinationSummary{FarmId: farmId}

	if err := db.WithContext(ctx).Model(&Animal{}).
		Where("farm_id = ?", farmId).
		Count(&summary.TotalAnimals).Error; err != nil {
		return nil, &utils.StorageError{Op: "count farm animals", Err: err}
	}

	animalIds := db.WithContext(ctx).Session(&gorm.Session{NewDB: true}).
		Model(&Animal{}).Select("id").Where("farm_id = ?", farmId)

	if err := db.WithContext(ctx).Model(&Vaccination{}).
		Where("animal_id IN (?)", animalIds).
		Distinct("animal_id").
		Count(&summary.Vaccinated).Error; err != nil {
		return nil, &utils.StorageError{Op: "count vaccinated animals", Err: err}
	}

	summary.Pending = summary.TotalAnimals - summary.Vaccinated
	if summary.Pending < 0 {
		summary.Pending = 0
	}

	var last struct {
		Latest *time.Time
	}
	animalIds = db.WithContext(ctx).Session(&gorm.Session{NewDB: true}).
		Model(&Animal{}).Select("id").Where("farm_id = ?", farmId)
	if err := db.WithContext(ctx).Model(&Vaccination{}).
		Select("MAX(date_administered) AS latest").
		Where("animal_id IN (?)", animalIds).
		Scan(&last).Error; err != nil {
		return nil, &utils.StorageError{Op: "latest vaccination date", Err: err}
	}
	summary.LastVaccinationDate = last.Latest

	return &summary, nil
}
