package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/livestock_backend/config"
	"bitbucket.org/mmdatafocus/livestock_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Vaccine is a catalogue entry. It is tombstoned rather than removed so
// historical allocations and vaccinations stay resolvable.
type Vaccine struct {
	ID           int             `gorm:"primary_key" json:"id"`
	Name         string          `gorm:"size:255;not null;uniqueIndex" json:"name"`
	Manufacturer string          `gorm:"size:255" json:"manufacturer"`
	Unit         string          `gorm:"size:50" json:"unit"`
	DoseMl       decimal.Decimal `gorm:"type:decimal(10,2);default:0" json:"dose_ml"`
	CostPerUnit  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cost_per_unit"`
	IsActive     *bool           `gorm:"not null;default:true" json:"is_active"`
	Description  string          `gorm:"type:text" json:"description"`
	Batches      []*VaccineBatch `json:"batches,omitempty"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt  `gorm:"index" json:"deleted_at"`
}

type NewVaccine struct {
	Name         string          `json:"name" validate:"required,max=255"`
	Manufacturer string          `json:"manufacturer" validate:"max=255"`
	Unit         string          `json:"unit" validate:"max=50"`
	DoseMl       decimal.Decimal `json:"dose_ml"`
	CostPerUnit  decimal.Decimal `json:"cost_per_unit"`
	IsActive     *bool           `json:"is_active"`
	Description  string          `json:"description"`
}

// UpdateVaccineInput carries partial updates; nil fields are left unchanged.
type UpdateVaccineInput struct {
	Name         *string          `json:"name" validate:"omitempty,max=255"`
	Manufacturer *string          `json:"manufacturer" validate:"omitempty,max=255"`
	Unit         *string          `json:"unit" validate:"omitempty,max=50"`
	DoseMl       *decimal.Decimal `json:"dose_ml"`
	CostPerUnit  *decimal.Decimal `json:"cost_per_unit"`
	IsActive     *bool            `json:"is_active"`
	Description  *string          `json:"description"`
}

// VaccineStockTotals is recomputed on demand from the batch table; the ledger
// remains the source of truth and no materialized counter is kept.
type VaccineStockTotals struct {
	TotalStock     int   `json:"total_stock"`
	ExpiredBatches int64 `json:"expired_batches"`
	ExpiringSoon   int64 `json:"expiring_soon"`
}

const DefaultExpiryWindowDays = 30

func CreateVaccine(ctx context.Context, actor Actor, input *NewVaccine) (*Vaccine, error) {
	if err := actor.RequireStaff("create vaccine"); err != nil {
		return nil, err
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if err := utils.ValidateUnique[Vaccine](ctx, "name", input.Name, 0); err != nil {
		return nil, utils.NewValidationError("name", "duplicate vaccine name")
	}

	isActive := true
	if input.IsActive != nil {
		isActive = *input.IsActive
	}
	vaccine := Vaccine{
		Name:         input.Name,
		Manufacturer: input.Manufacturer,
		Unit:         input.Unit,
		DoseMl:       input.DoseMl,
		CostPerUnit:  input.CostPerUnit,
		IsActive:     &isActive,
		Description:  input.Description,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&vaccine).Error; err != nil {
		return nil, err
	}
	return &vaccine, nil
}

func UpdateVaccine(ctx context.Context, actor Actor, id int, input *UpdateVaccineInput) (*Vaccine, error) {
	if err := actor.RequireStaff("update vaccine"); err != nil {
		return nil, err
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	vaccine, err := utils.FetchModel[Vaccine](ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Name != nil && *input.Name != vaccine.Name {
		if err := utils.ValidateUnique[Vaccine](ctx, "name", *input.Name, id); err != nil {
			return nil, utils.NewValidationError("name", "duplicate vaccine name")
		}
		vaccine.Name = *input.Name
	}
	if input.Manufacturer != nil {
		vaccine.Manufacturer = *input.Manufacturer
	}
	if input.Unit != nil {
		vaccine.Unit = *input.Unit
	}
	if input.DoseMl != nil {
		vaccine.DoseMl = *input.DoseMl
	}
	if input.CostPerUnit != nil {
		vaccine.CostPerUnit = *input.CostPerUnit
	}
	if input.IsActive != nil {
		vaccine.IsActive = input.IsActive
	}
	if input.Description != nil {
		vaccine.Description = *input.Description
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Save(vaccine).Error; err != nil {
		return nil, err
	}
	return vaccine, nil
}

// GetVaccine returns the vaccine with its batches ordered by expiry ascending.
func GetVaccine(ctx context.Context, id int) (*Vaccine, error) {
	db := config.GetDB()
	var vaccine Vaccine
	err := db.WithContext(ctx).
		Preload("Batches", func(dbCtx *gorm.DB) *gorm.DB {
			return dbCtx.Order("expiry_date ASC")
		}).
		First(&vaccine, id).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &vaccine, nil
}

// GetVaccineStockTotals aggregates the on-hand position of one vaccine.
// windowDays overrides the expiring-soon window (default 30 days).
func GetVaccineStockTotals(ctx context.Context, vaccineId int, windowDays ...int) (*VaccineStockTotals, error) {
	window := DefaultExpiryWindowDays
	if len(windowDays) > 0 && windowDays[0] > 0 {
		window = windowDays[0]
	}

	if err := utils.ValidateResourceId[Vaccine](ctx, vaccineId); err != nil {
		return nil, err
	}

	db := config.GetDB()
	now := time.Now()
	totals := VaccineStockTotals{}

	var totalStock *int
	if err := db.WithContext(ctx).Model(&VaccineBatch{}).
		Where("vaccine_id = ?", vaccineId).
		Select("SUM(quantity)").Scan(&totalStock).Error; err != nil {
		return nil, &utils.StorageError{Op: "vaccine stock totals", Err: err}
	}
	totals.TotalStock = utils.DereferencePtr(totalStock)

	if err := db.WithContext(ctx).Model(&VaccineBatch{}).
		Where("vaccine_id = ? AND expiry_date < ?", vaccineId, now).
		Count(&totals.ExpiredBatches).Error; err != nil {
		return nil, &utils.StorageError{Op: "vaccine stock totals", Err: err}
	}
	if err := db.WithContext(ctx).Model(&VaccineBatch{}).
		Where("vaccine_id = ? AND expiry_date BETWEEN ? AND ?",
			vaccineId, now, now.AddDate(0, 0, window)).
		Count(&totals.ExpiringSoon).Error; err != nil {
		return nil, &utils.StorageError{Op: "vaccine stock totals", Err: err}
	}
	return &totals, nil
}

// ListVaccines searches by name/manufacturer. includeTombstoned widens the
// result to live plus tombstoned rows, same as the other list operations.
func ListVaccines(ctx context.Context, search string, includeTombstoned bool) ([]*Vaccine, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&Vaccine{}).Order("created_at DESC")
	if includeTombstoned {
		dbCtx = dbCtx.Unscoped()
	}
	if search != "" {
		dbCtx = dbCtx.Where("name LIKE ? OR manufacturer LIKE ?", "%"+search+"%", "%"+search+"%")
	}
	var vaccines []*Vaccine
	if err := dbCtx.Find(&vaccines).Error; err != nil {
		return nil, err
	}
	return vaccines, nil
}

// DeleteVaccine tombstones the record; batches and movement history are kept.
func DeleteVaccine(ctx context.Context, actor Actor, id int) (*Vaccine, error) {
	if err := actor.RequireStaff("delete vaccine"); err != nil {
		return nil, err
	}
	vaccine, err := utils.FetchModel[Vaccine](ctx, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(vaccine).Error; err != nil {
		return nil, err
	}
	return vaccine, nil
}

func RestoreVaccine(ctx context.Context, actor Actor, id int) (*Vaccine, error) {
	if err := actor.RequireStaff("restore vaccine"); err != nil {
		return nil, err
	}
	vaccine, err := utils.FetchModelWithTombstoned[Vaccine](ctx, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Unscoped().Model(vaccine).
		Update("deleted_at", nil).Error; err != nil {
		return nil, err
	}
	vaccine.DeletedAt = gorm.DeletedAt{}
	return vaccine, nil
}
