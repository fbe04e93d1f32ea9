package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/livestock_backend/config"
	"bitbucket.org/mmdatafocus/livestock_backend/utils"
	"gorm.io/gorm"
)

// VaccineAllocation is a farmer's request for, or an officer's grant of,
// vaccine doses. Status is mutated only through the workflow's transition
// checks; the `out` ledger movement for a direct allocation is written in the
// same transaction that creates the row.
type VaccineAllocation struct {
	ID             int              `gorm:"primary_key" json:"id"`
	FarmerId       int              `gorm:"index;not null" json:"farmer_id"`
	FarmId         *int             `gorm:"index" json:"farm_id"`
	AnimalId       *int             `json:"animal_id"`
	VaccineId      int              `gorm:"index;not null" json:"vaccine_id"`
	VaccineBatchId *int             `gorm:"index" json:"vaccine_batch_id"`
	Quantity       int              `gorm:"not null" json:"quantity"`
	AllocatedBy    *int             `json:"allocated_by"`
	Status         AllocationStatus `gorm:"size:20;not null;default:pending" json:"status"`
	Notes          string           `gorm:"type:text" json:"notes"`
	Farmer         *Farmer          `json:"farmer,omitempty"`
	Farm           *Farm            `json:"farm,omitempty"`
	Vaccine        *Vaccine         `json:"vaccine,omitempty"`
	Batch          *VaccineBatch    `gorm:"foreignKey:VaccineBatchId" json:"batch,omitempty"`
	Animal         *Animal          `json:"animal,omitempty"`
	CreatedAt      time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt   `gorm:"index" json:"deleted_at"`
}

func GetAllocation(ctx context.Context, id int) (*VaccineAllocation, error) {
	return utils.FetchModel[VaccineAllocation](ctx, id, "Vaccine", "Batch", "Farm", "Animal")
}

// ListAllocations returns allocations visible to the actor, newest first.
// Farmer: allocations on their own farms. Officer: assigned farms. Admin: all.
func ListAllocations(ctx context.Context, actor Actor) ([]*VaccineAllocation, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&VaccineAllocation{}).
		Preload("Vaccine").Preload("Batch").Preload("Farm").Preload("Animal").
		Order("created_at DESC")
	dbCtx, err := actor.ScopeByFarm(dbCtx, "farm_id")
	if err != nil {
		return nil, err
	}
	var allocations []*VaccineAllocation
	if err := dbCtx.Find(&allocations).Error; err != nil {
		return nil, err
	}
	return allocations, nil
}

// PendingAllocationCount backs the pending-requests badge. The same scoping
// rules as ListAllocations apply.
func PendingAllocationCount(ctx context.Context, actor Actor) (int64, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&VaccineAllocation{}).
		Where("status = ?", AllocationStatusPending)
	dbCtx, err := actor.ScopeByFarm(dbCtx, "farm_id")
	if err != nil {
		return 0, err
	}
	var count int64
	if err := dbCtx.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
