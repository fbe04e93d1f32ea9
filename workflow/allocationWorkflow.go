package workflow

import (
	"context"
	"errors"

	"bitbucket.org/mmdatafocus/livestock_backend/config"
	"bitbucket.org/mmdatafocus/livestock_backend/models"
	"bitbucket.org/mmdatafocus/livestock_backend/utils"
	"gorm.io/gorm"
)

// NewAllocationRequest is a farmer-initiated request. The farmer comes from
// the actor, never from the input, and the request always starts pending with
// no batch and no approver.
type NewAllocationRequest struct {
	VaccineId int    `json:"vaccine_id" validate:"required"`
	FarmId    int    `json:"farm_id" validate:"required"`
	AnimalId  *int   `json:"animal_id"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
	Notes     string `json:"notes"`
}

// NewDirectAllocation is an officer or admin granting doses outright. The
// farmer is derived from the farm. When BatchId is set, stock is deducted from
// that batch in the same transaction that creates the allocation.
type NewDirectAllocation struct {
	VaccineId int    `json:"vaccine_id" validate:"required"`
	FarmId    int    `json:"farm_id" validate:"required"`
	AnimalId  *int   `json:"animal_id"`
	BatchId   *int   `json:"vaccine_batch_id"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
	Notes     string `json:"notes"`
}

// RequestAllocation records a farmer's pending request. No stock moves and no
// approver is stamped until staff allocate it.
func RequestAllocation(ctx context.Context, actor models.Actor, input *NewAllocationRequest) (*models.VaccineAllocation, error) {
	if actor.Role != models.RoleFarmer {
		return nil, &utils.ForbiddenError{Reason: "only farmers may request allocations"}
	}
	if err := utils.ValidateStruct(*input); err != nil {
		return nil, err
	}
	if err := utils.ValidateResourceId[models.Vaccine](ctx, input.VaccineId); err != nil {
		return nil, err
	}
	farm, err := utils.FetchModel[models.Farm](ctx, input.FarmId)
	if err != nil {
		return nil, err
	}
	if farm.FarmerId != actor.FarmerId {
		return nil, &utils.ForbiddenError{Reason: "farm does not belong to the requesting farmer"}
	}
	if input.AnimalId != nil {
		if err := utils.ValidateResourceId[models.Animal](ctx, *input.AnimalId); err != nil {
			return nil, err
		}
	}

	db := config.GetDB()
	allocation := models.VaccineAllocation{
		FarmerId:  actor.FarmerId,
		FarmId:    &input.FarmId,
		AnimalId:  input.AnimalId,
		VaccineId: input.VaccineId,
		Quantity:  input.Quantity,
		Status:    models.AllocationStatusPending,
		Notes:     input.Notes,
	}
	if err := db.WithContext(ctx).Create(&allocation).Error; err != nil {
		config.LogError(config.GetLogger(), "workflow", "RequestAllocation", "create", input, err)
		return nil, err
	}
	return &allocation, nil
}

// AllocateDirect creates an allocation already in the allocated state, stamped
// with the acting user as approver. When a batch is named, the batch row is
// locked, the stock check and deduction happen, and the allocation is created
// inside one transaction. Insufficient stock aborts the whole
// operation with nothing written.
func AllocateDirect(ctx context.Context, actor models.Actor, input *NewDirectAllocation) (*models.VaccineAllocation, error) {
	if err := actor.RequireStaff("allocate vaccines"); err != nil {
		return nil, err
	}
	if err := utils.ValidateStruct(*input); err != nil {
		return nil, err
	}
	if err := utils.ValidateResourceId[models.Vaccine](ctx, input.VaccineId); err != nil {
		return nil, err
	}
	farm, err := utils.FetchModel[models.Farm](ctx, input.FarmId)
	if err != nil {
		return nil, err
	}
	if input.AnimalId != nil {
		if err := utils.ValidateResourceId[models.Animal](ctx, *input.AnimalId); err != nil {
			return nil, err
		}
	}
	if input.BatchId != nil {
		batch, err := utils.FetchModel[models.VaccineBatch](ctx, *input.BatchId)
		if err != nil {
			return nil, err
		}
		if batch.VaccineId != input.VaccineId {
			return nil, &utils.ValidationError{Field: "vaccine_batch_id", Message: "batch does not belong to the selected vaccine"}
		}
	}

	db := config.GetDB()
	var allocation models.VaccineAllocation
	txErr := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if input.BatchId != nil {
			if err := models.AcquireBatchPostingLock(tx, *input.BatchId); err != nil {
				return err
			}
			// released on the live tx; the row lock taken by the deduction
			// still guards the quantity until commit
			defer models.ReleaseBatchPostingLock(tx, *input.BatchId)
		}

		allocation = models.VaccineAllocation{
			FarmerId:       farm.FarmerId,
			FarmId:         &input.FarmId,
			AnimalId:       input.AnimalId,
			VaccineId:      input.VaccineId,
			VaccineBatchId: input.BatchId,
			Quantity:       input.Quantity,
			AllocatedBy:    &actor.UserId,
			Status:         models.AllocationStatusAllocated,
			Notes:          input.Notes,
		}
		if err := tx.Create(&allocation).Error; err != nil {
			config.LogError(config.GetLogger(), "workflow", "AllocateDirect", "create allocation", input, err)
			return err
		}

		if input.BatchId != nil {
			_, err := models.DeductBatchStock(tx, ctx, *input.BatchId, input.Quantity,
				models.MovementReasonAllocation, &allocation.ID, actor)
			if err != nil {
				var insufficient *utils.InsufficientStockError
				if !errors.As(err, &insufficient) {
					config.LogError(config.GetLogger(), "workflow", "AllocateDirect", "deduct stock", input, err)
				}
				return err
			}
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return &allocation, nil
}

// SetAllocationStatus moves an allocation along the lifecycle. Entering the
// allocated state stamps the acting user as approver. Cancelling an allocation
// never returns stock to the batch; any correction goes through a manual batch
// adjustment so the ledger records it.
func SetAllocationStatus(ctx context.Context, actor models.Actor, allocationId int, newStatus models.AllocationStatus) (*models.VaccineAllocation, error) {
	if err := actor.RequireStaff("update allocation status"); err != nil {
		return nil, err
	}
	if !newStatus.Valid() {
		return nil, &utils.ValidationError{Field: "status", Message: "unknown allocation status"}
	}
	allocation, err := utils.FetchModel[models.VaccineAllocation](ctx, allocationId)
	if err != nil {
		return nil, err
	}
	if !allocation.Status.CanTransitionTo(newStatus) {
		return nil, &utils.InvalidTransitionError{From: string(allocation.Status), To: string(newStatus)}
	}

	updates := map[string]interface{}{"status": newStatus}
	if newStatus == models.AllocationStatusAllocated {
		updates["allocated_by"] = actor.UserId
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(allocation).Updates(updates).Error; err != nil {
		config.LogError(config.GetLogger(), "workflow", "SetAllocationStatus", "update", allocationId, err)
		return nil, err
	}
	allocation.Status = newStatus
	if newStatus == models.AllocationStatusAllocated {
		allocation.AllocatedBy = &actor.UserId
	}
	return allocation, nil
}

// DeleteAllocation tombstones an allocation. Staff may remove any allocation;
// a farmer may only remove their own. Deletion has no ledger effect.
func DeleteAllocation(ctx context.Context, actor models.Actor, allocationId int) (*models.VaccineAllocation, error) {
	allocation, err := utils.FetchModel[models.VaccineAllocation](ctx, allocationId)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && allocation.FarmerId != actor.FarmerId {
		return nil, &utils.ForbiddenError{Reason: "farmers may only remove their own allocations"}
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(allocation).Error; err != nil {
		config.LogError(config.GetLogger(), "workflow", "DeleteAllocation", "delete", allocationId, err)
		return nil, err
	}
	return allocation, nil
}
