package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/livestock_backend/config"
	"bitbucket.org/mmdatafocus/livestock_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VaccineBatch is a received lot. Quantity is the cached on-hand projection
// of the movement ledger; every write to it goes through a posting lock and
// appends a StockMovement in the same transaction.
type VaccineBatch struct {
	ID          int             `gorm:"primary_key" json:"id"`
	VaccineId   int             `gorm:"not null;uniqueIndex:idx_vaccine_batch_no" json:"vaccine_id"`
	BatchNo     string          `gorm:"size:100;not null;uniqueIndex:idx_vaccine_batch_no" json:"batch_no"`
	ExpiryDate  time.Time       `gorm:"type:date;not null" json:"expiry_date"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	CostPerUnit decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cost_per_unit"`
	AddedBy     int             `gorm:"index" json:"added_by"`
	Vaccine     *Vaccine        `json:"vaccine,omitempty"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"deleted_at"`
}

type NewVaccineBatch struct {
	VaccineId   int             `json:"vaccine_id" validate:"required"`
	BatchNo     string          `json:"batch_no" validate:"max=100"`
	ExpiryDate  time.Time       `json:"expiry_date" validate:"required"`
	Quantity    int             `json:"quantity" validate:"required,gt=0"`
	CostPerUnit decimal.Decimal `json:"cost_per_unit"`
}

// UpdateVaccineBatchInput updates batch metadata. Quantity is deliberately
// absent: quantity changes go through AdjustBatch so the ledger stays intact.
type UpdateVaccineBatchInput struct {
	ExpiryDate  *time.Time       `json:"expiry_date"`
	CostPerUnit *decimal.Decimal `json:"cost_per_unit"`
}

// ReceiveBatch creates a batch and its opening `in` movement in one
// transaction. The batch number is generated when absent: a per-vaccine
// per-day sequence, collision-checked against existing rows.
// Past expiry dates are accepted; receiving expired stock is a business
// reality the ledger records rather than rejects.
func ReceiveBatch(ctx context.Context, actor Actor, input *NewVaccineBatch) (*VaccineBatch, error) {
	if err := actor.RequireStaff("receive batch"); err != nil {
		return nil, err
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if input.Quantity <= 0 {
		return nil, utils.NewValidationError("quantity", "must be greater than zero")
	}
	if err := utils.ValidateResourceId[Vaccine](ctx, input.VaccineId); err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	batchNo := input.BatchNo
	if batchNo == "" {
		var err error
		batchNo, err = nextBatchNumber(ctx, tx, input.VaccineId)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
	} else {
		var count int64
		if err := tx.WithContext(ctx).Model(&VaccineBatch{}).Unscoped().
			Where("vaccine_id = ? AND batch_no = ?", input.VaccineId, batchNo).
			Count(&count).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		if count > 0 {
			tx.Rollback()
			return nil, utils.NewValidationError("batch_no", "duplicate batch number for vaccine")
		}
	}

	batch := VaccineBatch{
		VaccineId:   input.VaccineId,
		BatchNo:     batchNo,
		ExpiryDate:  input.ExpiryDate,
		Quantity:    input.Quantity,
		CostPerUnit: input.CostPerUnit,
		AddedBy:     actor.UserId,
	}
	if err := tx.WithContext(ctx).Create(&batch).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	movement := StockMovement{
		VaccineId:      batch.VaccineId,
		VaccineBatchId: batch.ID,
		Type:           MovementTypeIn,
		Quantity:       batch.Quantity,
		Reason:         MovementReasonInitial,
		PerformedBy:    actor.UserId,
	}
	if err := appendStockMovement(tx, ctx, &movement); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

// nextBatchNumber issues BATCH-YYYYMMDD-NNN, a per-vaccine per-day sequence.
// Redis provides the counter when available (serialized by a distributed
// lock); otherwise the sequence is seeded from the day's row count. Either
// way the candidate is collision-checked before use.
func nextBatchNumber(ctx context.Context, tx *gorm.DB, vaccineId int) (string, error) {
	today := time.Now().Format("20060102")

	if locker := config.GetRedisLock(); locker != nil {
		lock, err := locker.Obtain(ctx, fmt.Sprintf("batchNo:%d", vaccineId), 10*time.Second, nil)
		if err == nil {
			defer lock.Release(ctx)
		}
	}

	seq, err := config.GetRedisCounter(ctx, fmt.Sprintf("batchSeq:%d:%s", vaccineId, today))
	if err != nil {
		return "", err
	}
	if seq <= 1 {
		// fresh counter or redis unavailable: seed from the database
		var count int64
		if err := tx.WithContext(ctx).Model(&VaccineBatch{}).Unscoped().
			Where("vaccine_id = ? AND created_at >= ?", vaccineId,
				time.Now().Truncate(24*time.Hour)).
			Count(&count).Error; err != nil {
			return "", err
		}
		if count+1 > seq {
			seq = count + 1
		}
	}

	for {
		candidate := fmt.Sprintf("BATCH-%s-%03d", today, seq)
		var count int64
		if err := tx.WithContext(ctx).Model(&VaccineBatch{}).Unscoped().
			Where("vaccine_id = ? AND batch_no = ?", vaccineId, candidate).
			Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
		seq++
	}
}

// AdjustBatch sets the on-hand quantity to newQuantity under the per-batch
// posting lock, appending an `adjust` movement with the signed delta. A zero
// delta is a no-op and appends nothing. The optional reason overrides the
// manual-adjust default, used by reconciliation tooling.
func AdjustBatch(ctx context.Context, actor Actor, batchId int, newQuantity int, reason ...string) (*VaccineBatch, error) {
	if err := actor.RequireStaff("adjust batch"); err != nil {
		return nil, err
	}
	if newQuantity < 0 {
		return nil, utils.NewValidationError("quantity", "must not be negative")
	}

	db := config.GetDB()
	var batch VaccineBatch
	txErr := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireBatchPostingLock(tx, batchId); err != nil {
			return err
		}
		// released on the live tx, before the wrapping commit; the FOR UPDATE
		// row lock keeps guarding the quantity until commit
		defer ReleaseBatchPostingLock(tx, batchId)

		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&batch, batchId).Error; err != nil {
			return utils.ErrorRecordNotFound
		}

		delta := newQuantity - batch.Quantity
		if delta == 0 {
			return nil
		}

		movementReason := MovementReasonManualAdjust
		if len(reason) > 0 && reason[0] != "" {
			movementReason = reason[0]
		}
		movement := StockMovement{
			VaccineId:      batch.VaccineId,
			VaccineBatchId: batch.ID,
			Type:           MovementTypeAdjust,
			Quantity:       delta,
			Reason:         movementReason,
			PerformedBy:    actor.UserId,
		}
		if err := appendStockMovement(tx, ctx, &movement); err != nil {
			return err
		}

		batch.Quantity = newQuantity
		return tx.Model(&batch).Update("quantity", newQuantity).Error
	})
	if txErr != nil {
		return nil, txErr
	}
	return &batch, nil
}

// DeductBatchStock consumes stock from a batch. It is the sole `out` path and
// is called only by the allocation workflow, inside the caller's transaction
// and under the caller's posting lock, so that the allocation row and the
// deduction commit or roll back as a unit.
func DeductBatchStock(tx *gorm.DB, ctx context.Context, batchId int, quantity int, reason string, allocationId *int, actor Actor) (*StockMovement, error) {
	if quantity <= 0 {
		return nil, utils.NewValidationError("quantity", "must be greater than zero")
	}

	var batch VaccineBatch
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&batch, batchId).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	if batch.Quantity < quantity {
		return nil, &utils.InsufficientStockError{
			BatchId:   batch.ID,
			Requested: quantity,
			Available: batch.Quantity,
		}
	}

	if err := tx.WithContext(ctx).Model(&batch).
		Update("quantity", gorm.Expr("quantity - ?", quantity)).Error; err != nil {
		return nil, err
	}

	movement := StockMovement{
		VaccineId:           batch.VaccineId,
		VaccineBatchId:      batch.ID,
		Type:                MovementTypeOut,
		Quantity:            quantity,
		Reason:              reason,
		RelatedAllocationId: allocationId,
		PerformedBy:         actor.UserId,
	}
	if err := appendStockMovement(tx, ctx, &movement); err != nil {
		return nil, err
	}
	return &movement, nil
}

func UpdateBatch(ctx context.Context, actor Actor, id int, input *UpdateVaccineBatchInput) (*VaccineBatch, error) {
	if err := actor.RequireStaff("update batch"); err != nil {
		return nil, err
	}
	batch, err := utils.FetchModel[VaccineBatch](ctx, id)
	if err != nil {
		return nil, err
	}
	if input.ExpiryDate != nil {
		batch.ExpiryDate = *input.ExpiryDate
	}
	if input.CostPerUnit != nil {
		batch.CostPerUnit = *input.CostPerUnit
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Save(batch).Error; err != nil {
		return nil, err
	}
	return batch, nil
}

// DeleteBatch tombstones the batch. Ledger history is untouched and the
// default query scope makes a tombstoned batch immutable: the posting paths
// no longer resolve it.
func DeleteBatch(ctx context.Context, actor Actor, id int) (*VaccineBatch, error) {
	if err := actor.RequireStaff("delete batch"); err != nil {
		return nil, err
	}
	batch, err := utils.FetchModel[VaccineBatch](ctx, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(batch).Error; err != nil {
		return nil, err
	}
	return batch, nil
}

func RestoreBatch(ctx context.Context, actor Actor, id int) (*VaccineBatch, error) {
	if err := actor.RequireStaff("restore batch"); err != nil {
		return nil, err
	}
	batch, err := utils.FetchModelWithTombstoned[VaccineBatch](ctx, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Unscoped().Model(batch).
		Update("deleted_at", nil).Error; err != nil {
		return nil, err
	}
	batch.DeletedAt = gorm.DeletedAt{}
	return batch, nil
}

// ListBatches returns a vaccine's batches ordered by expiry ascending.
func ListBatches(ctx context.Context, vaccineId int, includeTombstoned bool) ([]*VaccineBatch, error) {
	if err := utils.ValidateResourceId[Vaccine](ctx, vaccineId); err != nil {
		return nil, err
	}
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("vaccine_id = ?", vaccineId).Order("expiry_date ASC")
	if includeTombstoned {
		dbCtx = dbCtx.Unscoped()
	}
	var batches []*VaccineBatch
	if err := dbCtx.Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}
