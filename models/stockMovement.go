package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/livestock_backend/config"
	"bitbucket.org/mmdatafocus/livestock_backend/utils"
	"gorm.io/gorm"
)

// StockMovement is the append-only audit trail of quantity changes. Rows are
// never updated or deleted; VaccineBatch.Quantity is a projection of this
// table and may be recomputed from it at any time (see cmd/ledger-verify).
type StockMovement struct {
	ID                  int          `gorm:"primary_key" json:"id"`
	VaccineId           int          `gorm:"index;not null" json:"vaccine_id"`
	VaccineBatchId      int          `gorm:"index;not null" json:"vaccine_batch_id"`
	Type                MovementType `gorm:"size:20;not null" json:"type"`
	Quantity            int          `gorm:"not null" json:"quantity"`
	Reason              string       `gorm:"size:255" json:"reason"`
	RelatedAllocationId *int         `json:"related_allocation_id"`
	PerformedBy         int          `gorm:"index" json:"performed_by"`
	CreatedAt           time.Time    `gorm:"autoCreateTime" json:"created_at"`
}

func appendStockMovement(tx *gorm.DB, ctx context.Context, movement *StockMovement) error {
	return tx.WithContext(ctx).Create(movement).Error
}

// ListStockMovements returns the movement history for one vaccine, newest first.
func ListStockMovements(ctx context.Context, vaccineId int) ([]*StockMovement, error) {
	if err := utils.ValidateResourceId[Vaccine](ctx, vaccineId); err != nil {
		return nil, err
	}
	db := config.GetDB()
	var movements []*StockMovement
	err := db.WithContext(ctx).
		Where("vaccine_id = ?", vaccineId).
		Order("created_at DESC, id DESC").
		Find(&movements).Error
	if err != nil {
		return nil, err
	}
	return movements, nil
}

// ListBatchMovements returns the movement history for a single batch in
// insertion order, the shape used for ledger reconciliation.
func ListBatchMovements(ctx context.Context, batchId int) ([]*StockMovement, error) {
	db := config.GetDB()
	var movements []*StockMovement
	err := db.WithContext(ctx).
		Where("vaccine_batch_id = ?", batchId).
		Order("id ASC").
		Find(&movements).Error
	if err != nil {
		return nil, err
	}
	return movements, nil
}

// LedgerBatchQuantity folds the full movement history of a batch into the
// on-hand quantity it implies. cmd/ledger-verify compares this against the
// cached VaccineBatch.Quantity.
func LedgerBatchQuantity(ctx context.Context, batchId int) (int, error) {
	movements, err := ListBatchMovements(ctx, batchId)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, m := range movements {
		total += m.SignedDelta()
	}
	return total, nil
}

// SignedDelta maps a movement to its effect on the on-hand quantity.
func (m *StockMovement) SignedDelta() int {
	switch m.Type {
	case MovementTypeIn:
		return m.Quantity
	case MovementTypeOut:
		return -m.Quantity
	case MovementTypeAdjust:
		return m.Quantity
	}
	return 0
}
