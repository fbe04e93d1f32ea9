package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/livestock_backend/config"
	"bitbucket.org/mmdatafocus/livestock_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Budget is a pool of money for a fiscal year. It never blocks spending;
// disbursements and procurement draw against it only in reporting.
type Budget struct {
	ID            int             `gorm:"primary_key" json:"id"`
	Name          string          `gorm:"size:150" json:"name"`
	FiscalYear    string          `gorm:"size:20;index;not null" json:"fiscal_year"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(16,2);not null" json:"total_amount"`
	Notes         string          `gorm:"type:text" json:"notes"`
	CreatedBy     int             `json:"created_by"`
	Disbursements []*Disbursement `json:"disbursements,omitempty"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt  `gorm:"index" json:"deleted_at"`
}

type NewBudget struct {
	Name        string          `json:"name"`
	FiscalYear  string          `json:"fiscal_year" validate:"required"`
	TotalAmount decimal.Decimal `json:"total_amount" validate:"required"`
	Notes       string          `json:"notes"`
}

type UpdateBudgetInput struct {
	Name        *string          `json:"name"`
	TotalAmount *decimal.Decimal `json:"total_amount"`
	Notes       *string          `json:"notes"`
}

// BudgetSummary is the money position. Remaining is clamped at zero for
// display; the overspend itself is visible through Committed exceeding
// TotalBudget.
type BudgetSummary struct {
	TotalBudget       decimal.Decimal `json:"total_budget"`
	TotalProcurement  decimal.Decimal `json:"total_procurement"`
	TotalDisbursement decimal.Decimal `json:"total_disbursement"`
	Committed         decimal.Decimal `json:"committed"`
	Remaining         decimal.Decimal `json:"remaining"`
}

// CreateBudget registers a fiscal-year budget. Admin only; fiscal year uses
// the "2025-26" form that the disbursement reports filter on.
func CreateBudget(ctx context.Context, actor Actor, input *NewBudget) (*Budget, error) {
	if err := actor.RequireAdmin("create budgets"); err != nil {
		return nil, err
	}
	if err := utils.ValidateStruct(*input); err != nil {
		return nil, err
	}
	if input.TotalAmount.IsNegative() {
		return nil, &utils.ValidationError{Field: "total_amount", Message: "total amount cannot be negative"}
	}
	if _, _, err := FiscalYearWindow(input.FiscalYear); err != nil {
		return nil, err
	}

	db := config.GetDB()
	budget := Budget{
		Name:        input.Name,
		FiscalYear:  input.FiscalYear,
		TotalAmount: input.TotalAmount,
		Notes:       input.Notes,
		CreatedBy:   actor.UserId,
	}
	if err := db.WithContext(ctx).Create(&budget).Error; err != nil {
		config.LogError(config.GetLogger(), "models", "CreateBudget", "create", input, err)
		return nil, err
	}
	return &budget, nil
}

func UpdateBudget(ctx context.Context, actor Actor, id int, input *UpdateBudgetInput) (*Budget, error) {
	if err := actor.RequireAdmin("update budgets"); err != nil {
		return nil, err
	}
	budget, err := utils.FetchModel[Budget](ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.Name != nil {
		updates["name"] = *input.Name
	}
	if input.TotalAmount != nil {
		if input.TotalAmount.IsNegative() {
			return nil, &utils.ValidationError{Field: "total_amount", Message: "total amount cannot be negative"}
		}
		updates["total_amount"] = *input.TotalAmount
	}
	if input.Notes != nil {
		updates["notes"] = *input.Notes
	}
	if len(updates) == 0 {
		return budget, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(budget).Updates(updates).Error; err != nil {
		config.LogError(config.GetLogger(), "models", "UpdateBudget", "update", id, err)
		return nil, err
	}
	return utils.FetchModel[Budget](ctx, id)
}

func GetBudget(ctx context.Context, id int) (*Budget, error) {
	return utils.FetchModel[Budget](ctx, id, "Disbursements")
}

func ListBudgets(ctx context.Context, includeTombstoned bool) ([]*Budget, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&Budget{}).Order("fiscal_year DESC, id DESC")
	if includeTombstoned {
		dbCtx = dbCtx.Unscoped()
	}
	var budgets []*Budget
	if err := dbCtx.Find(&budgets).Error; err != nil {
		return nil, err
	}
	return budgets, nil
}

// DeleteBudget tombstones a budget. Existing disbursements keep their budget
// reference and still resolve it through the tombstone.
func DeleteBudget(ctx context.Context, actor Actor, id int) (*Budget, error) {
	if err := actor.RequireAdmin("delete budgets"); err != nil {
		return nil, err
	}
	budget, err := utils.FetchModel[Budget](ctx, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(budget).Error; err != nil {
		config.LogError(config.GetLogger(), "models", "DeleteBudget", "delete", id, err)
		return nil, err
	}
	return budget, nil
}

func RestoreBudget(ctx context.Context, actor Actor, id int) (*Budget, error) {
	if err := actor.RequireAdmin("restore budgets"); err != nil {
		return nil, err
	}
	budget, err := utils.FetchModelWithTombstoned[Budget](ctx, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Unscoped().Model(budget).
		Update("deleted_at", nil).Error; err != nil {
		config.LogError(config.GetLogger(), "models", "RestoreBudget", "restore", id, err)
		return nil, err
	}
	return utils.FetchModel[Budget](ctx, id)
}

// GetBudgetSummary computes the money position. With a budget id the total is
// that budget's amount; without one it sums every live budget. Procurement and
// disbursement totals are always system wide, because neither batches nor
// disbursements are partitioned per budget at purchase time.
func GetBudgetSummary(ctx context.Context, budgetId *int) (*BudgetSummary, error) {
	db := config.GetDB()
	summary := BudgetSummary{
		TotalBudget:       decimal.Zero,
		TotalProcurement:  decimal.Zero,
		TotalDisbursement: decimal.Zero,
	}

	if budgetId != nil {
		budget, err := utils.FetchModelWithTombstoned[Budget](ctx, *budgetId)
		if err != nil {
			return nil, err
		}
		summary.TotalBudget = budget.TotalAmount
	} else {
		var row struct{ Total decimal.NullDecimal }
		if err := db.WithContext(ctx).Model(&Budget{}).
			Select("SUM(total_amount) AS total").
			Scan(&row).Error; err != nil {
			return nil, &utils.StorageError{Op: "sum budgets", Err: err}
		}
		if row.Total.Valid {
			summary.TotalBudget = row.Total.Decimal
		}
	}

	var procurement struct{ Total decimal.NullDecimal }
	if err := db.WithContext(ctx).Model(&VaccineBatch{}).
		Select("SUM(quantity * cost_per_unit) AS total").
		Scan(&procurement).Error; err != nil {
		return nil, &utils.StorageError{Op: "sum procurement", Err: err}
	}
	if procurement.Total.Valid {
		summary.TotalProcurement = procurement.Total.Decimal
	}

	var disbursed struct{ Total decimal.NullDecimal }
	if err := db.WithContext(ctx).Model(&Disbursement{}).
		Select("SUM(amount) AS total").
		Scan(&disbursed).Error; err != nil {
		return nil, &utils.StorageError{Op: "sum disbursements", Err: err}
	}
	if disbursed.Total.Valid {
		summary.TotalDisbursement = disbursed.Total.Decimal
	}

	summary.Committed = summary.TotalProcurement.Add(summary.TotalDisbursement)
	remaining := summary.TotalBudget.Sub(summary.Committed)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	summary.Remaining = remaining
	return &summary, nil
}
