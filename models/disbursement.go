package models

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/livestock_backend/config"
	"bitbucket.org/mmdatafocus/livestock_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Disbursement is money paid out to a farmer against a budget. Recording one
// never checks the budget balance; overspend is surfaced by the summary, not
// prevented here.
type Disbursement struct {
	ID          int                `gorm:"primary_key" json:"id"`
	BudgetId    int                `gorm:"index;not null" json:"budget_id"`
	FarmerId    int                `gorm:"index;not null" json:"farmer_id"`
	FarmId      *int               `gorm:"index" json:"farm_id"`
	Amount      decimal.Decimal    `gorm:"type:decimal(14,2);not null" json:"amount"`
	Purpose     string             `gorm:"size:255" json:"purpose"`
	PaidOn      time.Time          `gorm:"type:date;not null;index" json:"paid_on"`
	DisbursedBy int                `json:"disbursed_by"`
	Status      DisbursementStatus `gorm:"size:20;not null;default:paid" json:"status"`
	ReferenceNo string             `gorm:"size:100" json:"reference_no"`
	Budget      *Budget            `json:"budget,omitempty"`
	Farmer      *Farmer            `json:"farmer,omitempty"`
	Farm        *Farm              `json:"farm,omitempty"`
	CreatedAt   time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt     `gorm:"index" json:"deleted_at"`
}

type NewDisbursement struct {
	BudgetId    int                `json:"budget_id" validate:"required"`
	FarmerId    int                `json:"farmer_id" validate:"required"`
	FarmId      *int               `json:"farm_id"`
	Amount      decimal.Decimal    `json:"amount" validate:"required"`
	Purpose     string             `json:"purpose"`
	PaidOn      time.Time          `json:"paid_on" validate:"required"`
	Status      DisbursementStatus `json:"status"`
	ReferenceNo string             `json:"reference_no"`
}

type UpdateDisbursementInput struct {
	Amount      *decimal.Decimal    `json:"amount"`
	Purpose     *string             `json:"purpose"`
	PaidOn      *time.Time          `json:"paid_on"`
	Status      *DisbursementStatus `json:"status"`
	ReferenceNo *string             `json:"reference_no"`
}

type DisbursementStatusBucket struct {
	Status DisbursementStatus `json:"status"`
	Count  int64              `json:"count"`
	Total  decimal.Decimal    `json:"total"`
}

type DisbursementMonthBucket struct {
	Month int             `json:"month"`
	Count int64           `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// DisbursementFinancials groups spend by status and by calendar month of the
// payout date within one fiscal-year window.
type DisbursementFinancials struct {
	FiscalYear  string                     `json:"fiscal_year"`
	TotalAmount decimal.Decimal            `json:"total_amount"`
	TotalCount  int64                      `json:"total_count"`
	ByStatus    []DisbursementStatusBucket `json:"by_status"`
	ByMonth     []DisbursementMonthBucket  `json:"by_month"`
}

// FiscalYearWindow resolves a "2025-26" label to its date window, July 1 of
// the first year through June 30 of the following year.
func FiscalYearWindow(fiscalYear string) (time.Time, time.Time, error) {
	parts := strings.Split(strings.TrimSpace(fiscalYear), "-")
	if len(parts) != 2 {
		return time.Time{}, time.Time{}, &utils.ValidationError{
			Field: "fiscal_year", Message: "fiscal year must look like 2025-26"}
	}
	startYear, err := strconv.Atoi(parts[0])
	if err != nil || len(parts[0]) != 4 {
		return time.Time{}, time.Time{}, &utils.ValidationError{
			Field: "fiscal_year", Message: "fiscal year must start with a four digit year"}
	}
	suffix, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 2 {
		return time.Time{}, time.Time{}, &utils.ValidationError{
			Field: "fiscal_year", Message: "fiscal year must end with a two digit year"}
	}
	endYear := startYear - startYear%100 + suffix
	if endYear <= startYear {
		endYear += 100
	}
	if endYear != startYear+1 {
		return time.Time{}, time.Time{}, &utils.ValidationError{
			Field: "fiscal_year", Message: fmt.Sprintf("%s does not span consecutive years", fiscalYear)}
	}
	start := time.Date(startYear, time.July, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(endYear, time.June, 30, 0, 0, 0, 0, time.UTC)
	return start, end, nil
}

// RecordDisbursement writes a payout. The budget may already be tombstoned;
// the reference is kept valid either way. Status defaults to paid.
func RecordDisbursement(ctx context.Context, actor Actor, input *NewDisbursement) (*Disbursement, error) {
	if err := actor.RequireStaff("record disbursements"); err != nil {
		return nil, err
	}
	if err := utils.ValidateStruct(*input); err != nil {
		return nil, err
	}
	if !input.Amount.IsPositive() {
		return nil, &utils.ValidationError{Field: "amount", Message: "amount must be greater than zero"}
	}
	if _, err := utils.FetchModelWithTombstoned[Budget](ctx, input.BudgetId); err != nil {
		return nil, err
	}
	if err := utils.ValidateResourceId[Farmer](ctx, input.FarmerId); err != nil {
		return nil, err
	}
	if input.FarmId != nil {
		if err := utils.ValidateResourceId[Farm](ctx, *input.FarmId); err != nil {
			return nil, err
		}
	}
	status := input.Status
	if status == "" {
		status = DisbursementStatusPaid
	}
	if !status.Valid() {
		return nil, &utils.ValidationError{Field: "status", Message: "unknown disbursement status"}
	}

	db := config.GetDB()
	disbursement := Disbursement{
		BudgetId:    input.BudgetId,
		FarmerId:    input.FarmerId,
		FarmId:      input.FarmId,
		Amount:      input.Amount,
		Purpose:     input.Purpose,
		PaidOn:      input.PaidOn,
		DisbursedBy: actor.UserId,
		Status:      status,
		ReferenceNo: input.ReferenceNo,
	}
	if err := db.WithContext(ctx).Create(&disbursement).Error; err != nil {
		config.LogError(config.GetLogger(), "models", "RecordDisbursement", "create", input, err)
		return nil, err
	}
	return &disbursement, nil
}

func UpdateDisbursement(ctx context.Context, actor Actor, id int, input *UpdateDisbursementInput) (*Disbursement, error) {
	if err := actor.RequireStaff("update disbursements"); err != nil {
		return nil, err
	}
	disbursement, err := utils.FetchModel[Disbursement](ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.Amount != nil {
		if !input.Amount.IsPositive() {
			return nil, &utils.ValidationError{Field: "amount", Message: "amount must be greater than zero"}
		}
		updates["amount"] = *input.Amount
	}
	if input.Purpose != nil {
		updates["purpose"] = *input.Purpose
	}
	if input.PaidOn != nil {
		updates["paid_on"] = *input.PaidOn
	}
	if input.Status != nil {
		if !input.Status.Valid() {
			return nil, &utils.ValidationError{Field: "status", Message: "unknown disbursement status"}
		}
		updates["status"] = *input.Status
	}
	if input.ReferenceNo != nil {
		updates["reference_no"] = *input.ReferenceNo
	}
	if len(updates) == 0 {
		return disbursement, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(disbursement).Updates(updates).Error; err != nil {
		config.LogError(config.GetLogger(), "models", "UpdateDisbursement", "update", id, err)
		return nil, err
	}
	return utils.FetchModel[Disbursement](ctx, id)
}

// DeleteDisbursement tombstones a payout, dropping it from budget summaries
// and financials while keeping the row recoverable.
func DeleteDisbursement(ctx context.Context, actor Actor, id int) (*Disbursement, error) {
	if err := actor.RequireStaff("delete disbursements"); err != nil {
		return nil, err
	}
	disbursement, err := utils.FetchModel[Disbursement](ctx, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(disbursement).Error; err != nil {
		config.LogError(config.GetLogger(), "models", "DeleteDisbursement", "delete", id, err)
		return nil, err
	}
	return disbursement, nil
}

func RestoreDisbursement(ctx context.Context, actor Actor, id int) (*Disbursement, error) {
	if err := actor.RequireStaff("restore disbursements"); err != nil {
		return nil, err
	}
	disbursement, err := utils.FetchModelWithTombstoned[Disbursement](ctx, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Unscoped().Model(disbursement).
		Update("deleted_at", nil).Error; err != nil {
		config.LogError(config.GetLogger(), "models", "RestoreDisbursement", "restore", id, err)
		return nil, err
	}
	return utils.FetchModel[Disbursement](ctx, id)
}

func GetDisbursement(ctx context.Context, id int) (*Disbursement, error) {
	disbursement, err := utils.FetchModel[Disbursement](ctx, id, "Farmer", "Farm")
	if err != nil {
		return nil, err
	}
	// Budget resolves through its tombstone so old payouts stay explainable.
	db := config.GetDB()
	var budget Budget
	if err := db.WithContext(ctx).Unscoped().
		First(&budget, disbursement.BudgetId).Error; err == nil {
		disbursement.Budget = &budget
	}
	return disbursement, nil
}

// ListDisbursements returns payouts visible to the actor, newest payout first,
// optionally narrowed to one fiscal year's budgets. Farmers see their own
// payouts, officers those on assigned farms, admins all.
func ListDisbursements(ctx context.Context, actor Actor, fiscalYear string) ([]*Disbursement, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&Disbursement{}).
		Preload("Farmer").Preload("Farm").
		Order("paid_on DESC, id DESC")

	switch actor.Role {
	case RoleAdmin:
	case RoleOfficer:
		var err error
		dbCtx, err = actor.ScopeByFarm(dbCtx, "farm_id")
		if err != nil {
			return nil, err
		}
	case RoleFarmer:
		dbCtx = dbCtx.Where("farmer_id = ?", actor.FarmerId)
	default:
		return nil, &utils.ForbiddenError{Reason: "unknown role"}
	}

	if fiscalYear != "" {
		if _, _, err := FiscalYearWindow(fiscalYear); err != nil {
			return nil, err
		}
		budgetIds := db.WithContext(ctx).Session(&gorm.Session{NewDB: true}).
			Unscoped().Model(&Budget{}).Select("id").Where("fiscal_year = ?", fiscalYear)
		dbCtx = dbCtx.Where("budget_id IN (?)", budgetIds)
	}

	var disbursements []*Disbursement
	if err := dbCtx.Find(&disbursements).Error; err != nil {
		return nil, err
	}
	return disbursements, nil
}

// UnpaidDisbursementCount backs the officer's follow-up badge: payouts in any
// status other than paid, within the actor's farm scope.
func UnpaidDisbursementCount(ctx context.Context, actor Actor) (int64, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&Disbursement{}).
		Where("status <> ?", DisbursementStatusPaid)
	switch actor.Role {
	case RoleAdmin:
	case RoleOfficer:
		var err error
		dbCtx, err = actor.ScopeByFarm(dbCtx, "farm_id")
		if err != nil {
			return 0, err
		}
	case RoleFarmer:
		dbCtx = dbCtx.Where("farmer_id = ?", actor.FarmerId)
	default:
		return 0, &utils.ForbiddenError{Reason: "unknown role"}
	}
	var count int64
	if err := dbCtx.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// GetDisbursementFinancials aggregates payouts whose paid_on falls inside the
// fiscal-year window, grouped by status and by calendar month.
func GetDisbursementFinancials(ctx context.Context, fiscalYear string) (*DisbursementFinancials, error) {
	start, end, err := FiscalYearWindow(fiscalYear)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	base := func() *gorm.DB {
		return db.WithContext(ctx).Model(&Disbursement{}).
			Where("paid_on BETWEEN ? AND ?", start, end)
	}

	financials := DisbursementFinancials{
		FiscalYear:  fiscalYear,
		TotalAmount: decimal.Zero,
	}

	var totals struct {
		Total decimal.NullDecimal
		Count int64
	}
	if err := base().
		Select("SUM(amount) AS total, COUNT(*) AS count").
		Scan(&totals).Error; err != nil {
		return nil, &utils.StorageError{Op: "disbursement totals", Err: err}
	}
	if totals.Total.Valid {
		financials.TotalAmount = totals.Total.Decimal
	}
	financials.TotalCount = totals.Count

	if err := base().
		Select("status, COUNT(*) AS count, SUM(amount) AS total").
		Group("status").
		Order("status").
		Scan(&financials.ByStatus).Error; err != nil {
		return nil, &utils.StorageError{Op: "disbursements by status", Err: err}
	}

	if err := base().
		Select("MONTH(paid_on) AS month, COUNT(*) AS count, SUM(amount) AS total").
		Group("MONTH(paid_on)").
		Order("month").
		Scan(&financials.ByMonth).Error; err != nil {
		return nil, &utils.StorageError{Op: "disbursements by month", Err: err}
	}

	return &financials, nil
}
