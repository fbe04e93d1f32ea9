package reports

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/livestock_backend/config"
	"bitbucket.org/mmdatafocus/livestock_backend/models"
	"bitbucket.org/mmdatafocus/livestock_backend/utils"
	"github.com/shopspring/decimal"
)

// ProgramSummaryResponse is the admin dashboard card set.
type ProgramSummaryResponse struct {
	TotalFarmers       int64           `json:"total_farmers"`
	TotalFarms         int64           `json:"total_farms"`
	TotalAnimals       int64           `json:"total_animals"`
	TotalVaccines      int64           `json:"total_vaccines"`
	TotalStock         int64           `json:"total_stock"`
	ExpiringSoon       int64           `json:"expiring_soon"`
	PendingAllocations int64           `json:"pending_allocations"`
	TotalVaccinations  int64           `json:"total_vaccinations"`
	TotalDisbursed     decimal.Decimal `json:"total_disbursed"`
}

type BudgetUtilisationRow struct {
	BudgetId          int             `json:"budget_id"`
	Name              string          `json:"name"`
	FiscalYear        string          `json:"fiscal_year"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	DisbursedAmount   decimal.Decimal `json:"disbursed_amount"`
	DisbursementCount int64           `json:"disbursement_count"`
	UtilisationPct    decimal.Decimal `json:"utilisation_pct"`
}

type VaccineCoverageRow struct {
	VaccineId        int    `json:"vaccine_id"`
	VaccineName      string `json:"vaccine_name"`
	DosesGiven       int64  `json:"doses_given"`
	AnimalsCovered   int64  `json:"animals_covered"`
	AllocationsCount int64  `json:"allocations_count"`
}

// GetProgramSummary builds the dashboard counters in one pass of simple
// counts. Stock and expiry numbers come from live batches only.
func GetProgramSummary(ctx context.Context) (*ProgramSummaryResponse, error) {
	db := config.GetDB()
	resp := ProgramSummaryResponse{TotalDisbursed: decimal.Zero}

	counts := []struct {
		dest  *int64
		model interface{}
	}{
		{&resp.TotalFarmers, &models.Farmer{}},
		{&resp.TotalFarms, &models.Farm{}},
		{&resp.TotalAnimals, &models.Animal{}},
		{&resp.TotalVaccines, &models.Vaccine{}},
		{&resp.TotalVaccinations, &models.Vaccination{}},
	}
	for _, c := range counts {
		if err := db.WithContext(ctx).Model(c.model).Count(c.dest).Error; err != nil {
			return nil, &utils.StorageError{Op: "program summary counts", Err: err}
		}
	}

	var stock struct{ Total *int64 }
	if err := db.WithContext(ctx).Model(&models.VaccineBatch{}).
		Select("SUM(quantity) AS total").
		Scan(&stock).Error; err != nil {
		return nil, &utils.StorageError{Op: "sum stock", Err: err}
	}
	if stock.Total != nil {
		resp.TotalStock = *stock.Total
	}

	horizon := time.Now().AddDate(0, 0, models.DefaultExpiryWindowDays)
	if err := db.WithContext(ctx).Model(&models.VaccineBatch{}).
		Where("expiry_date BETWEEN ? AND ? AND quantity > 0", time.Now(), horizon).
		Count(&resp.ExpiringSoon).Error; err != nil {
		return nil, &utils.StorageError{Op: "count expiring batches", Err: err}
	}

	if err := db.WithContext(ctx).Model(&models.VaccineAllocation{}).
		Where("status = ?", models.AllocationStatusPending).
		Count(&resp.PendingAllocations).Error; err != nil {
		return nil, &utils.StorageError{Op: "count pending allocations", Err: err}
	}

	var disbursed struct{ Total decimal.NullDecimal }
	if err := db.WithContext(ctx).Model(&models.Disbursement{}).
		Select("SUM(amount) AS total").
		Scan(&disbursed).Error; err != nil {
		return nil, &utils.StorageError{Op: "sum disbursed", Err: err}
	}
	if disbursed.Total.Valid {
		resp.TotalDisbursed = disbursed.Total.Decimal
	}

	return &resp, nil
}

// GetBudgetUtilisation lists every live budget with its disbursed total and
// utilisation percentage. Tombstoned disbursements do not count against the
// budget.
func GetBudgetUtilisation(ctx context.Context) ([]*BudgetUtilisationRow, error) {
	sql := `
SELECT
    budgets.id AS budget_id,
    budgets.name,
    budgets.fiscal_year,
    budgets.total_amount,
    COALESCE(d.disbursed_amount, 0) AS disbursed_amount,
    COALESCE(d.disbursement_count, 0) AS disbursement_count
FROM
    budgets
    LEFT JOIN (
        SELECT
            budget_id,
            SUM(amount) AS disbursed_amount,
            COUNT(*) AS disbursement_count
        FROM disbursements
        WHERE deleted_at IS NULL
        GROUP BY budget_id
    ) AS d ON d.budget_id = budgets.id
WHERE
    budgets.deleted_at IS NULL
ORDER BY
    budgets.fiscal_year DESC, budgets.id;
`
	var rows []*BudgetUtilisationRow
	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(sql).Scan(&rows).Error; err != nil {
		return nil, &utils.StorageError{Op: "budget utilisation", Err: err}
	}

	hundred := decimal.NewFromInt(100)
	for _, row := range rows {
		if row.TotalAmount.IsPositive() {
			row.UtilisationPct = row.DisbursedAmount.Div(row.TotalAmount).Mul(hundred).Round(2)
		} else {
			row.UtilisationPct = decimal.Zero
		}
	}
	return rows, nil
}

// GetVaccineCoverage reports doses and distinct animals reached per vaccine.
func GetVaccineCoverage(ctx context.Context) ([]*VaccineCoverageRow, error) {
	sql := `
SELECT
    vaccines.id AS vaccine_id,
    vaccines.name AS vaccine_name,
    COALESCE(v.doses_given, 0) AS doses_given,
    COALESCE(v.animals_covered, 0) AS animals_covered,
    COALESCE(a.allocations_count, 0) AS allocations_count
FROM
    vaccines
    LEFT JOIN (
        SELECT
            vaccine_id,
            COUNT(*) AS doses_given,
            COUNT(DISTINCT animal_id) AS animals_covered
        FROM vaccinations
        WHERE deleted_at IS NULL
        GROUP BY vaccine_id
    ) AS v ON v.vaccine_id = vaccines.id
    LEFT JOIN (
        SELECT
            vaccine_id,
            COUNT(*) AS allocations_count
        FROM vaccine_allocations
        WHERE deleted_at IS NULL
        GROUP BY vaccine_id
    ) AS a ON a.vaccine_id = vaccines.id
WHERE
    vaccines.deleted_at IS NULL
ORDER BY
    vaccines.name;
`
	var rows []*VaccineCoverageRow
	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(sql).Scan(&rows).Error; err != nil {
		return nil, &utils.StorageError{Op: "vaccine coverage", Err: err}
	}
	return rows, nil
}
