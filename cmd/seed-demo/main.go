// seed-demo loads a small demo dataset: five farmers with a farm and three
// animals each, three officers sharing the farms, three vaccines with opening
// stock, allocations drawn from the first batch, a handful of vaccinations,
// and a 2025-26 budget with one disbursement per farmer. Everything goes
// through the regular operations so the movement ledger stays consistent.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-demo
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"bitbucket.org/mmdatafocus/livestock_backend/appctx"
	"bitbucket.org/mmdatafocus/livestock_backend/config"
	"bitbucket.org/mmdatafocus/livestock_backend/models"
	"bitbucket.org/mmdatafocus/livestock_backend/workflow"
	"github.com/shopspring/decimal"
)

func main() {
	ctx := appctx.EnsureCorrelationId(context.Background())
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized. Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	admin := models.AdminActor(1)

	// Registry rows are plain inserts; their lifecycle lives outside this
	// service.
	var farmers []models.Farmer
	var farms []models.Farm
	species := []string{"cattle", "goat", "sheep"}
	for i := 1; i <= 5; i++ {
		farmer := models.Farmer{
			UserId: 100 + i,
			Name:   fmt.Sprintf("Farmer %d", i),
			Phone:  fmt.Sprintf("018000000%d", i),
		}
		if err := db.WithContext(ctx).
			Where(models.Farmer{UserId: farmer.UserId}).
			FirstOrCreate(&farmer).Error; err != nil {
			fatal("seed farmer", err)
		}
		farmers = append(farmers, farmer)

		farm := models.Farm{
			FarmerId: farmer.ID,
			Name:     fmt.Sprintf("Farm %d", i),
			Location: "Demo District",
		}
		if err := db.WithContext(ctx).
			Where(models.Farm{FarmerId: farmer.ID, Name: farm.Name}).
			FirstOrCreate(&farm).Error; err != nil {
			fatal("seed farm", err)
		}
		farms = append(farms, farm)

		officerUserId := 10 + (i % 3)
		link := models.FarmOfficer{FarmId: farm.ID, UserId: officerUserId}
		if err := db.WithContext(ctx).
			Where(link).FirstOrCreate(&link).Error; err != nil {
			fatal("link officer", err)
		}

		for j := 1; j <= 3; j++ {
			animal := models.Animal{
				FarmId:    farm.ID,
				TagNumber: fmt.Sprintf("TAG-%d-%d", i, j),
				Species:   species[(i+j)%len(species)],
			}
			if err := db.WithContext(ctx).
				Where(models.Animal{FarmId: farm.ID, TagNumber: animal.TagNumber}).
				FirstOrCreate(&animal).Error; err != nil {
				fatal("seed animal", err)
			}
		}
	}

	vaccines := map[string]*models.Vaccine{}
	for name, cost := range map[string]int64{"FMD": 50, "PPR": 40, "Anthrax": 30} {
		v, err := models.CreateVaccine(ctx, admin, &models.NewVaccine{
			Name:        name,
			CostPerUnit: decimal.NewFromInt(cost),
		})
		if err != nil {
			// Re-runs hit the name uniqueness check; reuse the existing row.
			existing, listErr := models.ListVaccines(ctx, name, false)
			if listErr != nil || len(existing) == 0 {
				fatal("seed vaccine "+name, err)
			}
			v = existing[0]
		}
		vaccines[name] = v
	}

	fmdBatch, err := models.ReceiveBatch(ctx, admin, &models.NewVaccineBatch{
		VaccineId:   vaccines["FMD"].ID,
		BatchNo:     "FMD-2025-01",
		ExpiryDate:  time.Now().AddDate(1, 0, 0),
		Quantity:    1500,
		CostPerUnit: decimal.NewFromInt(50),
	})
	if err != nil {
		fatal("receive FMD batch", err)
	}
	if _, err := models.ReceiveBatch(ctx, admin, &models.NewVaccineBatch{
		VaccineId:   vaccines["PPR"].ID,
		BatchNo:     "PPR-2025-01",
		ExpiryDate:  time.Now().AddDate(1, 6, 0),
		Quantity:    1200,
		CostPerUnit: decimal.NewFromInt(40),
	}); err != nil {
		fatal("receive PPR batch", err)
	}

	var farmIds []int
	for _, farm := range farms {
		farmIds = append(farmIds, farm.ID)
	}
	officer := models.OfficerActor(11, farmIds)
	var allocations []*models.VaccineAllocation
	for _, farm := range farms {
		allocation, err := workflow.AllocateDirect(ctx, officer, &workflow.NewDirectAllocation{
			VaccineId: vaccines["FMD"].ID,
			FarmId:    farm.ID,
			BatchId:   &fmdBatch.ID,
			Quantity:  50,
		})
		if err != nil {
			fatal("allocate", err)
		}
		allocations = append(allocations, allocation)
	}

	var animals []models.Animal
	if err := db.WithContext(ctx).Order("id").Limit(6).Find(&animals).Error; err != nil {
		fatal("list animals", err)
	}
	cost := decimal.NewFromInt(100)
	for idx, animal := range animals {
		allocation := allocations[idx%len(allocations)]
		if _, err := models.RecordVaccination(ctx, officer, &models.NewVaccination{
			AnimalId:         animal.ID,
			VaccineId:        vaccines["FMD"].ID,
			AllocationId:     &allocation.ID,
			Dose:             decimal.NewFromInt(2),
			DateAdministered: time.Now().AddDate(0, 0, -(idx + 1)),
			Cost:             &cost,
		}); err != nil {
			fatal("record vaccination", err)
		}
	}

	budget, err := models.CreateBudget(ctx, admin, &models.NewBudget{
		Name:        "Vaccination Program",
		FiscalYear:  "2025-26",
		TotalAmount: decimal.NewFromInt(5000000),
	})
	if err != nil {
		fatal("create budget", err)
	}
	for i, farmer := range farmers {
		farmId := farms[i].ID
		if _, err := models.RecordDisbursement(ctx, officer, &models.NewDisbursement{
			BudgetId:    budget.ID,
			FarmerId:    farmer.ID,
			FarmId:      &farmId,
			Amount:      decimal.NewFromInt(int64(2000 + (i+1)*500)),
			Purpose:     "Vaccination Support",
			PaidOn:      time.Now().AddDate(0, 0, -5),
			ReferenceNo: fmt.Sprintf("REF-%04d", i+1),
		}); err != nil {
			fatal("record disbursement", err)
		}
	}

	fmt.Println("demo data seeded")
}

func fatal(step string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", step, err)
	os.Exit(1)
}
