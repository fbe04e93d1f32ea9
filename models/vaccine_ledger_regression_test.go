package models_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/livestock_backend/config"
	"bitbucket.org/mmdatafocus/livestock_backend/models"
	"bitbucket.org/mmdatafocus/livestock_backend/models/reports"
	"bitbucket.org/mmdatafocus/livestock_backend/utils"
	"bitbucket.org/mmdatafocus/livestock_backend/workflow"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// End-to-end pass over the supply chain: receive stock, allocate it under
// concurrency, cancel without restocking, reconcile the ledger, and check the
// money numbers land where the books expect them.
func TestVaccineLedgerEndToEnd(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "livestock_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	db := config.GetDB()
	if db == nil {
		t.Fatalf("db is nil after ConnectDatabaseWithRetry")
	}

	admin := models.AdminActor(1)

	// Registry rows come from outside the core; insert them directly.
	farmerRow := models.Farmer{UserId: 101, Name: "Test Farmer"}
	if err := db.WithContext(ctx).Create(&farmerRow).Error; err != nil {
		t.Fatalf("create farmer: %v", err)
	}
	farm := models.Farm{FarmerId: farmerRow.ID, Name: "Test Farm"}
	if err := db.WithContext(ctx).Create(&farm).Error; err != nil {
		t.Fatalf("create farm: %v", err)
	}
	var animals []models.Animal
	for i := 1; i <= 4; i++ {
		animal := models.Animal{FarmId: farm.ID, TagNumber: fmt.Sprintf("TAG-%d", i), Species: "cattle"}
		if err := db.WithContext(ctx).Create(&animal).Error; err != nil {
			t.Fatalf("create animal: %v", err)
		}
		animals = append(animals, animal)
	}

	vaccine, err := models.CreateVaccine(ctx, admin, &models.NewVaccine{
		Name:        "FMD",
		CostPerUnit: decimal.NewFromInt(50),
	})
	if err != nil {
		t.Fatalf("CreateVaccine: %v", err)
	}

	// 1) Generated batch numbers follow BATCH-YYYYMMDD-NNN and stay unique.
	genBatch, err := models.ReceiveBatch(ctx, admin, &models.NewVaccineBatch{
		VaccineId:   vaccine.ID,
		ExpiryDate:  time.Now().AddDate(1, 0, 0),
		Quantity:    10,
		CostPerUnit: decimal.NewFromInt(50),
	})
	if err != nil {
		t.Fatalf("ReceiveBatch(generated): %v", err)
	}
	batchNoRe := regexp.MustCompile(`^BATCH-\d{8}-\d{3}$`)
	if !batchNoRe.MatchString(genBatch.BatchNo) {
		t.Fatalf("generated batch number %q does not match BATCH-YYYYMMDD-NNN", genBatch.BatchNo)
	}
	genBatch2, err := models.ReceiveBatch(ctx, admin, &models.NewVaccineBatch{
		VaccineId:  vaccine.ID,
		ExpiryDate: time.Now().AddDate(1, 0, 0),
		Quantity:   10,
	})
	if err != nil {
		t.Fatalf("ReceiveBatch(generated 2): %v", err)
	}
	if genBatch2.BatchNo == genBatch.BatchNo {
		t.Fatalf("generated batch numbers collided: %q", genBatch.BatchNo)
	}

	// 2) Receiving writes the opening `in` movement.
	batch, err := models.ReceiveBatch(ctx, admin, &models.NewVaccineBatch{
		VaccineId:   vaccine.ID,
		BatchNo:     "FMD-2025-01",
		ExpiryDate:  time.Now().AddDate(1, 0, 0),
		Quantity:    100,
		CostPerUnit: decimal.NewFromInt(50),
	})
	if err != nil {
		t.Fatalf("ReceiveBatch: %v", err)
	}
	movements, err := models.ListBatchMovements(ctx, batch.ID)
	if err != nil {
		t.Fatalf("ListBatchMovements: %v", err)
	}
	if len(movements) != 1 || movements[0].Type != models.MovementTypeIn || movements[0].Quantity != 100 {
		t.Fatalf("expected single opening `in` movement of 100, got %+v", movements)
	}

	// 3) Duplicate batch number for the same vaccine is rejected.
	if _, err := models.ReceiveBatch(ctx, admin, &models.NewVaccineBatch{
		VaccineId:  vaccine.ID,
		BatchNo:    "FMD-2025-01",
		ExpiryDate: time.Now().AddDate(1, 0, 0),
		Quantity:   5,
	}); err == nil {
		t.Fatal("duplicate batch number should be rejected")
	}

	// 4) Farmer request stays pending, touches no stock.
	farmerActor := models.FarmerActor(101, farmerRow.ID)
	request, err := workflow.RequestAllocation(ctx, farmerActor, &workflow.NewAllocationRequest{
		VaccineId: vaccine.ID,
		FarmId:    farm.ID,
		Quantity:  20,
	})
	if err != nil {
		t.Fatalf("RequestAllocation: %v", err)
	}
	if request.Status != models.AllocationStatusPending || request.VaccineBatchId != nil || request.AllocatedBy != nil {
		t.Fatalf("farmer request should be pending with no batch and no approver, got %+v", request)
	}
	refetched, err := utils.FetchModel[models.VaccineBatch](ctx, batch.ID)
	if err != nil {
		t.Fatalf("fetch batch: %v", err)
	}
	if refetched.Quantity != 100 {
		t.Fatalf("pending request must not move stock, quantity = %d", refetched.Quantity)
	}

	// 5) Concurrent direct allocations never oversell the batch.
	officer := models.OfficerActor(11, []int{farm.ID})
	const workers = 8
	const perWorker = 30
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := workflow.AllocateDirect(ctx, officer, &workflow.NewDirectAllocation{
				VaccineId: vaccine.ID,
				FarmId:    farm.ID,
				BatchId:   &batch.ID,
				Quantity:  perWorker,
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		var insufficient *utils.InsufficientStockError
		if !errors.As(err, &insufficient) {
			t.Fatalf("unexpected allocation error: %v", err)
		}
	}
	if succeeded != 3 {
		t.Fatalf("expected exactly 3 of %d allocations of %d against 100 to succeed, got %d",
			workers, perWorker, succeeded)
	}
	refetched, err = utils.FetchModel[models.VaccineBatch](ctx, batch.ID)
	if err != nil {
		t.Fatalf("fetch batch: %v", err)
	}
	if refetched.Quantity != 100-3*perWorker {
		t.Fatalf("expected quantity %d, got %d", 100-3*perWorker, refetched.Quantity)
	}
	// The posting lock must not outlive the allocation transactions; a lock
	// stuck on a pooled connection would stall the next mutation for 30s.
	var lockFree int
	if err := db.WithContext(ctx).
		Raw("SELECT IS_FREE_LOCK(?)", fmt.Sprintf("batch_posting:%d", batch.ID)).
		Scan(&lockFree).Error; err != nil {
		t.Fatalf("IS_FREE_LOCK after allocations: %v", err)
	}
	if lockFree != 1 {
		t.Fatalf("posting lock for batch %d still held after allocations", batch.ID)
	}

	// 6) Cached quantity equals the ledger fold.
	ledgerQty, err := models.LedgerBatchQuantity(ctx, batch.ID)
	if err != nil {
		t.Fatalf("LedgerBatchQuantity: %v", err)
	}
	if ledgerQty != refetched.Quantity {
		t.Fatalf("ledger %d != cached %d", ledgerQty, refetched.Quantity)
	}

	// 7) Status lifecycle: illegal jumps rejected, approver stamped,
	// cancellation does not restock.
	if _, err := workflow.SetAllocationStatus(ctx, officer, request.ID, models.AllocationStatusAdministered); err == nil {
		t.Fatal("pending -> administered should be rejected")
	} else {
		var transition *utils.InvalidTransitionError
		if !errors.As(err, &transition) {
			t.Fatalf("expected InvalidTransitionError, got %v", err)
		}
	}
	approved, err := workflow.SetAllocationStatus(ctx, officer, request.ID, models.AllocationStatusAllocated)
	if err != nil {
		t.Fatalf("pending -> allocated: %v", err)
	}
	if approved.AllocatedBy == nil || *approved.AllocatedBy != 11 {
		t.Fatalf("approver should be stamped on allocation, got %+v", approved.AllocatedBy)
	}
	if _, err := workflow.SetAllocationStatus(ctx, officer, request.ID, models.AllocationStatusCancelled); err != nil {
		t.Fatalf("allocated -> cancelled: %v", err)
	}
	afterCancel, err := utils.FetchModel[models.VaccineBatch](ctx, batch.ID)
	if err != nil {
		t.Fatalf("fetch batch: %v", err)
	}
	if afterCancel.Quantity != refetched.Quantity {
		t.Fatalf("cancellation must not restock: %d -> %d", refetched.Quantity, afterCancel.Quantity)
	}

	// 8) Manual adjustment logs the signed delta and the ledger stays true.
	adjusted, err := models.AdjustBatch(ctx, admin, batch.ID, 5)
	if err != nil {
		t.Fatalf("AdjustBatch: %v", err)
	}
	if adjusted.Quantity != 5 {
		t.Fatalf("adjusted quantity = %d, want 5", adjusted.Quantity)
	}
	ledgerQty, err = models.LedgerBatchQuantity(ctx, batch.ID)
	if err != nil {
		t.Fatalf("LedgerBatchQuantity after adjust: %v", err)
	}
	if ledgerQty != 5 {
		t.Fatalf("ledger after adjust = %d, want 5", ledgerQty)
	}
	if err := db.WithContext(ctx).
		Raw("SELECT IS_FREE_LOCK(?)", fmt.Sprintf("batch_posting:%d", batch.ID)).
		Scan(&lockFree).Error; err != nil {
		t.Fatalf("IS_FREE_LOCK after adjust: %v", err)
	}
	if lockFree != 1 {
		t.Fatalf("posting lock for batch %d still held after adjust", batch.ID)
	}

	// A tombstoned batch is out of reach for adjustment until restored.
	if _, err := models.DeleteBatch(ctx, admin, genBatch2.ID); err != nil {
		t.Fatalf("DeleteBatch: %v", err)
	}
	if _, err := models.AdjustBatch(ctx, admin, genBatch2.ID, 99); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("AdjustBatch on tombstoned batch: got %v, want record not found", err)
	}

	// Show-deleted listing widens to live plus tombstoned rows.
	liveBatches, err := models.ListBatches(ctx, vaccine.ID, false)
	if err != nil {
		t.Fatalf("ListBatches(live): %v", err)
	}
	allBatches, err := models.ListBatches(ctx, vaccine.ID, true)
	if err != nil {
		t.Fatalf("ListBatches(all): %v", err)
	}
	if len(allBatches) != len(liveBatches)+1 {
		t.Fatalf("tombstone-inclusive listing: live=%d all=%d, want all = live+1",
			len(liveBatches), len(allBatches))
	}
	throwaway, err := models.CreateVaccine(ctx, admin, &models.NewVaccine{Name: "Throwaway"})
	if err != nil {
		t.Fatalf("CreateVaccine(throwaway): %v", err)
	}
	if _, err := models.DeleteVaccine(ctx, admin, throwaway.ID); err != nil {
		t.Fatalf("DeleteVaccine: %v", err)
	}
	allVaccines, err := models.ListVaccines(ctx, "", true)
	if err != nil {
		t.Fatalf("ListVaccines(all): %v", err)
	}
	seenLive, seenTombstoned := false, false
	for _, v := range allVaccines {
		if v.ID == vaccine.ID {
			seenLive = true
		}
		if v.ID == throwaway.ID {
			seenTombstoned = true
		}
	}
	if !seenLive || !seenTombstoned {
		t.Fatalf("ListVaccines(all) should include live and tombstoned rows, live=%v tombstoned=%v",
			seenLive, seenTombstoned)
	}

	// 9) Scoped reads: the farmer sees their allocations, a stranger sees none.
	mine, err := models.ListAllocations(ctx, farmerActor)
	if err != nil {
		t.Fatalf("ListAllocations(farmer): %v", err)
	}
	if len(mine) != 4 {
		t.Fatalf("farmer should see 4 allocations, got %d", len(mine))
	}
	stranger := models.FarmerActor(999, 999)
	theirs, err := models.ListAllocations(ctx, stranger)
	if err != nil {
		t.Fatalf("ListAllocations(stranger): %v", err)
	}
	if len(theirs) != 0 {
		t.Fatalf("stranger should see 0 allocations, got %d", len(theirs))
	}

	// 10) Vaccinations and the farm coverage card.
	dose := decimal.NewFromInt(2)
	for i := 0; i < 2; i++ {
		if _, err := models.RecordVaccination(ctx, officer, &models.NewVaccination{
			AnimalId:         animals[0].ID,
			VaccineId:        vaccine.ID,
			Dose:             dose,
			DateAdministered: time.Date(2026, time.March, 10+i, 0, 0, 0, 0, time.UTC),
		}); err != nil {
			t.Fatalf("RecordVaccination: %v", err)
		}
	}
	if _, err := models.RecordVaccination(ctx, officer, &models.NewVaccination{
		AnimalId:         animals[1].ID,
		VaccineId:        vaccine.ID,
		Dose:             dose,
		DateAdministered: time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("RecordVaccination: %v", err)
	}
	summary, err := models.GetFarmVaccinationSummary(ctx, farm.ID)
	if err != nil {
		t.Fatalf("GetFarmVaccinationSummary: %v", err)
	}
	if summary.TotalAnimals != 4 || summary.Vaccinated != 2 || summary.Pending != 2 {
		t.Fatalf("coverage: got total=%d vaccinated=%d pending=%d, want 4/2/2",
			summary.TotalAnimals, summary.Vaccinated, summary.Pending)
	}
	if summary.LastVaccinationDate == nil ||
		summary.LastVaccinationDate.Format("2006-01-02") != "2026-04-01" {
		t.Fatalf("last vaccination date: %v, want 2026-04-01", summary.LastVaccinationDate)
	}
}

// Money path: one budget, known procurement, one payout, golden remainder.
func TestBudgetArithmeticGoldenScenario(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })
	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "livestock_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	db := config.GetDB()
	if db == nil {
		t.Fatalf("db is nil after ConnectDatabaseWithRetry")
	}

	admin := models.AdminActor(1)

	farmerRow := models.Farmer{UserId: 201, Name: "Budget Farmer"}
	if err := db.WithContext(ctx).Create(&farmerRow).Error; err != nil {
		t.Fatalf("create farmer: %v", err)
	}

	vaccine, err := models.CreateVaccine(ctx, admin, &models.NewVaccine{Name: "PPR"})
	if err != nil {
		t.Fatalf("CreateVaccine: %v", err)
	}
	if _, err := models.ReceiveBatch(ctx, admin, &models.NewVaccineBatch{
		VaccineId:   vaccine.ID,
		BatchNo:     "PPR-2025-01",
		ExpiryDate:  time.Now().AddDate(1, 0, 0),
		Quantity:    1500,
		CostPerUnit: decimal.NewFromInt(50),
	}); err != nil {
		t.Fatalf("ReceiveBatch: %v", err)
	}

	budget, err := models.CreateBudget(ctx, admin, &models.NewBudget{
		Name:        "Vaccination Program",
		FiscalYear:  "2025-26",
		TotalAmount: decimal.NewFromInt(5000000),
	})
	if err != nil {
		t.Fatalf("CreateBudget: %v", err)
	}

	// Officers may not create budgets.
	officer := models.OfficerActor(11, nil)
	if _, err := models.CreateBudget(ctx, officer, &models.NewBudget{
		FiscalYear:  "2026-27",
		TotalAmount: decimal.NewFromInt(1),
	}); err == nil {
		t.Fatal("officer CreateBudget should be forbidden")
	}

	disb, err := models.RecordDisbursement(ctx, officer, &models.NewDisbursement{
		BudgetId: budget.ID,
		FarmerId: farmerRow.ID,
		Amount:   decimal.NewFromInt(2000),
		Purpose:  "Vaccination Support",
		PaidOn:   time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("RecordDisbursement: %v", err)
	}
	if disb.Status != models.DisbursementStatusPaid {
		t.Fatalf("default status = %s, want paid", disb.Status)
	}

	summary, err := models.GetBudgetSummary(ctx, &budget.ID)
	if err != nil {
		t.Fatalf("GetBudgetSummary: %v", err)
	}
	if summary.TotalProcurement.Cmp(decimal.NewFromInt(75000)) != 0 {
		t.Fatalf("procurement = %s, want 75000", summary.TotalProcurement)
	}
	if summary.TotalDisbursement.Cmp(decimal.NewFromInt(2000)) != 0 {
		t.Fatalf("disbursement = %s, want 2000", summary.TotalDisbursement)
	}
	if summary.Remaining.Cmp(decimal.NewFromInt(4923000)) != 0 {
		t.Fatalf("remaining = %s, want 4923000", summary.Remaining)
	}

	// Remaining clamps at zero when commitments exceed the pool.
	tiny, err := models.CreateBudget(ctx, admin, &models.NewBudget{
		FiscalYear:  "2026-27",
		TotalAmount: decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("CreateBudget(tiny): %v", err)
	}
	tinySummary, err := models.GetBudgetSummary(ctx, &tiny.ID)
	if err != nil {
		t.Fatalf("GetBudgetSummary(tiny): %v", err)
	}
	if !tinySummary.Remaining.IsZero() {
		t.Fatalf("overcommitted remaining = %s, want 0", tinySummary.Remaining)
	}

	// A tombstoned budget still resolves for new payouts and fiscal filters.
	if _, err := models.DeleteBudget(ctx, admin, budget.ID); err != nil {
		t.Fatalf("DeleteBudget: %v", err)
	}
	if _, err := models.RecordDisbursement(ctx, officer, &models.NewDisbursement{
		BudgetId: budget.ID,
		FarmerId: farmerRow.ID,
		Amount:   decimal.NewFromInt(500),
		PaidOn:   time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("RecordDisbursement against tombstoned budget: %v", err)
	}

	financials, err := models.GetDisbursementFinancials(ctx, "2025-26")
	if err != nil {
		t.Fatalf("GetDisbursementFinancials: %v", err)
	}
	if financials.TotalCount != 2 {
		t.Fatalf("financials count = %d, want 2", financials.TotalCount)
	}
	if financials.TotalAmount.Cmp(decimal.NewFromInt(2500)) != 0 {
		t.Fatalf("financials total = %s, want 2500", financials.TotalAmount)
	}
	months := map[int]bool{}
	for _, bucket := range financials.ByMonth {
		months[bucket.Month] = true
	}
	if !months[2] || !months[3] {
		t.Fatalf("expected February and March buckets, got %+v", financials.ByMonth)
	}

	utilisation, err := reports.GetBudgetUtilisation(ctx)
	if err != nil {
		t.Fatalf("GetBudgetUtilisation: %v", err)
	}
	// The deleted budget drops out; the tiny live budget remains.
	for _, row := range utilisation {
		if row.BudgetId == budget.ID {
			t.Fatalf("tombstoned budget should not appear in utilisation: %+v", row)
		}
	}

	// Show-deleted budget listing carries the tombstoned budget alongside
	// the live one.
	allBudgets, err := models.ListBudgets(ctx, true)
	if err != nil {
		t.Fatalf("ListBudgets(all): %v", err)
	}
	seenDeleted, seenLive := false, false
	for _, b := range allBudgets {
		if b.ID == budget.ID {
			seenDeleted = true
		}
		if b.ID == tiny.ID {
			seenLive = true
		}
	}
	if !seenDeleted || !seenLive {
		t.Fatalf("ListBudgets(all) should include live and tombstoned rows, live=%v tombstoned=%v",
			seenLive, seenDeleted)
	}

	// The workbook export round-trips: both sheets present, the summary cells
	// carry the fiscal year and totals.
	var buf bytes.Buffer
	if err := reports.ExportFinancialsExcel(ctx, "2025-26", &buf); err != nil {
		t.Fatalf("ExportFinancialsExcel: %v", err)
	}
	workbook, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer workbook.Close()
	sheets := map[string]bool{}
	for _, name := range workbook.GetSheetList() {
		sheets[name] = true
	}
	if !sheets["ByStatus"] || !sheets["ByMonth"] {
		t.Fatalf("workbook sheets = %v, want ByStatus and ByMonth", workbook.GetSheetList())
	}
	if got, _ := workbook.GetCellValue("ByStatus", "A1"); got != "FiscalYear" {
		t.Fatalf("ByStatus A1 = %q, want FiscalYear", got)
	}
	if got, _ := workbook.GetCellValue("ByStatus", "B1"); got != "2025-26" {
		t.Fatalf("ByStatus B1 = %q, want 2025-26", got)
	}
	if got, _ := workbook.GetCellValue("ByStatus", "B2"); got != "2500" {
		t.Fatalf("ByStatus B2 = %q, want 2500", got)
	}
	if got, _ := workbook.GetCellValue("ByMonth", "A1"); got != "Month" {
		t.Fatalf("ByMonth A1 = %q, want Month", got)
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("livestock-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("livestock-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=livestock_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
