package models_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/zedibooks/ledger_backend/config"
	"github.com/zedibooks/ledger_backend/models"
	"github.com/zedibooks/ledger_backend/utils"
	"github.com/zedibooks/ledger_backend/workflow"
	"gorm.io/gorm"
)

// End-to-end pipeline regression: primary events through the outbox into
// inventory, income, tax, summary and snapshot invalidation, against real
// MySQL + Redis.
func TestDerivedStatePipeline(t *testing.T) {
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
	t.Setenv("DB_NAME", "ledger_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	db := config.GetDB()
	if err := models.MigrateTable(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	logger := logrus.New()

	user := models.User{Email: "owner@pipeline.test", BusinessName: "Pipeline Co", IsActive: utils.NewTrue()}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	ctx = utils.SetUserIdInContext(ctx, user.ID)
	ctx = utils.SetActorNameInContext(ctx, "Test")

	reorder := decimal.NewFromInt(3)
	product, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:         "Widget",
		Sku:          "WID-1",
		SellingPrice: decimal.NewFromInt(2000),
		OpeningStock: decimal.NewFromInt(10),
		ReorderLevel: &reorder,
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	processPendingEvents(t, ctx, db, logger)

	qty, status, err := models.GetInventoryLevel(ctx, product.ID)
	if err != nil {
		t.Fatalf("GetInventoryLevel: %v", err)
	}
	if !qty.Equal(decimal.NewFromInt(10)) || status != models.StockStatusInStock {
		t.Fatalf("expected 10 in stock after opening, got %s/%s", qty, status)
	}

	saleDate := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	sale, err := models.CreateSale(ctx, &models.NewSale{
		SaleNumber: "S-0001",
		SaleDate:   saleDate,
		Status:     models.SaleStatusCompleted,
		Items: []models.NewSaleItem{
			{ItemType: models.SaleItemTypeProduct, ProductId: &product.ID, Quantity: decimal.NewFromInt(4), UnitPrice: decimal.NewFromInt(2000)},
		},
	})
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}
	if !sale.TotalAmount.Equal(decimal.NewFromInt(8000)) {
		t.Fatalf("expected sale total 8000, got %s", sale.TotalAmount)
	}
	processPendingEvents(t, ctx, db, logger)

	qty, _, err = models.GetInventoryLevel(ctx, product.ID)
	if err != nil {
		t.Fatalf("GetInventoryLevel after sale: %v", err)
	}
	if !qty.Equal(decimal.NewFromInt(6)) {
		t.Fatalf("expected 6 on hand after selling 4, got %s", qty)
	}

	entry, err := models.GetIncomeEntry(db, user.ID, models.IncomeSourceSales, sale.ID)
	if err != nil {
		t.Fatalf("GetIncomeEntry: %v", err)
	}
	if !entry.Amount.Equal(decimal.NewFromInt(8000)) {
		t.Fatalf("expected income entry 8000, got %s", entry.Amount)
	}

	period, err := models.GetTaxPeriod(db, user.ID, 2026, 8)
	if err != nil {
		t.Fatalf("GetTaxPeriod: %v", err)
	}
	if !period.Turnover.Equal(decimal.NewFromInt(8000)) ||
		!period.TaxableAmount.Equal(decimal.NewFromInt(7000)) ||
		!period.TaxDue.Equal(decimal.NewFromInt(350)) {
		t.Fatalf("expected turnover/taxable/tax 8000/7000/350, got %s/%s/%s",
			period.Turnover, period.TaxableAmount, period.TaxDue)
	}

	summary, err := models.GetFinancialSummary(db, user.ID, 2026, 8)
	if err != nil {
		t.Fatalf("GetFinancialSummary: %v", err)
	}
	if !summary.TotalIncome.Equal(decimal.NewFromInt(8000)) || summary.SaleCount != 1 {
		t.Fatalf("expected summary income 8000 with 1 sale, got %s/%d", summary.TotalIncome, summary.SaleCount)
	}

	// Only settled expenses count as spend: two paid (2000 + 500) and one
	// still unpaid (900) must total 2500, not 3400.
	expenseDate := time.Date(2026, 8, 12, 0, 0, 0, 0, time.UTC)
	rentAmount := decimal.NewFromInt(2000)
	rent, err := models.CreateExpense(ctx, &models.NewExpense{
		Description: "Shop rent", Amount: rentAmount, ExpenseDate: expenseDate,
	})
	if err != nil {
		t.Fatalf("CreateExpense rent: %v", err)
	}
	suppliesAmount := decimal.NewFromInt(500)
	supplies, err := models.CreateExpense(ctx, &models.NewExpense{
		Description: "Supplies", Amount: suppliesAmount, ExpenseDate: expenseDate,
	})
	if err != nil {
		t.Fatalf("CreateExpense supplies: %v", err)
	}
	if _, err := models.CreateExpense(ctx, &models.NewExpense{
		Description: "Repairs invoice", Amount: decimal.NewFromInt(900), ExpenseDate: expenseDate,
	}); err != nil {
		t.Fatalf("CreateExpense repairs: %v", err)
	}
	if _, err := models.MarkExpensePaid(ctx, rent.ID, rentAmount); err != nil {
		t.Fatalf("MarkExpensePaid rent: %v", err)
	}
	if _, err := models.MarkExpensePaid(ctx, supplies.ID, suppliesAmount); err != nil {
		t.Fatalf("MarkExpensePaid supplies: %v", err)
	}
	processPendingEvents(t, ctx, db, logger)

	summary, err = models.GetFinancialSummary(db, user.ID, 2026, 8)
	if err != nil {
		t.Fatalf("GetFinancialSummary after expenses: %v", err)
	}
	if !summary.TotalExpenses.Equal(decimal.NewFromInt(2500)) {
		t.Fatalf("expected total expenses 2500 (paid only), got %s", summary.TotalExpenses)
	}
	if !summary.NetProfit.Equal(decimal.NewFromInt(5500)) {
		t.Fatalf("expected net profit 5500, got %s", summary.NetProfit)
	}
	if summary.ExpenseCount != 3 {
		t.Fatalf("expected 3 expenses recorded, got %d", summary.ExpenseCount)
	}

	// A revaluation overrides the purchase price in the asset total.
	asset, err := models.CreateAsset(ctx, &models.NewAsset{
		Name:          "Delivery bike",
		PurchasePrice: decimal.NewFromInt(8000),
		PurchaseDate:  time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("CreateAsset: %v", err)
	}
	processPendingEvents(t, ctx, db, logger)
	summary, err = models.GetFinancialSummary(db, user.ID, 2026, 8)
	if err != nil {
		t.Fatalf("GetFinancialSummary after asset: %v", err)
	}
	if !summary.TotalAssets.Equal(decimal.NewFromInt(8000)) {
		t.Fatalf("expected assets 8000 from purchase price, got %s", summary.TotalAssets)
	}
	if _, err := models.UpdateAssetCurrentValue(ctx, asset.ID, decimal.NewFromInt(6500)); err != nil {
		t.Fatalf("UpdateAssetCurrentValue: %v", err)
	}
	processPendingEvents(t, ctx, db, logger)
	summary, err = models.GetFinancialSummary(db, user.ID, 2026, 8)
	if err != nil {
		t.Fatalf("GetFinancialSummary after revaluation: %v", err)
	}
	if !summary.TotalAssets.Equal(decimal.NewFromInt(6500)) {
		t.Fatalf("expected assets 6500 after revaluation, got %s", summary.TotalAssets)
	}

	// Overselling must be refused at the primary write: the whole sale rolls
	// back and the caller sees the stock error immediately.
	_, err = models.CreateSale(ctx, &models.NewSale{
		SaleNumber: "S-0002",
		SaleDate:   saleDate,
		Status:     models.SaleStatusCompleted,
		Items: []models.NewSaleItem{
			{ItemType: models.SaleItemTypeProduct, ProductId: &product.ID, Quantity: decimal.NewFromInt(100), UnitPrice: decimal.NewFromInt(2000)},
		},
	})
	if !utils.IsInsufficientStock(err) {
		t.Fatalf("expected insufficient stock error from CreateSale, got %v", err)
	}
	qty, _, _ = models.GetInventoryLevel(ctx, product.ID)
	if !qty.Equal(decimal.NewFromInt(6)) {
		t.Fatalf("oversell must not move stock, got %s", qty)
	}
	var oversoldSales int64
	if err := db.Model(&models.Sale{}).
		Where("user_id = ? AND sale_number = ?", user.ID, "S-0002").
		Count(&oversoldSales).Error; err != nil {
		t.Fatalf("count oversold sales: %v", err)
	}
	if oversoldSales != 0 {
		t.Fatalf("oversold sale must not be persisted, found %d rows", oversoldSales)
	}

	// A redis copy that outlives the row's fresh flag must not be served.
	periodStart := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := periodStart.AddDate(0, 1, 0)
	if _, err := workflow.PutSnapshot(db, logger, user.ID, models.ReportTypeProfitLoss, periodStart, periodEnd, workflow.SnapshotPayload{
		TotalRevenue: decimal.NewFromInt(8000),
		NetProfit:    decimal.NewFromInt(5500),
		Payload:      []byte(`{}`),
	}); err != nil {
		t.Fatalf("PutSnapshot: %v", err)
	}
	err = db.Model(&models.ReportSnapshot{}).
		Where("user_id = ? AND report_type = ? AND period_start = ?", user.ID, models.ReportTypeProfitLoss, periodStart).
		Update("is_fresh", false).Error
	if err != nil {
		t.Fatalf("mark snapshot stale: %v", err)
	}
	if _, hit, err := workflow.GetSnapshot(db, user.ID, models.ReportTypeProfitLoss, periodStart); err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	} else if hit {
		t.Fatalf("stale snapshot must not be served from the redis copy")
	}

	// The metric series reader returns the recomputed months in order.
	err = db.Transaction(func(tx *gorm.DB) error {
		return workflow.UpdateMetricsForMonth(tx, logger, user.ID, 2026, 8)
	})
	if err != nil {
		t.Fatalf("UpdateMetricsForMonth: %v", err)
	}
	trend, err := models.GetMetricTrend(ctx, models.MetricTypeProfitMargin,
		time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("GetMetricTrend: %v", err)
	}
	if len(trend) == 0 {
		t.Fatalf("expected at least one profit margin sample in range")
	}
	for _, sample := range trend {
		if sample.Year != 2026 || sample.Month < 7 || sample.Month > 9 {
			t.Fatalf("sample %d-%02d outside requested range", sample.Year, sample.Month)
		}
	}

	// Cancelling the good sale reverses stock and unwinds income and tax.
	if _, err := models.UpdateSaleStatus(ctx, sale.ID, models.SaleStatusCancelled); err != nil {
		t.Fatalf("UpdateSaleStatus: %v", err)
	}
	processPendingEvents(t, ctx, db, logger)

	qty, _, _ = models.GetInventoryLevel(ctx, product.ID)
	if !qty.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected stock restored to 10 after cancel, got %s", qty)
	}
	if _, err := models.GetIncomeEntry(db, user.ID, models.IncomeSourceSales, sale.ID); err == nil {
		t.Fatalf("income entry must be removed after cancel")
	}
	period, err = models.GetTaxPeriod(db, user.ID, 2026, 8)
	if err != nil {
		t.Fatalf("GetTaxPeriod after cancel: %v", err)
	}
	if !period.Turnover.IsZero() || !period.TaxDue.IsZero() {
		t.Fatalf("expected zero turnover/tax after cancel, got %s/%s", period.Turnover, period.TaxDue)
	}

	// Re-processing everything is a no-op thanks to idempotency keys.
	before := qty
	processPendingEvents(t, ctx, db, logger)
	qty, _, _ = models.GetInventoryLevel(ctx, product.ID)
	if !qty.Equal(before) {
		t.Fatalf("reprocessing moved stock: %s -> %s", before, qty)
	}
}

// processPendingEvents drains the outbox the way the worker does: one
// transaction per record, posting lock plus idempotency key, routed by
// reference type.
func processPendingEvents(t *testing.T, ctx context.Context, db *gorm.DB, logger *logrus.Logger) {
	t.Helper()
	var records []models.EventRecord
	if err := db.Where("is_processed = ?", false).Order("id ASC").Find(&records).Error; err != nil {
		t.Fatalf("load pending events: %v", err)
	}
	for _, rec := range records {
		if err := runEvent(ctx, db, logger, rec); err != nil {
			t.Fatalf("process event id=%d type=%s: %v", rec.ID, rec.ReferenceType, err)
		}
	}
}

func runEvent(ctx context.Context, db *gorm.DB, logger *logrus.Logger, rec models.EventRecord) error {
	msg := models.ConvertToEventMessage(rec)
	return db.Transaction(func(tx *gorm.DB) error {
		if err := workflow.AcquireTenantPostingLock(tx.WithContext(ctx), msg.UserId); err != nil {
			return err
		}
		defer workflow.ReleaseTenantPostingLock(tx.WithContext(ctx), msg.UserId)

		skip, err := workflow.BeginIdempotency(tx.WithContext(ctx), msg.UserId, msg.ReferenceType, strconv.Itoa(msg.ID))
		if err != nil {
			return err
		}
		if skip {
			return nil
		}

		switch msg.ReferenceType {
		case string(models.EventReferenceTypeSale):
			err = workflow.ProcessSaleWorkflow(tx.WithContext(ctx), logger, msg)
		case string(models.EventReferenceTypeServiceRecord):
			err = workflow.ProcessServiceRecordWorkflow(tx.WithContext(ctx), logger, msg)
		case string(models.EventReferenceTypeExpense):
			err = workflow.ProcessExpenseWorkflow(tx.WithContext(ctx), logger, msg)
		case string(models.EventReferenceTypeAsset):
			err = workflow.ProcessAssetWorkflow(tx.WithContext(ctx), logger, msg)
		case string(models.EventReferenceTypeStockAdjustment):
			err = workflow.ProcessStockAdjustmentWorkflow(tx.WithContext(ctx), logger, msg)
		}
		if err != nil {
			_ = workflow.MarkIdempotencyFailed(tx.WithContext(ctx), msg.UserId, msg.ReferenceType, strconv.Itoa(msg.ID), err)
			return err
		}
		return workflow.MarkIdempotencySucceeded(tx.WithContext(ctx), msg.UserId, msg.ReferenceType, strconv.Itoa(msg.ID))
	})
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("ledger-test-redis-%d", time.Now().UnixNano())
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
	// wait until ready
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
	name := fmt.Sprintf("ledger-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=ledger_test",
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
	// wait until ready
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
	// Example: "127.0.0.1:49154\n"
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
