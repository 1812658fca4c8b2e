package models

import "gorm.io/gorm"

// MigrateTable creates or updates every table the engine owns.
func MigrateTable(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&ProductCategory{},
		&Product{},
		&Inventory{},
		&StockMovement{},
		&StockAlert{},
		&Sale{},
		&SaleItem{},
		&Service{},
		&ServiceRecord{},
		&ExpenseCategory{},
		&Expense{},
		&AssetCategory{},
		&Asset{},
		&IncomeEntry{},
		&TaxPeriod{},
		&FinancialSummary{},
		&ReportSnapshot{},
		&MetricSample{},
		&EventRecord{},
		&IdempotencyKey{},
	)
}
