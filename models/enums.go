package models

// Lifecycle statuses and kinds shared across the ledger tables. Values match
// the persisted column contents, so renaming one is a data migration.

type SaleStatus string

const (
	SaleStatusPending   SaleStatus = "pending"
	SaleStatusCompleted SaleStatus = "completed"
	SaleStatusCancelled SaleStatus = "cancelled"
	SaleStatusRefunded  SaleStatus = "refunded"
)

func (s SaleStatus) Valid() bool {
	switch s {
	case SaleStatusPending, SaleStatusCompleted, SaleStatusCancelled, SaleStatusRefunded:
		return true
	}
	return false
}

// IsRevenue reports whether a sale in this status counts toward income.
func (s SaleStatus) IsRevenue() bool {
	return s == SaleStatusCompleted
}

// HoldsStock reports whether a sale in this status keeps product stock out of
// inventory. Cancelled and refunded sales give their units back.
func (s SaleStatus) HoldsStock() bool {
	return s == SaleStatusPending || s == SaleStatusCompleted
}

type SaleItemType string

const (
	SaleItemTypeProduct SaleItemType = "product"
	SaleItemTypeService SaleItemType = "service"
)

type PaymentStatus string

const (
	PaymentStatusUnpaid  PaymentStatus = "unpaid"
	PaymentStatusOverdue PaymentStatus = "overdue"
	PaymentStatusPartial PaymentStatus = "partial"
	PaymentStatusPaid    PaymentStatus = "paid"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusUnpaid, PaymentStatusOverdue, PaymentStatusPartial, PaymentStatusPaid:
		return true
	}
	return false
}

// ServicePaymentStatus tracks the settlement state of one service record.
// Only paid records count toward income.
type ServicePaymentStatus string

const (
	ServicePaymentStatusPending   ServicePaymentStatus = "pending"
	ServicePaymentStatusPaid      ServicePaymentStatus = "paid"
	ServicePaymentStatusCancelled ServicePaymentStatus = "cancelled"
)

func (s ServicePaymentStatus) Valid() bool {
	switch s {
	case ServicePaymentStatusPending, ServicePaymentStatusPaid, ServicePaymentStatusCancelled:
		return true
	}
	return false
}

// CountsAsIncome reports whether a record in this status contributes revenue.
func (s ServicePaymentStatus) CountsAsIncome() bool {
	return s == ServicePaymentStatusPaid
}

type WorkerType string

const (
	WorkerTypeEmployee WorkerType = "employee"
	WorkerTypeOwner    WorkerType = "owner"
)

type MovementKind string

const (
	MovementKindOpeningStock MovementKind = "opening_stock"
	MovementKindStockIn      MovementKind = "stock_in"
	MovementKindStockOut     MovementKind = "stock_out"
	MovementKindSale         MovementKind = "sale"
	MovementKindReturn       MovementKind = "return"
	MovementKindAdjustment   MovementKind = "adjustment"
	MovementKindDamage       MovementKind = "damage"
	MovementKindTheft        MovementKind = "theft"
)

func (k MovementKind) Valid() bool {
	switch k {
	case MovementKindOpeningStock, MovementKindStockIn, MovementKindStockOut,
		MovementKindSale, MovementKindReturn, MovementKindAdjustment,
		MovementKindDamage, MovementKindTheft:
		return true
	}
	return false
}

// Outbound kinds must never drive the on-hand quantity negative.
func (k MovementKind) Outbound() bool {
	switch k {
	case MovementKindStockOut, MovementKindSale, MovementKindDamage, MovementKindTheft:
		return true
	}
	return false
}

type StockAlertType string

const (
	StockAlertTypeLowStock   StockAlertType = "low_stock"
	StockAlertTypeOutOfStock StockAlertType = "out_of_stock"
)

type StockStatus string

const (
	StockStatusInStock    StockStatus = "in_stock"
	StockStatusLowStock   StockStatus = "low_stock"
	StockStatusOutOfStock StockStatus = "out_of_stock"
)

type IncomeSource string

const (
	IncomeSourceSales    IncomeSource = "sales"
	IncomeSourceServices IncomeSource = "services"
	IncomeSourceOther    IncomeSource = "other"
)

type TaxPaymentStatus string

const (
	TaxPaymentStatusPending TaxPaymentStatus = "pending"
	TaxPaymentStatusPaid    TaxPaymentStatus = "paid"
	TaxPaymentStatusOverdue TaxPaymentStatus = "overdue"
)

type AssetStatus string

const (
	AssetStatusActive      AssetStatus = "active"
	AssetStatusDisposed    AssetStatus = "disposed"
	AssetStatusDamaged     AssetStatus = "damaged"
	AssetStatusUnderRepair AssetStatus = "under_repair"
)

type ReportType string

const (
	ReportTypeProfitLoss       ReportType = "profit_loss"
	ReportTypeCashFlow         ReportType = "cash_flow"
	ReportTypeSalesTrend       ReportType = "sales_trend"
	ReportTypeExpenseTrend     ReportType = "expense_trend"
	ReportTypeTaxSummary       ReportType = "tax_summary"
	ReportTypeBusinessOverview ReportType = "business_overview"
)

type MetricType string

const (
	MetricTypeRevenueGrowth      MetricType = "revenue_growth"
	MetricTypeProfitMargin       MetricType = "profit_margin"
	MetricTypeAverageOrderValue  MetricType = "average_order_value"
	MetricTypeExpenseRatio       MetricType = "expense_ratio"
	MetricTypeInventoryTurnover  MetricType = "inventory_turnover"
	MetricTypeServiceUtilization MetricType = "service_utilization"
)

type TrendDirection string

const (
	TrendDirectionUp     TrendDirection = "up"
	TrendDirectionDown   TrendDirection = "down"
	TrendDirectionStable TrendDirection = "stable"
)

// EventReferenceType identifies which primary-event table an outbox row
// refers to.
type EventReferenceType string

const (
	EventReferenceTypeSale            EventReferenceType = "SL"
	EventReferenceTypeServiceRecord   EventReferenceType = "SR"
	EventReferenceTypeExpense         EventReferenceType = "EX"
	EventReferenceTypeAsset           EventReferenceType = "AS"
	EventReferenceTypeStockAdjustment EventReferenceType = "SA"
)

type EventAction string

const (
	EventActionCreate EventAction = "C"
	EventActionUpdate EventAction = "U"
	EventActionDelete EventAction = "D"
)

type IdempotencyStatus string

const (
	IdempotencyStatusStarted   IdempotencyStatus = "STARTED"
	IdempotencyStatusSucceeded IdempotencyStatus = "SUCCEEDED"
	IdempotencyStatusFailed    IdempotencyStatus = "FAILED"
)

const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

// Processing side of the outbox row. DEAD records are parked for operator
// review and never re-claimed.
const (
	OutboxProcessStatusPending = "PENDING"
	OutboxProcessStatusDead    = "DEAD"
)
