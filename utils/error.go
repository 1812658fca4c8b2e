package utils

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrorRecordNotFound = errors.New("record not found")

// ErrDuplicateDerivation signals an upsert key collision that the upsert
// logic resolved itself. It is internal; seeing it means idempotency worked.
var ErrDuplicateDerivation = errors.New("duplicate derivation")

// ErrPeriodLockContention is transient: another writer holds the period row.
// Callers retry with backoff instead of surfacing it.
var ErrPeriodLockContention = errors.New("period lock contention")

// InsufficientStockError rejects an outbound movement that would drive the
// quantity negative. It carries enough detail for the caller to act on.
type InsufficientStockError struct {
	ProductId string
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available %s, requested %s",
		e.ProductId, e.Available.String(), e.Requested.String())
}

func IsInsufficientStock(err error) bool {
	var target *InsufficientStockError
	return errors.As(err, &target)
}

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
