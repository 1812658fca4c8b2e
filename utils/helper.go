package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/shopspring/decimal"
	"github.com/zedibooks/ledger_backend/config"
)

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

func DereferencePtr[T any](ptr *T, defaults ...T) T {
	if ptr != nil {
		return *ptr
	}
	var zero T
	if len(defaults) > 0 {
		return defaults[0]
	}
	return zero
}

func NilIfEmpty[T comparable](v T) *T {
	var zero T
	if v == zero {
		return nil
	}
	return &v
}

func UniqueSlice[T comparable](slice []T) []T {
	seen := make(map[T]struct{}, len(slice))
	result := make([]T, 0, len(slice))
	for _, v := range slice {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}

func ParseDecimal(value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(value)
}

// Round2 rounds to 2 decimal places, half away from zero. All monetary
// outputs (tax due, summary totals) pass through this before persisting.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// MonthRange returns [start, end) bounds of a calendar month.
func MonthRange(year int, month time.Month) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// PreviousMonth steps one calendar month back, handling the year boundary.
func PreviousMonth(year int, month time.Month) (int, time.Month) {
	if month == time.January {
		return year - 1, time.December
	}
	return year, month - 1
}

func GetThisMonthRange() (time.Time, time.Time) {
	now := time.Now().UTC()
	return MonthRange(now.Year(), now.Month())
}

func GetPreviousMonthRange() (time.Time, time.Time) {
	now := time.Now().UTC()
	y, m := PreviousMonth(now.Year(), now.Month())
	return MonthRange(y, m)
}

func FindOldestDate(dates ...*time.Time) *time.Time {
	var oldest *time.Time
	for _, d := range dates {
		if d == nil {
			continue
		}
		if oldest == nil || d.Before(*oldest) {
			oldest = d
		}
	}
	return oldest
}

// AcquireOwnerLock obtains a cross-instance lock scoped to one tenant, used to
// single-flight batch recompute jobs. The returned release func must be called
// when the protected section ends.
func AcquireOwnerLock(ctx context.Context, userId string, lockType string, moduleName string, functionName string) (func(), error) {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	if locker == nil {
		config.LogError(logger, moduleName, functionName, "Redis lock not initialized", userId, errors.New("redis lock is nil"))
		return nil, errors.New("service not ready (redis lock not initialized)")
	}
	lockKey := fmt.Sprintf("%s:%s", lockType, userId)
	lock, err := locker.Obtain(ctx, lockKey, 30*time.Second, nil)
	if err == redislock.ErrNotObtained {
		config.LogError(logger, moduleName, functionName, "Could not obtain lock for owner", userId, err)
		return nil, errors.New("could not obtain lock for owner")
	} else if err != nil {
		config.LogError(logger, moduleName, functionName, "Error obtaining lock for owner", userId, err)
		return nil, err
	}
	return func() { _ = lock.Release(ctx) }, nil
}
