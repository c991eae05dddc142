package utils

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/karibu/produce_backend/config"
	"github.com/shopspring/decimal"
)

const DecimalPlaces = 2

// ParseDecimal converts user input to a decimal, stripping thousands separators and
// unit suffixes ("1,200.50", "12 t", "UGX 5,000").
func ParseDecimal(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, errors.New("empty decimal string")
	}
	value = strings.ReplaceAll(value, ",", "")
	value = strings.TrimSpace(strings.TrimPrefix(strings.ToUpper(value), "UGX"))
	value = strings.TrimSpace(strings.TrimSuffix(value, "T"))

	dec, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, err
	}
	return dec, nil
}

// Round2 rounds half away from zero to the stored precision.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(DecimalPlaces)
}

// GenerateReceiptId returns an 8-character upper-case identifier.
func GenerateReceiptId() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

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

// ParseDate accepts YYYY-MM-DD and returns midnight UTC.
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", strings.TrimSpace(value), time.UTC)
}

// ProduceLock takes a short-lived redis lock scoped to one produce item.
// The returned release func is always non-nil. When redis is not configured the
// lock is skipped; the database row lock remains the serialization point.
func ProduceLock(ctx context.Context, produceId int, moduleName string, functionName string) (func(), error) {
	noop := func() {}
	locker := config.GetRedisLock()
	if locker == nil {
		return noop, nil
	}
	logger := config.GetLogger()
	lockKey := fmt.Sprintf("StockLock:Produce:%d", produceId)
	timeout := config.StockLockTimeout()
	opts := &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), int(timeout/(50*time.Millisecond))),
	}
	lock, err := locker.Obtain(ctx, lockKey, 30*time.Second, opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		config.LogError(logger, moduleName, functionName, "Could not obtain produce lock", produceId, err)
		return noop, NewBusyError("stock for this produce is busy, try again")
	} else if err != nil {
		// fail open
		config.LogError(logger, moduleName, functionName, "Error obtaining produce lock", produceId, err)
		return noop, nil
	}
	return func() {
		_ = lock.Release(context.Background())
	}, nil
}

// ProduceLocks takes ProduceLock for each distinct id in ascending order.
func ProduceLocks(ctx context.Context, produceIds []int, moduleName string, functionName string) (func(), error) {
	ids := SortedUniqueInts(produceIds)
	releases := make([]func(), 0, len(ids))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, id := range ids {
		release, err := ProduceLock(ctx, id, moduleName, functionName)
		if err != nil {
			releaseAll()
			return func() {}, err
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}

func SortedUniqueInts(in []int) []int {
	seen := make(map[int]struct{}, len(in))
	out := make([]int, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}
