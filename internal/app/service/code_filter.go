package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/weerhq/weer/internal/app/repository"
)

// CodeFilter is a bloom filter over the literal stored codes (classic, custom
// and affix spaces). It answers "definitely absent" without a store round
// trip, which is what the redirect path needs for unknown codes; positives
// still hit the store, so false positives only cost a query.
type CodeFilter struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
}

// NewCodeFilter sizes a filter for the expected number of live codes at the
// given false-positive rate.
func NewCodeFilter(expectedCodes uint, fpRate float64) *CodeFilter {
	return &CodeFilter{
		filter: bloom.NewWithEstimates(expectedCodes, fpRate),
	}
}

// Seed loads every stored code from the store. Run once at startup.
func (f *CodeFilter) Seed(ctx context.Context, store repository.Store) error {
	existing, err := store.Links().ListCodes(ctx)
	if err != nil {
		return fmt.Errorf("seed code filter: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, code := range existing {
		f.filter.AddString(code)
	}
	return nil
}

// Add records a newly issued code.
func (f *CodeFilter) Add(code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter.AddString(code)
}

// MayContain reports whether the code might exist. A false result is
// definitive; codes are never removed from the filter, so deleted links decay
// into harmless false positives.
func (f *CodeFilter) MayContain(code string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.filter.TestString(code)
}
