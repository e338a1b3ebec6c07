package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/weerhq/weer/internal/app/codes"
	"github.com/weerhq/weer/internal/app/model"
	"github.com/weerhq/weer/internal/app/repository"
	infraprom "github.com/weerhq/weer/internal/infra/prometheus"
)

// entropyLevel is the share of a length's space that must remain free for new
// allocations at that length to be attempted. At 0.3, allocation stops once
// 70% of a length is occupied, bounding expected collision-retry cost.
const entropyLevel = 0.3

// DigitGenerator issues leased numeric codes, escalating from 3 to 5 digits
// as each length's space fills past its entropy gate.
type DigitGenerator struct {
	store repository.Store
	ttl   time.Duration
	now   func() time.Time
}

// NewDigitGenerator returns a generator leasing codes for the given TTL.
func NewDigitGenerator(store repository.Store, ttl time.Duration) *DigitGenerator {
	return &DigitGenerator{
		store: store,
		ttl:   ttl,
		now:   time.Now,
	}
}

// Generate tries each length in ascending order and claims the first code
// that sticks. A length that is gated or out of attempts falls through to the
// next; when all three are unavailable the condition is recoverable-later and
// surfaces as ErrPoolTemporarilyUnavailable.
func (g *DigitGenerator) Generate(ctx context.Context, linkID int64) (Lease, error) {
	for length := codes.DigitMinLength; length <= codes.DigitMaxLength; length++ {
		lease, ok, err := g.tryLength(ctx, linkID, length)
		if err != nil {
			return Lease{}, err
		}
		if ok {
			infraprom.CodesIssued.WithLabelValues(string(codes.SpaceDigit)).Inc()
			return lease, nil
		}
	}

	infraprom.PoolExhaustions.WithLabelValues(string(codes.SpaceDigit)).Inc()
	return Lease{}, ErrPoolTemporarilyUnavailable
}

// tryLength makes bounded attempts at one code length. Each attempt recomputes
// occupancy and inserts in a single transaction, so the gate can never pass on
// a stale count.
func (g *DigitGenerator) tryLength(ctx context.Context, linkID int64, length int) (Lease, bool, error) {
	total := math.Pow10(length)

	for attempt := 0; attempt < codes.MaxAttempts; attempt++ {
		code, err := codes.RandomDigits(length)
		if err != nil {
			return Lease{}, false, fmt.Errorf("draw digit code: %w", err)
		}

		var (
			gated bool
			lease Lease
		)
		err = g.store.RunInTransaction(ctx, func(tx repository.Store) error {
			now := g.now()

			used, err := tx.DigitLeases().CountLiveByLength(ctx, length, now)
			if err != nil {
				return fmt.Errorf("count digit leases: %w", err)
			}
			if float64(used)/total >= 1-entropyLevel {
				gated = true
				return nil
			}

			expiresAt := now.Add(g.ttl)
			if err := tx.DigitLeases().Create(ctx, &model.DigitLease{
				Code:       code,
				CodeLength: length,
				LinkID:     linkID,
				AssignedAt: now,
				ExpiresAt:  expiresAt,
			}); err != nil {
				return err
			}

			if err := tx.Links().SetCode(ctx, linkID, nil, string(codes.SpaceDigit)); err != nil {
				return fmt.Errorf("stamp link code space: %w", err)
			}

			lease = Lease{Code: code, ExpiresAt: expiresAt}
			return nil
		})
		if repository.IsDuplicateKey(err) {
			// The code index and the one-lease-per-link index raise the same
			// violation; only a code collision is worth retrying.
			if _, lookupErr := g.store.DigitLeases().GetByLink(ctx, linkID); lookupErr == nil {
				return Lease{}, false, ErrLeaseAlreadyHeld
			} else if !errors.Is(lookupErr, repository.ErrLeaseNotFound) {
				return Lease{}, false, lookupErr
			}
			infraprom.CollisionRetries.WithLabelValues(string(codes.SpaceDigit)).Inc()
			continue
		}
		if err != nil {
			return Lease{}, false, err
		}
		if gated {
			return Lease{}, false, nil
		}
		return lease, true, nil
	}

	// Attempts exhausted at this length; let the caller advance.
	return Lease{}, false, nil
}

// Release deletes the lease owned by the link, if any. Idempotent.
func (g *DigitGenerator) Release(ctx context.Context, linkID int64) error {
	if err := g.store.DigitLeases().DeleteByLink(ctx, linkID); err != nil {
		return fmt.Errorf("release digit lease: %w", err)
	}
	return nil
}

// Resolve looks up a live lease by code.
func (g *DigitGenerator) Resolve(ctx context.Context, code string) (int64, error) {
	lease, err := g.store.DigitLeases().GetLiveByCode(ctx, code, g.now())
	if err != nil {
		return 0, err
	}
	return lease.LinkID, nil
}
