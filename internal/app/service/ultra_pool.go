package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/weerhq/weer/internal/app/codes"
	"github.com/weerhq/weer/internal/app/repository"
	infraprom "github.com/weerhq/weer/internal/infra/prometheus"
)

// Lease is a time-bounded claim on a scarce code.
type Lease struct {
	Code      string
	ExpiresAt time.Time
}

// UltraPool hands out slots from the fixed 1-2 character inventory. Claims
// sweep expired assignments first, then lock the scarcest free slot with
// skip-locked semantics so concurrent claimants land on different slots
// instead of queuing.
type UltraPool struct {
	store repository.Store
	ttl   time.Duration
	now   func() time.Time
}

// NewUltraPool returns a pool claiming slots for the given TTL.
func NewUltraPool(store repository.Store, ttl time.Duration) *UltraPool {
	return &UltraPool{
		store: store,
		ttl:   ttl,
		now:   time.Now,
	}
}

// Claim assigns the first free slot, ordered shortest code then
// lexicographic, to the link. Sweep, selection and assignment run as one
// transaction: a crash mid-claim leaves no slot half-assigned.
func (p *UltraPool) Claim(ctx context.Context, linkID int64) (Lease, error) {
	var lease Lease

	err := p.store.RunInTransaction(ctx, func(tx repository.Store) error {
		now := p.now()

		// Lazy sweep inside the claim keeps the free set exact at the only
		// moment staleness matters.
		if _, err := tx.UltraSlots().SweepExpired(ctx, now); err != nil {
			return fmt.Errorf("sweep expired ultra slots: %w", err)
		}

		slot, err := tx.UltraSlots().SelectFirstFreeForUpdate(ctx)
		if err != nil {
			if errors.Is(err, repository.ErrNoFreeSlot) {
				return ErrPoolExhausted
			}
			return fmt.Errorf("select free ultra slot: %w", err)
		}

		expiresAt := now.Add(p.ttl)
		if err := tx.UltraSlots().Assign(ctx, slot.ID, linkID, now, expiresAt); err != nil {
			if repository.IsDuplicateKey(err) {
				// One ultra slot per link. The caller asked twice; do not
				// retry on their behalf.
				return ErrSlotAlreadyHeld
			}
			return fmt.Errorf("assign ultra slot: %w", err)
		}

		// The literal code lives on the slot row, not the link. Clear any
		// previous stored code and stamp the space.
		if err := tx.Links().SetCode(ctx, linkID, nil, string(codes.SpaceUltra)); err != nil {
			return fmt.Errorf("stamp link code space: %w", err)
		}

		lease = Lease{Code: slot.Code, ExpiresAt: expiresAt}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrPoolExhausted) {
			infraprom.PoolExhaustions.WithLabelValues(string(codes.SpaceUltra)).Inc()
		}
		return Lease{}, err
	}

	infraprom.CodesIssued.WithLabelValues(string(codes.SpaceUltra)).Inc()
	return lease, nil
}

// Release nulls out whichever slot currently points at the link. Idempotent
// if none does.
func (p *UltraPool) Release(ctx context.Context, linkID int64) error {
	if err := p.store.UltraSlots().ReleaseByLink(ctx, linkID); err != nil {
		return fmt.Errorf("release ultra slot: %w", err)
	}
	return nil
}

// Resolve looks up a live assignment by code. Expired assignments the janitor
// has not swept yet are treated as absent.
func (p *UltraPool) Resolve(ctx context.Context, code string) (int64, error) {
	slot, err := p.store.UltraSlots().GetByCode(ctx, code)
	if err != nil {
		return 0, err
	}
	if !slot.Live(p.now()) {
		return 0, repository.ErrSlotNotFound
	}
	return *slot.LinkID, nil
}
