package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/weerhq/weer/internal/app/model"
	"github.com/weerhq/weer/internal/app/repository"
)

func TestUltraPool_ClaimScarcestFirst(t *testing.T) {
	store := newFakeStore()
	store.addSlots("b", "a", "aa")
	link1 := store.addLink(model.Link{URL: "https://example.com/1"})
	link2 := store.addLink(model.Link{URL: "https://example.com/2"})
	link3 := store.addLink(model.Link{URL: "https://example.com/3"})

	pool := NewUltraPool(store, 30*time.Minute)
	ctx := context.Background()

	lease, err := pool.Claim(ctx, link1.ID)
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if lease.Code != "a" {
		t.Fatalf("expected shortest lexicographic slot a, got %q", lease.Code)
	}

	lease, err = pool.Claim(ctx, link2.ID)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if lease.Code != "b" {
		t.Fatalf("expected slot b, got %q", lease.Code)
	}

	lease, err = pool.Claim(ctx, link3.ID)
	if err != nil {
		t.Fatalf("third claim: %v", err)
	}
	if lease.Code != "aa" {
		t.Fatalf("expected two-character slot only after singles, got %q", lease.Code)
	}
}

func TestUltraPool_ClaimExhausted(t *testing.T) {
	store := newFakeStore()
	store.addSlots("a")
	link1 := store.addLink(model.Link{URL: "https://example.com/1"})
	link2 := store.addLink(model.Link{URL: "https://example.com/2"})

	pool := NewUltraPool(store, 30*time.Minute)
	ctx := context.Background()

	if _, err := pool.Claim(ctx, link1.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := pool.Claim(ctx, link2.ID); !errors.Is(err, ErrPoolExhausted) {
		t.Fatalf("expected ErrPoolExhausted, got %v", err)
	}
}

func TestUltraPool_ClaimTwiceSameLink(t *testing.T) {
	store := newFakeStore()
	store.addSlots("a", "b")
	link := store.addLink(model.Link{URL: "https://example.com"})

	pool := NewUltraPool(store, 30*time.Minute)
	ctx := context.Background()

	if _, err := pool.Claim(ctx, link.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := pool.Claim(ctx, link.ID); !errors.Is(err, ErrSlotAlreadyHeld) {
		t.Fatalf("expected ErrSlotAlreadyHeld, got %v", err)
	}
}

func TestUltraPool_ExpiredSlotReclaimedOnClaim(t *testing.T) {
	store := newFakeStore()
	store.addSlots("a")
	link1 := store.addLink(model.Link{URL: "https://example.com/1"})
	link2 := store.addLink(model.Link{URL: "https://example.com/2"})

	pool := NewUltraPool(store, 30*time.Minute)
	now := time.Now()
	pool.now = func() time.Time { return now }
	ctx := context.Background()

	if _, err := pool.Claim(ctx, link1.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}

	// Lease lapses; the next claim sweeps and reuses the slot.
	now = now.Add(31 * time.Minute)

	lease, err := pool.Claim(ctx, link2.ID)
	if err != nil {
		t.Fatalf("claim after expiry: %v", err)
	}
	if lease.Code != "a" {
		t.Fatalf("expected reclaimed slot a, got %q", lease.Code)
	}

	linkID, err := pool.Resolve(ctx, "a")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if linkID != link2.ID {
		t.Fatalf("expected slot to point at link %d, got %d", link2.ID, linkID)
	}
}

func TestUltraPool_ResolveExpired(t *testing.T) {
	store := newFakeStore()
	store.addSlots("a")
	link := store.addLink(model.Link{URL: "https://example.com"})

	pool := NewUltraPool(store, 30*time.Minute)
	now := time.Now()
	pool.now = func() time.Time { return now }
	ctx := context.Background()

	if _, err := pool.Claim(ctx, link.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}

	now = now.Add(31 * time.Minute)

	if _, err := pool.Resolve(ctx, "a"); !errors.Is(err, repository.ErrSlotNotFound) {
		t.Fatalf("expected expired assignment to read as absent, got %v", err)
	}
}

func TestUltraPool_Release(t *testing.T) {
	store := newFakeStore()
	store.addSlots("a")
	link1 := store.addLink(model.Link{URL: "https://example.com/1"})
	link2 := store.addLink(model.Link{URL: "https://example.com/2"})

	pool := NewUltraPool(store, 30*time.Minute)
	ctx := context.Background()

	if _, err := pool.Claim(ctx, link1.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := pool.Release(ctx, link1.ID); err != nil {
		t.Fatalf("release: %v", err)
	}

	lease, err := pool.Claim(ctx, link2.ID)
	if err != nil {
		t.Fatalf("claim after release: %v", err)
	}
	if lease.Code != "a" {
		t.Fatalf("expected released slot a, got %q", lease.Code)
	}
}
