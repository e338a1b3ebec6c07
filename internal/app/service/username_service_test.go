package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/weerhq/weer/internal/app/model"
)

const retention = 30 * 24 * time.Hour

func newUsernameServiceForTest(store *fakeStore) (*UsernameService, *time.Time) {
	svc := NewUsernameService(store, retention)
	now := time.Now()
	svc.now = func() time.Time { return now }
	return svc, &now
}

func userRows(t *testing.T, store *fakeStore, userID int64) (active string, inactive []string) {
	t.Helper()
	rows, err := store.Usernames().ListByUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("list usernames: %v", err)
	}
	for _, row := range rows {
		if row.Active {
			if active != "" {
				t.Fatalf("multiple active usernames: %q and %q", active, row.Username)
			}
			active = row.Username
			continue
		}
		inactive = append(inactive, row.Username)
	}
	return active, inactive
}

func TestUsernameService_RotationTrimsHistory(t *testing.T) {
	store := newFakeStore()
	svc, now := newUsernameServiceForTest(store)
	ctx := context.Background()

	for _, name := range []string{"ada", "bea", "cal", "dot", "eve"} {
		if err := svc.SetActive(ctx, 1, name); err != nil {
			t.Fatalf("set %q: %v", name, err)
		}
		*now = now.Add(time.Hour)
	}

	active, inactive := userRows(t, store, 1)
	if active != "eve" {
		t.Fatalf("expected eve active, got %q", active)
	}
	if len(inactive) != model.MaxInactiveUsernames {
		t.Fatalf("expected %d inactive rows, got %v", model.MaxInactiveUsernames, inactive)
	}
	for _, name := range inactive {
		if name == "ada" {
			t.Fatalf("expected the soonest-expiring name ada to be trimmed, got %v", inactive)
		}
	}
}

func TestUsernameService_SetActiveTaken(t *testing.T) {
	store := newFakeStore()
	svc, _ := newUsernameServiceForTest(store)
	ctx := context.Background()

	if err := svc.SetActive(ctx, 1, "ada"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := svc.SetActive(ctx, 2, "ada"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestUsernameService_InactiveNameStaysReserved(t *testing.T) {
	store := newFakeStore()
	svc, _ := newUsernameServiceForTest(store)
	ctx := context.Background()

	if err := svc.SetActive(ctx, 1, "ada"); err != nil {
		t.Fatalf("set ada: %v", err)
	}
	if err := svc.SetActive(ctx, 1, "bea"); err != nil {
		t.Fatalf("set bea: %v", err)
	}

	// ada is inactive but inside its retention window.
	if err := svc.SetActive(ctx, 2, "ada"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected retained name to stay reserved, got %v", err)
	}

	available, err := svc.IsAvailable(ctx, "ada")
	if err != nil {
		t.Fatalf("is available: %v", err)
	}
	if available {
		t.Fatal("expected ada to be unavailable during retention")
	}
}

func TestUsernameService_LapsedReservationFreed(t *testing.T) {
	store := newFakeStore()
	svc, now := newUsernameServiceForTest(store)
	ctx := context.Background()

	if err := svc.SetActive(ctx, 1, "ada"); err != nil {
		t.Fatalf("set ada: %v", err)
	}
	if err := svc.SetActive(ctx, 1, "bea"); err != nil {
		t.Fatalf("set bea: %v", err)
	}

	*now = now.Add(retention + time.Hour)

	if err := svc.SetActive(ctx, 2, "ada"); err != nil {
		t.Fatalf("expected lapsed name to be claimable, got %v", err)
	}

	active, _ := userRows(t, store, 2)
	if active != "ada" {
		t.Fatalf("expected ada active for the new account, got %q", active)
	}
}

func TestUsernameService_ReclaimOwnInactiveName(t *testing.T) {
	store := newFakeStore()
	svc, _ := newUsernameServiceForTest(store)
	ctx := context.Background()

	if err := svc.SetActive(ctx, 1, "ada"); err != nil {
		t.Fatalf("set ada: %v", err)
	}
	if err := svc.SetActive(ctx, 1, "bea"); err != nil {
		t.Fatalf("set bea: %v", err)
	}
	if err := svc.SetActive(ctx, 1, "ada"); err != nil {
		t.Fatalf("reclaim ada: %v", err)
	}

	active, inactive := userRows(t, store, 1)
	if active != "ada" {
		t.Fatalf("expected ada active again, got %q", active)
	}
	if len(inactive) != 1 || inactive[0] != "bea" {
		t.Fatalf("expected only bea inactive, got %v", inactive)
	}
}

func TestUsernameService_SwitchActive(t *testing.T) {
	store := newFakeStore()
	svc, _ := newUsernameServiceForTest(store)
	ctx := context.Background()

	if err := svc.SetActive(ctx, 1, "ada"); err != nil {
		t.Fatalf("set ada: %v", err)
	}
	if err := svc.SetActive(ctx, 1, "bea"); err != nil {
		t.Fatalf("set bea: %v", err)
	}

	if err := svc.SwitchActive(ctx, 1, "ada"); err != nil {
		t.Fatalf("switch: %v", err)
	}

	active, inactive := userRows(t, store, 1)
	if active != "ada" {
		t.Fatalf("expected ada active after switch, got %q", active)
	}
	if len(inactive) != 1 || inactive[0] != "bea" {
		t.Fatalf("expected bea retired, got %v", inactive)
	}

	if err := svc.SwitchActive(ctx, 1, "nope"); !errors.Is(err, ErrUsernameNotSwitchable) {
		t.Fatalf("expected ErrUsernameNotSwitchable, got %v", err)
	}
}

func TestUsernameService_SwitchActiveLapsedTarget(t *testing.T) {
	store := newFakeStore()
	svc, now := newUsernameServiceForTest(store)
	ctx := context.Background()

	if err := svc.SetActive(ctx, 1, "ada"); err != nil {
		t.Fatalf("set ada: %v", err)
	}
	if err := svc.SetActive(ctx, 1, "bea"); err != nil {
		t.Fatalf("set bea: %v", err)
	}

	*now = now.Add(retention + time.Hour)

	// ada's reservation lapsed; switching back would bypass the global
	// reservation check, so it is refused.
	if err := svc.SwitchActive(ctx, 1, "ada"); !errors.Is(err, ErrUsernameNotSwitchable) {
		t.Fatalf("expected ErrUsernameNotSwitchable for a lapsed name, got %v", err)
	}

	active, _ := userRows(t, store, 1)
	if active != "bea" {
		t.Fatalf("expected bea to stay active, got %q", active)
	}
}

func TestUsernameService_ResolveActive(t *testing.T) {
	store := newFakeStore()
	svc, _ := newUsernameServiceForTest(store)
	ctx := context.Background()

	if err := svc.SetActive(ctx, 7, "ada"); err != nil {
		t.Fatalf("set ada: %v", err)
	}

	userID, err := svc.ResolveActive(ctx, "Ada")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if userID != 7 {
		t.Fatalf("expected user 7, got %d", userID)
	}
}
