package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/weerhq/weer/internal/app/codes"
	"github.com/weerhq/weer/internal/app/model"
	"github.com/weerhq/weer/internal/app/repository"
)

// collidingStore wraps the fake store and forces a number of duplicate-key
// responses from SetCode before letting writes through.
type collidingStore struct {
	*fakeStore
	remaining int
}

func (s *collidingStore) Links() repository.LinkRepository {
	return &collidingLinks{LinkRepository: s.fakeStore.Links(), store: s}
}

type collidingLinks struct {
	repository.LinkRepository
	store *collidingStore
}

func (l *collidingLinks) SetCode(ctx context.Context, id int64, code *string, space string) error {
	if l.store.remaining > 0 {
		l.store.remaining--
		return repository.ErrDuplicateKey
	}
	return l.LinkRepository.SetCode(ctx, id, code, space)
}

func TestClassicGenerator_Generate(t *testing.T) {
	store := newFakeStore()
	link := store.addLink(model.Link{URL: "https://example.com"})

	gen := NewClassicGenerator(store)
	code, err := gen.Generate(context.Background(), link.ID)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(code) != codes.ClassicLength {
		t.Fatalf("expected a %d-character code, got %q", codes.ClassicLength, code)
	}
	for _, r := range code {
		if !strings.ContainsRune(codes.Alphabet, r) {
			t.Fatalf("code %q contains %q outside the alphabet", code, r)
		}
	}

	stored, err := store.Links().GetByID(context.Background(), link.ID)
	if err != nil {
		t.Fatalf("get link: %v", err)
	}
	if stored.Code == nil || *stored.Code != code {
		t.Fatalf("expected code %q stored on the link", code)
	}
	if stored.CodeSpace != "classic" {
		t.Fatalf("expected code space classic, got %q", stored.CodeSpace)
	}
}

func TestClassicGenerator_RetriesOnCollision(t *testing.T) {
	store := newFakeStore()
	link := store.addLink(model.Link{URL: "https://example.com"})

	colliding := &collidingStore{fakeStore: store, remaining: codes.MaxAttempts - 1}
	gen := NewClassicGenerator(colliding)

	code, err := gen.Generate(context.Background(), link.ID)
	if err != nil {
		t.Fatalf("expected the final attempt to succeed, got %v", err)
	}
	if len(code) != codes.ClassicLength {
		t.Fatalf("unexpected code %q", code)
	}
}

func TestClassicGenerator_Exhausted(t *testing.T) {
	store := newFakeStore()
	link := store.addLink(model.Link{URL: "https://example.com"})

	colliding := &collidingStore{fakeStore: store, remaining: codes.MaxAttempts}
	gen := NewClassicGenerator(colliding)

	if _, err := gen.Generate(context.Background(), link.ID); !errors.Is(err, ErrCodeSpaceExhausted) {
		t.Fatalf("expected ErrCodeSpaceExhausted, got %v", err)
	}
}
