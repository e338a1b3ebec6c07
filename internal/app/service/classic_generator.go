package service

import (
	"context"
	"fmt"

	"github.com/weerhq/weer/internal/app/codes"
	"github.com/weerhq/weer/internal/app/repository"
	infraprom "github.com/weerhq/weer/internal/infra/prometheus"
)

// ClassicGenerator issues permanent 6-character codes by drawing from the
// code alphabet and letting the store's unique index arbitrate collisions.
type ClassicGenerator struct {
	store repository.Store
}

// NewClassicGenerator returns a generator backed by the given store.
func NewClassicGenerator(store repository.Store) *ClassicGenerator {
	return &ClassicGenerator{store: store}
}

// Generate draws random codes until one sticks, then stamps the link's
// code-space tag as classic in the same update. The retry budget covers
// transient collisions only; with ~1.5 billion combinations exhausting it
// means something else is wrong, and it surfaces as ErrCodeSpaceExhausted.
func (g *ClassicGenerator) Generate(ctx context.Context, linkID int64) (string, error) {
	for attempt := 0; attempt < codes.MaxAttempts; attempt++ {
		code, err := codes.RandomClassic()
		if err != nil {
			return "", fmt.Errorf("draw classic code: %w", err)
		}

		err = g.store.Links().SetCode(ctx, linkID, &code, string(codes.SpaceClassic))
		if repository.IsDuplicateKey(err) {
			infraprom.CollisionRetries.WithLabelValues(string(codes.SpaceClassic)).Inc()
			continue
		}
		if err != nil {
			return "", fmt.Errorf("store classic code: %w", err)
		}

		infraprom.CodesIssued.WithLabelValues(string(codes.SpaceClassic)).Inc()
		return code, nil
	}

	return "", ErrCodeSpaceExhausted
}
