package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// pgUniqueViolation is the PostgreSQL error code for unique constraint
// violations.
const pgUniqueViolation = "23505"

var (
	// ErrDuplicateKey signals a unique constraint violation. Allocation loops
	// treat it as a transient collision and redraw.
	ErrDuplicateKey = errors.New("unique constraint violated")

	// ErrNoFreeSlot signals that no claimable row exists.
	ErrNoFreeSlot = errors.New("no free slot")
)

// Store bundles the per-table repositories behind a single transactional
// boundary. RunInTransaction yields a Store whose repositories share one
// transaction; any error from fn rolls everything back.
type Store interface {
	Links() LinkRepository
	UltraSlots() UltraSlotRepository
	DigitLeases() DigitLeaseRepository
	Usernames() UsernameRepository
	Sessions() SessionRepository

	RunInTransaction(ctx context.Context, fn func(tx Store) error) error
}

type gormStore struct {
	db *gorm.DB
}

// NewStore returns a GORM-backed Store.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Links() LinkRepository             { return &linkRepository{db: s.db} }
func (s *gormStore) UltraSlots() UltraSlotRepository   { return &ultraSlotRepository{db: s.db} }
func (s *gormStore) DigitLeases() DigitLeaseRepository { return &digitLeaseRepository{db: s.db} }
func (s *gormStore) Usernames() UsernameRepository     { return &usernameRepository{db: s.db} }
func (s *gormStore) Sessions() SessionRepository       { return &sessionRepository{db: s.db} }

func (s *gormStore) RunInTransaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

// IsDuplicateKey reports whether err is a unique constraint violation, in any
// of the shapes the store surfaces them.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDuplicateKey) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// mapDuplicate normalizes driver-level unique violations to ErrDuplicateKey so
// callers outside this package never inspect driver errors.
func mapDuplicate(err error) error {
	if err == nil {
		return nil
	}
	if IsDuplicateKey(err) {
		return ErrDuplicateKey
	}
	return err
}
