package repository

import (
	"context"
	"errors"
	"time"

	"github.com/weerhq/weer/internal/app/codes"
	"github.com/weerhq/weer/internal/app/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrSlotNotFound signals that no ultra slot carries the requested code.
var ErrSlotNotFound = errors.New("ultra slot not found")

// UltraSlotRepository defines the data access contract for the fixed ultra
// code inventory. SelectFirstFreeForUpdate must run inside a transaction; the
// row lock it takes is released on commit or rollback.
type UltraSlotRepository interface {
	SeedInventory(ctx context.Context) error
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
	SelectFirstFreeForUpdate(ctx context.Context) (*model.UltraSlot, error)
	Assign(ctx context.Context, slotID, linkID int64, assignedAt, expiresAt time.Time) error
	ReleaseByLink(ctx context.Context, linkID int64) error
	GetByCode(ctx context.Context, code string) (*model.UltraSlot, error)
}

type ultraSlotRepository struct {
	db *gorm.DB
}

// SeedInventory enumerates the complete 1-2 character code space and inserts
// any rows not already present. Idempotent; safe to run on every boot.
func (r *ultraSlotRepository) SeedInventory(ctx context.Context) error {
	alphabet := codes.Alphabet

	slots := make([]model.UltraSlot, 0, len(alphabet)*(len(alphabet)+1))
	for i := 0; i < len(alphabet); i++ {
		slots = append(slots, model.UltraSlot{Code: string(alphabet[i])})
	}
	for i := 0; i < len(alphabet); i++ {
		for j := 0; j < len(alphabet); j++ {
			slots = append(slots, model.UltraSlot{Code: string(alphabet[i]) + string(alphabet[j])})
		}
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(slots, 200).Error
}

// SweepExpired clears the assignment of every slot whose expiry has passed.
func (r *ultraSlotRepository) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.UltraSlot{}).
		Where("expires_at IS NOT NULL AND expires_at < ?", now).
		Updates(map[string]interface{}{
			"link_id":     nil,
			"assigned_at": nil,
			"expires_at":  nil,
		})
	return result.RowsAffected, result.Error
}

// SelectFirstFreeForUpdate locks and returns the scarcest free slot: shortest
// code first, then lexicographic. Rows locked by concurrent claimants are
// skipped rather than waited on, so parallel claims each land on a different
// slot.
func (r *ultraSlotRepository) SelectFirstFreeForUpdate(ctx context.Context) (*model.UltraSlot, error) {
	var slot model.UltraSlot
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("link_id IS NULL").
		Order("length(code), code").
		First(&slot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoFreeSlot
		}
		return nil, err
	}
	return &slot, nil
}

// Assign stamps the slot with its new owner and lease window. A violation of
// the one-slot-per-link constraint surfaces as ErrDuplicateKey.
func (r *ultraSlotRepository) Assign(ctx context.Context, slotID, linkID int64, assignedAt, expiresAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&model.UltraSlot{}).
		Where("id = ?", slotID).
		Updates(map[string]interface{}{
			"link_id":     linkID,
			"assigned_at": assignedAt,
			"expires_at":  expiresAt,
		})
	if result.Error != nil {
		return mapDuplicate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNoFreeSlot
	}
	return nil
}

// ReleaseByLink nulls out whichever slot points at the link. Idempotent.
func (r *ultraSlotRepository) ReleaseByLink(ctx context.Context, linkID int64) error {
	return r.db.WithContext(ctx).
		Model(&model.UltraSlot{}).
		Where("link_id = ?", linkID).
		Updates(map[string]interface{}{
			"link_id":     nil,
			"assigned_at": nil,
			"expires_at":  nil,
		}).Error
}

func (r *ultraSlotRepository) GetByCode(ctx context.Context, code string) (*model.UltraSlot, error) {
	var slot model.UltraSlot
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&slot).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	return &slot, nil
}
