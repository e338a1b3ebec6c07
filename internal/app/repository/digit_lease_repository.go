package repository

import (
	"context"
	"errors"
	"time"

	"github.com/weerhq/weer/internal/app/model"
	"gorm.io/gorm"
)

// ErrLeaseNotFound signals that no live digit lease carries the requested code.
var ErrLeaseNotFound = errors.New("digit lease not found")

// DigitLeaseRepository defines the data access contract for outstanding
// numeric codes. Rows are created on claim and deleted on expiry or release.
type DigitLeaseRepository interface {
	CountLiveByLength(ctx context.Context, length int, now time.Time) (int64, error)
	Create(ctx context.Context, lease *model.DigitLease) error
	GetLiveByCode(ctx context.Context, code string, now time.Time) (*model.DigitLease, error)
	GetByLink(ctx context.Context, linkID int64) (*model.DigitLease, error)
	DeleteByLink(ctx context.Context, linkID int64) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type digitLeaseRepository struct {
	db *gorm.DB
}

// CountLiveByLength counts the outstanding leases of one code length. Expired
// rows the janitor has not yet deleted do not count against the entropy gate.
func (r *digitLeaseRepository) CountLiveByLength(ctx context.Context, length int, now time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.DigitLease{}).
		Where("code_length = ? AND expires_at > ?", length, now).
		Count(&count).Error
	return count, err
}

// Create inserts a new lease. A collision on (code, code_length) or on the
// one-lease-per-link constraint surfaces as ErrDuplicateKey.
func (r *digitLeaseRepository) Create(ctx context.Context, lease *model.DigitLease) error {
	return mapDuplicate(r.db.WithContext(ctx).Create(lease).Error)
}

func (r *digitLeaseRepository) GetLiveByCode(ctx context.Context, code string, now time.Time) (*model.DigitLease, error) {
	var lease model.DigitLease
	err := r.db.WithContext(ctx).
		Where("code = ? AND expires_at > ?", code, now).
		First(&lease).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLeaseNotFound
		}
		return nil, err
	}
	return &lease, nil
}

// GetByLink returns the lease owned by the link, expired or not.
func (r *digitLeaseRepository) GetByLink(ctx context.Context, linkID int64) (*model.DigitLease, error) {
	var lease model.DigitLease
	err := r.db.WithContext(ctx).Where("link_id = ?", linkID).First(&lease).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLeaseNotFound
		}
		return nil, err
	}
	return &lease, nil
}

// DeleteByLink removes the lease owned by the link, if any. Idempotent.
func (r *digitLeaseRepository) DeleteByLink(ctx context.Context, linkID int64) error {
	return r.db.WithContext(ctx).Where("link_id = ?", linkID).Delete(&model.DigitLease{}).Error
}

// DeleteExpired removes every lease whose expiry has passed and returns the
// number of reclaimed rows.
func (r *digitLeaseRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&model.DigitLease{})
	return result.RowsAffected, result.Error
}
