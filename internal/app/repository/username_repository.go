package repository

import (
	"context"
	"errors"
	"time"

	"github.com/weerhq/weer/internal/app/model"
	"gorm.io/gorm"
)

// ErrUsernameNotFound signals that no matching username row exists.
var ErrUsernameNotFound = errors.New("username not found")

// UsernameRepository defines the data access contract for the bounded-history
// username pool. Usernames are stored lowercased; the column carries a global
// unique index.
type UsernameRepository interface {
	ListByUser(ctx context.Context, userID int64) ([]model.Username, error)
	GetActiveByName(ctx context.Context, username string) (*model.Username, error)
	ReservedByOther(ctx context.Context, username string, userID int64, now time.Time) (bool, error)
	Insert(ctx context.Context, userID int64, username string) error
	Activate(ctx context.Context, userID int64, username string) error
	Deactivate(ctx context.Context, userID int64, username string, expiresAt time.Time) error
	Delete(ctx context.Context, userID int64, username string) error
	DeleteExpiredByName(ctx context.Context, username string, now time.Time) error
}

type usernameRepository struct {
	db *gorm.DB
}

// ListByUser returns all rows of an account ordered so the soonest-expiring
// inactive row comes first and the active row (NULL expiry) last.
func (r *usernameRepository) ListByUser(ctx context.Context, userID int64) ([]model.Username, error) {
	var rows []model.Username
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("expires_at ASC NULLS LAST").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *usernameRepository) GetActiveByName(ctx context.Context, username string) (*model.Username, error) {
	var row model.Username
	err := r.db.WithContext(ctx).
		Where("username = ? AND active = true", username).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUsernameNotFound
		}
		return nil, err
	}
	return &row, nil
}

// ReservedByOther reports whether another account holds the name, either as
// its active username or as an inactive row that has not expired yet.
func (r *usernameRepository) ReservedByOther(ctx context.Context, username string, userID int64, now time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Username{}).
		Where("username = ? AND user_id <> ? AND (active = true OR expires_at > ?)", username, userID, now).
		Count(&count).Error
	return count > 0, err
}

// Insert creates a fresh active row. A collision on the global username index
// surfaces as ErrDuplicateKey.
func (r *usernameRepository) Insert(ctx context.Context, userID int64, username string) error {
	row := model.Username{
		UserID:   userID,
		Username: username,
		Active:   true,
	}
	return mapDuplicate(r.db.WithContext(ctx).Create(&row).Error)
}

// Activate flips an existing row of the account to active and clears its
// expiry.
func (r *usernameRepository) Activate(ctx context.Context, userID int64, username string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Username{}).
		Where("user_id = ? AND username = ?", userID, username).
		Updates(map[string]interface{}{
			"active":     true,
			"expires_at": nil,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUsernameNotFound
	}
	return nil
}

// Deactivate retires the row and stamps the retention expiry.
func (r *usernameRepository) Deactivate(ctx context.Context, userID int64, username string, expiresAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Username{}).
		Where("user_id = ? AND username = ?", userID, username).
		Updates(map[string]interface{}{
			"active":     false,
			"expires_at": expiresAt,
		}).Error
}

func (r *usernameRepository) Delete(ctx context.Context, userID int64, username string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND username = ?", userID, username).
		Delete(&model.Username{}).Error
}

// DeleteExpiredByName frees the global unique index from inactive rows of any
// account whose reservation on the name has lapsed.
func (r *usernameRepository) DeleteExpiredByName(ctx context.Context, username string, now time.Time) error {
	return r.db.WithContext(ctx).
		Where("username = ? AND active = false AND expires_at <= ?", username, now).
		Delete(&model.Username{}).Error
}
