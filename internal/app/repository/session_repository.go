package repository

import (
	"context"
	"errors"
	"time"

	"github.com/weerhq/weer/internal/app/model"
	"gorm.io/gorm"
)

// ErrSessionNotFound signals that no session carries the requested token.
var ErrSessionNotFound = errors.New("session not found")

// SessionRepository defines the data access contract for anonymous sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *model.Session) error
	GetByToken(ctx context.Context, token string) (*model.Session, error)
	Touch(ctx context.Context, id int64, lastActive time.Time) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type sessionRepository struct {
	db *gorm.DB
}

func (r *sessionRepository) Create(ctx context.Context, session *model.Session) error {
	return mapDuplicate(r.db.WithContext(ctx).Create(session).Error)
}

func (r *sessionRepository) GetByToken(ctx context.Context, token string) (*model.Session, error) {
	var session model.Session
	if err := r.db.WithContext(ctx).Where("session_token = ?", token).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) Touch(ctx context.Context, id int64, lastActive time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Session{}).
		Where("id = ?", id).
		UpdateColumn("last_active", lastActive).Error
}

func (r *sessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&model.Session{})
	return result.RowsAffected, result.Error
}
