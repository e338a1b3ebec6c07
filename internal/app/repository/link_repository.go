package repository

import (
	"context"
	"errors"

	"github.com/weerhq/weer/internal/app/model"
	"gorm.io/gorm"
)

var (
	// ErrLinkNotFound signals that the requested short link does not exist.
	ErrLinkNotFound = errors.New("link not found")
)

// LinkRepository defines the data access contract for short links.
type LinkRepository interface {
	Create(ctx context.Context, link *model.Link) error
	GetByID(ctx context.Context, id int64) (*model.Link, error)
	GetByCode(ctx context.Context, code string) (*model.Link, error)
	GetByQRCodeID(ctx context.Context, qrCodeID string) (*model.Link, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]model.Link, error)
	ListBySession(ctx context.Context, sessionID int64, limit, offset int) ([]model.Link, error)
	ListCodes(ctx context.Context) ([]string, error)
	SetCode(ctx context.Context, id int64, code *string, space string) error
	IncrementViews(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
}

type linkRepository struct {
	db *gorm.DB
}

func (r *linkRepository) Create(ctx context.Context, link *model.Link) error {
	if err := r.db.WithContext(ctx).Create(link).Error; err != nil {
		return mapDuplicate(err)
	}
	return nil
}

func (r *linkRepository) GetByID(ctx context.Context, id int64) (*model.Link, error) {
	return r.getOne(ctx, "id = ?", id)
}

func (r *linkRepository) GetByCode(ctx context.Context, code string) (*model.Link, error) {
	return r.getOne(ctx, "code = ?", code)
}

func (r *linkRepository) GetByQRCodeID(ctx context.Context, qrCodeID string) (*model.Link, error) {
	return r.getOne(ctx, "qr_code_id = ?", qrCodeID)
}

func (r *linkRepository) getOne(ctx context.Context, query string, arg interface{}) (*model.Link, error) {
	var link model.Link
	if err := r.db.WithContext(ctx).Where(query, arg).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

func (r *linkRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]model.Link, error) {
	return r.list(ctx, "user_id = ?", userID, limit, offset)
}

func (r *linkRepository) ListBySession(ctx context.Context, sessionID int64, limit, offset int) ([]model.Link, error) {
	return r.list(ctx, "session_id = ?", sessionID, limit, offset)
}

func (r *linkRepository) list(ctx context.Context, query string, arg interface{}, limit, offset int) ([]model.Link, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var result []model.Link
	if err := r.db.WithContext(ctx).
		Where(query, arg).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&result).Error; err != nil {
		return nil, err
	}

	return result, nil
}

// ListCodes returns every stored literal code. Used to seed the negative
// lookup filter at startup.
func (r *linkRepository) ListCodes(ctx context.Context) ([]string, error) {
	var result []string
	if err := r.db.WithContext(ctx).
		Model(&model.Link{}).
		Where("code IS NOT NULL").
		Pluck("code", &result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

// SetCode atomically stores a new code (or clears it, when nil) and stamps the
// link's code-space tag. A uniqueness violation on the code column surfaces as
// ErrDuplicateKey.
func (r *linkRepository) SetCode(ctx context.Context, id int64, code *string, space string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Link{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"code":       code,
			"code_space": space,
		})

	if result.Error != nil {
		return mapDuplicate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrLinkNotFound
	}
	return nil
}

func (r *linkRepository) IncrementViews(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&model.Link{}).
		Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + 1")).Error
}

func (r *linkRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Link{}).Error
}
