package model

import "time"

// Username is one username an account has ever held. Exactly one active row
// per account carries ExpiresAt = NULL; inactive rows keep the name reserved
// until their expiry and at most MaxInactiveUsernames of them are retained.
type Username struct {
	ID        int64      `db:"id" gorm:"primaryKey;autoIncrement"`
	UserID    int64      `db:"user_id" gorm:"index;not null"`
	Username  string     `db:"username" gorm:"uniqueIndex;size:32;not null"`
	Active    bool       `db:"active" gorm:"not null;default:false"`
	ExpiresAt *time.Time `db:"expires_at" gorm:"index"`
	CreatedAt time.Time  `db:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time  `db:"updated_at" gorm:"autoUpdateTime"`
}

// MaxInactiveUsernames caps the historical footprint per account.
const MaxInactiveUsernames = 3

// Reserved reports whether this row still holds the name in the global
// namespace: active rows always do, inactive rows only until expiry.
func (u *Username) Reserved(now time.Time) bool {
	if u.Active {
		return true
	}
	return u.ExpiresAt != nil && u.ExpiresAt.After(now)
}
