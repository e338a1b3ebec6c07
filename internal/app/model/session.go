package model

import "time"

// Session is an anonymous browser session. Links created without an account
// hang off a session row instead of a user id.
type Session struct {
	ID           int64     `db:"id" gorm:"primaryKey;autoIncrement"`
	SessionToken string    `db:"session_token" gorm:"uniqueIndex;size:128;not null"`
	CreatedAt    time.Time `db:"created_at" gorm:"autoCreateTime"`
	LastActive   time.Time `db:"last_active" gorm:"not null"`
	ExpiresAt    time.Time `db:"expires_at" gorm:"index;not null"`
}
