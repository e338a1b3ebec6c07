package model

import "time"

// Link describes one shortenable destination stored in Postgres.
//
// Code holds the literal short code for the classic, custom and affix spaces
// and is NULL while the link lives in the ultra or digit space (those codes
// live in their own lease tables). QRCodeID is assigned once at insert and
// never changes, regardless of later code-space customization.
type Link struct {
	ID        int64      `db:"id" gorm:"primaryKey;autoIncrement"`
	URL       string     `db:"url" gorm:"type:text;not null"`
	Code      *string    `db:"code" gorm:"uniqueIndex;size:64"`
	CodeSpace string     `db:"code_space" gorm:"size:16;not null;default:classic"`
	QRCodeID  string     `db:"qr_code_id" gorm:"uniqueIndex;size:16;not null"`
	UserID    *int64     `db:"user_id" gorm:"index"`
	SessionID *int64     `db:"session_id" gorm:"index"`
	Views     int64      `db:"views" gorm:"not null;default:0"`
	CreatedAt time.Time  `db:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time  `db:"updated_at" gorm:"autoUpdateTime"`
}

// Owned reports whether the link belongs to an account or an anonymous
// session. At most one of the two may be set.
func (l *Link) Owned() bool {
	return l.UserID != nil || l.SessionID != nil
}
