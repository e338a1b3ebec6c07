package model

import "time"

// DigitLease is one outstanding numeric code. Unlike ultra slots there is no
// fixed inventory: rows are created on claim and deleted on expiry or release.
// CodeLength is denormalized so occupancy counts stay a single indexed query.
type DigitLease struct {
	ID         int64     `db:"id" gorm:"primaryKey;autoIncrement"`
	Code       string    `db:"code" gorm:"uniqueIndex:idx_digit_code_length;size:5;not null"`
	CodeLength int       `db:"code_length" gorm:"uniqueIndex:idx_digit_code_length;index;not null"`
	LinkID     int64     `db:"link_id" gorm:"uniqueIndex;not null"`
	AssignedAt time.Time `db:"assigned_at" gorm:"not null"`
	ExpiresAt  time.Time `db:"expires_at" gorm:"index;not null"`
}

// Live reports whether the lease is still within its TTL.
func (l *DigitLease) Live(now time.Time) bool {
	return l.ExpiresAt.After(now)
}
