package model

import "time"

// UltraSlot is one pre-enumerated code in the scarce 1-2 character space.
// The full inventory is seeded once; rows are never deleted. A slot is free
// when LinkID is NULL or its expiry has passed.
type UltraSlot struct {
	ID         int64      `db:"id" gorm:"primaryKey;autoIncrement"`
	Code       string     `db:"code" gorm:"uniqueIndex;size:2;not null"`
	LinkID     *int64     `db:"link_id" gorm:"uniqueIndex"`
	AssignedAt *time.Time `db:"assigned_at"`
	ExpiresAt  *time.Time `db:"expires_at" gorm:"index"`
}

// Live reports whether the slot is currently assigned and unexpired.
func (s *UltraSlot) Live(now time.Time) bool {
	return s.LinkID != nil && s.ExpiresAt != nil && s.ExpiresAt.After(now)
}
