package model

import "time"

// VisitEvent represents one resolved redirect, published to JetStream so the
// view counter is incremented off the hot path.
type VisitEvent struct {
	ID        string    `json:"id"`
	LinkID    int64     `json:"link_id"`
	Code      string    `json:"code"`
	CodeSpace string    `json:"code_space"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	VisitStreamName     = "VISITS"
	VisitStreamSubject  = "visits.events"
	VisitConsumerName   = "visit-counter"
	VisitStreamMaxBytes = 1024 * 1024 * 100 // 100MB
)
