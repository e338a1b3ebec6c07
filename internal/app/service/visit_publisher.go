package service

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/weerhq/weer/internal/app/model"
)

// VisitPublisher publishes visit events to NATS JetStream.
type VisitPublisher struct {
	js nats.JetStreamContext
}

// NewVisitPublisher creates a new visit event publisher.
func NewVisitPublisher(js nats.JetStreamContext) *VisitPublisher {
	return &VisitPublisher{js: js}
}

// Publish emits one visit for a resolved redirect.
func (p *VisitPublisher) Publish(linkID int64, code, codeSpace, ip, userAgent string) error {
	event := model.VisitEvent{
		ID:        uuid.New().String(),
		LinkID:    linkID,
		Code:      code,
		CodeSpace: codeSpace,
		IP:        ip,
		UserAgent: userAgent,
		Timestamp: time.Now(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, err = p.js.Publish(model.VisitStreamSubject, data)
	return err
}
