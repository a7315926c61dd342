// Package audit streams case lifecycle events to an external bus in
// addition to the persistent status log. Publishing is fire-and-forget: the
// pipeline never blocks or fails on bus trouble.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Event is one lifecycle change as seen by downstream consumers.
type Event struct {
	UID       int64     `json:"uid"`
	CaseID    string    `json:"case_id"`
	Status    string    `json:"status"`
	Actor     string    `json:"actor"`
	Notes     string    `json:"notes,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher emits lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) {}

func marshal(event Event, log *slog.Logger) []byte {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error("marshal audit event", "error", err)
		return nil
	}
	return payload
}
