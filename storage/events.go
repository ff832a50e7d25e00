package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"travelbuddy-api/domain"
)

// EnqueueEvent records an activity event for the user on the audit
// queue. Delivery is best effort: the caller logs and moves on when it
// fails, the user operation that produced the event has already
// committed.
func (s *Storage) EnqueueEvent(ctx context.Context, userID string, ev domain.Event) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixMilli()
	}
	env := domain.EventEnvelope{UserID: userID, Event: ev}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	_, err = s.activityQueue.EnqueueMessage(ctx, string(data), nil)
	return err
}
