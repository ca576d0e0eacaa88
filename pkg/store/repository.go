package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Load replays the event log into a Snapshot.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	events, err := s.ReadEvents(ctx)
	if err != nil {
		return nil, err
	}

	snap := NewSnapshot()
	for _, e := range events {
		if err := snap.Apply(e); err != nil {
			return nil, fmt.Errorf("failed to replay event %s: %w", e.EventID, err)
		}
	}
	return snap, nil
}

// Apply folds a single event into the snapshot. Unknown event types are
// ignored so that older binaries can read newer logs.
func (snap *Snapshot) Apply(e *Event) error {
	switch e.EventType {
	case EventTypeUserRegistered:
		var p UserRegisteredPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return err
		}
		snap.Users = append(snap.Users, p.User)
		snap.Connections = append(snap.Connections, p.Connections...)
	case EventTypeAlertCreated:
		var p AlertCreatedPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return err
		}
		snap.Alerts = append(snap.Alerts, p.Alert)
		snap.Connections = append(snap.Connections, p.Connections...)
	}
	return nil
}

// SaveUser appends a user_registered event.
func (s *Store) SaveUser(ctx context.Context, u User, conns []Connection) error {
	payload, err := json.Marshal(UserRegisteredPayload{User: u, Connections: conns})
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	evt := newEvent(EventTypeUserRegistered, u.CreatedAt.Time, payload)
	evt.Dimensions = EventDimensions{
		UserID:     u.ID,
		RegionID:   u.Region,
		CategoryID: SentinelSystem,
	}
	evt.Correlation.CorrelationID = fmt.Sprintf("user_%s", u.ID)
	return s.AppendEvent(ctx, evt)
}

// SaveAlert appends an alert_created event.
func (s *Store) SaveAlert(ctx context.Context, a Alert, conns []Connection) error {
	payload, err := json.Marshal(AlertCreatedPayload{Alert: a, Connections: conns})
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	evt := newEvent(EventTypeAlertCreated, a.CreatedAt.Time, payload)
	evt.Dimensions = EventDimensions{
		UserID:     a.UserID,
		RegionID:   a.Region,
		CategoryID: a.Category,
	}
	evt.Correlation.CorrelationID = fmt.Sprintf("alert_%s", a.ID)
	return s.AppendEvent(ctx, evt)
}

func newEvent(t EventType, ts time.Time, payload []byte) *Event {
	now := time.Now().UTC()
	if ts.IsZero() {
		ts = now
	}
	return &Event{
		EventID:       EventID(uuid.NewString()),
		EventType:     t,
		SchemaVersion: schemaVersion,
		TsEvent:       ts,
		TsIngest:      now,
		Source: EventSource{
			OriginKind: "daemon",
			OriginID:   "registry",
			WriterID:   writerID,
		},
		Correlation: EventCorrelation{
			CausationID: SentinelUnknown,
		},
		Payload: payload,
	}
}
