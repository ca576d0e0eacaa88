package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EventType represents the kind of event.
type EventType string

const (
	EventTypeUserRegistered EventType = "user_registered"
	EventTypeAlertCreated   EventType = "alert_created"
)

// ConnectionType tags a persisted edge with its meaning.
type ConnectionType string

const (
	ConnUserRegion    ConnectionType = "usuario_region"
	ConnUserAlert     ConnectionType = "usuario_alerta"
	ConnAlertCategory ConnectionType = "alerta_categoria"
	ConnAlertRegion   ConnectionType = "alerta_region"
)

// ForcedBidirectional reports whether edges of this type must be inserted in
// both directions so that traversals from category and region nodes reach
// the alerts attached to them.
func (t ConnectionType) ForcedBidirectional() bool {
	return t == ConnAlertCategory || t == ConnAlertRegion
}

// User is a persisted user record.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"nombre"`
	Region    string    `json:"region"`
	CreatedAt Timestamp `json:"created_at"`
}

// Alert is a persisted alert record.
type Alert struct {
	ID          string    `json:"id"`
	Description string    `json:"descripcion"`
	Location    string    `json:"ubicacion"`
	Region      string    `json:"region"`
	Kind        string    `json:"tipo"`
	Category    string    `json:"categoria"`
	UserID      string    `json:"user_id"`
	CreatedAt   Timestamp `json:"created_at"`
	Active      *bool     `json:"activa,omitempty"`
}

// IsActive reports the alert's active flag. Records without the flag count
// as active.
func (a Alert) IsActive() bool {
	return a.Active == nil || *a.Active
}

// Timestamp is a time that also decodes the zone-less ISO-8601 form
// ("2006-01-02T15:04:05.999999") found in hand-written data files. Zone-less
// values are read as UTC.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// MarshalJSON encodes the time as RFC 3339.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// UnmarshalJSON accepts RFC 3339 and zone-less ISO-8601 strings.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", raw)
}

// Connection is a persisted edge record.
type Connection struct {
	Origin        string         `json:"origen"`
	Destination   string         `json:"destino"`
	Bidirectional bool           `json:"bidireccional,omitempty"`
	Type          ConnectionType `json:"tipo,omitempty"`
}

// Snapshot is the full persisted state the graph is rebuilt from.
type Snapshot struct {
	Users       []User       `json:"usuarios"`
	Alerts      []Alert      `json:"alertas"`
	Connections []Connection `json:"conexiones"`
}

// NewSnapshot returns a snapshot with non-nil, empty collections.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Users:       []User{},
		Alerts:      []Alert{},
		Connections: []Connection{},
	}
}

// UserRegisteredPayload is the payload of EventTypeUserRegistered.
type UserRegisteredPayload struct {
	User        User         `json:"user"`
	Connections []Connection `json:"connections"`
}

// AlertCreatedPayload is the payload of EventTypeAlertCreated.
type AlertCreatedPayload struct {
	Alert       Alert        `json:"alert"`
	Connections []Connection `json:"connections"`
}

// EventID is a unique identifier for an event.
type EventID string

// Event represents the canonical envelope for all persisted events.
type Event struct {
	EventID       EventID          `json:"event_id"`
	EventType     EventType        `json:"event_type"`
	SchemaVersion int              `json:"schema_version"`
	TsEvent       time.Time        `json:"ts_event"`
	TsIngest      time.Time        `json:"ts_ingest"`
	Source        EventSource      `json:"source"`
	Dimensions    EventDimensions  `json:"dimensions"`
	Correlation   EventCorrelation `json:"correlation"`
	Payload       json.RawMessage  `json:"payload"`
}

// EventSource describes the origin of the event.
type EventSource struct {
	OriginKind string `json:"origin_kind"` // daemon, client, import
	OriginID   string `json:"origin_id"`
	WriterID   string `json:"writer_id"` // Always "alertgraph-d"
}

// EventDimensions are the graph nodes an event touches.
type EventDimensions struct {
	UserID     string `json:"user_id"`
	RegionID   string `json:"region_id"`
	CategoryID string `json:"category_id"`
}

// EventCorrelation groups events logically.
type EventCorrelation struct {
	CorrelationID string `json:"correlation_id"`
	CausationID   string `json:"causation_id"`
}

// Sentinel constants for unknown/global dimensions.
const (
	SentinelSystem  = "sentinel:system"
	SentinelUnknown = "sentinel:unknown"
)

const (
	schemaVersion = 1
	writerID      = "alertgraph-d"
)
