package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store manages the SQLite connection and schema.
type Store struct {
	db *sql.DB
}

// NewStore initializes the SQLite database connection.
// It enables WAL mode for concurrency and durability.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{db: db}

	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the necessary tables if they don't exist.
func (s *Store) migrate() error {
	// Append-only event log. Envelope fields are columns for querying,
	// the record itself is a JSON payload.
	query := `
	CREATE TABLE IF NOT EXISTS events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		event_id TEXT NOT NULL UNIQUE,
		event_type TEXT NOT NULL,
		schema_version INTEGER NOT NULL,
		ts_event DATETIME NOT NULL,
		ts_ingest DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,

		-- Source metadata
		origin_kind TEXT,
		origin_id TEXT,
		writer_id TEXT,

		-- Dimensions
		user_id TEXT NOT NULL,
		region_id TEXT NOT NULL,
		category_id TEXT NOT NULL,

		-- Correlation
		correlation_id TEXT,
		causation_id TEXT,

		-- Payload
		payload JSON NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type);
	CREATE INDEX IF NOT EXISTS idx_events_user ON events(user_id);
	`

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create events table: %w", err)
	}

	return nil
}

// AppendEvent writes a single event to the log.
func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (
			event_id, event_type, schema_version, ts_event, ts_ingest,
			origin_kind, origin_id, writer_id,
			user_id, region_id, category_id,
			correlation_id, causation_id, payload
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(e.EventID), string(e.EventType), e.SchemaVersion, e.TsEvent.UTC(), e.TsIngest.UTC(),
		e.Source.OriginKind, e.Source.OriginID, e.Source.WriterID,
		e.Dimensions.UserID, e.Dimensions.RegionID, e.Dimensions.CategoryID,
		e.Correlation.CorrelationID, e.Correlation.CausationID, string(e.Payload),
	)
	if err != nil {
		return fmt.Errorf("failed to append event %s: %w", e.EventID, err)
	}
	return nil
}

const selectEvent = `
	SELECT event_id, event_type, schema_version, ts_event, ts_ingest,
		origin_kind, origin_id, writer_id,
		user_id, region_id, category_id,
		correlation_id, causation_id, payload
	FROM events`

// GetEvent returns a single event, or nil if it does not exist.
func (s *Store) GetEvent(ctx context.Context, id EventID) (*Event, error) {
	row := s.db.QueryRowContext(ctx, selectEvent+` WHERE event_id = ?`, string(id))
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return e, nil
}

// ReadEvents returns every event in ingestion order.
func (s *Store) ReadEvents(ctx context.Context) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx, selectEvent+` ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	return collectEvents(rows)
}

// ReadRecentEvents returns up to limit events, newest first. A non-positive
// limit returns every event.
func (s *Store) ReadRecentEvents(ctx context.Context, limit int) ([]*Event, error) {
	query := selectEvent + ` ORDER BY seq DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent events: %w", err)
	}
	return collectEvents(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*Event, error) {
	var (
		e                                   Event
		eventID, eventType                  string
		originKind, originID, writer        sql.NullString
		correlationID, causationID, payload sql.NullString
	)
	err := row.Scan(
		&eventID, &eventType, &e.SchemaVersion, &e.TsEvent, &e.TsIngest,
		&originKind, &originID, &writer,
		&e.Dimensions.UserID, &e.Dimensions.RegionID, &e.Dimensions.CategoryID,
		&correlationID, &causationID, &payload,
	)
	if err != nil {
		return nil, err
	}

	e.EventID = EventID(eventID)
	e.EventType = EventType(eventType)
	e.Source = EventSource{OriginKind: originKind.String, OriginID: originID.String, WriterID: writer.String}
	e.Correlation = EventCorrelation{CorrelationID: correlationID.String, CausationID: causationID.String}
	e.Payload = []byte(payload.String)
	return &e, nil
}

func collectEvents(rows *sql.Rows) ([]*Event, error) {
	defer rows.Close()

	events := []*Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return events, nil
}
