package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/rmax-ai/alertgraph/pkg/blob"
	"github.com/rmax-ai/alertgraph/pkg/catalog"
)

// FileStore persists the whole Snapshot as one JSON document. Every write
// first copies the current document to "<name>.bak". It is safe for
// concurrent use.
type FileStore struct {
	mu     sync.Mutex
	blobs  blob.BlobStore
	key    string
	logger *slog.Logger
	snap   *Snapshot
}

// NewFileStore opens the JSON document at path. The file is created on the
// first write.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{
		blobs:  blob.NewLocalBlobStore(filepath.Dir(path)),
		key:    filepath.Base(path),
		logger: logger,
	}
}

// Load reads the document. A missing or unreadable document yields an empty
// snapshot so that a corrupt file never prevents startup. Legacy category
// node ids in connections are rewritten to their current form.
func (f *FileStore) Load(ctx context.Context) (*Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.load(ctx)
	return f.copy(), nil
}

func (f *FileStore) load(ctx context.Context) {
	snap := NewSnapshot()

	r, err := f.blobs.Get(ctx, f.key)
	if err != nil {
		if !errors.Is(err, blob.ErrNotFound) {
			f.logger.Warn("data_file_unreadable", "file", f.key, "error", err)
		}
		f.snap = snap
		return
	}
	defer r.Close()

	if err := json.NewDecoder(r).Decode(snap); err != nil {
		f.logger.Warn("data_file_corrupt", "file", f.key, "error", err)
		snap = NewSnapshot()
	}
	if snap.Users == nil {
		snap.Users = []User{}
	}
	if snap.Alerts == nil {
		snap.Alerts = []Alert{}
	}
	if snap.Connections == nil {
		snap.Connections = []Connection{}
	}
	for i := range snap.Connections {
		c := &snap.Connections[i]
		c.Origin = catalog.CanonicalNodeID(c.Origin)
		c.Destination = catalog.CanonicalNodeID(c.Destination)
	}

	f.snap = snap
}

// SaveUser appends the user and its connections and rewrites the document.
func (f *FileStore) SaveUser(ctx context.Context, u User, conns []Connection) error {
	return f.update(ctx, func(s *Snapshot) {
		s.Users = append(s.Users, u)
		s.Connections = append(s.Connections, conns...)
	})
}

// SaveAlert appends the alert and its connections and rewrites the document.
func (f *FileStore) SaveAlert(ctx context.Context, a Alert, conns []Connection) error {
	return f.update(ctx, func(s *Snapshot) {
		s.Alerts = append(s.Alerts, a)
		s.Connections = append(s.Connections, conns...)
	})
}

// Close is a no-op; every write is flushed immediately.
func (f *FileStore) Close() error {
	return nil
}

func (f *FileStore) update(ctx context.Context, mutate func(*Snapshot)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snap == nil {
		f.load(ctx)
	}

	next := f.copy()
	mutate(next)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(next); err != nil {
		return fmt.Errorf("failed to encode data file: %w", err)
	}

	if err := f.blobs.Copy(ctx, f.key, f.key+".bak"); err != nil {
		return fmt.Errorf("failed to back up data file: %w", err)
	}
	if err := f.blobs.Put(ctx, f.key, &buf); err != nil {
		return fmt.Errorf("failed to write data file: %w", err)
	}

	f.snap = next
	return nil
}

// copy returns a copy of f.snap whose slices callers may append to.
// Callers hold f.mu.
func (f *FileStore) copy() *Snapshot {
	return &Snapshot{
		Users:       append([]User{}, f.snap.Users...),
		Alerts:      append([]Alert{}, f.snap.Alerts...),
		Connections: append([]Connection{}, f.snap.Connections...),
	}
}
