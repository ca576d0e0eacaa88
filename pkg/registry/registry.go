// Package registry is the alert registry service. It owns the in-memory
// graph, rebuilds it from a persisted snapshot at startup and keeps it in
// step with every registration and alert.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rmax-ai/alertgraph/pkg/catalog"
	"github.com/rmax-ai/alertgraph/pkg/graph"
	"github.com/rmax-ai/alertgraph/pkg/notify"
	"github.com/rmax-ai/alertgraph/pkg/store"
)

var (
	ErrEmptyName         = errors.New("name is required")
	ErrEmptyDescription  = errors.New("description is required")
	ErrUnknownRegion     = errors.New("unknown region")
	ErrUnknownCategory   = errors.New("unknown category")
	ErrUnknownUser       = errors.New("unknown user")
	ErrEventsUnsupported = errors.New("repository does not expose events")
	errRegistryNotLoaded = errors.New("registry not loaded")
)

const (
	alertIDTimestampFmt   = "20060102_150405"
	alertRecordKind       = string(graph.KindAlert)
	defaultEventListLimit = 50
)

// Repository persists users and alerts together with their connections.
type Repository interface {
	Load(ctx context.Context) (*store.Snapshot, error)
	SaveUser(ctx context.Context, u store.User, conns []store.Connection) error
	SaveAlert(ctx context.Context, a store.Alert, conns []store.Connection) error
	Close() error
}

// EventReader is implemented by repositories that keep an event log.
type EventReader interface {
	ReadRecentEvents(ctx context.Context, limit int) ([]*store.Event, error)
}

// AlertInput carries the fields of a new alert. An empty Region defaults to
// the reporting user's region.
type AlertInput struct {
	UserID      string
	Category    string
	Description string
	Location    string
	Region      string
}

// CategoryCount is the number of active alerts in one category.
type CategoryCount struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Stats summarises the registry.
type Stats struct {
	Nodes        int             `json:"nodes"`
	Edges        int             `json:"edges"`
	Users        int             `json:"users"`
	ActiveAlerts int             `json:"active_alerts"`
	ByCategory   []CategoryCount `json:"by_category"`
}

// Option configures a Registry.
type Option func(*Registry)

// WithNotifier sets the notifier that receives every new alert.
func WithNotifier(n notify.Notifier) Option {
	return func(r *Registry) { r.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// Registry serialises all access to the graph, which is not safe for
// concurrent use on its own. writeMu orders mutations against rebuilds so
// nothing persisted while a snapshot is being read is dropped by the swap;
// it is always taken before mu.
type Registry struct {
	writeMu  sync.Mutex
	mu       sync.RWMutex
	g        *graph.Graph
	cat      *catalog.Catalog
	repo     Repository
	notifier notify.Notifier
	logger   *slog.Logger
	now      func() time.Time

	users    map[string]store.User
	alerts   []store.Alert
	alertIDs map[string]bool
	loaded   bool
}

// New creates a registry. Call Load before serving requests.
func New(repo Repository, cat *catalog.Catalog, opts ...Option) *Registry {
	if cat == nil {
		cat = catalog.Default()
	}
	r := &Registry{
		g:        graph.New(),
		cat:      cat,
		repo:     repo,
		notifier: notify.Nop{},
		logger:   slog.Default(),
		now:      time.Now,
		users:    make(map[string]store.User),
		alertIDs: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Catalog returns the catalog the registry validates against.
func (r *Registry) Catalog() *catalog.Catalog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cat
}

// Load reads the snapshot from the repository and rebuilds the graph:
// the root node, every category and region hanging off it, every active
// alert, and finally every persisted connection.
func (r *Registry) Load(ctx context.Context) error {
	return r.rebuild(ctx, nil)
}

// Reload swaps in cat and rebuilds the graph from the repository. The old
// graph keeps serving queries until the new one is complete; registrations
// and alerts wait for the swap.
func (r *Registry) Reload(ctx context.Context, cat *catalog.Catalog) error {
	if cat == nil {
		return errors.New("catalog is required")
	}
	if err := r.rebuild(ctx, cat); err != nil {
		return err
	}
	r.logger.Info("catalog_reloaded", "categories", len(cat.Categories), "regions", len(cat.Regions))
	return nil
}

// rebuild replaces the graph with one built from the repository snapshot
// and cat, or the current catalog when cat is nil.
func (r *Registry) rebuild(ctx context.Context, cat *catalog.Catalog) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if cat == nil {
		// r.cat only changes under writeMu.
		cat = r.cat
	}

	snap, err := r.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}

	g := graph.New()
	g.AddNode(catalog.RootID, graph.System{})
	for _, c := range cat.Categories {
		id := catalog.CategoryNodeID(c.Key)
		g.AddNode(id, graph.Category{Key: c.Key, Name: c.Name})
		g.AddEdge(catalog.RootID, id, false)
	}
	for _, region := range cat.Regions {
		id := catalog.RegionNodeID(region)
		g.AddNode(id, graph.Region{Name: region})
		g.AddEdge(catalog.RootID, id, false)
	}

	alertIDs := make(map[string]bool, len(snap.Alerts))
	for _, a := range snap.Alerts {
		alertIDs[a.ID] = true
		if a.IsActive() {
			g.AddNode(a.ID, alertPayload(a))
		}
	}
	for _, c := range snap.Connections {
		g.AddEdge(c.Origin, c.Destination, c.Bidirectional || c.Type.ForcedBidirectional())
	}

	users := make(map[string]store.User, len(snap.Users))
	for _, u := range snap.Users {
		users[u.ID] = u
	}

	r.mu.Lock()
	r.g = g
	r.cat = cat
	r.users = users
	r.alerts = append([]store.Alert(nil), snap.Alerts...)
	r.alertIDs = alertIDs
	r.loaded = true
	r.mu.Unlock()

	updateGraphGauges(g)
	r.logger.Info("registry_loaded",
		"users", len(snap.Users),
		"alerts", len(snap.Alerts),
		"connections", len(snap.Connections),
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount(),
	)
	return nil
}

// RegisterUser persists a new user in region and links it to the region node.
func (r *Registry) RegisterUser(ctx context.Context, name, region string) (store.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return store.User{}, ErrEmptyName
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.loaded {
		return store.User{}, errRegistryNotLoaded
	}
	if !r.cat.HasRegion(region) {
		return store.User{}, fmt.Errorf("%w: %q", ErrUnknownRegion, region)
	}

	u := store.User{
		ID:        r.nextUserID(),
		Name:      name,
		Region:    region,
		CreatedAt: store.NewTimestamp(r.now()),
	}
	regionID := catalog.RegionNodeID(region)
	conns := []store.Connection{
		{Origin: u.ID, Destination: regionID, Bidirectional: true, Type: store.ConnUserRegion},
	}

	if err := r.repo.SaveUser(ctx, u, conns); err != nil {
		return store.User{}, fmt.Errorf("failed to save user %s: %w", u.ID, err)
	}

	r.users[u.ID] = u
	r.g.AddNode(u.ID, graph.User{Name: u.Name, Region: u.Region, CreatedAt: u.CreatedAt.Time})
	r.g.AddEdge(u.ID, regionID, true)

	UsersRegisteredTotal.Inc()
	updateGraphGauges(r.g)
	r.logger.Info("user_registered", "user_id", u.ID, "region", region)
	return u, nil
}

// nextUserID returns USER_<n> with n one past the user count, skipping ids
// already present in hand-edited data files. Callers hold r.mu.
func (r *Registry) nextUserID() string {
	for n := len(r.users) + 1; ; n++ {
		id := fmt.Sprintf("USER_%d", n)
		if _, exists := r.users[id]; !exists {
			return id
		}
	}
}

// CreateAlert persists a new active alert and links it to its category,
// its region and the reporting user.
func (r *Registry) CreateAlert(ctx context.Context, in AlertInput) (store.Alert, error) {
	if strings.TrimSpace(in.Description) == "" {
		return store.Alert{}, ErrEmptyDescription
	}

	r.writeMu.Lock()
	unlock := func() {
		r.mu.Unlock()
		r.writeMu.Unlock()
	}
	r.mu.Lock()
	if !r.loaded {
		unlock()
		return store.Alert{}, errRegistryNotLoaded
	}
	if !r.cat.HasCategory(in.Category) {
		unlock()
		return store.Alert{}, fmt.Errorf("%w: %q", ErrUnknownCategory, in.Category)
	}

	user, ok := r.users[in.UserID]
	if !ok {
		unlock()
		return store.Alert{}, fmt.Errorf("%w: %q", ErrUnknownUser, in.UserID)
	}
	region := in.Region
	if region == "" {
		region = user.Region
	}
	if !r.cat.HasRegion(region) {
		unlock()
		return store.Alert{}, fmt.Errorf("%w: %q", ErrUnknownRegion, region)
	}

	now := r.now()
	active := true
	a := store.Alert{
		ID:          r.nextAlertID(in.Category, now),
		Description: in.Description,
		Location:    in.Location,
		Region:      region,
		Kind:        alertRecordKind,
		Category:    in.Category,
		UserID:      user.ID,
		CreatedAt:   store.NewTimestamp(now),
		Active:      &active,
	}
	categoryID := catalog.CategoryNodeID(in.Category)
	regionID := catalog.RegionNodeID(region)
	conns := []store.Connection{
		{Origin: a.ID, Destination: categoryID, Type: store.ConnAlertCategory},
		{Origin: a.ID, Destination: regionID, Type: store.ConnAlertRegion},
		{Origin: user.ID, Destination: a.ID, Type: store.ConnUserAlert},
	}

	if err := r.repo.SaveAlert(ctx, a, conns); err != nil {
		unlock()
		return store.Alert{}, fmt.Errorf("failed to save alert %s: %w", a.ID, err)
	}

	r.alerts = append(r.alerts, a)
	r.alertIDs[a.ID] = true
	r.g.AddNode(a.ID, alertPayload(a))
	r.g.AddEdge(a.ID, categoryID, true)
	r.g.AddEdge(a.ID, regionID, true)
	r.g.AddEdge(user.ID, a.ID, false)
	updateGraphGauges(r.g)
	unlock()

	AlertsCreatedTotal.WithLabelValues(a.Category).Inc()
	r.logger.Info("alert_created", "alert_id", a.ID, "category", a.Category, "region", a.Region, "user_id", a.UserID)

	if err := r.notifier.Publish(ctx, a); err != nil {
		r.logger.Warn("alert_notification_failed", "alert_id", a.ID, "error", err)
	}
	return a, nil
}

// nextAlertID builds ALERTA_<KEY>_<yyyymmdd_hhmmss>. Alerts of the same
// category created within the same second get a numeric suffix. Callers
// hold r.mu.
func (r *Registry) nextAlertID(category string, at time.Time) string {
	base := fmt.Sprintf("ALERTA_%s_%s", strings.ToUpper(category), at.Format(alertIDTimestampFmt))
	id := base
	for n := 2; r.taken(id); n++ {
		id = fmt.Sprintf("%s_%d", base, n)
	}
	return id
}

func (r *Registry) taken(id string) bool {
	if r.alertIDs[id] {
		return true
	}
	_, ok := r.g.GetNode(id)
	return ok
}

// AlertsByCategory returns the active alerts of a category, found with a
// depth-first walk from the category node.
func (r *Registry) AlertsByCategory(key string) ([]graph.Match, error) {
	r.mu.RLock()
	if !r.cat.HasCategory(key) {
		r.mu.RUnlock()
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, key)
	}
	matches, stats := r.g.DFSStats(catalog.CategoryNodeID(key), func(p graph.Payload, _ string) bool {
		a, ok := p.(graph.Alert)
		return ok && a.Active && a.Category == key
	})
	r.mu.RUnlock()

	observeQuery("category", "dfs", stats)
	return matches, nil
}

// AlertsByRegion returns the active alerts of a region, found with a
// breadth-first walk from the region node.
func (r *Registry) AlertsByRegion(region string) ([]graph.Match, error) {
	r.mu.RLock()
	if !r.cat.HasRegion(region) {
		r.mu.RUnlock()
		return nil, fmt.Errorf("%w: %q", ErrUnknownRegion, region)
	}
	matches, stats := r.g.BFSStats(catalog.RegionNodeID(region), func(p graph.Payload, _ string) bool {
		a, ok := p.(graph.Alert)
		return ok && a.Active && a.Region == region
	})
	r.mu.RUnlock()

	observeQuery("region", "bfs", stats)
	return matches, nil
}

// AlertsByUser returns the alerts filed by a user by inspecting the user's
// direct neighbors.
func (r *Registry) AlertsByUser(userID string) ([]graph.Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.users[userID]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownUser, userID)
	}

	matches := []graph.Match{}
	for _, id := range r.g.GetNeighbors(userID) {
		p, ok := r.g.GetNode(id)
		if ok && graph.KindOf(p) == graph.KindAlert {
			matches = append(matches, graph.Match{ID: id, Payload: p})
		}
	}
	QueriesTotal.WithLabelValues("user").Inc()
	return matches, nil
}

// User looks up a registered user.
func (r *Registry) User(id string) (store.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	return u, ok
}

// Stats reports graph size, user count and active alerts per category.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int)
	active := 0
	for _, a := range r.alerts {
		if a.IsActive() {
			active++
			counts[a.Category]++
		}
	}

	byCategory := make([]CategoryCount, 0, len(r.cat.Categories))
	for _, c := range r.cat.Categories {
		byCategory = append(byCategory, CategoryCount{Key: c.Key, Name: c.Name, Count: counts[c.Key]})
	}

	return Stats{
		Nodes:        r.g.NodeCount(),
		Edges:        r.g.EdgeCount(),
		Users:        len(r.users),
		ActiveAlerts: active,
		ByCategory:   byCategory,
	}
}

// Graph exports the current graph.
func (r *Registry) Graph() (graph.Export, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.g.Export()
}

// Events returns the most recent persisted events, newest first, when the
// repository keeps an event log.
func (r *Registry) Events(ctx context.Context, limit int) ([]*store.Event, error) {
	reader, ok := r.repo.(EventReader)
	if !ok {
		return nil, ErrEventsUnsupported
	}
	if limit <= 0 {
		limit = defaultEventListLimit
	}
	return reader.ReadRecentEvents(ctx, limit)
}

func alertPayload(a store.Alert) graph.Alert {
	return graph.Alert{
		Description: a.Description,
		Location:    a.Location,
		Region:      a.Region,
		Category:    a.Category,
		UserID:      a.UserID,
		CreatedAt:   a.CreatedAt.Time,
		Active:      a.IsActive(),
	}
}
