package graph

import "time"

// Kind is the semantic discriminant carried by every node payload.
type Kind string

const (
	KindNone     Kind = ""
	KindSystem   Kind = "sistema"
	KindCategory Kind = "categoria"
	KindRegion   Kind = "region"
	KindUser     Kind = "usuario"
	KindAlert    Kind = "alerta"
)

// Payload is the data attached to a node. The store treats it as opaque:
// it is stored on first insert and never merged or mutated afterwards.
type Payload interface {
	Kind() Kind
}

// Empty is the payload of nodes created without data, including nodes
// auto-created as edge endpoints.
type Empty struct{}

func (Empty) Kind() Kind { return KindNone }

// System is the single root node.
type System struct{}

func (System) Kind() Kind { return KindSystem }

// Category is an alert category node (emergency, crime, ...).
type Category struct {
	Key  string `json:"key"`
	Name string `json:"nombre"`
}

func (Category) Kind() Kind { return KindCategory }

// Region is a geographic region node.
type Region struct {
	Name string `json:"nombre"`
}

func (Region) Kind() Kind { return KindRegion }

// User is a registered community member.
type User struct {
	Name      string    `json:"nombre"`
	Region    string    `json:"region"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

func (User) Kind() Kind { return KindUser }

// Alert is a single filed alert.
type Alert struct {
	Description string    `json:"descripcion"`
	Location    string    `json:"ubicacion"`
	Region      string    `json:"region"`
	Category    string    `json:"categoria"`
	UserID      string    `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
	Active      bool      `json:"activa"`
}

func (Alert) Kind() Kind { return KindAlert }

// KindOf returns the discriminant of p, treating nil as KindNone.
func KindOf(p Payload) Kind {
	if p == nil {
		return KindNone
	}
	return p.Kind()
}

// Match is a single traversal result.
type Match struct {
	ID      string  `json:"id"`
	Payload Payload `json:"payload"`
}

// Predicate filters traversal results. A nil Predicate accepts every node.
type Predicate func(p Payload, id string) bool

// TraversalStats describes the work done by one traversal.
type TraversalStats struct {
	Visited     int `json:"visited"`
	Enqueued    int `json:"enqueued"`
	MaxFrontier int `json:"max_frontier"`
}
