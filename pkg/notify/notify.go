// Package notify broadcasts newly created alerts to interested listeners.
package notify

import (
	"context"

	"github.com/rmax-ai/alertgraph/pkg/store"
)

// Notifier publishes alerts after they have been persisted.
type Notifier interface {
	Publish(ctx context.Context, alert store.Alert) error
}

// Nop discards every notification. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, store.Alert) error { return nil }
