// Package notify delivers committed catalog entries to output backends.
//
// Notification is best-effort: a sink error is logged by the Router and never
// affects the catalog.
package notify

import (
	"context"

	"github.com/hazyhaar/radarlapse/catalog"
)

// Notification is emitted once per committed catalog insert.
type Notification struct {
	Entry   catalog.Entry `json:"entry"`
	Evicted []string      `json:"evicted,omitempty"`
}

// FromCommit converts a catalog commit.
func FromCommit(c catalog.Commit) Notification {
	return Notification{Entry: c.Entry, Evicted: c.Evicted}
}

// Sink is the output interface. Implementations deliver notifications to
// different backends (stdout, webhook, MQTT, in-process callback).
type Sink interface {
	Send(ctx context.Context, n Notification) error
	Close() error
}

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}
