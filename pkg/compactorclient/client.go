// Package compactorclient is the coordinator's outbound client to a
// compactor: Cancel. The compactor process itself is an external
// collaborator.
package compactorclient

import "context"

// Client is what LifecycleHandlers needs to tell a compactor to give up
// on a job it holds.
type Client interface {
	Cancel(ctx context.Context, externalCompactionID string) error
	Close() error
}

// Dialer opens a Client for a compactor's advertised address.
type Dialer interface {
	Dial(ctx context.Context, compactorAddress string) (Client, error)
}
