// Package tserverclient is the coordinator's outbound client to tablet
// servers: GetCompactionQueueInfo, ReserveCompactionJob,
// CompactionJobFinished. The tablet server process itself is an
// external collaborator; this package only owns the client-side
// contract and a gRPC-backed implementation of it.
package tserverclient

import (
	"context"

	"github.com/cuemby/compactord/pkg/compaction"
	"github.com/cuemby/compactord/pkg/rpcapi"
)

// Client is what the QueuePoller and Dispatcher need from one tablet
// server connection.
type Client interface {
	GetCompactionQueueInfo(ctx context.Context) ([]rpcapi.QueueSummary, error)
	ReserveCompactionJob(ctx context.Context, queue string, priority int64, compactorAddress string) (compaction.Job, error)
	CompactionJobFinished(ctx context.Context, id string, stats compaction.Stats) error
	Close() error
}

// Dialer opens a Client for a given tablet server identity. Production
// code gets a GRPCDialer (grpc_dialer.go); tests use an in-memory fake.
type Dialer interface {
	Dial(ctx context.Context, tsi compaction.TabletServerID) (Client, error)
}
