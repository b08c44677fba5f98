// Package membership implements the MembershipReactor: the component
// that reacts to a tablet server leaving the cluster by purging its
// advertisements from the JobIndex and best-effort cancelling whatever
// it had reserved in the RunningTable.
package membership

import (
	"context"

	"github.com/cuemby/compactord/pkg/compaction"
	"github.com/cuemby/compactord/pkg/jobindex"
	"github.com/cuemby/compactord/pkg/lifecycle"
	"github.com/cuemby/compactord/pkg/log"
	"github.com/cuemby/compactord/pkg/metrics"
	"github.com/cuemby/compactord/pkg/running"
	"github.com/rs/zerolog"
)

// Event is one membership delta. Added carries no obligation for the
// reactor; only Deleted triggers cleanup.
type Event struct {
	TServer compaction.TabletServerID
	Deleted bool
}

// Reactor consumes a stream of membership Events and keeps the JobIndex
// and RunningTable consistent with which tablet servers are still live.
// The cluster membership source itself (ZooKeeper watches, a gossip
// layer, or similar) is an external collaborator; Reactor only owns the
// reaction.
type Reactor struct {
	index    *jobindex.Index
	table    *running.Table
	handlers *lifecycle.Handlers
	logger   zerolog.Logger
}

// New returns a Reactor wired to index, table, and handlers.
func New(index *jobindex.Index, table *running.Table, handlers *lifecycle.Handlers) *Reactor {
	return &Reactor{
		index:    index,
		table:    table,
		handlers: handlers,
		logger:   log.WithComponent("membership"),
	}
}

// Run consumes events until the channel closes or ctx is done.
func (r *Reactor) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Deleted {
				r.handleRemoval(ctx, ev.TServer)
			}
		case <-ctx.Done():
			return
		}
	}
}

// handleRemoval purges every pending advertisement from tsi and
// best-effort cancels every running compaction it had reserved.
func (r *Reactor) handleRemoval(ctx context.Context, tsi compaction.TabletServerID) {
	removed := r.index.RemoveTserver(tsi)
	r.logger.Info().
		Str("tserver", tsi.String()).
		Int("purged_advertisements", len(removed)).
		Msg("tablet server removed, purging advertisements")

	ids := r.table.ByTserver(tsi)
	for _, id := range ids {
		if err := r.handlers.CancelCompaction(ctx, id); err != nil {
			r.logger.Warn().
				Str("external_compaction_id", id).
				Str("tserver", tsi.String()).
				Err(err).
				Msg("failed to cancel running compaction for removed tablet server")
		}
	}

	metrics.MembershipRemovalsTotal.Inc()
}
