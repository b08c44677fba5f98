// Package lifecycle implements LifecycleHandlers: the inbound RPC
// bodies a compactor drives after GetCompactionJob hands it a job -
// status updates, completion, cancellation, and status polling.
package lifecycle

import (
	"context"
	"time"

	"github.com/cuemby/compactord/pkg/compaction"
	"github.com/cuemby/compactord/pkg/compactorclient"
	"github.com/cuemby/compactord/pkg/log"
	"github.com/cuemby/compactord/pkg/metrics"
	"github.com/cuemby/compactord/pkg/retry"
	"github.com/cuemby/compactord/pkg/running"
	"github.com/cuemby/compactord/pkg/tserverclient"
	"github.com/rs/zerolog"
)

// Handlers implements the compactor-facing lifecycle RPCs against a
// shared RunningTable.
type Handlers struct {
	table         *running.Table
	tserverDialer tserverclient.Dialer
	compactorDial compactorclient.Dialer
	completionCfg retry.Config
	logger        zerolog.Logger
}

// New returns a Handlers backed by table, notifying tablet servers
// through tserverDialer and compactors through compactorDial.
// completionCfg bounds the CompactionCompleted notification retry.
func New(table *running.Table, tserverDialer tserverclient.Dialer, compactorDial compactorclient.Dialer, completionCfg retry.Config) *Handlers {
	return &Handlers{
		table:         table,
		tserverDialer: tserverDialer,
		compactorDial: compactorDial,
		completionCfg: completionCfg,
		logger:        log.WithComponent("lifecycle"),
	}
}

// UpdateCompactionStatus records a progress update. An unknown id is a
// silent no-op: the compactor may be reporting progress on a job the
// coordinator already cancelled or reassigned, and failing the call
// back would only make the compactor retry pointlessly.
func (h *Handlers) UpdateCompactionStatus(ctx context.Context, id string, state compaction.CompactionState, message string, ts time.Time) error {
	rc := h.table.Get(id)
	if rc == nil {
		metrics.UnknownCompactionIDTotal.WithLabelValues("UpdateCompactionStatus").Inc()
		h.logger.Debug().Str("external_compaction_id", id).Msg("status update for unknown compaction id, ignoring")
		return nil
	}
	rc.AddUpdate(state, message, ts)
	return nil
}

// GetCompactionStatus returns the recorded update log for id. An unknown
// id is a typed error: a caller polling status needs to know to stop.
func (h *Handlers) GetCompactionStatus(ctx context.Context, id string) ([]compaction.StatusUpdate, error) {
	rc := h.table.Get(id)
	if rc == nil {
		metrics.UnknownCompactionIDTotal.WithLabelValues("GetCompactionStatus").Inc()
		return nil, compaction.ErrUnknownCompactionID
	}
	return rc.Updates(), nil
}

// IsCompactionCompleted reports whether id has recorded final stats. An
// unknown id is a typed error for the same reason as GetCompactionStatus.
// A completed entry is atomically removed from the RunningTable as part
// of this call: this is how an orphaned entry left behind by an
// exhausted CompactionCompleted retry drains once the tablet server
// reconnects and polls status itself.
func (h *Handlers) IsCompactionCompleted(ctx context.Context, id string) (bool, compaction.Stats, error) {
	rc := h.table.Get(id)
	if rc == nil {
		metrics.UnknownCompactionIDTotal.WithLabelValues("IsCompactionCompleted").Inc()
		return false, compaction.Stats{}, compaction.ErrUnknownCompactionID
	}
	stats := rc.Stats()
	if stats == nil {
		return false, compaction.Stats{}, nil
	}
	h.table.RemoveIf(id, rc)
	metrics.RunningCompactionsTotal.Set(float64(h.table.Len()))
	return true, *stats, nil
}

// CompactionCompleted records final stats and makes a bounded-retry
// attempt to tell the originating tablet server the job is done. The
// RunningTable entry is only removed once that notification succeeds:
// if retries are exhausted the entry is left in place (with its stats
// already set) so the tablet server can still recover the result later
// through IsCompactionCompleted instead of the coordinator silently
// forgetting it.
func (h *Handlers) CompactionCompleted(ctx context.Context, id string, stats compaction.Stats) error {
	rc := h.table.Get(id)
	if rc == nil {
		metrics.UnknownCompactionIDTotal.WithLabelValues("CompactionCompleted").Inc()
		return compaction.ErrUnknownCompactionID
	}
	rc.SetStats(stats)

	err := retry.Do(ctx, h.completionCfg, func() error {
		client, dialErr := h.tserverDialer.Dial(ctx, rc.TServer)
		if dialErr != nil {
			return dialErr
		}
		defer client.Close()
		return client.CompactionJobFinished(ctx, id, stats)
	})
	if err != nil {
		metrics.CompletionRetryExhaustedTotal.Inc()
		h.logger.Warn().
			Str("external_compaction_id", id).
			Str("tserver", rc.TServer.String()).
			Err(err).
			Msg("exhausted retries notifying tablet server of completion, leaving the entry for the tablet server to reclaim")
		return nil
	}

	h.table.RemoveIf(id, rc)
	metrics.RunningCompactionsTotal.Set(float64(h.table.Len()))
	return nil
}

// CancelCompaction marks id cancelling and makes a best-effort attempt
// to tell the compactor holding it to stop. An unknown id is a silent
// no-op: cancelling a job that already finished or was never reserved
// is not an error from the caller's point of view.
func (h *Handlers) CancelCompaction(ctx context.Context, id string) error {
	rc := h.table.Get(id)
	if rc == nil {
		metrics.UnknownCompactionIDTotal.WithLabelValues("CancelCompaction").Inc()
		return nil
	}
	rc.SetCancelling()

	client, err := h.compactorDial.Dial(ctx, rc.CompactorAddress)
	if err != nil {
		h.logger.Warn().Str("external_compaction_id", id).Err(err).Msg("failed to dial compactor for cancel, leaving it to learn on its next status update")
		return nil
	}
	defer client.Close()

	if err := client.Cancel(ctx, id); err != nil {
		h.logger.Warn().Str("external_compaction_id", id).Err(err).Msg("compactor cancel rpc failed, leaving it to learn on its next status update")
	}
	return nil
}
