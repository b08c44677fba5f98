// Package dispatch implements the Dispatcher: the scheduling handshake
// that services a compactor's pull request by draining the
// highest-priority candidate from the JobIndex and reserving a concrete
// job from the owning tablet server.
package dispatch

import (
	"context"

	"github.com/cuemby/compactord/pkg/compaction"
	"github.com/cuemby/compactord/pkg/jobindex"
	"github.com/cuemby/compactord/pkg/log"
	"github.com/cuemby/compactord/pkg/metrics"
	"github.com/cuemby/compactord/pkg/running"
	"github.com/cuemby/compactord/pkg/tserverclient"
	"github.com/rs/zerolog"
)

// Dispatcher services GetCompactionJob calls from compactors.
type Dispatcher struct {
	index   *jobindex.Index
	table   *running.Table
	dialer  tserverclient.Dialer
	logger  zerolog.Logger
}

// New returns a Dispatcher over index and table, dialing tablet servers
// through dialer.
func New(index *jobindex.Index, table *running.Table, dialer tserverclient.Dialer) *Dispatcher {
	return &Dispatcher{
		index:  index,
		table:  table,
		dialer: dialer,
		logger: log.WithComponent("dispatch"),
	}
}

// GetCompactionJob loops picking the highest-priority candidate and
// attempting to reserve a job from it, until a job is reserved or the
// queue is drained. Each iteration removes at least one candidate from
// the index, so the loop always terminates.
func (d *Dispatcher) GetCompactionJob(ctx context.Context, queue, compactorAddress string) (compaction.Job, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.DispatchLatency)

	for {
		priority, tsi, ok := d.index.PickHighest(queue)
		if !ok {
			return compaction.Job{}, nil
		}

		job, err := d.reserve(ctx, tsi, queue, priority, compactorAddress)
		if err != nil {
			d.logger.Warn().
				Str("queue", queue).
				Str("tserver", tsi.String()).
				Err(err).
				Msg("reserveCompactionJob failed, trying next candidate")
			continue
		}
		if job.Empty() {
			d.logger.Debug().
				Str("queue", queue).
				Str("tserver", tsi.String()).
				Msg("tablet server had no job ready, trying next candidate")
			continue
		}

		rc := compaction.NewRunningCompaction(job, compactorAddress, tsi)
		if !d.table.Insert(job.ExternalCompactionID, rc) {
			// A duplicate id from a misbehaving tablet server. Refuse it
			// rather than clobber whatever is already running under
			// that id.
			d.logger.Error().
				Str("external_compaction_id", job.ExternalCompactionID).
				Msg("tablet server returned a duplicate external compaction id, discarding")
			continue
		}

		metrics.JobsDispatchedTotal.WithLabelValues(queue).Inc()
		metrics.RunningCompactionsTotal.Set(float64(d.table.Len()))
		return job, nil
	}
}

func (d *Dispatcher) reserve(ctx context.Context, tsi compaction.TabletServerID, queue string, priority int64, compactorAddress string) (compaction.Job, error) {
	client, err := d.dialer.Dial(ctx, tsi)
	if err != nil {
		return compaction.Job{}, err
	}
	defer client.Close()

	return client.ReserveCompactionJob(ctx, queue, priority, compactorAddress)
}
