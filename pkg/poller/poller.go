// Package poller implements the QueuePoller: the coordinator-side loop
// that periodically asks every live tablet server what work it has
// advertised and folds the answers into the JobIndex.
package poller

import (
	"context"
	"time"

	"github.com/cuemby/compactord/pkg/compaction"
	"github.com/cuemby/compactord/pkg/jobindex"
	"github.com/cuemby/compactord/pkg/log"
	"github.com/cuemby/compactord/pkg/metrics"
	"github.com/cuemby/compactord/pkg/tserverclient"
	"github.com/rs/zerolog"
	"github.com/ygrebnov/workers"
)

// Lister returns the tablet servers currently considered live. The
// coordinator's membership tracking is the real implementation;
// MembershipReactor and QueuePoller share the same view.
type Lister interface {
	Live() []compaction.TabletServerID
}

// QueuePoller fans out GetCompactionQueueInfo to every live tablet
// server once per cycle, refreshing the JobIndex. It never removes
// entries itself; that is MembershipReactor's job on tablet-server loss.
type QueuePoller struct {
	index    *jobindex.Index
	lister   Lister
	dialer   tserverclient.Dialer
	interval time.Duration
	fanout   uint
	logger   zerolog.Logger
	stopCh   chan struct{}
}

// New returns a QueuePoller that refreshes index every interval, using
// at most fanout concurrent RPCs per cycle.
func New(index *jobindex.Index, lister Lister, dialer tserverclient.Dialer, interval time.Duration, fanout uint) *QueuePoller {
	if fanout == 0 {
		fanout = 1
	}
	return &QueuePoller{
		index:    index,
		lister:   lister,
		dialer:   dialer,
		interval: interval,
		fanout:   fanout,
		logger:   log.WithComponent("poller"),
		stopCh:   make(chan struct{}),
	}
}

// Start begins the poll loop in a new goroutine.
func (p *QueuePoller) Start() {
	go p.run()
}

// Stop signals the poll loop to exit after its current cycle.
func (p *QueuePoller) Stop() {
	close(p.stopCh)
}

func (p *QueuePoller) run() {
	p.logger.Info().Dur("interval", p.interval).Msg("queue poller started")
	for {
		cycleStart := time.Now()
		p.pollOnce()
		elapsed := time.Since(cycleStart)

		sleep := p.interval - elapsed
		if sleep < 0 {
			sleep = 0
		}

		select {
		case <-time.After(sleep):
		case <-p.stopCh:
			p.logger.Info().Msg("queue poller stopped")
			return
		}
	}
}

func (p *QueuePoller) pollOnce() {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.PollDuration)
		metrics.PollCyclesTotal.Inc()
	}()

	live := p.lister.Live()
	ctx := context.Background()

	_ = workers.ForEach(ctx, live, p.pollOne, workers.WithFixedPool(p.fanout))
}

func (p *QueuePoller) pollOne(ctx context.Context, tsi compaction.TabletServerID) error {
	client, err := p.dialer.Dial(ctx, tsi)
	if err != nil {
		metrics.PollFailuresTotal.WithLabelValues(tsi.String()).Inc()
		p.logger.Warn().Str("tserver", tsi.String()).Err(err).Msg("dial failed")
		return err
	}
	defer client.Close()

	summaries, err := client.GetCompactionQueueInfo(ctx)
	if err != nil {
		metrics.PollFailuresTotal.WithLabelValues(tsi.String()).Inc()
		p.logger.Warn().Str("tserver", tsi.String()).Err(err).Msg("getCompactionQueueInfo failed")
		return err
	}

	for _, summary := range summaries {
		p.index.Add(tsi, summary.Queue, summary.Priority)
	}
	return nil
}
