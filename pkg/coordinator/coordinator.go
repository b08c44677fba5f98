// Package coordinator wires the JobIndex, RunningTable, Dispatcher,
// LifecycleHandlers, MembershipReactor, and QueuePoller into the single
// gRPC-served process a tablet server advertises work to and a
// compactor pulls work from.
package coordinator

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/cuemby/compactord/pkg/compaction"
	"github.com/cuemby/compactord/pkg/compactorclient"
	"github.com/cuemby/compactord/pkg/dispatch"
	"github.com/cuemby/compactord/pkg/jobindex"
	"github.com/cuemby/compactord/pkg/lifecycle"
	"github.com/cuemby/compactord/pkg/log"
	"github.com/cuemby/compactord/pkg/membership"
	"github.com/cuemby/compactord/pkg/metrics"
	"github.com/cuemby/compactord/pkg/poller"
	"github.com/cuemby/compactord/pkg/retry"
	"github.com/cuemby/compactord/pkg/rpcapi"
	"github.com/cuemby/compactord/pkg/running"
	"github.com/cuemby/compactord/pkg/tserverclient"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
)

// Membership is the coordinator's view of which tablet servers are
// live, and a stream of add/remove deltas. Its real implementation (a
// ZooKeeper watch, a gossip membership list, or similar) lives outside
// this module; it is an external collaborator.
type Membership interface {
	Live() []compaction.TabletServerID
	Events() <-chan membership.Event
}

// Locker is the distributed leader-election lock an operator deploys
// one-coordinator-active-at-a-time with. Its implementation is an
// external collaborator; Coordinator only needs to hold it while
// serving.
type Locker interface {
	Lock(ctx context.Context) error
	Unlock() error
}

// Config bounds the coordinator's background loops.
type Config struct {
	PollInterval    time.Duration
	PollFanout      uint
	CompletionRetry retry.Config
	ListenAddr      string
}

// DefaultConfig returns reasonable defaults modeled on the retry budget
// used for tablet-server completion notification.
func DefaultConfig() Config {
	return Config{
		PollInterval: 5 * time.Second,
		PollFanout:   16,
		CompletionRetry: retry.Config{
			MinBackoff: 100 * time.Millisecond,
			MaxBackoff: 10 * time.Second,
			MaxRetries: 5,
		},
		ListenAddr: ":9998",
	}
}

// Coordinator is the top-level assembly implementing rpcapi.CoordinatorServer.
type Coordinator struct {
	cfg Config

	index    *jobindex.Index
	table    *running.Table
	dispatch *dispatch.Dispatcher
	handlers *lifecycle.Handlers
	poller   *poller.QueuePoller
	reactor  *membership.Reactor

	membership Membership
	locker     Locker

	grpcServer *grpc.Server
	logger     zerolog.Logger
}

// New assembles a Coordinator. tserverDialer and compactorDialer are
// the coordinator's outbound clients; members is the cluster's
// membership view; locker may be nil if the deployment runs a single
// coordinator without contention.
func New(cfg Config, tserverDialer tserverclient.Dialer, compactorDialer compactorclient.Dialer, members Membership, locker Locker) *Coordinator {
	index := jobindex.New()
	table := running.New()
	handlers := lifecycle.New(table, tserverDialer, compactorDialer, cfg.CompletionRetry)

	return &Coordinator{
		cfg:        cfg,
		index:      index,
		table:      table,
		dispatch:   dispatch.New(index, table, tserverDialer),
		handlers:   handlers,
		poller:     poller.New(index, members, tserverDialer, cfg.PollInterval, cfg.PollFanout),
		reactor:    membership.New(index, table, handlers),
		membership: members,
		locker:     locker,
		logger:     log.WithComponent("coordinator"),
	}
}

// Start acquires the leader lock (if one is configured), starts the
// QueuePoller and MembershipReactor, and serves gRPC on cfg.ListenAddr.
// It blocks until the server stops.
func (c *Coordinator) Start(ctx context.Context) error {
	if c.locker != nil {
		if err := c.locker.Lock(ctx); err != nil {
			return fmt.Errorf("acquire coordinator lock: %w", err)
		}
	}

	c.poller.Start()
	metrics.RegisterComponent("poller", true, "")
	go c.reactor.Run(ctx, c.membership.Events())
	metrics.RegisterComponent("membership", true, "")

	lis, err := net.Listen("tcp", c.cfg.ListenAddr)
	if err != nil {
		metrics.RegisterComponent("rpc_server", false, err.Error())
		return fmt.Errorf("listen on %s: %w", c.cfg.ListenAddr, err)
	}

	c.grpcServer = grpc.NewServer(grpc.UnaryInterceptor(rpcapi.LoggingInterceptor(c.logger)))
	rpcapi.RegisterCoordinatorServer(c.grpcServer, c)
	metrics.RegisterComponent("rpc_server", true, "")
	metrics.RegisterComponent("dispatcher", true, "")

	c.logger.Info().Str("addr", c.cfg.ListenAddr).Msg("coordinator serving")
	return c.grpcServer.Serve(lis)
}

// Stop gracefully stops the gRPC server, the QueuePoller, and releases
// the leader lock.
func (c *Coordinator) Stop() {
	if c.grpcServer != nil {
		c.grpcServer.GracefulStop()
	}
	metrics.UpdateComponent("rpc_server", false, "stopped")
	c.poller.Stop()
	metrics.UpdateComponent("poller", false, "stopped")
	metrics.UpdateComponent("membership", false, "stopped")
	metrics.UpdateComponent("dispatcher", false, "stopped")
	if c.locker != nil {
		if err := c.locker.Unlock(); err != nil {
			c.logger.Warn().Err(err).Msg("failed to release coordinator lock")
		}
	}
}

// GetCompactionJob implements rpcapi.CoordinatorServer.
func (c *Coordinator) GetCompactionJob(ctx context.Context, req *rpcapi.GetCompactionJobRequest) (*rpcapi.GetCompactionJobResponse, error) {
	job, err := c.dispatch.GetCompactionJob(ctx, req.Queue, req.CompactorAddress)
	if err != nil {
		return nil, err
	}
	return &rpcapi.GetCompactionJobResponse{Job: job}, nil
}

// UpdateCompactionStatus implements rpcapi.CoordinatorServer.
func (c *Coordinator) UpdateCompactionStatus(ctx context.Context, req *rpcapi.UpdateCompactionStatusRequest) (*rpcapi.UpdateCompactionStatusResponse, error) {
	ts := time.Unix(0, req.TimestampUnixNano)
	if err := c.handlers.UpdateCompactionStatus(ctx, req.ExternalCompactionID, req.State, req.Message, ts); err != nil {
		return nil, err
	}
	return &rpcapi.UpdateCompactionStatusResponse{}, nil
}

// CompactionCompleted implements rpcapi.CoordinatorServer.
func (c *Coordinator) CompactionCompleted(ctx context.Context, req *rpcapi.CompactionCompletedRequest) (*rpcapi.CompactionCompletedResponse, error) {
	if err := c.handlers.CompactionCompleted(ctx, req.ExternalCompactionID, req.Stats); err != nil {
		return nil, err
	}
	return &rpcapi.CompactionCompletedResponse{}, nil
}

// CancelCompaction implements rpcapi.CoordinatorServer.
func (c *Coordinator) CancelCompaction(ctx context.Context, req *rpcapi.CancelCompactionRequest) (*rpcapi.CancelCompactionResponse, error) {
	if err := c.handlers.CancelCompaction(ctx, req.ExternalCompactionID); err != nil {
		return nil, err
	}
	return &rpcapi.CancelCompactionResponse{}, nil
}

// GetCompactionStatus implements rpcapi.CoordinatorServer.
func (c *Coordinator) GetCompactionStatus(ctx context.Context, req *rpcapi.GetCompactionStatusRequest) (*rpcapi.GetCompactionStatusResponse, error) {
	updates, err := c.handlers.GetCompactionStatus(ctx, req.ExternalCompactionID)
	if err != nil {
		return nil, err
	}
	return &rpcapi.GetCompactionStatusResponse{Updates: updates}, nil
}

// IsCompactionCompleted implements rpcapi.CoordinatorServer.
func (c *Coordinator) IsCompactionCompleted(ctx context.Context, req *rpcapi.IsCompactionCompletedRequest) (*rpcapi.IsCompactionCompletedResponse, error) {
	completed, stats, err := c.handlers.IsCompactionCompleted(ctx, req.ExternalCompactionID)
	if err != nil {
		return nil, err
	}
	return &rpcapi.IsCompactionCompletedResponse{Completed: completed, Stats: stats}, nil
}
