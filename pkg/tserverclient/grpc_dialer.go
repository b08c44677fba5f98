package tserverclient

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/compactord/pkg/compaction"
	"github.com/cuemby/compactord/pkg/rpcapi"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const tabletServerServiceName = "compactord.TabletServer"

// GRPCDialer dials tablet servers over plain gRPC using the same JSON
// codec the coordinator serves its own RPCs with (pkg/rpcapi). The
// transport credentials are pluggable so a deployment can swap in mTLS;
// credential management itself is an external collaborator, so
// insecure.NewCredentials is the default here.
type GRPCDialer struct {
	DialTimeout time.Duration
	Transport   func() grpc.DialOption
}

// NewGRPCDialer returns a dialer using insecure transport credentials,
// overridable via the struct fields. DialTimeout is set to 5s, but Dial
// does not apply it: grpc.NewClient connects lazily and no timeout is
// passed to it.
func NewGRPCDialer() *GRPCDialer {
	return &GRPCDialer{
		DialTimeout: 5 * time.Second,
		Transport:   func() grpc.DialOption { return grpc.WithTransportCredentials(insecure.NewCredentials()) },
	}
}

func (d *GRPCDialer) Dial(ctx context.Context, tsi compaction.TabletServerID) (Client, error) {
	addr := fmt.Sprintf("%s:%d", tsi.Host, tsi.Port)
	opts := append([]grpc.DialOption{d.Transport()}, rpcapi.DialOptions()...)

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial tablet server %s: %w", addr, err)
	}
	return &grpcClient{conn: conn}, nil
}

type grpcClient struct {
	conn *grpc.ClientConn
}

func (c *grpcClient) GetCompactionQueueInfo(ctx context.Context) ([]rpcapi.QueueSummary, error) {
	resp := new(rpcapi.GetCompactionQueueInfoResponse)
	if err := c.conn.Invoke(ctx, "/"+tabletServerServiceName+"/GetCompactionQueueInfo", &rpcapi.GetCompactionQueueInfoRequest{}, resp); err != nil {
		return nil, err
	}
	return resp.Summaries, nil
}

func (c *grpcClient) ReserveCompactionJob(ctx context.Context, queue string, priority int64, compactorAddress string) (compaction.Job, error) {
	req := &rpcapi.ReserveCompactionJobRequest{Queue: queue, Priority: priority, CompactorAddress: compactorAddress}
	resp := new(rpcapi.ReserveCompactionJobResponse)
	if err := c.conn.Invoke(ctx, "/"+tabletServerServiceName+"/ReserveCompactionJob", req, resp); err != nil {
		return compaction.Job{}, err
	}
	return resp.Job, nil
}

func (c *grpcClient) CompactionJobFinished(ctx context.Context, id string, stats compaction.Stats) error {
	req := &rpcapi.CompactionJobFinishedRequest{ExternalCompactionID: id, Stats: stats}
	resp := new(rpcapi.CompactionJobFinishedResponse)
	return c.conn.Invoke(ctx, "/"+tabletServerServiceName+"/CompactionJobFinished", req, resp)
}

func (c *grpcClient) Close() error {
	return c.conn.Close()
}
