package compactorclient

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/compactord/pkg/rpcapi"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const compactorServiceName = "compactord.Compactor"

// GRPCDialer dials compactors over plain gRPC using the coordinator's
// JSON codec, mirroring tserverclient.GRPCDialer.
type GRPCDialer struct {
	DialTimeout time.Duration
	Transport   func() grpc.DialOption
}

func NewGRPCDialer() *GRPCDialer {
	return &GRPCDialer{
		DialTimeout: 5 * time.Second,
		Transport:   func() grpc.DialOption { return grpc.WithTransportCredentials(insecure.NewCredentials()) },
	}
}

func (d *GRPCDialer) Dial(ctx context.Context, compactorAddress string) (Client, error) {
	opts := append([]grpc.DialOption{d.Transport()}, rpcapi.DialOptions()...)
	conn, err := grpc.NewClient(compactorAddress, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial compactor %s: %w", compactorAddress, err)
	}
	return &grpcClient{conn: conn}, nil
}

type grpcClient struct {
	conn *grpc.ClientConn
}

func (c *grpcClient) Cancel(ctx context.Context, externalCompactionID string) error {
	req := &rpcapi.CompactorCancelRequest{ExternalCompactionID: externalCompactionID}
	resp := new(rpcapi.CompactorCancelResponse)
	return c.conn.Invoke(ctx, "/"+compactorServiceName+"/Cancel", req, resp)
}

func (c *grpcClient) Close() error {
	return c.conn.Close()
}
