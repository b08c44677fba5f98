package rpcapi_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/cuemby/compactord/pkg/compaction"
	"github.com/cuemby/compactord/pkg/rpcapi"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

type fakeCoordinator struct {
	job compaction.Job
}

func (f *fakeCoordinator) GetCompactionJob(ctx context.Context, req *rpcapi.GetCompactionJobRequest) (*rpcapi.GetCompactionJobResponse, error) {
	return &rpcapi.GetCompactionJobResponse{Job: f.job}, nil
}

func (f *fakeCoordinator) UpdateCompactionStatus(ctx context.Context, req *rpcapi.UpdateCompactionStatusRequest) (*rpcapi.UpdateCompactionStatusResponse, error) {
	if req.ExternalCompactionID != f.job.ExternalCompactionID {
		return nil, compaction.ErrUnknownCompactionID
	}
	return &rpcapi.UpdateCompactionStatusResponse{}, nil
}

func (f *fakeCoordinator) CompactionCompleted(ctx context.Context, req *rpcapi.CompactionCompletedRequest) (*rpcapi.CompactionCompletedResponse, error) {
	return &rpcapi.CompactionCompletedResponse{}, nil
}

func (f *fakeCoordinator) CancelCompaction(ctx context.Context, req *rpcapi.CancelCompactionRequest) (*rpcapi.CancelCompactionResponse, error) {
	return &rpcapi.CancelCompactionResponse{}, nil
}

func (f *fakeCoordinator) GetCompactionStatus(ctx context.Context, req *rpcapi.GetCompactionStatusRequest) (*rpcapi.GetCompactionStatusResponse, error) {
	return &rpcapi.GetCompactionStatusResponse{}, nil
}

func (f *fakeCoordinator) IsCompactionCompleted(ctx context.Context, req *rpcapi.IsCompactionCompletedRequest) (*rpcapi.IsCompactionCompletedResponse, error) {
	return &rpcapi.IsCompactionCompletedResponse{}, nil
}

func startServer(t *testing.T, srv rpcapi.CoordinatorServer) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := grpc.NewServer()
	rpcapi.RegisterCoordinatorServer(s, srv)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)
	return lis.Addr().String()
}

func TestGetCompactionJobOverJSONCodec(t *testing.T) {
	want := compaction.Job{ExternalCompactionID: "j1", Queue: "Q", Priority: 10}
	addr := startServer(t, &fakeCoordinator{job: want})

	opts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, rpcapi.DialOptions()...)
	conn, err := grpc.NewClient(addr, opts...)
	require.NoError(t, err)
	defer conn.Close()

	client := rpcapi.NewCoordinatorClient(conn)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.GetCompactionJob(ctx, &rpcapi.GetCompactionJobRequest{Queue: "Q", CompactorAddress: "c1:9000"})
	require.NoError(t, err)
	require.Equal(t, want, resp.Job)
}

func TestUnknownCompactionIDBecomesNotFoundStatus(t *testing.T) {
	addr := startServer(t, &fakeCoordinator{job: compaction.Job{ExternalCompactionID: "j1"}})

	opts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, rpcapi.DialOptions()...)
	conn, err := grpc.NewClient(addr, opts...)
	require.NoError(t, err)
	defer conn.Close()

	client := rpcapi.NewCoordinatorClient(conn)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = client.UpdateCompactionStatus(ctx, &rpcapi.UpdateCompactionStatusRequest{ExternalCompactionID: "ghost"})
	require.Error(t, err)
	require.Equal(t, codes.NotFound, status.Code(err))
}
