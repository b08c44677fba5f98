package rpcapi

import (
	"context"

	"google.golang.org/grpc"
)

// CoordinatorClient is the hand-written analogue of a generated
// CoordinatorClient: every method is a grpc.ClientConn.Invoke call using
// the JSON codec registered in codec.go instead of protobuf.
type CoordinatorClient struct {
	conn *grpc.ClientConn
}

// NewCoordinatorClient wraps conn. conn should have been dialed with
// grpc.WithDefaultCallOptions(grpc.CallContentSubtype(rpcapi.CodecName)).
func NewCoordinatorClient(conn *grpc.ClientConn) *CoordinatorClient {
	return &CoordinatorClient{conn: conn}
}

func (c *CoordinatorClient) GetCompactionJob(ctx context.Context, req *GetCompactionJobRequest) (*GetCompactionJobResponse, error) {
	resp := new(GetCompactionJobResponse)
	err := c.conn.Invoke(ctx, "/"+coordinatorServiceName+"/GetCompactionJob", req, resp)
	return resp, err
}

func (c *CoordinatorClient) UpdateCompactionStatus(ctx context.Context, req *UpdateCompactionStatusRequest) (*UpdateCompactionStatusResponse, error) {
	resp := new(UpdateCompactionStatusResponse)
	err := c.conn.Invoke(ctx, "/"+coordinatorServiceName+"/UpdateCompactionStatus", req, resp)
	return resp, err
}

func (c *CoordinatorClient) CompactionCompleted(ctx context.Context, req *CompactionCompletedRequest) (*CompactionCompletedResponse, error) {
	resp := new(CompactionCompletedResponse)
	err := c.conn.Invoke(ctx, "/"+coordinatorServiceName+"/CompactionCompleted", req, resp)
	return resp, err
}

func (c *CoordinatorClient) CancelCompaction(ctx context.Context, req *CancelCompactionRequest) (*CancelCompactionResponse, error) {
	resp := new(CancelCompactionResponse)
	err := c.conn.Invoke(ctx, "/"+coordinatorServiceName+"/CancelCompaction", req, resp)
	return resp, err
}

func (c *CoordinatorClient) GetCompactionStatus(ctx context.Context, req *GetCompactionStatusRequest) (*GetCompactionStatusResponse, error) {
	resp := new(GetCompactionStatusResponse)
	err := c.conn.Invoke(ctx, "/"+coordinatorServiceName+"/GetCompactionStatus", req, resp)
	return resp, err
}

func (c *CoordinatorClient) IsCompactionCompleted(ctx context.Context, req *IsCompactionCompletedRequest) (*IsCompactionCompletedResponse, error) {
	resp := new(IsCompactionCompletedResponse)
	err := c.conn.Invoke(ctx, "/"+coordinatorServiceName+"/IsCompactionCompleted", req, resp)
	return resp, err
}

// DialOptions returns the dial options every compactord client (CLI,
// tablet server test harness) should use to talk the JSON wire format.
func DialOptions() []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}
}
