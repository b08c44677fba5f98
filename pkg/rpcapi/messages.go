package rpcapi

import "github.com/cuemby/compactord/pkg/compaction"

// Messages for the coordinator-served surface.

type GetCompactionJobRequest struct {
	Queue            string
	CompactorAddress string
}

type GetCompactionJobResponse struct {
	Job compaction.Job
}

type UpdateCompactionStatusRequest struct {
	ExternalCompactionID string
	State                compaction.CompactionState
	Message              string
	TimestampUnixNano    int64
}

type UpdateCompactionStatusResponse struct{}

type CompactionCompletedRequest struct {
	ExternalCompactionID string
	Stats                compaction.Stats
}

type CompactionCompletedResponse struct{}

type CancelCompactionRequest struct {
	ExternalCompactionID string
}

type CancelCompactionResponse struct{}

type GetCompactionStatusRequest struct {
	ExternalCompactionID string
}

type GetCompactionStatusResponse struct {
	Updates []compaction.StatusUpdate
}

type IsCompactionCompletedRequest struct {
	ExternalCompactionID string
}

type IsCompactionCompletedResponse struct {
	Completed bool
	Stats     compaction.Stats
}

// Messages for the outbound surface: coordinator-as-client calling a
// tablet server or a compactor. The server side
// of these is the external tablet-server/compactor process; this module
// only needs the request/response shapes and a client stub.

type QueueSummary struct {
	Queue    string
	Priority int64
}

type GetCompactionQueueInfoRequest struct{}

type GetCompactionQueueInfoResponse struct {
	Summaries []QueueSummary
}

type ReserveCompactionJobRequest struct {
	Queue            string
	Priority         int64
	CompactorAddress string
}

type ReserveCompactionJobResponse struct {
	Job compaction.Job // Empty() true means "advertised but nothing ready"
}

type CompactionJobFinishedRequest struct {
	ExternalCompactionID string
	Stats                compaction.Stats
}

type CompactionJobFinishedResponse struct{}

type CompactorCancelRequest struct {
	ExternalCompactionID string
}

type CompactorCancelResponse struct{}
