package poller_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/compactord/pkg/compaction"
	"github.com/cuemby/compactord/pkg/jobindex"
	"github.com/cuemby/compactord/pkg/poller"
	"github.com/cuemby/compactord/pkg/rpcapi"
	"github.com/cuemby/compactord/pkg/tserverclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	servers []compaction.TabletServerID
}

func (f *fakeLister) Live() []compaction.TabletServerID { return f.servers }

type fakeClient struct {
	summaries []rpcapi.QueueSummary
	err       error
	calls     *int32
	mu        *sync.Mutex
}

func (c *fakeClient) GetCompactionQueueInfo(ctx context.Context) ([]rpcapi.QueueSummary, error) {
	c.mu.Lock()
	*c.calls++
	c.mu.Unlock()
	return c.summaries, c.err
}

func (c *fakeClient) ReserveCompactionJob(ctx context.Context, queue string, priority int64, compactorAddress string) (compaction.Job, error) {
	return compaction.Job{}, nil
}

func (c *fakeClient) CompactionJobFinished(ctx context.Context, id string, stats compaction.Stats) error {
	return nil
}

func (c *fakeClient) Close() error { return nil }

type fakeDialer struct {
	mu      sync.Mutex
	byHost  map[string]*fakeClient
	dialErr map[string]error
}

func (d *fakeDialer) Dial(ctx context.Context, tsi compaction.TabletServerID) (tserverclient.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err, ok := d.dialErr[tsi.Host]; ok {
		return nil, err
	}
	return d.byHost[tsi.Host], nil
}

func ts(host string) compaction.TabletServerID {
	return compaction.TabletServerID{Host: host, Port: 9000, Session: "s"}
}

func TestPollOnceAddsAdvertisedWorkToIndex(t *testing.T) {
	idx := jobindex.New()
	var calls int32
	var mu sync.Mutex
	lister := &fakeLister{servers: []compaction.TabletServerID{ts("t1"), ts("t2")}}
	dialer := &fakeDialer{byHost: map[string]*fakeClient{
		"t1": {summaries: []rpcapi.QueueSummary{{Queue: "Q", Priority: 5}}, calls: &calls, mu: &mu},
		"t2": {summaries: []rpcapi.QueueSummary{{Queue: "Q", Priority: 9}}, calls: &calls, mu: &mu},
	}, dialErr: map[string]error{}}

	p := poller.New(idx, lister, dialer, time.Hour, 2)
	p.Start()
	defer p.Stop()

	require.Eventually(t, func() bool {
		priority, _, ok := idx.PickHighest("Q")
		return ok && priority == 9
	}, time.Second, 5*time.Millisecond)
}

func TestPollOneFailureIsLoggedAndSkipped(t *testing.T) {
	idx := jobindex.New()
	var calls int32
	var mu sync.Mutex
	lister := &fakeLister{servers: []compaction.TabletServerID{ts("down")}}
	dialer := &fakeDialer{
		byHost:  map[string]*fakeClient{"down": {err: errors.New("rpc failed"), calls: &calls, mu: &mu}},
		dialErr: map[string]error{},
	}

	p := poller.New(idx, lister, dialer, time.Hour, 1)
	p.Start()
	defer p.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, idx.Snapshot())
}
