package membership_test

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/compactord/pkg/compaction"
	"github.com/cuemby/compactord/pkg/compactorclient"
	"github.com/cuemby/compactord/pkg/jobindex"
	"github.com/cuemby/compactord/pkg/lifecycle"
	"github.com/cuemby/compactord/pkg/membership"
	"github.com/cuemby/compactord/pkg/retry"
	"github.com/cuemby/compactord/pkg/running"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompactorClient struct {
	cancelled []string
}

func (c *fakeCompactorClient) Cancel(ctx context.Context, id string) error {
	c.cancelled = append(c.cancelled, id)
	return nil
}

func (c *fakeCompactorClient) Close() error { return nil }

type fakeCompactorDialer struct {
	client *fakeCompactorClient
}

func (d *fakeCompactorDialer) Dial(ctx context.Context, addr string) (compactorclient.Client, error) {
	return d.client, nil
}

func ts(host string) compaction.TabletServerID {
	return compaction.TabletServerID{Host: host, Port: 9000, Session: "s"}
}

func TestReactorPurgesIndexAndCancelsRunningOnRemoval(t *testing.T) {
	idx := jobindex.New()
	idx.Add(ts("gone"), "Q", 10)
	idx.Add(ts("stays"), "Q", 5)

	table := running.New()
	rc := compaction.NewRunningCompaction(compaction.Job{ExternalCompactionID: "j1"}, "c1:9000", ts("gone"))
	table.Insert("j1", rc)

	compactor := &fakeCompactorClient{}
	handlers := lifecycle.New(table, nil, &fakeCompactorDialer{client: compactor}, retry.Config{})
	reactor := membership.New(idx, table, handlers)

	events := make(chan membership.Event, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go reactor.Run(ctx, events)

	events <- membership.Event{TServer: ts("gone"), Deleted: true}
	close(events)

	require.Eventually(t, func() bool {
		return len(compactor.cancelled) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "j1", compactor.cancelled[0])
	assert.Equal(t, compaction.PhaseCancelling, rc.Phase())

	snapshot := idx.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, ts("stays"), snapshot[0].TServer)
}

func TestReactorIgnoresAddedEvents(t *testing.T) {
	idx := jobindex.New()
	table := running.New()
	handlers := lifecycle.New(table, nil, &fakeCompactorDialer{client: &fakeCompactorClient{}}, retry.Config{})
	reactor := membership.New(idx, table, handlers)

	events := make(chan membership.Event, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go reactor.Run(ctx, events)

	events <- membership.Event{TServer: ts("joined")}
	close(events)

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, idx.Snapshot())
}
