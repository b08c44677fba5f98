package lifecycle_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cuemby/compactord/pkg/compaction"
	"github.com/cuemby/compactord/pkg/compactorclient"
	"github.com/cuemby/compactord/pkg/lifecycle"
	"github.com/cuemby/compactord/pkg/retry"
	"github.com/cuemby/compactord/pkg/rpcapi"
	"github.com/cuemby/compactord/pkg/running"
	"github.com/cuemby/compactord/pkg/tserverclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTserverClient implements tserverclient.Client.
type fakeTserverClient struct {
	finishedCalls int
	failUntil     int
}

func (f *fakeTserverClient) GetCompactionQueueInfo(ctx context.Context) ([]rpcapi.QueueSummary, error) {
	return nil, nil
}

func (f *fakeTserverClient) CompactionJobFinished(ctx context.Context, id string, stats compaction.Stats) error {
	f.finishedCalls++
	if f.finishedCalls <= f.failUntil {
		return errors.New("transient failure")
	}
	return nil
}

func (f *fakeTserverClient) ReserveCompactionJob(ctx context.Context, queue string, priority int64, compactorAddress string) (compaction.Job, error) {
	return compaction.Job{}, nil
}

func (f *fakeTserverClient) Close() error { return nil }

type fakeTserverDialer struct {
	client *fakeTserverClient
}

func (d *fakeTserverDialer) Dial(ctx context.Context, tsi compaction.TabletServerID) (tserverclient.Client, error) {
	return d.client, nil
}

type fakeCompactorClient struct {
	cancelled []string
	err       error
}

func (c *fakeCompactorClient) Cancel(ctx context.Context, id string) error {
	c.cancelled = append(c.cancelled, id)
	return c.err
}

func (c *fakeCompactorClient) Close() error { return nil }

type fakeCompactorDialer struct {
	client *fakeCompactorClient
	err    error
}

func (d *fakeCompactorDialer) Dial(ctx context.Context, addr string) (compactorclient.Client, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.client, nil
}

func tsi() compaction.TabletServerID {
	return compaction.TabletServerID{Host: "t1", Port: 9000, Session: "s"}
}

func TestUpdateCompactionStatusAppendsUpdate(t *testing.T) {
	table := running.New()
	rc := compaction.NewRunningCompaction(compaction.Job{ExternalCompactionID: "j1"}, "c1:9000", tsi())
	table.Insert("j1", rc)

	h := lifecycle.New(table, nil, nil, retry.Config{})
	err := h.UpdateCompactionStatus(context.Background(), "j1", compaction.StateInProgress, "working", time.Now())
	require.NoError(t, err)

	updates, err := h.GetCompactionStatus(context.Background(), "j1")
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, compaction.StateInProgress, updates[0].State)
}

func TestUpdateCompactionStatusUnknownIdIsSilentNoOp(t *testing.T) {
	h := lifecycle.New(running.New(), nil, nil, retry.Config{})
	err := h.UpdateCompactionStatus(context.Background(), "ghost", compaction.StateInProgress, "", time.Now())
	assert.NoError(t, err)
}

func TestGetCompactionStatusUnknownIdIsTypedError(t *testing.T) {
	h := lifecycle.New(running.New(), nil, nil, retry.Config{})
	_, err := h.GetCompactionStatus(context.Background(), "ghost")
	assert.ErrorIs(t, err, compaction.ErrUnknownCompactionID)
}

func TestIsCompactionCompletedReflectsStats(t *testing.T) {
	table := running.New()
	rc := compaction.NewRunningCompaction(compaction.Job{ExternalCompactionID: "j1"}, "c1:9000", tsi())
	table.Insert("j1", rc)
	h := lifecycle.New(table, nil, nil, retry.Config{})

	done, _, err := h.IsCompactionCompleted(context.Background(), "j1")
	require.NoError(t, err)
	assert.False(t, done)

	rc.SetStats(compaction.Stats{FileSize: 100})
	done, stats, err := h.IsCompactionCompleted(context.Background(), "j1")
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, int64(100), stats.FileSize)

	// A completed read drains the entry: the table no longer holds it.
	assert.Nil(t, table.Get("j1"))
}

func TestCancelCompactionUnknownIdIsSilentNoOp(t *testing.T) {
	h := lifecycle.New(running.New(), nil, &fakeCompactorDialer{}, retry.Config{})
	err := h.CancelCompaction(context.Background(), "ghost")
	assert.NoError(t, err)
}

func TestCancelCompactionNotifiesCompactor(t *testing.T) {
	table := running.New()
	rc := compaction.NewRunningCompaction(compaction.Job{ExternalCompactionID: "j1"}, "c1:9000", tsi())
	table.Insert("j1", rc)
	compactor := &fakeCompactorClient{}
	h := lifecycle.New(table, nil, &fakeCompactorDialer{client: compactor}, retry.Config{})

	err := h.CancelCompaction(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, []string{"j1"}, compactor.cancelled)
	assert.Equal(t, compaction.PhaseCancelling, rc.Phase())
}

func TestCancelCompactionDialFailureIsBestEffort(t *testing.T) {
	table := running.New()
	rc := compaction.NewRunningCompaction(compaction.Job{ExternalCompactionID: "j1"}, "c1:9000", tsi())
	table.Insert("j1", rc)
	h := lifecycle.New(table, nil, &fakeCompactorDialer{err: errors.New("unreachable")}, retry.Config{})

	err := h.CancelCompaction(context.Background(), "j1")
	assert.NoError(t, err)
}

func TestCompactionCompletedUnknownIdIsTypedError(t *testing.T) {
	h := lifecycle.New(running.New(), nil, nil, retry.Config{})
	err := h.CompactionCompleted(context.Background(), "ghost", compaction.Stats{})
	assert.ErrorIs(t, err, compaction.ErrUnknownCompactionID)
}

func TestCompactionCompletedRetriesThenRemoves(t *testing.T) {
	table := running.New()
	rc := compaction.NewRunningCompaction(compaction.Job{ExternalCompactionID: "j1"}, "c1:9000", tsi())
	table.Insert("j1", rc)

	tclient := &fakeTserverClient{failUntil: 2}
	dialer := &fakeTserverDialer{client: tclient}

	cfg := retry.Config{MinBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, MaxRetries: 5}
	h := lifecycle.New(table, dialer, &fakeCompactorDialer{}, cfg)

	err := h.CompactionCompleted(context.Background(), "j1", compaction.Stats{FileSize: 42})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, tclient.finishedCalls, 3)
	assert.Nil(t, table.Get("j1"))
	assert.True(t, rc.Completed())
}

func TestCompactionCompletedLeavesEntryIfRetriesExhausted(t *testing.T) {
	table := running.New()
	rc := compaction.NewRunningCompaction(compaction.Job{ExternalCompactionID: "j1"}, "c1:9000", tsi())
	table.Insert("j1", rc)

	tclient := &fakeTserverClient{failUntil: 100}
	dialer := &fakeTserverDialer{client: tclient}

	cfg := retry.Config{MinBackoff: time.Millisecond, MaxBackoff: time.Millisecond, MaxRetries: 2}
	h := lifecycle.New(table, dialer, &fakeCompactorDialer{}, cfg)

	err := h.CompactionCompleted(context.Background(), "j1", compaction.Stats{FileSize: 7})
	require.NoError(t, err)

	// Retries exhausted: the entry stays in the table, with its stats
	// already recorded, so IsCompactionCompleted can still recover it.
	require.NotNil(t, table.Get("j1"))
	done, stats, err := h.IsCompactionCompleted(context.Background(), "j1")
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, int64(7), stats.FileSize)
	assert.Nil(t, table.Get("j1"))
}
