package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/meshsim/core/logging"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type countingLister struct {
	calls  atomic.Int64
	models []ModelDescriptor
	err    error
	block  chan struct{}
}

func (l *countingLister) Scan(ctx context.Context) ([]ModelDescriptor, error) {
	l.calls.Add(1)
	if l.block != nil {
		<-l.block
	}
	if l.err != nil {
		return nil, l.err
	}
	return l.models, nil
}

func newTestListing(l Lister, clock *fakeClock) *ListingCache {
	return NewListingCache(l, ListingConfig{TTL: 300 * time.Second, Now: clock.Now}, logging.Discard())
}

func TestListingCache_ServesSameSnapshotWithinTTL(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	lister := &countingLister{models: []ModelDescriptor{{ID: "a/train/1.off"}}}
	cache := newTestListing(lister, clock)

	first, err := cache.Get(context.Background())
	require.NoError(t, err)

	clock.Advance(300 * time.Second)
	second, err := cache.Get(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int64(1), lister.calls.Load())
}

func TestListingCache_RescansAfterTTL(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	lister := &countingLister{models: []ModelDescriptor{{ID: "a/train/1.off"}}}
	cache := newTestListing(lister, clock)

	first, err := cache.Get(context.Background())
	require.NoError(t, err)

	clock.Advance(301 * time.Second)
	second, err := cache.Get(context.Background())
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, int64(2), lister.calls.Load())
	assert.Equal(t, int64(2), cache.Scans())
	assert.Equal(t, time.Unix(301, 0), second.CreatedAt)
}

func TestListingCache_HeldSnapshotSurvivesRefresh(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	lister := &countingLister{models: []ModelDescriptor{{ID: "a/train/1.off"}}}
	cache := newTestListing(lister, clock)

	held, err := cache.Get(context.Background())
	require.NoError(t, err)

	lister.models = []ModelDescriptor{{ID: "b/train/2.off"}, {ID: "c/train/3.off"}}
	clock.Advance(time.Hour)
	fresh, err := cache.Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, held.Len(), "held snapshot is never mutated")
	assert.Equal(t, 2, fresh.Len())
}

func TestListingCache_Invalidate(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	lister := &countingLister{}
	cache := newTestListing(lister, clock)

	_, err := cache.Get(context.Background())
	require.NoError(t, err)
	cache.Invalidate()
	_, err = cache.Get(context.Background())
	require.NoError(t, err)
	_, err = cache.Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), lister.calls.Load())
}

func TestListingCache_ScanErrorIsRetried(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	boom := errors.New("disk gone")
	lister := &countingLister{err: boom}
	cache := newTestListing(lister, clock)

	_, err := cache.Get(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, cache.Peek())

	lister.err = nil
	snap, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, snap)
}

func TestListingCache_CallerCancelDoesNotFailSharedScan(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	lister := &countingLister{
		models: []ModelDescriptor{{ID: "a/train/1.off"}},
		block:  make(chan struct{}),
	}
	cache := newTestListing(lister, clock)

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := cache.Get(ctx)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return lister.calls.Load() == 1 }, time.Second, time.Millisecond)

	type result struct {
		snap *Snapshot
		err  error
	}
	second := make(chan result, 1)
	go func() {
		snap, err := cache.Get(context.Background())
		second <- result{snap, err}
	}()

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(lister.block)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, 1, got.snap.Len())
	assert.Equal(t, int64(1), lister.calls.Load())
	assert.Same(t, got.snap, cache.Peek())
}

func TestListingCache_ConcurrentExpiryScansOnce(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	lister := &countingLister{block: make(chan struct{})}
	cache := newTestListing(lister, clock)

	const readers = 8
	var wg sync.WaitGroup
	snaps := make([]*Snapshot, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := cache.Get(context.Background())
			assert.NoError(t, err)
			snaps[i] = s
		}(i)
	}

	require.Eventually(t, func() bool { return lister.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(lister.block)
	wg.Wait()

	assert.Equal(t, int64(1), lister.calls.Load())
	for _, s := range snaps[1:] {
		assert.Same(t, snaps[0], s)
	}
}

func TestNewListingCache_Defaults(t *testing.T) {
	cache := NewListingCache(&countingLister{}, ListingConfig{}, nil)
	assert.Equal(t, DefaultListingTTL, cache.TTL())
}
