package scorer

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/adalundhe/meshsim/core/logging"
	"github.com/adalundhe/meshsim/core/mesh"
)

const (
	defaultMemoNumCounters = 1e5
	defaultMemoMaxEntries  = 1e4
	defaultMemoBufferItems = 64
	defaultMemoTTL         = 10 * time.Minute
)

// MemoConfig configures a MemoScorer.
type MemoConfig struct {
	// MaxEntries bounds the number of memoised scores.
	MaxEntries int64

	// TTL is how long a score is reused.
	TTL time.Duration
}

// MemoScorer remembers successful scores per (algorithm, pathA, pathB).
//
// Only geometries backed by an on-disk asset are memoised; failures never are.
type MemoScorer struct {
	next   Scorer
	cache  *ristretto.Cache
	ttl    time.Duration
	logger *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// NewMemoScorer wraps next with a score memo.
func NewMemoScorer(next Scorer, config MemoConfig, logger *slog.Logger) (*MemoScorer, error) {
	maxEntries := config.MaxEntries
	if maxEntries <= 0 {
		maxEntries = defaultMemoMaxEntries
	}
	ttl := config.TTL
	if ttl <= 0 {
		ttl = defaultMemoTTL
	}
	numCounters := int64(defaultMemoNumCounters)
	if maxEntries*10 > numCounters {
		numCounters = maxEntries * 10
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: numCounters,
		MaxCost:     maxEntries,
		BufferItems: defaultMemoBufferItems,
	})
	if err != nil {
		return nil, err
	}

	return &MemoScorer{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: logging.OrDefault(logger),
	}, nil
}

// Score implements Scorer.
func (m *MemoScorer) Score(ctx context.Context, a, b *mesh.Geometry, alg Algorithm) (float64, error) {
	key, ok := memoKey(a, b, alg)
	if !ok {
		return m.next.Score(ctx, a, b, alg)
	}

	if v, found := m.cache.Get(key); found {
		if score, ok := v.(float64); ok {
			m.hits.Add(1)
			return score, nil
		}
	}
	m.misses.Add(1)

	score, err := m.next.Score(ctx, a, b, alg)
	if err != nil {
		return 0, err
	}
	m.cache.SetWithTTL(key, score, 1, m.ttl)
	m.cache.Wait()
	return score, nil
}

// Stats returns memo hit and miss counts.
func (m *MemoScorer) Stats() (hits, misses int64) {
	return m.hits.Load(), m.misses.Load()
}

// Close releases the memo.
func (m *MemoScorer) Close() {
	m.cache.Close()
}

func memoKey(a, b *mesh.Geometry, alg Algorithm) (string, bool) {
	if a == nil || b == nil || a.SourcePath == "" || b.SourcePath == "" {
		return "", false
	}
	return string(alg) + "\x00" + a.SourcePath + "\x00" + b.SourcePath, true
}
