package similarity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/errgroup"

	"github.com/adalundhe/meshsim/core/catalog"
	meshErrors "github.com/adalundhe/meshsim/core/errors"
	"github.com/adalundhe/meshsim/core/logging"
	"github.com/adalundhe/meshsim/core/mesh"
	"github.com/adalundhe/meshsim/core/scorer"
)

// =============================================================================
// Orchestrator
// =============================================================================

// Orchestrator answers similarity, geometry and listing queries over a
// shared listing cache and geometry cache.
type Orchestrator struct {
	listing  Listing
	geometry GeometrySource
	scorer   scorer.Scorer
	config   Config
	logger   *slog.Logger

	results *expirable.LRU[string, *Result]
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(
	listing Listing,
	geometry GeometrySource,
	sc scorer.Scorer,
	config Config,
	logger *slog.Logger,
) *Orchestrator {
	config = config.withDefaults()

	o := &Orchestrator{
		listing:  listing,
		geometry: geometry,
		scorer:   sc,
		config:   config,
		logger:   logging.OrDefault(logger),
	}
	if config.ResultCacheSize > 0 {
		o.results = expirable.NewLRU[string, *Result](config.ResultCacheSize, nil, config.ResultCacheTTL)
	}
	return o
}

// Config returns the effective configuration.
func (o *Orchestrator) Config() Config {
	return o.config
}

// FindSimilar ranks the listing against req.Query.
//
// The listing snapshot is captured once, so a refresh during the call does
// not change the population. The query itself is never a candidate. A
// candidate whose geometry or comparison fails is logged and left out; the
// request fails only when the query cannot be resolved or no candidate was
// scored. Equal scores keep listing order.
func (o *Orchestrator) FindSimilar(ctx context.Context, req Request) (*Result, error) {
	const op = "find similar"

	alg, k, err := o.normalize(req)
	if err != nil {
		return nil, err
	}
	logger := o.logger.With("request_id", uuid.NewString(), "query", req.Query, "algorithm", alg)

	query, err := o.geometry.Get(ctx, req.Query)
	if err != nil {
		return nil, resolveError(ctx, op, req.Query, err)
	}

	snap, err := o.listing.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: listing: %w", op, err)
	}

	key := resultKey(req.Query, alg, k, req.Category, snap)
	if o.results != nil {
		if cached, ok := o.results.Get(key); ok {
			logger.Debug("similarity result cache hit")
			return cached.clone(), nil
		}
	}

	candidates := selectCandidates(snap.Models, req.Query, req.Category)
	start := time.Now()
	slots, err := o.evaluate(ctx, logger, query, candidates, alg)
	if err != nil {
		return nil, err
	}

	ranked, failed := rank(candidates, slots)
	if len(ranked) == 0 {
		return nil, meshErrors.New(meshErrors.KindNoCandidates, op, req.Query,
			fmt.Errorf("%d candidates, %d failed", len(candidates), failed))
	}
	if k > len(ranked) {
		k = len(ranked)
	}
	ranked = ranked[:k]

	result := &Result{
		SourceModel:      req.Query,
		SimilarModels:    make([]catalog.ModelDescriptor, len(ranked)),
		SimilarityScores: make([]float64, len(ranked)),
		Method:           alg.String(),
		Evaluated:        len(candidates),
		Failed:           failed,
	}
	for i, r := range ranked {
		result.SimilarModels[i] = r.Model
		result.SimilarityScores[i] = r.Score
	}

	logger.Info("similarity search complete",
		"candidates", len(candidates),
		"failed", failed,
		"returned", len(ranked),
		"elapsed", time.Since(start),
	)

	if o.results != nil {
		o.results.Add(key, result.clone())
	}
	return result, nil
}

func (o *Orchestrator) normalize(req Request) (scorer.Algorithm, int, error) {
	if req.Query == "" {
		return "", 0, meshErrors.InvalidInput("find similar", fmt.Errorf("source model is required"))
	}
	alg, err := scorer.ParseAlgorithm(req.Algorithm)
	if err != nil {
		return "", 0, err
	}
	k := req.K
	if k <= 0 {
		k = o.config.DefaultTopK
	}
	if k > o.config.MaxTopK {
		k = o.config.MaxTopK
	}
	return alg, k, nil
}

func selectCandidates(models []catalog.ModelDescriptor, query, category string) []catalog.ModelDescriptor {
	out := make([]catalog.ModelDescriptor, 0, len(models))
	for _, m := range models {
		if m.ID == query {
			continue
		}
		if category != "" && m.Category != category {
			continue
		}
		out = append(out, m)
	}
	return out
}

func resultKey(query string, alg scorer.Algorithm, k int, category string, snap *catalog.Snapshot) string {
	return query + "\x00" + alg.String() + "\x00" + strconv.Itoa(k) + "\x00" + category +
		"\x00" + strconv.FormatInt(snap.CreatedAt.UnixNano(), 10)
}

// =============================================================================
// Candidate evaluation
// =============================================================================

// slot holds the outcome for the candidate at the same index.
type slot struct {
	score float64
	err   error
}

// evaluate compares query against every candidate. Outcomes land in the slot
// matching the candidate index, so the ranking does not depend on completion
// order. Only cancellation of ctx is returned.
func (o *Orchestrator) evaluate(
	ctx context.Context,
	logger *slog.Logger,
	query *mesh.Geometry,
	candidates []catalog.ModelDescriptor,
	alg scorer.Algorithm,
) ([]slot, error) {
	slots := make([]slot, len(candidates))

	if o.config.Concurrency <= 1 {
		for i, c := range candidates {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			slots[i] = o.compareOne(ctx, logger, query, c, alg)
		}
		return slots, ctx.Err()
	}

	var g errgroup.Group
	g.SetLimit(o.config.Concurrency)
	for i, c := range candidates {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			slots[i] = o.compareOne(ctx, logger, query, c, alg)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slots, nil
}

func (o *Orchestrator) compareOne(
	ctx context.Context,
	logger *slog.Logger,
	query *mesh.Geometry,
	candidate catalog.ModelDescriptor,
	alg scorer.Algorithm,
) slot {
	geom, err := o.geometry.Get(ctx, candidate.ID)
	if err != nil {
		logger.Warn("candidate skipped", "candidate", candidate.ID, "error", err)
		return slot{err: err}
	}

	score, err := o.scorer.Score(ctx, query, geom, alg)
	if err != nil {
		err = meshErrors.Wrap(meshErrors.KindComparison, "compare", candidate.ID, err)
		logger.Warn("comparison failed", "candidate", candidate.ID, "algorithm", alg, "error", err)
		return slot{err: err}
	}
	return slot{score: score}
}

// rank returns the scored candidates sorted by score descending, keeping
// candidate order among equal scores, and the number that failed.
func rank(candidates []catalog.ModelDescriptor, slots []slot) ([]ScoreResult, int) {
	ranked := make([]ScoreResult, 0, len(candidates))
	failed := 0
	for i, s := range slots {
		if s.err != nil {
			failed++
			continue
		}
		ranked = append(ranked, ScoreResult{Model: candidates[i], Score: s.score})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked, failed
}

// =============================================================================
// Lookups
// =============================================================================

// GetGeometry returns the decoded geometry for id.
func (o *Orchestrator) GetGeometry(ctx context.Context, id string) (*mesh.Geometry, error) {
	return o.geometry.Get(ctx, id)
}

// ListModels returns the current listing snapshot.
func (o *Orchestrator) ListModels(ctx context.Context) (*catalog.Snapshot, error) {
	return o.listing.Get(ctx)
}

// Categories returns the category directories under the asset root.
func (o *Orchestrator) Categories(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return catalog.Categories(o.config.AssetRoot)
}

// Compare resolves two models side by side. When algorithm is non-empty the
// pair is also scored, and a scoring failure is returned as an error.
func (o *Orchestrator) Compare(ctx context.Context, id1, id2, algorithm string) (*Comparison, error) {
	const op = "compare"

	g1, err := o.geometry.Get(ctx, id1)
	if err != nil {
		return nil, resolveError(ctx, op, id1, err)
	}
	g2, err := o.geometry.Get(ctx, id2)
	if err != nil {
		return nil, resolveError(ctx, op, id2, err)
	}

	out := &Comparison{Model1: id1, Model2: id2, Geometry1: g1, Geometry2: g2}
	if algorithm == "" {
		return out, nil
	}

	alg, err := scorer.ParseAlgorithm(algorithm)
	if err != nil {
		return nil, err
	}
	score, err := o.scorer.Score(ctx, g1, g2, alg)
	if err != nil {
		return nil, meshErrors.Wrap(meshErrors.KindComparison, op, id2, err)
	}
	out.Score = &score
	out.Method = alg.String()
	return out, nil
}

// resolveError classifies a failure to load a requested model. Cancellation
// and deadline errors are returned unchanged.
func resolveError(ctx context.Context, op, id string, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return meshErrors.Wrap(meshErrors.KindNotFound, op, id, err)
}
