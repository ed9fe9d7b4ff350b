// Package similarity ranks cataloged meshes by their similarity to a query
// mesh.
package similarity

import (
	"context"
	"time"

	"github.com/adalundhe/meshsim/core/catalog"
	"github.com/adalundhe/meshsim/core/mesh"
)

// =============================================================================
// Collaborators
// =============================================================================

// Listing supplies the candidate population.
type Listing interface {
	Get(ctx context.Context) (*catalog.Snapshot, error)
}

// GeometrySource resolves identifiers to decoded geometry.
type GeometrySource interface {
	Get(ctx context.Context, id string) (*mesh.Geometry, error)
}

// =============================================================================
// Configuration
// =============================================================================

const (
	DefaultTopK        = 5
	DefaultMaxTopK     = 100
	DefaultConcurrency = 1
)

// Config configures an Orchestrator.
type Config struct {
	// AssetRoot is listed by Categories.
	AssetRoot string

	// DefaultTopK applies when a request asks for k <= 0.
	DefaultTopK int

	// MaxTopK caps k.
	MaxTopK int

	// Concurrency bounds in-flight comparisons per request. 1 runs them
	// sequentially.
	Concurrency int

	// ResultCacheSize enables the result cache when positive.
	ResultCacheSize int

	// ResultCacheTTL bounds result reuse. Zero means entries only leave the
	// cache by eviction or a listing refresh.
	ResultCacheTTL time.Duration
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig() Config {
	return Config{
		DefaultTopK: DefaultTopK,
		MaxTopK:     DefaultMaxTopK,
		Concurrency: DefaultConcurrency,
	}
}

func (c Config) withDefaults() Config {
	if c.DefaultTopK <= 0 {
		c.DefaultTopK = DefaultTopK
	}
	if c.MaxTopK <= 0 {
		c.MaxTopK = DefaultMaxTopK
	}
	if c.DefaultTopK > c.MaxTopK {
		c.DefaultTopK = c.MaxTopK
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	return c
}

// =============================================================================
// Requests and results
// =============================================================================

// Request asks for the k models most similar to Query.
type Request struct {
	Query     string `json:"source_model"`
	K         int    `json:"top_k"`
	Algorithm string `json:"algorithm"`

	// Category restricts candidates to one category. Empty means all.
	Category string `json:"category,omitempty"`
}

// ScoreResult pairs a candidate with its score.
type ScoreResult struct {
	Model catalog.ModelDescriptor
	Score float64
}

// Result is a ranked answer to a Request.
//
// SimilarModels and SimilarityScores are parallel and sorted by score
// descending. Evaluated counts the candidates compared, including those whose
// comparison failed; Failed counts the latter.
type Result struct {
	SourceModel      string                    `json:"source_model"`
	SimilarModels    []catalog.ModelDescriptor `json:"similar_models"`
	SimilarityScores []float64                 `json:"similarity_scores"`
	Method           string                    `json:"method"`
	Evaluated        int                       `json:"evaluated"`
	Failed           int                       `json:"failed"`
}

// Results returns the ranking as ScoreResult pairs.
func (r *Result) Results() []ScoreResult {
	out := make([]ScoreResult, len(r.SimilarModels))
	for i := range r.SimilarModels {
		out[i] = ScoreResult{Model: r.SimilarModels[i], Score: r.SimilarityScores[i]}
	}
	return out
}

func (r *Result) clone() *Result {
	c := *r
	c.SimilarModels = append([]catalog.ModelDescriptor(nil), r.SimilarModels...)
	c.SimilarityScores = append([]float64(nil), r.SimilarityScores...)
	return &c
}

// Comparison is a side-by-side view of two models.
type Comparison struct {
	Model1    string         `json:"model1"`
	Model2    string         `json:"model2"`
	Geometry1 *mesh.Geometry `json:"geometry1"`
	Geometry2 *mesh.Geometry `json:"geometry2"`

	// Score and Method are set only when a score was requested.
	Score  *float64 `json:"score,omitempty"`
	Method string   `json:"method,omitempty"`
}
