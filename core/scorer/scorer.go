// Package scorer compares two meshes and reports a similarity score, higher
// meaning more similar. The default implementation delegates to external
// executables; alternatives plug in behind the Scorer interface.
package scorer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	meshErrors "github.com/adalundhe/meshsim/core/errors"
	"github.com/adalundhe/meshsim/core/mesh"
)

// Algorithm selects the search structure a scorer uses.
type Algorithm string

const (
	KDTree Algorithm = "kdtree"
	Octree Algorithm = "octree"
)

// DefaultAlgorithm is used when a request names none.
const DefaultAlgorithm = KDTree

var knownAlgorithms = map[Algorithm]bool{
	KDTree: true,
	Octree: true,
}

// Algorithms returns the supported algorithms, sorted.
func Algorithms() []Algorithm {
	out := make([]Algorithm, 0, len(knownAlgorithms))
	for a := range knownAlgorithms {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Valid reports whether a is a supported algorithm.
func (a Algorithm) Valid() bool {
	return knownAlgorithms[a]
}

func (a Algorithm) String() string {
	return string(a)
}

// ParseAlgorithm maps a name to an Algorithm. Empty means DefaultAlgorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultAlgorithm, nil
	}
	a := Algorithm(s)
	if !a.Valid() {
		return "", meshErrors.InvalidInput("parse algorithm", fmt.Errorf("unknown algorithm %q", s))
	}
	return a, nil
}

// Scorer compares two geometries.
//
// Failures for a single pair are reported as Comparison errors; callers treat
// them as per-pair and keep going.
type Scorer interface {
	Score(ctx context.Context, a, b *mesh.Geometry, alg Algorithm) (float64, error)
}

// ScorerFunc adapts a function to the Scorer interface.
type ScorerFunc func(ctx context.Context, a, b *mesh.Geometry, alg Algorithm) (float64, error)

// Score calls f(ctx, a, b, alg).
func (f ScorerFunc) Score(ctx context.Context, a, b *mesh.Geometry, alg Algorithm) (float64, error) {
	return f(ctx, a, b, alg)
}
