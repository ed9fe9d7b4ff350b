package similarity

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/meshsim/core/catalog"
	meshErrors "github.com/adalundhe/meshsim/core/errors"
	"github.com/adalundhe/meshsim/core/geometry"
	"github.com/adalundhe/meshsim/core/logging"
	"github.com/adalundhe/meshsim/core/scorer"
)

const tetraOFF = `OFF
4 4 0
0 0 0
1 0 0
0 1 0
0 0 1
3 0 1 2
3 0 1 3
3 0 2 3
3 1 2 3
`

// Scores the candidate by file name; hangs on slow.off.
const scoreScript = `#!/bin/sh
case "$(basename "$2")" in
  a.off) echo 0.5 ;;
  b.off) echo 0.9 ;;
  c.off) echo 0.9 ;;
  d.off) echo 0.2 ;;
  slow.off) sleep 10; echo 1 ;;
  *) echo "unexpected $2" >&2; exit 1 ;;
esac
`

func TestPipeline_EndToEnd(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scorer needs a POSIX shell")
	}

	root := t.TempDir()
	for _, rel := range []string{
		"chair/train/q.off",
		"chair/train/a.off",
		"chair/train/b.off",
		"chair/train/c.off",
		"chair/train/d.off",
		"sofa/train/slow.off",
	} {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(tetraOFF), 0o644))
	}
	script := filepath.Join(t.TempDir(), "score.sh")
	require.NoError(t, os.WriteFile(script, []byte(scoreScript), 0o755))

	logger := logging.Discard()
	scan, err := catalog.NewScanner(catalog.DefaultScanConfig(root), nil, logger)
	require.NoError(t, err)
	listing := catalog.NewListingCache(scan, catalog.ListingConfig{}, logger)
	geoms := geometry.NewCache(geometry.Config{Root: root}, nil, logger)
	tmp := t.TempDir()
	exec := scorer.NewExecScorer(scorer.ExecConfig{
		Executables: map[scorer.Algorithm]string{scorer.KDTree: script, scorer.Octree: script},
		Timeout:     300 * time.Millisecond,
		WaitDelay:   200 * time.Millisecond,
		TempDir:     tmp,
	}, logger)
	o := NewOrchestrator(listing, geoms, exec, Config{AssetRoot: root, Concurrency: 3}, logger)

	res, err := o.FindSimilar(context.Background(), Request{Query: "chair/train/q.off", K: 3, Algorithm: "octree"})
	require.NoError(t, err)

	assert.Equal(t, []string{"chair/train/b.off", "chair/train/c.off", "chair/train/a.off"}, ids(res.SimilarModels))
	assert.Equal(t, []float64{0.9, 0.9, 0.5}, res.SimilarityScores)
	assert.Equal(t, 5, res.Evaluated)
	assert.Equal(t, 1, res.Failed, "the hanging scorer is excluded")
	assert.Equal(t, 6, geoms.Len())

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = o.FindSimilar(context.Background(), Request{Query: "chair/train/missing.off"})
	assert.ErrorIs(t, err, meshErrors.ErrNotFound)
}
