package scorer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	meshErrors "github.com/adalundhe/meshsim/core/errors"
	"github.com/adalundhe/meshsim/core/logging"
	"github.com/adalundhe/meshsim/core/mesh"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scorers need a POSIX shell")
	}
	p := filepath.Join(t.TempDir(), "scorer.sh")
	require.NoError(t, os.WriteFile(p, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return p
}

func triangle() *mesh.Geometry {
	return mesh.NewGeometry(
		[]mesh.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		[]mesh.Face{{0, 1, 2}},
		nil,
	)
}

func newScorer(t *testing.T, script string, timeout time.Duration) (*ExecScorer, string) {
	t.Helper()
	tmp := t.TempDir()
	s := NewExecScorer(ExecConfig{
		Executables: map[Algorithm]string{KDTree: script, Octree: script},
		Timeout:     timeout,
		WaitDelay:   500 * time.Millisecond,
		TempDir:     tmp,
	}, logging.Discard())
	return s, tmp
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch files left behind")
}

func TestExecScorer_ParsesScore(t *testing.T) {
	script := writeScript(t, `echo "  0.75  "`)
	s, tmp := newScorer(t, script, time.Second)

	score, err := s.Score(context.Background(), triangle(), triangle(), KDTree)
	require.NoError(t, err)
	assert.Equal(t, 0.75, score)
	assertEmptyDir(t, tmp)
}

func TestExecScorer_PassesAlgorithm(t *testing.T) {
	script := writeScript(t, `if [ "$3" = "octree" ]; then echo 0.5; else echo 0.1; fi`)
	s, _ := newScorer(t, script, time.Second)

	score, err := s.Score(context.Background(), triangle(), triangle(), Octree)
	require.NoError(t, err)
	assert.Equal(t, 0.5, score)

	score, err = s.Score(context.Background(), triangle(), triangle(), KDTree)
	require.NoError(t, err)
	assert.Equal(t, 0.1, score)
}

func TestExecScorer_SerializesInMemoryGeometry(t *testing.T) {
	record := filepath.Join(t.TempDir(), "record")
	script := writeScript(t, `head -n 2 "$1" > "`+record+`"; grep -c . "$2" >> "`+record+`"; echo 1`)
	s, tmp := newScorer(t, script, time.Second)

	_, err := s.Score(context.Background(), triangle(), triangle(), KDTree)
	require.NoError(t, err)

	data, err := os.ReadFile(record)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "OFF", lines[0])
	assert.Equal(t, "3 1 0", lines[1])
	assert.Equal(t, "6", lines[2])
	assertEmptyDir(t, tmp)
}

func TestExecScorer_UsesSourcePath(t *testing.T) {
	asset := filepath.Join(t.TempDir(), "a.off")
	require.NoError(t, os.WriteFile(asset, []byte("OFF\n3 1 0\n0 0 0\n1 0 0\n0 1 0\n3 0 1 2\n"), 0o644))
	record := filepath.Join(t.TempDir(), "record")
	script := writeScript(t, `echo "$1" > "`+record+`"; echo 1`)
	s, tmp := newScorer(t, script, time.Second)

	g := triangle()
	g.SourcePath = asset
	_, err := s.Score(context.Background(), g, triangle(), KDTree)
	require.NoError(t, err)

	data, err := os.ReadFile(record)
	require.NoError(t, err)
	assert.Equal(t, asset, strings.TrimSpace(string(data)))
	assertEmptyDir(t, tmp)
}

func TestExecScorer_StaleSourcePathIsSerialized(t *testing.T) {
	record := filepath.Join(t.TempDir(), "record")
	script := writeScript(t, `echo "$1" > "`+record+`"; echo 1`)
	s, _ := newScorer(t, script, time.Second)

	g := triangle()
	g.SourcePath = filepath.Join(t.TempDir(), "gone.off")
	_, err := s.Score(context.Background(), g, triangle(), KDTree)
	require.NoError(t, err)

	data, err := os.ReadFile(record)
	require.NoError(t, err)
	assert.NotEqual(t, g.SourcePath, strings.TrimSpace(string(data)))
}

func TestExecScorer_NonZeroExit(t *testing.T) {
	script := writeScript(t, `echo "boom" >&2; exit 3`)
	s, tmp := newScorer(t, script, time.Second)

	_, err := s.Score(context.Background(), triangle(), triangle(), KDTree)
	require.Error(t, err)
	assert.ErrorIs(t, err, meshErrors.ErrComparison)
	assert.Contains(t, err.Error(), "boom")
	assertEmptyDir(t, tmp)
}

func TestExecScorer_UnparseableOutput(t *testing.T) {
	for _, out := range []string{"abc", "0.1 0.2", "", "nan"} {
		script := writeScript(t, `printf '%s' "`+out+`"`)
		s, _ := newScorer(t, script, time.Second)

		_, err := s.Score(context.Background(), triangle(), triangle(), KDTree)
		assert.ErrorIs(t, err, meshErrors.ErrComparison, out)
		assert.ErrorIs(t, err, ErrBadOutput, out)
	}
}

func TestExecScorer_Timeout(t *testing.T) {
	script := writeScript(t, `sleep 10; echo 1`)
	s, tmp := newScorer(t, script, 200*time.Millisecond)

	start := time.Now()
	_, err := s.Score(context.Background(), triangle(), triangle(), KDTree)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, meshErrors.ErrComparison)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, elapsed, 5*time.Second)
	assertEmptyDir(t, tmp)
}

func TestExecScorer_ConcurrentCallsUseDistinctFiles(t *testing.T) {
	script := writeScript(t, `if [ "$1" = "$2" ]; then exit 1; fi; echo 1`)
	s, tmp := newScorer(t, script, 2*time.Second)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Score(context.Background(), triangle(), triangle(), KDTree)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assertEmptyDir(t, tmp)
}

func TestExecScorer_NoExecutable(t *testing.T) {
	s := NewExecScorer(ExecConfig{}, nil)

	_, err := s.Score(context.Background(), triangle(), triangle(), Octree)
	assert.ErrorIs(t, err, meshErrors.ErrComparison)
	assert.ErrorIs(t, err, ErrNoExecutable)
}

func TestExecScorer_SpawnRate(t *testing.T) {
	script := writeScript(t, `echo 1`)
	s := NewExecScorer(ExecConfig{
		Executables: map[Algorithm]string{KDTree: script},
		TempDir:     t.TempDir(),
		SpawnRate:   0.001,
	}, logging.Discard())

	_, err := s.Score(context.Background(), triangle(), triangle(), KDTree)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = s.Score(ctx, triangle(), triangle(), KDTree)
	assert.ErrorIs(t, err, meshErrors.ErrComparison)
}

func TestParseScore(t *testing.T) {
	v, err := ParseScore("  -1.5e-3\n")
	require.NoError(t, err)
	assert.Equal(t, -1.5e-3, v)

	for _, bad := range []string{"", "x", "1 2", "inf", "NaN"} {
		_, err := ParseScore(bad)
		assert.True(t, errors.Is(err, ErrBadOutput), bad)
	}
}

func TestParseAlgorithm(t *testing.T) {
	a, err := ParseAlgorithm("")
	require.NoError(t, err)
	assert.Equal(t, DefaultAlgorithm, a)

	a, err = ParseAlgorithm(" OCTREE ")
	require.NoError(t, err)
	assert.Equal(t, Octree, a)

	_, err = ParseAlgorithm("bvh")
	assert.ErrorIs(t, err, meshErrors.ErrInvalidInput)

	assert.Equal(t, []Algorithm{KDTree, Octree}, Algorithms())
}
