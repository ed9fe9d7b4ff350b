package scorer

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	meshErrors "github.com/adalundhe/meshsim/core/errors"
	"github.com/adalundhe/meshsim/core/logging"
	"github.com/adalundhe/meshsim/core/mesh"
)

// =============================================================================
// Configuration
// =============================================================================

const (
	// DefaultTimeout bounds one scorer invocation.
	DefaultTimeout = 15 * time.Second

	// DefaultWaitDelay bounds how long output pipes are drained after the
	// scorer is killed.
	DefaultWaitDelay = 2 * time.Second

	stderrLimit = 512
)

var (
	// ErrNoExecutable indicates no scorer executable is configured for an algorithm.
	ErrNoExecutable = errors.New("no scorer executable configured")

	// ErrBadOutput indicates scorer output that is not a single float.
	ErrBadOutput = errors.New("scorer output is not a single float")
)

// ExecConfig configures an ExecScorer.
type ExecConfig struct {
	// Executables maps each algorithm to the scorer program that implements it.
	Executables map[Algorithm]string

	// Timeout bounds each invocation. Default: 15s.
	Timeout time.Duration

	// WaitDelay bounds pipe draining after a kill. Default: 2s.
	WaitDelay time.Duration

	// TempDir is where serialized meshes are written. Empty means os.TempDir.
	TempDir string

	// SpawnRate limits process starts per second. Zero means unlimited.
	SpawnRate float64

	// SpawnBurst is the limiter burst. Default: 1.
	SpawnBurst int
}

// =============================================================================
// ExecScorer
// =============================================================================

// ExecScorer scores a pair by running `scorer pathA pathB algorithm` and
// parsing the single float it prints.
//
// Geometries decoded from files that still exist are passed by path. Others
// are serialized to OFF files in a directory private to the call, which is
// removed on every exit path.
type ExecScorer struct {
	config  ExecConfig
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewExecScorer creates an ExecScorer.
func NewExecScorer(config ExecConfig, logger *slog.Logger) *ExecScorer {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.WaitDelay <= 0 {
		config.WaitDelay = DefaultWaitDelay
	}
	if config.SpawnBurst <= 0 {
		config.SpawnBurst = 1
	}

	s := &ExecScorer{config: config, logger: logging.OrDefault(logger)}
	if config.SpawnRate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(config.SpawnRate), config.SpawnBurst)
	}
	return s
}

// Executable returns the program configured for alg.
func (s *ExecScorer) Executable(alg Algorithm) (string, bool) {
	exe, ok := s.config.Executables[alg]
	return exe, ok && exe != ""
}

// Score implements Scorer.
func (s *ExecScorer) Score(ctx context.Context, a, b *mesh.Geometry, alg Algorithm) (float64, error) {
	const op = "score"

	exe, ok := s.Executable(alg)
	if !ok {
		return 0, meshErrors.Comparison(op, "", fmt.Errorf("%s: %w", alg, ErrNoExecutable))
	}

	files := &scratch{base: s.config.TempDir}
	defer files.release()

	pathA, err := files.materialize(a)
	if err != nil {
		return 0, meshErrors.Comparison(op, "", fmt.Errorf("serialize query: %w", err))
	}
	pathB, err := files.materialize(b)
	if err != nil {
		return 0, meshErrors.Comparison(op, "", fmt.Errorf("serialize candidate: %w", err))
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return 0, meshErrors.Comparison(op, "", fmt.Errorf("spawn limiter: %w", err))
		}
	}

	out, err := s.run(ctx, exe, pathA, pathB, alg)
	if err != nil {
		return 0, meshErrors.Comparison(op, "", err)
	}

	score, err := ParseScore(out)
	if err != nil {
		return 0, meshErrors.Comparison(op, "", err)
	}
	return score, nil
}

func (s *ExecScorer) run(ctx context.Context, exe, pathA, pathB string, alg Algorithm) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, exe, pathA, pathB, alg.String())
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = s.config.WaitDelay
	setProcessGroup(cmd)

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if ctxErr := runCtx.Err(); ctxErr != nil && ctx.Err() == nil && errors.Is(ctxErr, context.DeadlineExceeded) {
		s.logger.Debug("scorer timed out", "executable", exe, "algorithm", alg, "timeout", s.config.Timeout)
		return "", fmt.Errorf("scorer timed out after %s: %w", s.config.Timeout, context.DeadlineExceeded)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err != nil {
		return "", fmt.Errorf("scorer failed: %w%s", err, stderrSuffix(stderr.String()))
	}

	s.logger.Debug("scorer finished", "executable", exe, "algorithm", alg, "elapsed", elapsed)
	return stdout.String(), nil
}

// ParseScore parses scorer output: exactly one finite float, surrounding
// whitespace allowed.
func ParseScore(out string) (float64, error) {
	trimmed := strings.TrimSpace(out)
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadOutput, firstLine(trimmed))
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrBadOutput, trimmed)
	}
	return v, nil
}

func stderrSuffix(stderr string) string {
	stderr = strings.TrimSpace(stderr)
	if stderr == "" {
		return ""
	}
	if len(stderr) > stderrLimit {
		stderr = stderr[:stderrLimit] + "..."
	}
	return ": " + stderr
}

func firstLine(s string) string {
	sc := bufio.NewScanner(strings.NewReader(s))
	if sc.Scan() {
		return sc.Text()
	}
	return s
}

// =============================================================================
// Scratch files
// =============================================================================

// scratch owns the temporary files of one Score call. The directory is
// created on first use and has a unique name, so concurrent calls never
// share a path.
type scratch struct {
	base string
	dir  string
}

// materialize returns a path the scorer can read g from.
func (s *scratch) materialize(g *mesh.Geometry) (string, error) {
	if g == nil {
		return "", errors.New("nil geometry")
	}
	if g.SourcePath != "" {
		if info, err := os.Stat(g.SourcePath); err == nil && info.Mode().IsRegular() {
			return g.SourcePath, nil
		}
	}

	if s.dir == "" {
		dir, err := os.MkdirTemp(s.base, "meshsim-")
		if err != nil {
			return "", err
		}
		s.dir = dir
	}

	p := filepath.Join(s.dir, uuid.NewString()+mesh.OFFExtension)
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", err
	}
	w := bufio.NewWriter(f)
	if err := mesh.Encode(w, g); err != nil {
		f.Close()
		return "", err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return p, nil
}

// Dir returns the scratch directory, or "" if none was created.
func (s *scratch) Dir() string {
	return s.dir
}

func (s *scratch) release() {
	if s.dir != "" {
		_ = os.RemoveAll(s.dir)
	}
}
