package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	meshErrors "github.com/adalundhe/meshsim/core/errors"
	"github.com/adalundhe/meshsim/core/logging"
	"github.com/adalundhe/meshsim/core/mesh"
)

// =============================================================================
// Configuration
// =============================================================================

// DefaultPattern matches OFF mesh files by base name.
const DefaultPattern = "*.off"

// DefaultSampleCap is the number of files decoded per (category, split).
const DefaultSampleCap = 5

// ErrInvalidPattern indicates the mesh file pattern could not be compiled.
var ErrInvalidPattern = errors.New("invalid mesh file pattern")

// ScanConfig holds configuration for the directory scanner.
type ScanConfig struct {
	// Root is the asset directory. A missing root scans as empty.
	Root string

	// Splits are visited in order under each category. Default: train, test.
	Splits []string

	// Pattern is a glob matched against file base names. Default: *.off.
	Pattern string

	// SampleCap bounds the files decoded per (category, split). Zero means
	// no cap; negative values are treated as zero.
	SampleCap int
}

// DefaultScanConfig returns a configuration for root with default settings.
func DefaultScanConfig(root string) ScanConfig {
	return ScanConfig{
		Root:      root,
		Splits:    DefaultSplits,
		Pattern:   DefaultPattern,
		SampleCap: DefaultSampleCap,
	}
}

// =============================================================================
// Scanner
// =============================================================================

// Scanner walks root/<category>/<split>/ and decodes candidate files to
// produce model descriptors.
type Scanner struct {
	config  ScanConfig
	matcher glob.Glob
	decoder mesh.Decoder
	logger  *slog.Logger
}

// NewScanner creates a Scanner. A nil decoder uses the OFF decoder.
func NewScanner(config ScanConfig, decoder mesh.Decoder, logger *slog.Logger) (*Scanner, error) {
	if len(config.Splits) == 0 {
		config.Splits = DefaultSplits
	}
	if config.Pattern == "" {
		config.Pattern = DefaultPattern
	}
	if config.SampleCap < 0 {
		config.SampleCap = 0
	}
	matcher, err := glob.Compile(config.Pattern)
	if err != nil {
		return nil, errors.Join(ErrInvalidPattern, err)
	}
	if decoder == nil {
		decoder = mesh.OFFDecoder{}
	}
	return &Scanner{
		config:  config,
		matcher: matcher,
		decoder: decoder,
		logger:  logging.OrDefault(logger),
	}, nil
}

// Config returns the effective scanner configuration.
func (s *Scanner) Config() ScanConfig {
	return s.config
}

// Scan lists the asset root. Output order is category name, then split order,
// then file name; directory entries are read sorted by name, so the order is
// stable for a given tree regardless of filesystem enumeration order.
//
// Missing category or split directories and undecodable or empty meshes are
// skipped. Only cancellation and unexpected I/O on the root are returned as
// errors.
func (s *Scanner) Scan(ctx context.Context) ([]ModelDescriptor, error) {
	categories, err := listDirs(s.config.Root)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", s.config.Root, err)
	}

	var out []ModelDescriptor
	for _, category := range categories {
		for _, split := range s.config.Splits {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			models, err := s.scanSplit(ctx, category, split)
			if err != nil {
				return nil, err
			}
			out = append(out, models...)
		}
	}

	s.logger.Debug("scan complete", "root", s.config.Root, "models", len(out))
	return out, nil
}

func (s *Scanner) scanSplit(ctx context.Context, category, split string) ([]ModelDescriptor, error) {
	dir := filepath.Join(s.config.Root, category, split)
	files, err := s.listMeshFiles(dir)
	if err != nil {
		s.warn(meshErrors.ScanWarning("list split", dir, err))
		return nil, nil
	}

	var out []ModelDescriptor
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := filepath.Join(dir, name)
		g, err := s.decoder.DecodeFile(p)
		if err != nil {
			s.warn(meshErrors.ScanWarning("decode", p, err))
			continue
		}
		if g.IsEmpty() {
			s.warn(meshErrors.ScanWarning("decode", p, errors.New("mesh has no vertices")))
			continue
		}
		out = append(out, ModelDescriptor{
			ID:       ModelID(category, split, name),
			Category: category,
			Split:    split,
			Vertices: g.VertexCount(),
			Faces:    g.FaceCount(),
		})
	}
	return out, nil
}

// listMeshFiles returns up to SampleCap matching file names from dir. A
// missing directory yields no files.
func (s *Scanner) listMeshFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() || !s.matcher.Match(e.Name()) {
			continue
		}
		out = append(out, e.Name())
		if s.config.SampleCap > 0 && len(out) >= s.config.SampleCap {
			break
		}
	}
	return out, nil
}

func (s *Scanner) warn(err error) {
	s.logger.Warn("scan skipped entry", "error", err)
}

// =============================================================================
// Categories
// =============================================================================

// Categories returns the category directory names under root, sorted. A
// missing root yields none.
func Categories(root string) ([]string, error) {
	return listDirs(root)
}

func listDirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		out = append(out, e.Name())
	}
	return out, nil
}
