// Package catalog discovers mesh assets laid out as root/<category>/<split>/<file>
// and serves time-bounded snapshots of that listing.
package catalog

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Split names recognised under each category directory.
const (
	SplitTrain = "train"
	SplitTest  = "test"
)

// DefaultSplits is the split visiting order used by the scanner.
var DefaultSplits = []string{SplitTrain, SplitTest}

var (
	// ErrInvalidID indicates an identifier that is not category/split/file.
	ErrInvalidID = errors.New("model id must be category/split/file")

	// ErrUnknownSplit indicates a split outside the configured set.
	ErrUnknownSplit = errors.New("unknown split")
)

// =============================================================================
// ModelDescriptor
// =============================================================================

// ModelDescriptor identifies one mesh asset in a listing.
//
// ID is the slash-separated relative path category/split/file and is unique
// within a snapshot.
type ModelDescriptor struct {
	ID       string `json:"filename"`
	Category string `json:"category"`
	Split    string `json:"split"`
	Vertices int    `json:"vertices"`
	Faces    int    `json:"faces"`
}

// ModelID joins the identifier components.
func ModelID(category, split, file string) string {
	return path.Join(category, split, file)
}

// ParseID splits an identifier into its components. It rejects empty parts,
// dot segments and anything that is not exactly three components.
func ParseID(id string) (category, split, file string, err error) {
	parts := strings.Split(filepath.ToSlash(id), "/")
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("%q: %w", id, ErrInvalidID)
	}
	for _, p := range parts {
		if p == "" || p == "." || p == ".." {
			return "", "", "", fmt.Errorf("%q: %w", id, ErrInvalidID)
		}
	}
	return parts[0], parts[1], parts[2], nil
}

// ResolvePath maps an identifier to a file path under root. The split must be
// one of splits.
func ResolvePath(root, id string, splits []string) (string, error) {
	category, split, file, err := ParseID(id)
	if err != nil {
		return "", err
	}
	if !containsString(splits, split) {
		return "", fmt.Errorf("%q: %w", split, ErrUnknownSplit)
	}
	return filepath.Join(root, category, split, file), nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// =============================================================================
// Snapshot
// =============================================================================

// Snapshot is an immutable point-in-time listing.
type Snapshot struct {
	Models    []ModelDescriptor
	CreatedAt time.Time

	byID map[string]int
}

// NewSnapshot builds a snapshot from models in order. Later duplicates of an
// identifier are dropped.
func NewSnapshot(models []ModelDescriptor, createdAt time.Time) *Snapshot {
	s := &Snapshot{
		Models:    make([]ModelDescriptor, 0, len(models)),
		CreatedAt: createdAt,
		byID:      make(map[string]int, len(models)),
	}
	for _, m := range models {
		if _, dup := s.byID[m.ID]; dup {
			continue
		}
		s.byID[m.ID] = len(s.Models)
		s.Models = append(s.Models, m)
	}
	return s
}

// Len returns the number of models.
func (s *Snapshot) Len() int {
	return len(s.Models)
}

// Lookup returns the descriptor for id.
func (s *Snapshot) Lookup(id string) (ModelDescriptor, bool) {
	i, ok := s.byID[id]
	if !ok {
		return ModelDescriptor{}, false
	}
	return s.Models[i], true
}

// Age returns how old the snapshot is at now.
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.CreatedAt)
}

// Categories returns the distinct categories present in the snapshot, sorted.
func (s *Snapshot) Categories() []string {
	seen := make(map[string]struct{})
	for _, m := range s.Models {
		seen[m.Category] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
