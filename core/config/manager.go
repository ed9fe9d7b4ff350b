// Package config loads meshsim settings from defaults, YAML files and
// MESHSIM_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/adalundhe/meshsim/core/catalog"
	"github.com/adalundhe/meshsim/core/scorer"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MESHSIM_"

type Manager struct {
	current   atomic.Pointer[Config]
	paths     []string
	watchers  []func(*Config)
	watcherMu sync.RWMutex
}

type Config struct {
	AssetRoot         string            `yaml:"asset_root"`
	ListingTTL        time.Duration     `yaml:"listing_ttl"`
	ComparisonTimeout time.Duration     `yaml:"comparison_timeout"`
	SampleCap         int               `yaml:"sample_cap"`
	MeshPattern       string            `yaml:"mesh_pattern"`
	Splits            []string          `yaml:"splits"`
	Scorers           map[string]string `yaml:"scorers"`
	Concurrency       int               `yaml:"concurrency"`
	SpawnRate         float64           `yaml:"spawn_rate"`
	DefaultTopK       int               `yaml:"default_top_k"`
	MaxTopK           int               `yaml:"max_top_k"`
	ScoreMemo         ScoreMemoConfig   `yaml:"score_memo"`
	ResultCache       ResultCacheConfig `yaml:"result_cache"`
	Watch             bool              `yaml:"watch"`
	TempDir           string            `yaml:"temp_dir"`
	Log               LogConfig         `yaml:"log"`
}

type ScoreMemoConfig struct {
	MaxEntries int64         `yaml:"max_entries"`
	TTL        time.Duration `yaml:"ttl"`
}

type ResultCacheConfig struct {
	Size int           `yaml:"size"`
	TTL  time.Duration `yaml:"ttl"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// NewManager creates a Manager holding the defaults. paths are YAML files
// applied in order by Load; missing files are skipped.
func NewManager(paths ...string) *Manager {
	m := &Manager{paths: paths}
	m.current.Store(DefaultConfig())
	return m
}

func DefaultConfig() *Config {
	return &Config{
		AssetRoot:         "data",
		ListingTTL:        catalog.DefaultListingTTL,
		ComparisonTimeout: scorer.DefaultTimeout,
		SampleCap:         catalog.DefaultSampleCap,
		MeshPattern:       catalog.DefaultPattern,
		Splits:            append([]string(nil), catalog.DefaultSplits...),
		Scorers: map[string]string{
			string(scorer.KDTree): "./kdtree_search",
			string(scorer.Octree): "./octree_search",
		},
		Concurrency: 1,
		DefaultTopK: 5,
		MaxTopK:     100,
		ScoreMemo: ScoreMemoConfig{
			TTL: 10 * time.Minute,
		},
		ResultCache: ResultCacheConfig{
			TTL: time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func (m *Manager) Get() *Config {
	return m.current.Load()
}

// Load rebuilds the configuration from defaults, the YAML files and the
// environment. The held configuration is replaced only if the result
// validates.
func (m *Manager) Load() error {
	cfg := DefaultConfig()

	for _, p := range m.paths {
		if err := loadYAMLFile(p, cfg); err != nil {
			return fmt.Errorf("config %s: %w", p, err)
		}
	}

	if err := applyEnvironment(cfg); err != nil {
		return fmt.Errorf("environment: %w", err)
	}

	return m.store(cfg)
}

// Apply copies the held configuration, lets fn modify the copy and swaps it
// in if it validates. Used for command-line overrides.
func (m *Manager) Apply(fn func(*Config)) error {
	cfg := m.Get().Clone()
	fn(cfg)
	return m.store(cfg)
}

func (m *Manager) store(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.current.Store(cfg)
	m.notifyWatchers(cfg)
	return nil
}

func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	// A scorers block replaces the default map rather than merging into it.
	var present struct {
		Scorers map[string]string `yaml:"scorers"`
	}
	if err := yaml.Unmarshal(data, &present); err != nil {
		return err
	}
	if present.Scorers != nil {
		cfg.Scorers = nil
	}

	return yaml.Unmarshal(data, cfg)
}

func applyEnvironment(cfg *Config) error {
	var errs []error
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok && v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok && v != "" {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}

	str("ASSET_ROOT", &cfg.AssetRoot)
	dur("LISTING_TTL", &cfg.ListingTTL)
	dur("COMPARISON_TIMEOUT", &cfg.ComparisonTimeout)
	num("SAMPLE_CAP", &cfg.SampleCap)
	str("MESH_PATTERN", &cfg.MeshPattern)
	num("CONCURRENCY", &cfg.Concurrency)
	num("DEFAULT_TOP_K", &cfg.DefaultTopK)
	num("MAX_TOP_K", &cfg.MaxTopK)
	num("RESULT_CACHE_SIZE", &cfg.ResultCache.Size)
	str("TEMP_DIR", &cfg.TempDir)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)

	if v := os.Getenv(EnvPrefix + "SPAWN_RATE"); v != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sSPAWN_RATE: %w", EnvPrefix, err))
		} else {
			cfg.SpawnRate = f
		}
	}
	if v := os.Getenv(EnvPrefix + "WATCH"); v != "" {
		cfg.Watch = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv(EnvPrefix + "SPLITS"); v != "" {
		cfg.Splits = splitList(v)
	}
	for _, alg := range scorer.Algorithms() {
		if v := os.Getenv(EnvPrefix + "SCORER_" + strings.ToUpper(string(alg))); v != "" {
			if cfg.Scorers == nil {
				cfg.Scorers = map[string]string{}
			}
			cfg.Scorers[string(alg)] = v
		}
	}

	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	var errs []error
	if c.AssetRoot == "" {
		errs = append(errs, errors.New("asset_root is required"))
	}
	if c.ListingTTL < 0 {
		errs = append(errs, errors.New("listing_ttl must not be negative"))
	}
	if c.ComparisonTimeout < 0 {
		errs = append(errs, errors.New("comparison_timeout must not be negative"))
	}
	if c.SampleCap < 0 {
		errs = append(errs, errors.New("sample_cap must not be negative"))
	}
	if len(c.Splits) == 0 {
		errs = append(errs, errors.New("splits must not be empty"))
	}
	if c.Concurrency < 0 {
		errs = append(errs, errors.New("concurrency must not be negative"))
	}
	if c.SpawnRate < 0 {
		errs = append(errs, errors.New("spawn_rate must not be negative"))
	}
	if c.DefaultTopK < 0 || c.MaxTopK < 0 {
		errs = append(errs, errors.New("top_k limits must not be negative"))
	}
	if c.MaxTopK > 0 && c.DefaultTopK > c.MaxTopK {
		errs = append(errs, errors.New("default_top_k exceeds max_top_k"))
	}
	if c.ScoreMemo.MaxEntries < 0 || c.ScoreMemo.TTL < 0 {
		errs = append(errs, errors.New("score_memo settings must not be negative"))
	}
	if c.ResultCache.Size < 0 || c.ResultCache.TTL < 0 {
		errs = append(errs, errors.New("result_cache settings must not be negative"))
	}

	names := make([]string, 0, len(c.Scorers))
	for name := range c.Scorers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !scorer.Algorithm(name).Valid() {
			errs = append(errs, fmt.Errorf("scorers: unknown algorithm %q", name))
		}
	}
	return errors.Join(errs...)
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Splits = append([]string(nil), c.Splits...)
	if c.Scorers != nil {
		out.Scorers = make(map[string]string, len(c.Scorers))
		for k, v := range c.Scorers {
			out.Scorers[k] = v
		}
	}
	return &out
}

func (m *Manager) OnChange(fn func(*Config)) {
	m.watcherMu.Lock()
	m.watchers = append(m.watchers, fn)
	m.watcherMu.Unlock()
}

func (m *Manager) notifyWatchers(cfg *Config) {
	m.watcherMu.RLock()
	watchers := m.watchers
	m.watcherMu.RUnlock()

	for _, fn := range watchers {
		fn(cfg)
	}
}

func (m *Manager) Reload() error {
	return m.Load()
}
