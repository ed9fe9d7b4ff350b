package config

import (
	"github.com/adalundhe/meshsim/core/catalog"
	"github.com/adalundhe/meshsim/core/geometry"
	"github.com/adalundhe/meshsim/core/logging"
	"github.com/adalundhe/meshsim/core/scorer"
	"github.com/adalundhe/meshsim/core/similarity"
)

// ScanConfig returns the directory scanner settings.
func (c *Config) ScanConfig() catalog.ScanConfig {
	return catalog.ScanConfig{
		Root:      c.AssetRoot,
		Splits:    c.Splits,
		Pattern:   c.MeshPattern,
		SampleCap: c.SampleCap,
	}
}

// ListingConfig returns the listing cache settings.
func (c *Config) ListingConfig() catalog.ListingConfig {
	return catalog.ListingConfig{TTL: c.ListingTTL}
}

// GeometryConfig returns the geometry cache settings.
func (c *Config) GeometryConfig() geometry.Config {
	return geometry.Config{Root: c.AssetRoot, Splits: c.Splits}
}

// ExecConfig returns the external scorer settings.
func (c *Config) ExecConfig() scorer.ExecConfig {
	exes := make(map[scorer.Algorithm]string, len(c.Scorers))
	for name, path := range c.Scorers {
		exes[scorer.Algorithm(name)] = path
	}
	return scorer.ExecConfig{
		Executables: exes,
		Timeout:     c.ComparisonTimeout,
		TempDir:     c.TempDir,
		SpawnRate:   c.SpawnRate,
	}
}

// MemoConfig returns the score memo settings. ok is false when the memo is
// disabled.
func (c *Config) MemoConfig() (cfg scorer.MemoConfig, ok bool) {
	if c.ScoreMemo.MaxEntries <= 0 {
		return scorer.MemoConfig{}, false
	}
	return scorer.MemoConfig{MaxEntries: c.ScoreMemo.MaxEntries, TTL: c.ScoreMemo.TTL}, true
}

// OrchestratorConfig returns the similarity orchestrator settings.
func (c *Config) OrchestratorConfig() similarity.Config {
	return similarity.Config{
		AssetRoot:       c.AssetRoot,
		DefaultTopK:     c.DefaultTopK,
		MaxTopK:         c.MaxTopK,
		Concurrency:     c.Concurrency,
		ResultCacheSize: c.ResultCache.Size,
		ResultCacheTTL:  c.ResultCache.TTL,
	}
}

// LogOptions returns the logger settings.
func (c *Config) LogOptions() logging.Options {
	return logging.Options{Level: c.Log.Level, Format: c.Log.Format}
}
