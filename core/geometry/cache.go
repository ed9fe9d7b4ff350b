// Package geometry holds decoded mesh geometry for the lifetime of the
// process.
package geometry

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/adalundhe/meshsim/core/catalog"
	meshErrors "github.com/adalundhe/meshsim/core/errors"
	"github.com/adalundhe/meshsim/core/logging"
	"github.com/adalundhe/meshsim/core/mesh"
)

// Config configures a Cache.
type Config struct {
	// Root is the asset directory identifiers are resolved against.
	Root string

	// Splits are the split names an identifier may use. Default: train, test.
	Splits []string
}

// Cache maps model identifiers to decoded geometry.
//
// Entries are written once and never evicted or refreshed. Concurrent misses
// on the same identifier share one decode.
type Cache struct {
	root    string
	splits  []string
	decoder mesh.Decoder
	logger  *slog.Logger

	entries sync.Map // id -> *mesh.Geometry
	group   singleflight.Group
	decodes atomic.Int64
	size    atomic.Int64
}

// NewCache creates a Cache. A nil decoder uses the OFF decoder.
func NewCache(cfg Config, decoder mesh.Decoder, logger *slog.Logger) *Cache {
	if len(cfg.Splits) == 0 {
		cfg.Splits = catalog.DefaultSplits
	}
	if decoder == nil {
		decoder = mesh.OFFDecoder{}
	}
	return &Cache{
		root:    cfg.Root,
		splits:  cfg.Splits,
		decoder: decoder,
		logger:  logging.OrDefault(logger),
	}
}

// Get returns the geometry for id, decoding it on first access.
//
// An identifier that is malformed or names a missing file fails with a
// NotFound error; a file that exists but cannot be decoded fails with a
// Decode error. Failures are not cached.
func (c *Cache) Get(ctx context.Context, id string) (*mesh.Geometry, error) {
	if g, ok := c.entries.Load(id); ok {
		return g.(*mesh.Geometry), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch := c.group.DoChan(id, func() (any, error) {
		if g, ok := c.entries.Load(id); ok {
			return g, nil
		}
		g, err := c.load(id)
		if err != nil {
			return nil, err
		}
		actual, loaded := c.entries.LoadOrStore(id, g)
		if !loaded {
			c.size.Add(1)
		}
		return actual, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.logger.Debug("geometry decode shared", "id", id)
		}
		return res.Val.(*mesh.Geometry), nil
	}
}

func (c *Cache) load(id string) (*mesh.Geometry, error) {
	p, err := catalog.ResolvePath(c.root, id, c.splits)
	if err != nil {
		return nil, meshErrors.NotFound("resolve geometry", id, err)
	}

	c.decodes.Add(1)
	g, err := c.decoder.DecodeFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, meshErrors.NotFound("load geometry", id, err)
	}
	if err != nil {
		return nil, meshErrors.Decode("load geometry", id, err)
	}
	if g.SourcePath == "" {
		g.SourcePath = p
	}

	c.logger.Debug("geometry decoded", "id", id, "vertices", g.VertexCount(), "faces", g.FaceCount())
	return g, nil
}

// Contains reports whether id is already cached.
func (c *Cache) Contains(id string) bool {
	_, ok := c.entries.Load(id)
	return ok
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return int(c.size.Load())
}

// Decodes returns how many times the decoder has been invoked.
func (c *Cache) Decodes() int64 {
	return c.decodes.Load()
}
