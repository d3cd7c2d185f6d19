package catalog

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cortexai/analytics/internal/observability"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Store publishes catalog snapshots. Readers never lock; Reload builds a new
// Catalog and swaps the pointer.
type Store struct {
	current  atomic.Pointer[Catalog]
	version  atomic.Uint64
	load     Loader
	sf       singleflight.Group // concurrent reload triggers share one load
	loadedAt atomic.Int64
}

// NewStore performs the initial load and fails if it does not succeed
func NewStore(ctx context.Context, load Loader) (*Store, error) {
	s := &Store{load: load}
	c, err := load(ctx)
	if err != nil {
		return nil, fmt.Errorf("initial catalog load: %w", err)
	}
	s.publish(c)
	return s, nil
}

// Snapshot returns the current catalog
func (s *Store) Snapshot() *Catalog {
	return s.current.Load()
}

// Version increases by one for every published snapshot
func (s *Store) Version() uint64 {
	return s.version.Load()
}

// LoadedAt is the time the current snapshot was published
func (s *Store) LoadedAt() time.Time {
	return time.Unix(0, s.loadedAt.Load())
}

// Reload loads a new snapshot. On failure the previous snapshot stays live.
func (s *Store) Reload(ctx context.Context) (*Catalog, error) {
	v, err, shared := s.sf.Do("reload", func() (interface{}, error) {
		start := time.Now()
		c, err := s.load(ctx)
		if err != nil {
			return nil, err
		}
		s.publish(c)
		log.Info().
			Uint64("version", s.Version()).
			Int("columns", len(c.columns)).
			Int("metrics", len(c.metrics)).
			Int("banks", len(c.banks)).
			Dur("load_ms", time.Since(start)).
			Msg("catalog reloaded")
		return c, nil
	})
	if err != nil {
		observability.ObserveCatalogReload(false, s.Version())
		log.Warn().Err(err).Msg("catalog reload failed, keeping previous snapshot")
		return s.Snapshot(), fmt.Errorf("reload catalog: %w", err)
	}
	if shared {
		log.Debug().Msg("catalog reload shared with concurrent caller")
	}
	return v.(*Catalog), nil
}

func (s *Store) publish(c *Catalog) {
	s.current.Store(c)
	v := s.version.Add(1)
	s.loadedAt.Store(time.Now().UnixNano())
	observability.ObserveCatalogReload(true, v)
}
