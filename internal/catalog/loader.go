package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
)

// Loader builds a fresh catalog snapshot
type Loader func(ctx context.Context) (*Catalog, error)

// ColumnSource lists the physical columns of a warehouse table
type ColumnSource interface {
	TableColumns(ctx context.Context, datasetID, tableID string) ([]string, error)
}

// LoadFile decodes a JSON catalog file on top of DefaultConfig
func LoadFile(path string) (*Catalog, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %q: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode catalog %q: %w", path, err)
	}
	return New(cfg)
}

// FileLoader returns a Loader for path, or the built-in catalog when path is empty
func FileLoader(path string) Loader {
	return func(ctx context.Context) (*Catalog, error) {
		if path == "" {
			return New(DefaultConfig())
		}
		return LoadFile(path)
	}
}

// WithColumnSync wraps base so the loaded catalog's columns are replaced by
// the live warehouse schema. A failing sync keeps the base columns.
func WithColumnSync(base Loader, src ColumnSource, datasetID, tableID string) Loader {
	return func(ctx context.Context) (*Catalog, error) {
		c, err := base(ctx)
		if err != nil {
			return nil, err
		}
		cols, err := src.TableColumns(ctx, datasetID, tableID)
		if err != nil {
			log.Warn().Err(err).Str("dataset", datasetID).Str("table", tableID).Msg("catalog column sync failed, keeping configured columns")
			return c, nil
		}
		synced, err := c.WithColumns(cols)
		if err != nil {
			log.Warn().Err(err).Msg("catalog column sync returned no columns")
			return c, nil
		}
		return synced, nil
	}
}
