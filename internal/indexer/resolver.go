package indexer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/yangwenmai/savanna/internal/model"
)

// Resolver queries metadata sources in order and returns the first answer.
type Resolver struct {
	sources []MetadataSource
}

// NewResolver chains the given sources.
func NewResolver(sources ...MetadataSource) *Resolver {
	return &Resolver{sources: sources}
}

// Lookup returns the first successful answer, or the joined source errors.
func (r *Resolver) Lookup(ctx context.Context, assetID string) (model.AssetMetadata, error) {
	var errs []error
	for _, src := range r.sources {
		meta, err := src.Fetch(ctx, assetID)
		if err == nil {
			return *meta, nil
		}
		if ctx.Err() != nil {
			return model.AssetMetadata{}, ctx.Err()
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return model.AssetMetadata{}, model.ErrTransactionNotFound
	}
	return model.AssetMetadata{}, errors.Join(errs...)
}

// Resolve is best-effort: it never fails and substitutes defaults when
// every source does.
func (r *Resolver) Resolve(ctx context.Context, assetID string) model.AssetMetadata {
	meta, err := r.Lookup(ctx, assetID)
	if err != nil {
		slog.Warn("metadata fetch failed, using defaults", "asset_id", assetID, "error", err)
		return model.DefaultMetadata(assetID)
	}
	return meta
}
