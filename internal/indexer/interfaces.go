// Package indexer resolves asset metadata from public indexing services.
package indexer

import (
	"context"

	"github.com/yangwenmai/savanna/internal/model"
)

// MetadataSource describes an asset. Implementations return an error when
// they know nothing about it.
type MetadataSource interface {
	Fetch(ctx context.Context, assetID string) (*model.AssetMetadata, error)
}
