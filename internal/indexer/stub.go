package indexer

import (
	"context"

	"github.com/yangwenmai/savanna/internal/model"
)

// StubIndexer returns canned metadata (for development/testing).
type StubIndexer struct{}

func (StubIndexer) Fetch(_ context.Context, assetID string) (*model.AssetMetadata, error) {
	meta := model.DefaultMetadata(assetID)
	meta.Title = "Savanna study " + assetID[:min(6, len(assetID))]
	meta.Description = "A stub artwork used while the indexer is offline."
	meta.Creator = "Stub Artist"
	return &meta, nil
}
