package indexer

import (
	"context"
	"fmt"

	"github.com/yangwenmai/savanna/internal/arweave"
	"github.com/yangwenmai/savanna/internal/model"
)

// Tag fallbacks, most specific first.
var (
	titleTags       = []string{"Title", "Asset-Name", "Bootloader-Name"}
	descriptionTags = []string{"Description", "Asset-Description", "Bootloader-Description"}
	virtueTags      = []string{"Virtue", "Asset-Virtue", "Bootloader-Virtue"}
	creatorTags     = []string{"Creator", "Asset-Creator", "Bootloader-Creator"}
)

// GraphQLIndexer reads asset metadata from transaction tags on the gateway.
type GraphQLIndexer struct {
	gateway *arweave.Client
}

// NewGraphQLIndexer creates an indexer backed by the given gateway client.
func NewGraphQLIndexer(gw *arweave.Client) *GraphQLIndexer {
	return &GraphQLIndexer{gateway: gw}
}

// Fetch looks up the asset transaction and maps its tags onto metadata.
func (g *GraphQLIndexer) Fetch(ctx context.Context, assetID string) (*model.AssetMetadata, error) {
	tx, err := g.gateway.Transaction(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("graphql indexer: %w", err)
	}

	tags := tx.TagMap()
	return &model.AssetMetadata{
		ID:          assetID,
		Title:       firstTag(tags, titleTags, "Untitled"),
		Description: firstTag(tags, descriptionTags, ""),
		Virtue:      firstTag(tags, virtueTags, "Unknown"),
		Creator:     firstTag(tags, creatorTags, "Anonymous"),
		ContentType: firstTag(tags, []string{"Content-Type"}, model.DefaultContentType),
		DateCreated: model.BlockDate(tx.BlockTimestamp()),
		ImageURL:    model.GatewayURL(assetID),
	}, nil
}

func firstTag(tags map[string]string, names []string, fallback string) string {
	for _, n := range names {
		if v := tags[n]; v != "" {
			return v
		}
	}
	return fallback
}
