package indexer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	nurl "net/url"
	"strings"

	"github.com/go-shiori/go-readability"

	"github.com/yangwenmai/savanna/internal/arweave"
	"github.com/yangwenmai/savanna/internal/model"
)

// maxDescriptionLength is the maximum number of runes kept from a page excerpt.
const maxDescriptionLength = 500

// ErrNotHTML is returned for assets that are not web pages.
var ErrNotHTML = errors.New("asset is not an HTML document")

// PageIndexer fetches the asset itself and, for HTML assets, extracts a
// title and excerpt using go-readability.
type PageIndexer struct {
	gateway *arweave.Client
}

// NewPageIndexer creates a page-based indexer.
func NewPageIndexer(gw *arweave.Client) *PageIndexer {
	return &PageIndexer{gateway: gw}
}

// Fetch downloads the asset and reads its article metadata.
func (p *PageIndexer) Fetch(ctx context.Context, assetID string) (*model.AssetMetadata, error) {
	body, contentType, err := p.gateway.Data(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("page indexer: %w", err)
	}

	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType != "text/html" {
		return nil, fmt.Errorf("page indexer: %s: %w", mediaType, ErrNotHTML)
	}

	pageURL, _ := nurl.Parse(model.GatewayURL(assetID))
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return nil, fmt.Errorf("readability: %w", err)
	}

	meta := model.DefaultMetadata(assetID)
	meta.ContentType = mediaType
	if t := strings.TrimSpace(article.Title); t != "" {
		meta.Title = t
	}
	if b := strings.TrimSpace(article.Byline); b != "" {
		meta.Creator = b
	}
	meta.Description = truncate(strings.TrimSpace(article.Excerpt), maxDescriptionLength)
	if article.Image != "" {
		meta.ImageURL = article.Image
	}
	if article.PublishedTime != nil && !article.PublishedTime.IsZero() {
		meta.DateCreated = model.BlockDate(article.PublishedTime.Unix())
	}
	return &meta, nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
