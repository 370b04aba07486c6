package model

import (
	"net/url"
	"regexp"
	"strings"
	"time"
)

const (
	// DefaultContentType is assumed when an asset carries no Content-Type tag.
	DefaultContentType = "image/jpeg"

	bazarHost      = "bazar.arweave.net"
	gatewayBaseURL = "https://arweave.net/"
)

var assetPathPattern = regexp.MustCompile(`/asset/([a-zA-Z0-9_-]{43,44})`)

// AssetMetadata is what the public indexer knows about an asset.
type AssetMetadata struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Virtue      string `json:"virtue"`
	Creator     string `json:"creator"`
	ContentType string `json:"contentType"`
	DateCreated string `json:"dateCreated,omitempty"`
	ImageURL    string `json:"imageUrl"`
}

// DefaultMetadata is substituted when no indexer could describe the asset.
func DefaultMetadata(assetID string) AssetMetadata {
	return AssetMetadata{
		ID:          assetID,
		Title:       "Untitled",
		Virtue:      "Unknown",
		Creator:     "Anonymous",
		ContentType: DefaultContentType,
		ImageURL:    GatewayURL(assetID),
	}
}

// Submission renders the metadata as a gallery record.
func (m AssetMetadata) Submission() Submission {
	return Submission{
		ID:               m.ID,
		AssetID:          m.ID,
		BazarURL:         BazarURL(m.ID),
		Virtue:           m.Virtue,
		Title:            m.Title,
		Description:      m.Description,
		Creator:          m.Creator,
		CreatorFormatted: FormatAddress(m.Creator),
		ContentType:      m.ContentType,
		DateCreated:      m.DateCreated,
		ImageURL:         orDefault(m.ImageURL, GatewayURL(m.ID)),
		ArweaveURL:       GatewayURL(m.ID),
	}
}

// BlockDate formats a block timestamp (unix seconds) as a calendar date.
func BlockDate(ts int64) string {
	if ts <= 0 {
		return ""
	}
	return time.Unix(ts, 0).UTC().Format(time.DateOnly)
}

// ExtractAssetID returns the asset identifier embedded in a Bazar URL.
func ExtractAssetID(rawURL string) (string, bool) {
	m := assetPathPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ValidateAssetURL checks that rawURL points at a Bazar asset and returns its ID.
func ValidateAssetURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", &ValidationError{Err: ErrInvalidAssetURL, Reason: "URL is required"}
	}
	if !strings.Contains(rawURL, bazarHost) {
		return "", &ValidationError{Err: ErrInvalidAssetURL, Reason: "Must be a Bazar URL (" + bazarHost + ")"}
	}
	id, ok := ExtractAssetID(rawURL)
	if !ok {
		return "", &ValidationError{Err: ErrInvalidAssetURL, Reason: "Invalid Bazar asset URL format"}
	}
	return id, nil
}

// FormatAddress shortens a wallet address for display.
func FormatAddress(addr string) string {
	if addr == "" || addr == "Anonymous" || len(addr) < 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

// GatewayURL links to the raw transaction on the gateway.
func GatewayURL(id string) string {
	return gatewayBaseURL + id
}

// BazarURL links to the asset page on Bazar.
func BazarURL(assetID string) string {
	return "https://" + bazarHost + "/#/asset/" + assetID
}

// ShareURL builds a post intent announcing a submission.
func ShareURL(assetURL string) string {
	text := "Just submitted to #SavannaLegacySprint! Check my artwork: " + assetURL
	return "https://x.com/intent/tweet?text=" + url.QueryEscape(text)
}
