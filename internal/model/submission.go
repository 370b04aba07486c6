package model

import "time"

// Status is the lifecycle state of a submission.
type Status string

// Submission status constants
const (
	StatusPending     Status = "pending"
	StatusConfirmed   Status = "confirmed"
	StatusDuplicate   Status = "duplicate"
	StatusRejected    Status = "rejected"
	StatusUnconfirmed Status = "unconfirmed"
)

// IsTerminal reports whether no further transition may follow s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusConfirmed, StatusDuplicate, StatusRejected, StatusUnconfirmed:
		return true
	default:
		return false
	}
}

// Submission is one artwork entry as shown in the gallery and stored in the
// local result cache.
type Submission struct {
	ID               string `json:"id"`
	AssetID          string `json:"assetId"`
	BazarURL         string `json:"bazarUrl"`
	Virtue           string `json:"virtue"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	Creator          string `json:"creator"`
	CreatorFormatted string `json:"creatorFormatted"`
	ContentType      string `json:"contentType"`
	DateCreated      string `json:"dateCreated,omitempty"`
	ImageURL         string `json:"imageUrl"`
	ArweaveURL       string `json:"arweaveUrl"`
	SubmittedAt      int64  `json:"submittedAt"` // unix millis
	Sender           string `json:"sender,omitempty"`
	CorrelationToken string `json:"correlationToken,omitempty"`
	Status           Status `json:"status,omitempty"`
}

// WireSubmission is the record sent to, and returned by, the remote process.
type WireSubmission struct {
	AssetID     string `json:"AssetId"`
	BazarURL    string `json:"BazarUrl"`
	Virtue      string `json:"Virtue"`
	Title       string `json:"Title"`
	Description string `json:"Description"`
	Creator     string `json:"Creator"`
	ContentType string `json:"ContentType"`
	Timestamp   int64  `json:"Timestamp"` // unix seconds
	Sender      string `json:"Sender,omitempty"`
}

// Normalize converts a record from the remote process into a gallery
// submission, substituting defaults for missing fields.
func (w WireSubmission) Normalize() Submission {
	creator := orDefault(w.Creator, "Anonymous")
	return Submission{
		ID:               w.AssetID,
		AssetID:          w.AssetID,
		BazarURL:         w.BazarURL,
		Virtue:           orDefault(w.Virtue, "Unknown"),
		Title:            orDefault(w.Title, "Untitled"),
		Description:      w.Description,
		Creator:          creator,
		CreatorFormatted: FormatAddress(creator),
		ContentType:      orDefault(w.ContentType, DefaultContentType),
		SubmittedAt:      w.Timestamp * 1000,
		Sender:           w.Sender,
	}
}

// NewSubmission builds the wire record and the enriched gallery record for a
// new entry. Wire values take precedence over indexer metadata; the creator
// falls back to the submitting wallet.
func NewSubmission(assetID, assetURL, virtue, wallet string, meta AssetMetadata, now time.Time) (WireSubmission, Submission) {
	wire := WireSubmission{
		AssetID:     assetID,
		BazarURL:    assetURL,
		Virtue:      virtue,
		Title:       orDefault(meta.Title, "Untitled"),
		Description: meta.Description,
		Creator:     creatorOrWallet(meta.Creator, wallet),
		ContentType: orDefault(meta.ContentType, DefaultContentType),
		Timestamp:   now.Unix(),
	}

	rec := Submission{
		ID:               assetID,
		AssetID:          assetID,
		BazarURL:         assetURL,
		Virtue:           virtue,
		Title:            wire.Title,
		Description:      wire.Description,
		Creator:          wire.Creator,
		CreatorFormatted: FormatAddress(wallet),
		ContentType:      wire.ContentType,
		DateCreated:      now.UTC().Format(time.DateOnly),
		ImageURL:         orDefault(meta.ImageURL, GatewayURL(assetID)),
		ArweaveURL:       GatewayURL(assetID),
		SubmittedAt:      now.UnixMilli(),
		Sender:           wallet,
		Status:           StatusPending,
	}
	return wire, rec
}

// Merge overlays the non-empty fields of s on top of indexer metadata, so
// values recorded by the remote process win.
func (s Submission) Merge(meta AssetMetadata) Submission {
	out := meta.Submission()
	overlay := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	overlay(&out.ID, s.ID)
	overlay(&out.AssetID, s.AssetID)
	overlay(&out.BazarURL, s.BazarURL)
	overlay(&out.Virtue, s.Virtue)
	overlay(&out.Title, s.Title)
	overlay(&out.Description, s.Description)
	overlay(&out.Creator, s.Creator)
	overlay(&out.CreatorFormatted, s.CreatorFormatted)
	overlay(&out.ContentType, s.ContentType)
	overlay(&out.DateCreated, s.DateCreated)
	overlay(&out.ImageURL, s.ImageURL)
	overlay(&out.ArweaveURL, s.ArweaveURL)
	overlay(&out.Sender, s.Sender)
	overlay(&out.CorrelationToken, s.CorrelationToken)
	if s.SubmittedAt != 0 {
		out.SubmittedAt = s.SubmittedAt
	}
	if s.Status != "" {
		out.Status = s.Status
	}
	return out
}

func creatorOrWallet(creator, wallet string) string {
	if creator == "" || creator == "Anonymous" {
		return wallet
	}
	return creator
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
