// Package gallery reads the submission list from the remote process, keeps
// the local cache current and enriches entries with indexer metadata.
package gallery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/yangwenmai/savanna/internal/model"
	"github.com/yangwenmai/savanna/internal/transport"
)

const (
	// DefaultTTL is how long a cached gallery is served without a refresh.
	DefaultTTL   = 30 * time.Minute
	DefaultLimit = 10
	MaxLimit     = 100
	// AllVirtues disables the virtue filter.
	AllVirtues = "All"

	enrichConcurrency = 8
)

// Source is the remote process as seen by the gallery.
type Source interface {
	State(ctx context.Context) ([]byte, error)
	DryRun(ctx context.Context, tags []model.Tag) (*transport.Result, error)
}

// Cache is the local copy of the gallery.
type Cache interface {
	SaveSnapshot(ctx context.Context, subs []model.Submission) error
	LoadFresh(ctx context.Context, maxAge time.Duration) ([]model.Submission, bool, error)
	ListByVirtue(ctx context.Context, virtue string) ([]model.Submission, error)
}

// MetadataLookup describes an asset, or fails.
type MetadataLookup interface {
	Lookup(ctx context.Context, assetID string) (model.AssetMetadata, error)
}

// Page is one page of the gallery.
type Page struct {
	Items   []model.Submission `json:"items"`
	Page    int                `json:"page"`
	Limit   int                `json:"limit"`
	Total   int                `json:"total"`
	HasMore bool               `json:"hasMore"`
	Source  string             `json:"source"`
}

// Service serves gallery pages.
type Service struct {
	source Source
	cache  Cache
	meta   MetadataLookup
	ttl    time.Duration

	group singleflight.Group
	mu    sync.RWMutex
	memo  map[string]model.AssetMetadata
}

// NewService creates a gallery service. A zero ttl means DefaultTTL.
func NewService(src Source, cache Cache, meta MetadataLookup, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		source: src,
		cache:  cache,
		meta:   meta,
		ttl:    ttl,
		memo:   make(map[string]model.AssetMetadata),
	}
}

// Fetch reads every submission from the process state, falling back to a
// dry run when the state endpoint is unavailable.
func (s *Service) Fetch(ctx context.Context) ([]model.Submission, error) {
	raw, err := s.source.State(ctx)
	if err == nil {
		subs, perr := parseState(raw)
		if perr == nil {
			slog.Debug("gallery state fetched", "count", len(subs))
			return subs, nil
		}
		err = perr
	}
	if errors.Is(err, model.ErrStateUnavailable) {
		slog.Info("state endpoint not enabled, falling back to dry run")
	} else {
		slog.Warn("state fetch failed, falling back to dry run", "error", err)
	}

	res, err := s.source.DryRun(ctx, []model.Tag{{Name: model.TagAction, Value: model.ActionPatchState}})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrGalleryUnavailable, err)
	}
	if res == nil || len(res.Messages) == 0 {
		return nil, nil
	}
	subs, err := parseState([]byte(res.Messages[0].Data))
	if err != nil {
		slog.Warn("could not parse dry run submissions", "error", err)
		return nil, nil
	}
	slog.Debug("gallery dry run fetched", "count", len(subs))
	return subs, nil
}

// Page returns page (1-based) of the gallery. The first page may be served
// from a fresh cache when the process cannot be reached; a non-empty live
// result always wins and replaces the cached snapshot.
func (s *Service) Page(ctx context.Context, page, limit int) (*Page, error) {
	page, limit = max(page, 1), ClampLimit(limit)

	subs, source, err := s.load(ctx, page == 1)
	if err != nil {
		return nil, err
	}

	out := &Page{Page: page, Limit: limit, Total: len(subs), Source: source, Items: []model.Submission{}}
	start, end := Window(len(subs), page, limit)
	if start == end {
		return out, nil
	}
	out.HasMore = end < len(subs)
	out.Items = s.enrich(ctx, subs[start:end])
	return out, nil
}

// ClampLimit keeps a page size within 1..MaxLimit; values below 1 get the default.
func ClampLimit(limit int) int {
	switch {
	case limit < 1:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// Window returns the bounds of page (1-based) over total items. Pages past
// the end yield an empty window at total.
func Window(total, page, limit int) (start, end int) {
	limit = ClampLimit(limit)
	pages := (total + limit - 1) / limit
	if page < 1 || page-1 >= pages {
		return total, total
	}
	start = (page - 1) * limit
	return start, min(start+limit, total)
}

// Filter returns every submission of the given virtue, compared without
// regard to case. "All" returns everything. When the process cannot be
// reached a fresh cache is filtered instead.
func (s *Service) Filter(ctx context.Context, virtue string) ([]model.Submission, error) {
	all := strings.EqualFold(virtue, AllVirtues)

	live, err := s.Fetch(ctx)
	if err != nil {
		cached, ok := s.cachedByVirtue(ctx, virtue, all)
		if !ok {
			return nil, err
		}
		slog.Warn("filtering cached gallery", "virtue", virtue, "error", err)
		return s.enrich(ctx, cached), nil
	}
	if len(live) > 0 {
		if err := s.cache.SaveSnapshot(ctx, live); err != nil {
			slog.Warn("failed to save gallery snapshot", "error", err)
		}
	}

	subs := live
	if !all {
		subs = live[:0:0]
		for _, sub := range live {
			if strings.EqualFold(sub.Virtue, virtue) {
				subs = append(subs, sub)
			}
		}
	}
	return s.enrich(ctx, subs), nil
}

// cachedByVirtue reads the cache when it is still fresh. ok is false when
// the cache is stale, empty or unreadable.
func (s *Service) cachedByVirtue(ctx context.Context, virtue string, all bool) ([]model.Submission, bool) {
	cached, fresh, err := s.cache.LoadFresh(ctx, s.ttl)
	if err != nil || !fresh || len(cached) == 0 {
		if err != nil {
			slog.Warn("gallery cache unreadable", "error", err)
		}
		return nil, false
	}
	if all {
		return cached, true
	}
	subs, err := s.cache.ListByVirtue(ctx, virtue)
	if err != nil {
		slog.Warn("gallery cache unreadable", "virtue", virtue, "error", err)
		return nil, false
	}
	return subs, true
}

func (s *Service) load(ctx context.Context, useCache bool) ([]model.Submission, string, error) {
	var (
		subs   []model.Submission
		source string
	)
	if useCache {
		cached, ok, err := s.cache.LoadFresh(ctx, s.ttl)
		if err != nil {
			slog.Warn("gallery cache unreadable", "error", err)
		}
		if ok {
			subs, source = cached, "cache"
		}
	}

	live, err := s.Fetch(ctx)
	if err != nil {
		if len(subs) == 0 {
			return nil, "", err
		}
		slog.Warn("serving cached gallery", "error", err)
		return subs, source, nil
	}
	if len(live) > 0 {
		if err := s.cache.SaveSnapshot(ctx, live); err != nil {
			slog.Warn("failed to save gallery snapshot", "error", err)
		}
		slog.Info("gallery refreshed", "count", len(live))
		return live, "live", nil
	}
	if source == "" {
		source = "live"
	}
	return subs, source, nil
}

// enrich merges indexer metadata under each submission. Submission fields win.
func (s *Service) enrich(ctx context.Context, subs []model.Submission) []model.Submission {
	out := make([]model.Submission, len(subs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichConcurrency)
	for i, sub := range subs {
		g.Go(func() error {
			out[i] = sub.Merge(s.metadata(gctx, sub.AssetID))
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// metadata returns memoized metadata for id. Concurrent lookups of the same
// asset share one request; failures are not memoized.
func (s *Service) metadata(ctx context.Context, id string) model.AssetMetadata {
	s.mu.RLock()
	m, ok := s.memo[id]
	s.mu.RUnlock()
	if ok {
		return m
	}

	v, err, _ := s.group.Do(id, func() (any, error) {
		s.mu.RLock()
		m, ok := s.memo[id]
		s.mu.RUnlock()
		if ok {
			return m, nil
		}
		m, err := s.meta.Lookup(ctx, id)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.memo[id] = m
		s.mu.Unlock()
		return m, nil
	})
	if err != nil {
		slog.Warn("asset metadata unavailable", "asset_id", id, "error", err)
		return model.DefaultMetadata(id)
	}
	return v.(model.AssetMetadata)
}

type stateDoc struct {
	Submissions json.RawMessage `json:"submissions"`
}

// parseState decodes a {"submissions": [...]} document into gallery records.
// Records without an asset ID are dropped.
func parseState(raw []byte) ([]model.Submission, error) {
	var doc stateDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	if len(doc.Submissions) == 0 || string(doc.Submissions) == "null" {
		return []model.Submission{}, nil
	}
	var wire []model.WireSubmission
	if err := json.Unmarshal(doc.Submissions, &wire); err != nil {
		return nil, fmt.Errorf("submissions is not a list: %w", err)
	}

	subs := make([]model.Submission, 0, len(wire))
	for _, w := range wire {
		if w.AssetID == "" {
			continue
		}
		subs = append(subs, w.Normalize())
	}
	return subs, nil
}
