package feed

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/anonto42/shelflog/backend/internal/models"
)

// itemResolver is one strategy for producing an entry's item list. ok is
// false when the strategy does not apply to the aggregate. previews holds
// the items already synthesized from the aggregate's preview payloads.
type itemResolver interface {
	resolveItems(ctx context.Context, agg *models.Aggregate, previews []EntryItem) (items []EntryItem, ok bool)
}

// Reconstructor expands aggregates into renderable feed entries. It only
// reads, and takes no locks.
type Reconstructor struct {
	store   AggregateStore
	shelves ShelfRegistry
	users   UserDirectory
	social  *SocialSummarizer
	gate    gate
	metrics Metrics
	cfg     Config
	log     zerolog.Logger

	detail []itemResolver
}

func NewReconstructor(store AggregateStore, shelves ShelfRegistry, users UserDirectory, catalog ItemCatalog, friends FriendGraph, social *SocialSummarizer, metrics Metrics, cfg Config, log zerolog.Logger) *Reconstructor {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	r := &Reconstructor{
		store:   store,
		shelves: shelves,
		users:   users,
		social:  social,
		gate:    gate{friends: friends},
		metrics: metrics,
		cfg:     cfg.withDefaults(),
		log:     log.With().Str("component", "reconstructor").Logger(),
	}
	r.detail = []itemResolver{
		&eventItemResolver{store: store, catalog: catalog, limit: r.cfg.DetailItemLimit, r: r},
		previewResolver{},
	}
	return r
}

// ExpandBatch renders a page of aggregates from their preview payloads.
// Shelves, owners and social summaries are fetched once for the batch.
func (r *Reconstructor) ExpandBatch(ctx context.Context, aggs []models.Aggregate, viewerID uint) ([]FeedEntry, error) {
	if len(aggs) == 0 {
		return []FeedEntry{}, nil
	}
	defer r.observe(time.Now())

	ids := make([]uint, 0, len(aggs))
	var owners, shelfIDs []uint
	for i := range aggs {
		ids = append(ids, aggs[i].ID)
		owners = appendUnique(owners, aggs[i].ActorID)
		if aggs[i].ShelfID != nil {
			shelfIDs = appendUnique(shelfIDs, *aggs[i].ShelfID)
		}
	}

	meta, counts, err := r.shelfInfo(ctx, shelfIDs)
	if err != nil {
		return nil, err
	}
	social, err := r.social.Summaries(ctx, ids, viewerID)
	if err != nil {
		return nil, err
	}
	users, err := r.lookupUsers(ctx, owners, social)
	if err != nil {
		return nil, err
	}

	entries := make([]FeedEntry, 0, len(aggs))
	for i := range aggs {
		agg := &aggs[i]
		items, declared := r.previewItems(agg)
		entries = append(entries, r.render(agg, meta, counts, users, social[agg.ID], items, declared))
	}
	return entries, nil
}

// Expand renders one aggregate with full fidelity. Entries the viewer may
// not see are reported exactly like missing ones.
func (r *Reconstructor) Expand(ctx context.Context, aggregateID, viewerID uint) (*FeedEntry, error) {
	defer r.observe(time.Now())

	agg, meta, err := r.loadVisible(ctx, aggregateID, viewerID)
	if err != nil {
		return nil, err
	}
	var counts map[uint]int
	if agg.ShelfID != nil {
		if counts, err = r.shelves.ItemCounts(ctx, []uint{*agg.ShelfID}); err != nil {
			return nil, wrapInternal("shelf item counts failed", err)
		}
	}

	previews, declared := r.previewItems(agg)
	var items []EntryItem
	for _, res := range r.detail {
		var ok bool
		if items, ok = res.resolveItems(ctx, agg, previews); ok {
			break
		}
	}

	social, err := r.social.Summaries(ctx, []uint{agg.ID}, viewerID)
	if err != nil {
		return nil, err
	}
	users, err := r.lookupUsers(ctx, []uint{agg.ActorID}, social)
	if err != nil {
		return nil, err
	}
	entry := r.render(agg, meta, counts, users, social[agg.ID], items, declared)
	return &entry, nil
}

// loadVisible fetches an aggregate and its live shelf metadata, failing with
// not-found when the viewer is not allowed to see it.
func (r *Reconstructor) loadVisible(ctx context.Context, aggregateID, viewerID uint) (*models.Aggregate, map[uint]models.ShelfMetadata, error) {
	agg, err := r.store.GetAggregate(ctx, aggregateID)
	if err != nil {
		return nil, nil, wrapInternal("aggregate lookup failed", err)
	}
	var meta map[uint]models.ShelfMetadata
	var shelf *models.ShelfMetadata
	if agg.ShelfID != nil {
		if meta, err = r.shelves.GetMetadata(ctx, []uint{*agg.ShelfID}); err != nil {
			return nil, nil, wrapInternal("shelf lookup failed", err)
		}
		if m, ok := meta[*agg.ShelfID]; ok {
			shelf = &m
		}
	}
	ok, err := r.gate.allows(ctx, viewerID, agg.ActorID, EffectiveVisibility(agg, shelf))
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, ErrNotFound("feed entry not found")
	}
	return agg, meta, nil
}

func (r *Reconstructor) render(agg *models.Aggregate, meta map[uint]models.ShelfMetadata, counts map[uint]int, users map[uint]models.UserCompact, social SocialSummary, items []EntryItem, declared int) FeedEntry {
	if items == nil {
		items = []EntryItem{}
	}
	owner, ok := users[agg.ActorID]
	if !ok {
		owner = models.UserCompact{ID: agg.ActorID}
	}
	if social.TopComment != nil {
		if author, ok := users[social.TopComment.Author.ID]; ok {
			tc := *social.TopComment
			tc.Author = author
			social.TopComment = &tc
		}
	}

	entry := FeedEntry{
		ID:             agg.ID,
		ActionKind:     agg.ActionKind,
		Owner:          owner,
		Items:          items,
		EventItemCount: max(agg.ItemCount, declared, len(items)),
		WindowStart:    agg.WindowStart,
		WindowEnd:      agg.WindowEnd,
		LastActivityAt: agg.LastActivityAt,
		Social:         social,
	}
	if agg.ShelfID != nil {
		if m, ok := meta[*agg.ShelfID]; ok && m.OwnerID == agg.ActorID {
			entry.Shelf = &ShelfSummary{
				ID:          m.ID,
				Name:        m.Name,
				Description: m.Description,
				Visibility:  m.Visibility,
				ItemCount:   counts[m.ID],
			}
		}
	}
	if agg.IsCheckIn() && agg.CheckInStatus != nil {
		detail := &CheckInDetail{Status: *agg.CheckInStatus, Visibility: models.VisibilityPublic}
		if agg.CheckInVisibility != nil {
			detail.Visibility = *agg.CheckInVisibility
		}
		if agg.CheckInNote != nil {
			detail.Note = *agg.CheckInNote
		}
		entry.CheckIn = detail
	}
	return entry
}

// previewItems synthesizes items from the retained previews and sums the
// counts the payloads declare. Unreadable previews are skipped.
func (r *Reconstructor) previewItems(agg *models.Aggregate) ([]EntryItem, int) {
	raws, err := agg.Previews()
	if err != nil {
		r.degraded(agg.ID, err, "unreadable preview list")
		return []EntryItem{}, 0
	}
	items := make([]EntryItem, 0, len(raws))
	declared := 0
	for _, raw := range raws {
		p, err := models.DecodePayload(agg.ActionKind, raw)
		if err != nil {
			r.degraded(agg.ID, err, "unreadable preview payload")
			continue
		}
		declared = models.AddCounts(declared, models.DeclaredCount(p))
		if item, ok := itemFromPayload(p); ok {
			items = append(items, item)
		}
	}
	return items, declared
}

func (r *Reconstructor) shelfInfo(ctx context.Context, ids []uint) (map[uint]models.ShelfMetadata, map[uint]int, error) {
	if len(ids) == 0 {
		return map[uint]models.ShelfMetadata{}, map[uint]int{}, nil
	}
	meta, err := r.shelves.GetMetadata(ctx, ids)
	if err != nil {
		return nil, nil, wrapInternal("shelf lookup failed", err)
	}
	counts, err := r.shelves.ItemCounts(ctx, ids)
	if err != nil {
		return nil, nil, wrapInternal("shelf item counts failed", err)
	}
	return meta, counts, nil
}

func (r *Reconstructor) lookupUsers(ctx context.Context, ids []uint, social map[uint]SocialSummary) (map[uint]models.UserCompact, error) {
	for _, s := range social {
		if s.TopComment != nil {
			ids = appendUnique(ids, s.TopComment.Author.ID)
		}
	}
	users, err := r.users.CompactUsers(ctx, ids)
	if err != nil {
		return nil, wrapInternal("user lookup failed", err)
	}
	return users, nil
}

func (r *Reconstructor) degraded(aggregateID uint, err error, msg string) {
	r.metrics.RecordDegraded()
	r.log.Warn().Err(err).Uint("aggregate_id", aggregateID).Msg(msg)
}

func (r *Reconstructor) observe(start time.Time) {
	r.metrics.ObserveExpand(time.Since(start))
}

type previewResolver struct{}

func (previewResolver) resolveItems(ctx context.Context, agg *models.Aggregate, previews []EntryItem) ([]EntryItem, bool) {
	return previews, true
}

// eventItemResolver re-reads the aggregate's events and resolves the item
// references they recorded against the current catalog.
type eventItemResolver struct {
	store   AggregateStore
	catalog ItemCatalog
	limit   int
	r       *Reconstructor
}

func (e *eventItemResolver) resolveItems(ctx context.Context, agg *models.Aggregate, _ []EntryItem) ([]EntryItem, bool) {
	events, err := e.store.EventsForAggregate(ctx, agg.ID, e.limit)
	if err != nil {
		e.r.degraded(agg.ID, err, "event lookup failed")
		return nil, false
	}

	type ref struct {
		collectable string
		manual      uint
	}
	var (
		refs         []*models.ItemPayload
		seen         = map[ref]bool{}
		collectables []string
		manuals      []uint
	)
	for _, ev := range events {
		p, err := models.DecodePayload(ev.ActionKind, ev.Payload)
		if err != nil {
			continue
		}
		item, ok := p.(*models.ItemPayload)
		if !ok || !item.HasReference() {
			continue
		}
		k := ref{collectable: item.CollectableID, manual: item.ManualItemID}
		if seen[k] {
			continue
		}
		seen[k] = true
		refs = append(refs, item)
		if item.CollectableID != "" {
			collectables = append(collectables, item.CollectableID)
		} else {
			manuals = append(manuals, item.ManualItemID)
		}
	}
	if len(refs) == 0 {
		return nil, false
	}

	live := map[string]models.Collectable{}
	if len(collectables) > 0 {
		if live, err = e.catalog.Collectables(ctx, collectables); err != nil {
			e.r.degraded(agg.ID, err, "catalog lookup failed")
			return nil, false
		}
	}
	manual := map[uint]models.ManualItem{}
	if len(manuals) > 0 {
		if manual, err = e.catalog.ManualItems(ctx, manuals); err != nil {
			e.r.degraded(agg.ID, err, "manual item lookup failed")
			return nil, false
		}
	}

	items := make([]EntryItem, 0, len(refs))
	for _, p := range refs {
		item, _ := itemFromPayload(p)
		if p.CollectableID != "" {
			if c, ok := live[p.CollectableID]; ok {
				item.Title = c.Title
				item.Creator = strings.Join(c.Creators, ", ")
				item.CoverURL = c.CoverURL
			}
		} else if m, ok := manual[p.ManualItemID]; ok {
			item.Title = m.Title
			item.Creator = m.Creator
			item.CoverURL = m.CoverURL
		}
		items = append(items, item)
	}
	return items, true
}

func appendUnique(ids []uint, id uint) []uint {
	if containsID(ids, id) {
		return ids
	}
	return append(ids, id)
}
