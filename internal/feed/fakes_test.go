package feed

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/anonto42/shelflog/backend/internal/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memStore is an in-memory AggregateStore. Each scope key has its own mutex,
// held from LockOpenAggregate until the transaction ends.
type memStore struct {
	shelves *fakeShelves

	mu        sync.Mutex
	aggs      map[uint]models.Aggregate
	events    []models.ActivityEvent
	nextAgg   uint
	nextEvent uint

	keyMu sync.Mutex
	keys  map[string]*sync.Mutex

	txErr      error
	listCalls  int
	eventCalls int
	eventsErr  error
	lastQuery  FeedQuery

	// closedReads makes LockOpenAggregate return closed windows too.
	closedReads bool
}

func newMemStore(shelves *fakeShelves) *memStore {
	return &memStore{shelves: shelves, aggs: map[uint]models.Aggregate{}, keys: map[string]*sync.Mutex{}}
}

func (s *memStore) keyLock(key string) *sync.Mutex {
	s.keyMu.Lock()
	defer s.keyMu.Unlock()
	m, ok := s.keys[key]
	if !ok {
		m = &sync.Mutex{}
		s.keys[key] = m
	}
	return m
}

type memTx struct {
	s      *memStore
	held   []*sync.Mutex
	aggs   []*models.Aggregate
	events []*models.ActivityEvent
}

func (s *memStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	if s.txErr != nil {
		return s.txErr
	}
	tx := &memTx{s: s}
	defer func() {
		for _, m := range tx.held {
			m.Unlock()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range tx.aggs {
		s.aggs[a.ID] = *a
	}
	for _, ev := range tx.events {
		s.nextEvent++
		ev.ID = s.nextEvent
		s.events = append(s.events, *ev)
	}
	return nil
}

func (t *memTx) LockOpenAggregate(ctx context.Context, key AggregateKey, now time.Time) (*models.Aggregate, error) {
	m := t.s.keyLock(key.String())
	m.Lock()
	t.held = append(t.held, m)

	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var found *models.Aggregate
	for _, a := range t.s.aggs {
		if a.ActorID != key.ActorID || a.ActionKind != key.ActionKind || !sameShelf(a.ShelfID, key.ShelfID) {
			continue
		}
		if !t.s.closedReads && !a.OpenAt(now) {
			continue
		}
		if found == nil || a.WindowStart.After(found.WindowStart) {
			cp := a
			found = &cp
		}
	}
	return found, nil
}

func (t *memTx) CreateAggregate(ctx context.Context, agg *models.Aggregate) error {
	t.s.mu.Lock()
	t.s.nextAgg++
	agg.ID = t.s.nextAgg
	t.s.mu.Unlock()
	t.aggs = append(t.aggs, agg)
	return nil
}

func (t *memTx) SaveAggregate(ctx context.Context, agg *models.Aggregate) error {
	t.aggs = append(t.aggs, agg)
	return nil
}

func (t *memTx) AppendEvent(ctx context.Context, ev *models.ActivityEvent) error {
	t.events = append(t.events, ev)
	return nil
}

func (s *memStore) GetAggregate(ctx context.Context, id uint) (*models.Aggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.aggs[id]
	if !ok {
		return nil, ErrNotFound("feed entry not found")
	}
	return &a, nil
}

func (s *memStore) ListAggregates(ctx context.Context, q FeedQuery) ([]models.Aggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	s.lastQuery = q

	var out []models.Aggregate
	for _, a := range s.aggs {
		if q.OwnerIDs != nil && !containsID(q.OwnerIDs, a.ActorID) {
			continue
		}
		if q.ExcludeOwnerID != 0 && a.ActorID == q.ExcludeOwnerID {
			continue
		}
		if q.ActionKind != "" && a.ActionKind != q.ActionKind {
			continue
		}
		var shelf *models.ShelfMetadata
		if a.ShelfID != nil {
			shelf = s.shelves.lookup(*a.ShelfID)
		}
		if !q.Admits(a.ActorID, EffectiveVisibility(&a, shelf)) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastActivityAt.Equal(out[j].LastActivityAt) {
			return out[i].LastActivityAt.After(out[j].LastActivityAt)
		}
		return out[i].ID > out[j].ID
	})
	if q.Offset >= len(out) {
		return []models.Aggregate{}, nil
	}
	out = out[q.Offset:]
	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *memStore) EventsForAggregate(ctx context.Context, aggregateID uint, limit int) ([]models.ActivityEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventCalls++
	if s.eventsErr != nil {
		return nil, s.eventsErr
	}
	var out []models.ActivityEvent
	for _, ev := range s.events {
		if ev.AggregateID != nil && *ev.AggregateID == aggregateID {
			out = append(out, ev)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *memStore) allAggregates() []models.Aggregate {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Aggregate, 0, len(s.aggs))
	for _, a := range s.aggs {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memStore) allEvents() []models.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ActivityEvent(nil), s.events...)
}

// put stores an aggregate directly, bypassing the aggregator.
func (s *memStore) put(a models.Aggregate) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextAgg++
	a.ID = s.nextAgg
	s.aggs[a.ID] = a
	return a.ID
}

func sameShelf(a, b *uint) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

type fakeShelves struct {
	mu         sync.Mutex
	shelves    map[uint]models.ShelfMetadata
	items      map[uint]int
	metaCalls  int
	countCalls int
}

func newShelves() *fakeShelves {
	return &fakeShelves{shelves: map[uint]models.ShelfMetadata{}, items: map[uint]int{}}
}

func (f *fakeShelves) add(id, owner uint, vis models.Visibility) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shelves[id] = models.ShelfMetadata{ID: id, OwnerID: owner, Name: "Shelf", Visibility: vis}
}

func (f *fakeShelves) setVisibility(id uint, vis models.Visibility) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.shelves[id]
	m.Visibility = vis
	f.shelves[id] = m
}

func (f *fakeShelves) lookup(id uint) *models.ShelfMetadata {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.shelves[id]
	if !ok {
		return nil
	}
	return &m
}

func (f *fakeShelves) GetAccess(ctx context.Context, shelfID uint) (uint, models.Visibility, error) {
	if m := f.lookup(shelfID); m != nil {
		return m.OwnerID, m.Visibility, nil
	}
	return 0, "", ErrNotFound("shelf not found")
}

func (f *fakeShelves) GetMetadata(ctx context.Context, ids []uint) (map[uint]models.ShelfMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metaCalls++
	out := map[uint]models.ShelfMetadata{}
	for _, id := range ids {
		if m, ok := f.shelves[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

func (f *fakeShelves) ItemCounts(ctx context.Context, ids []uint) (map[uint]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countCalls++
	out := map[uint]int{}
	for _, id := range ids {
		out[id] = f.items[id]
	}
	return out, nil
}

type fakeFriends struct {
	mu        sync.Mutex
	edges     map[[2]uint]bool
	listCalls int
	pairCalls int
}

func newFriends() *fakeFriends { return &fakeFriends{edges: map[[2]uint]bool{}} }

func (f *fakeFriends) befriend(a, b uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edges[[2]uint{a, b}] = true
	f.edges[[2]uint{b, a}] = true
}

func (f *fakeFriends) AcceptedFriendIDs(ctx context.Context, userID uint) ([]uint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	var out []uint
	for e := range f.edges {
		if e[0] == userID {
			out = append(out, e[1])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (f *fakeFriends) AreFriends(ctx context.Context, a, b uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pairCalls++
	return f.edges[[2]uint{a, b}], nil
}

type fakeUsers struct {
	mu    sync.Mutex
	users map[uint]models.UserCompact
	calls int
}

func (f *fakeUsers) CompactUsers(ctx context.Context, ids []uint) (map[uint]models.UserCompact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	out := map[uint]models.UserCompact{}
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

type fakeCatalog struct {
	collectables map[string]models.Collectable
	manual       map[uint]models.ManualItem
	err          error
	calls        int
}

func (f *fakeCatalog) Collectables(ctx context.Context, ids []string) (map[string]models.Collectable, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := map[string]models.Collectable{}
	for _, id := range ids {
		if c, ok := f.collectables[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

func (f *fakeCatalog) ManualItems(ctx context.Context, ids []uint) (map[uint]models.ManualItem, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := map[uint]models.ManualItem{}
	for _, id := range ids {
		if m, ok := f.manual[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

type fakeSocial struct {
	mu       sync.Mutex
	likes    map[uint]map[uint]bool
	comments []models.FeedComment
	calls    map[string]int
}

func newSocial() *fakeSocial {
	return &fakeSocial{likes: map[uint]map[uint]bool{}, calls: map[string]int{}}
}

func (f *fakeSocial) count(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

func (f *fakeSocial) LikeCounts(ctx context.Context, ids []uint) (map[uint]int, error) {
	f.count("LikeCounts")
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[uint]int{}
	for _, id := range ids {
		if n := len(f.likes[id]); n > 0 {
			out[id] = n
		}
	}
	return out, nil
}

func (f *fakeSocial) CommentCounts(ctx context.Context, ids []uint) (map[uint]int, error) {
	f.count("CommentCounts")
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[uint]int{}
	for _, c := range f.comments {
		if containsID(ids, c.AggregateID) {
			out[c.AggregateID]++
		}
	}
	return out, nil
}

func (f *fakeSocial) LikedBy(ctx context.Context, ids []uint, userID uint) (map[uint]bool, error) {
	f.count("LikedBy")
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[uint]bool{}
	for _, id := range ids {
		if f.likes[id][userID] {
			out[id] = true
		}
	}
	return out, nil
}

func (f *fakeSocial) TopComments(ctx context.Context, ids []uint, policy TopCommentPolicy) (map[uint]models.FeedComment, error) {
	f.count("TopComments")
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[uint]models.FeedComment{}
	for _, c := range f.comments {
		if !containsID(ids, c.AggregateID) {
			continue
		}
		cur, ok := out[c.AggregateID]
		if !ok {
			out[c.AggregateID] = c
			continue
		}
		later := c.CreatedAt.After(cur.CreatedAt) || (c.CreatedAt.Equal(cur.CreatedAt) && c.ID > cur.ID)
		if later == (policy == TopCommentLatest) {
			out[c.AggregateID] = c
		}
	}
	return out, nil
}

func (f *fakeSocial) AddLike(ctx context.Context, like *models.FeedLike) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.likes[like.AggregateID] == nil {
		f.likes[like.AggregateID] = map[uint]bool{}
	}
	f.likes[like.AggregateID][like.UserID] = true
	return nil
}

func (f *fakeSocial) RemoveLike(ctx context.Context, aggregateID, userID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.likes[aggregateID][userID] {
		return ErrNotFound("like not found")
	}
	delete(f.likes[aggregateID], userID)
	return nil
}

func (f *fakeSocial) AddComment(ctx context.Context, c *models.FeedComment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = uint(len(f.comments) + 1)
	f.comments = append(f.comments, *c)
	return nil
}

func (f *fakeSocial) ListComments(ctx context.Context, aggregateID uint, limit, offset int) ([]models.FeedComment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.FeedComment
	for _, c := range f.comments {
		if c.AggregateID == aggregateID {
			out = append(out, c)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type recordingPublisher struct {
	mu      sync.Mutex
	notices []AggregateNotice
	err     error
}

func (p *recordingPublisher) PublishAggregate(ctx context.Context, n AggregateNotice) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notices = append(p.notices, n)
	return p.err
}

type recordingMetrics struct {
	mu        sync.Mutex
	outcomes  map[string]int
	conflicts int
	scopes    map[string]int
	degraded  int
	expands   int
}

func newMetrics() *recordingMetrics {
	return &recordingMetrics{outcomes: map[string]int{}, scopes: map[string]int{}}
}

func (m *recordingMetrics) RecordOutcome(o string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[o]++
}

func (m *recordingMetrics) RecordConflict() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conflicts++
}

func (m *recordingMetrics) RecordFeedRequest(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scopes[s]++
}

func (m *recordingMetrics) RecordDegraded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.degraded++
}

func (m *recordingMetrics) ObserveExpand(time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expands++
}

type harness struct {
	clock   *fakeClock
	store   *memStore
	shelves *fakeShelves
	friends *fakeFriends
	users   *fakeUsers
	catalog *fakeCatalog
	social  *fakeSocial
	pub     *recordingPublisher
	metrics *recordingMetrics
	svc     *Service
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		clock:   newClock(),
		shelves: newShelves(),
		friends: newFriends(),
		users: &fakeUsers{users: map[uint]models.UserCompact{
			1: {ID: 1, Name: "Ada"},
			2: {ID: 2, Name: "Bo"},
			3: {ID: 3, Name: "Cy"},
			4: {ID: 4, Name: "Di"},
		}},
		catalog: &fakeCatalog{collectables: map[string]models.Collectable{}, manual: map[uint]models.ManualItem{}},
		social:  newSocial(),
		pub:     &recordingPublisher{},
		metrics: newMetrics(),
	}
	h.store = newMemStore(h.shelves)
	h.svc = NewService(Deps{
		Store:     h.store,
		Shelves:   h.shelves,
		Friends:   h.friends,
		Users:     h.users,
		Catalog:   h.catalog,
		Social:    h.social,
		Publisher: h.pub,
		Metrics:   h.metrics,
		Clock:     h.clock,
		Logger:    zerolog.Nop(),
	}, cfg)
	return h
}

func (h *harness) record(t *testing.T, actor uint, shelf *uint, kind models.ActionKind, payload string) *RecordResult {
	t.Helper()
	res, err := h.svc.Record(context.Background(), actor, shelf, kind, []byte(payload))
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	return res
}

func ptr[T any](v T) *T { return &v }

var errBoom = errors.New("boom")
