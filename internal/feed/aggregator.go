package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/anonto42/shelflog/backend/internal/models"
)

const maxNoteLength = 500

// MaxPayloadBytes bounds the compacted payload of one event.
const MaxPayloadBytes = 4096

// RecordResult is either a recorded aggregate or a suppressed event.
type RecordResult struct {
	Aggregate  *models.Aggregate
	Outcome    Outcome
	Suppressed bool
}

// Aggregator folds incoming events into time-windowed aggregates.
type Aggregator struct {
	store   AggregateStore
	shelves ShelfRegistry
	pub     Publisher
	metrics Metrics
	clock   Clock
	cfg     Config
	log     zerolog.Logger
}

func NewAggregator(store AggregateStore, shelves ShelfRegistry, pub Publisher, metrics Metrics, clock Clock, cfg Config, log zerolog.Logger) *Aggregator {
	if pub == nil {
		pub = NoopPublisher{}
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if clock == nil {
		clock = systemClock{}
	}
	return &Aggregator{
		store:   store,
		shelves: shelves,
		pub:     pub,
		metrics: metrics,
		clock:   clock,
		cfg:     cfg.withDefaults(),
		log:     log.With().Str("component", "aggregator").Logger(),
	}
}

// Record appends an event and folds it into the open aggregate of its
// (actor, shelf, kind) scope, creating one when none is open. Events on
// private, unknown or foreign shelves are stored for audit and reported as
// suppressed.
func (a *Aggregator) Record(ctx context.Context, actorID uint, shelfID *uint, kind models.ActionKind, raw []byte) (*RecordResult, error) {
	if actorID == 0 {
		return nil, ErrValidation("actor is required")
	}
	if !kind.Known() {
		return nil, ErrValidation("unknown action kind")
	}
	if kind == models.ActionCheckIn {
		return nil, ErrValidation("check-ins must be recorded through the check-in endpoint")
	}
	payload, canonical, err := decode(kind, raw)
	if err != nil {
		return nil, err
	}

	if shelfID != nil {
		feedable, err := a.shelfFeedable(ctx, actorID, *shelfID)
		if err != nil {
			return nil, err
		}
		if !feedable {
			return a.suppress(ctx, actorID, shelfID, kind, canonical)
		}
	}

	key := AggregateKey{ActorID: actorID, ShelfID: shelfID, ActionKind: kind}
	var (
		result  *models.Aggregate
		outcome Outcome
	)
	err = a.store.WithinTx(ctx, func(tx Tx) error {
		now := a.clock.Now().UTC()
		agg, err := tx.LockOpenAggregate(ctx, key, now)
		if err != nil {
			return err
		}
		if agg != nil && !agg.OpenAt(now) {
			agg = nil
		}

		if agg == nil {
			agg = &models.Aggregate{
				ActorID:        actorID,
				ShelfID:        shelfID,
				ActionKind:     kind,
				WindowStart:    now,
				WindowEnd:      now.Add(a.cfg.Window),
				ItemCount:      payload.Increment(),
				LastActivityAt: now,
			}
			if err := agg.SetPreviews([]json.RawMessage{canonical}); err != nil {
				return err
			}
			if err := tx.CreateAggregate(ctx, agg); err != nil {
				return err
			}
			outcome = OutcomeCreated
		} else {
			agg.ItemCount = models.AddCounts(agg.ItemCount, payload.Increment())
			agg.LastActivityAt = now
			previews, err := agg.Previews()
			if err != nil {
				// Unreadable previews are left alone; the count stays authoritative.
				a.log.Warn().Err(err).Uint("aggregate_id", agg.ID).Msg("skipping preview append")
			} else if len(previews) < a.cfg.PreviewCap {
				if err := agg.SetPreviews(append(previews, canonical)); err != nil {
					return err
				}
			}
			if err := tx.SaveAggregate(ctx, agg); err != nil {
				return err
			}
			outcome = OutcomeExtended
		}

		id := agg.ID
		result = agg
		return tx.AppendEvent(ctx, &models.ActivityEvent{
			ActorID:     actorID,
			ShelfID:     shelfID,
			ActionKind:  kind,
			Payload:     datatypes.JSON(canonical),
			AggregateID: &id,
			CreatedAt:   now,
		})
	})
	if err != nil {
		return nil, a.fail(err)
	}

	a.committed(ctx, result, outcome)
	return &RecordResult{Aggregate: result, Outcome: outcome}, nil
}

// CheckInInput carries a one-shot status update on a single item.
type CheckInInput struct {
	ActorID    uint
	Status     models.CheckInStatus
	Visibility models.Visibility
	Note       string
	Payload    []byte
}

// CheckIn creates a standalone aggregate for a status update. Check-ins
// never join a window.
func (a *Aggregator) CheckIn(ctx context.Context, in CheckInInput) (*RecordResult, error) {
	if in.ActorID == 0 {
		return nil, ErrValidation("actor is required")
	}
	if !in.Status.Valid() {
		return nil, ErrValidation("invalid check-in status")
	}
	switch in.Visibility {
	case models.VisibilityPublic, models.VisibilityFriends:
	case models.VisibilityPrivate:
		return nil, ErrValidation("private check-ins are not supported")
	default:
		return nil, ErrValidation("invalid check-in visibility")
	}
	if utf8.RuneCountInString(in.Note) > maxNoteLength {
		return nil, ErrValidation("check-in note is too long")
	}
	payload, canonical, err := decode(models.ActionCheckIn, in.Payload)
	if err != nil {
		return nil, err
	}
	if item, ok := payload.(*models.ItemPayload); !ok || !item.HasReference() {
		return nil, ErrValidation("check-in must reference a collectable or manual item")
	}

	status, vis := in.Status, in.Visibility
	var note *string
	if in.Note != "" {
		n := in.Note
		note = &n
	}

	var agg *models.Aggregate
	err = a.store.WithinTx(ctx, func(tx Tx) error {
		now := a.clock.Now().UTC()
		agg = &models.Aggregate{
			ActorID:           in.ActorID,
			ActionKind:        models.ActionCheckIn,
			WindowStart:       now,
			WindowEnd:         now,
			ItemCount:         1,
			LastActivityAt:    now,
			CheckInStatus:     &status,
			CheckInVisibility: &vis,
			CheckInNote:       note,
		}
		if err := agg.SetPreviews([]json.RawMessage{canonical}); err != nil {
			return err
		}
		if err := tx.CreateAggregate(ctx, agg); err != nil {
			return err
		}
		id := agg.ID
		return tx.AppendEvent(ctx, &models.ActivityEvent{
			ActorID:     in.ActorID,
			ActionKind:  models.ActionCheckIn,
			Payload:     datatypes.JSON(canonical),
			AggregateID: &id,
			CreatedAt:   now,
		})
	})
	if err != nil {
		return nil, a.fail(err)
	}

	a.committed(ctx, agg, OutcomeCheckIn)
	return &RecordResult{Aggregate: agg, Outcome: OutcomeCheckIn}, nil
}

// shelfFeedable reports whether activity on the shelf may enter feeds. A
// shelf owned by someone else is treated like an unknown one.
func (a *Aggregator) shelfFeedable(ctx context.Context, actorID, shelfID uint) (bool, error) {
	ownerID, vis, err := a.shelves.GetAccess(ctx, shelfID)
	if IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, wrapInternal("shelf lookup failed", err)
	}
	if ownerID != actorID {
		return false, nil
	}
	return vis == models.VisibilityPublic || vis == models.VisibilityFriends, nil
}

func (a *Aggregator) suppress(ctx context.Context, actorID uint, shelfID *uint, kind models.ActionKind, canonical []byte) (*RecordResult, error) {
	err := a.store.WithinTx(ctx, func(tx Tx) error {
		return tx.AppendEvent(ctx, &models.ActivityEvent{
			ActorID:    actorID,
			ShelfID:    shelfID,
			ActionKind: kind,
			Payload:    datatypes.JSON(canonical),
			CreatedAt:  a.clock.Now().UTC(),
		})
	})
	if err != nil {
		return nil, a.fail(err)
	}
	a.metrics.RecordOutcome(string(OutcomeSuppressed))
	return &RecordResult{Outcome: OutcomeSuppressed, Suppressed: true}, nil
}

func (a *Aggregator) committed(ctx context.Context, agg *models.Aggregate, outcome Outcome) {
	a.metrics.RecordOutcome(string(outcome))
	notice := AggregateNotice{
		AggregateID: agg.ID,
		ActorID:     agg.ActorID,
		ShelfID:     agg.ShelfID,
		ActionKind:  agg.ActionKind,
		ItemCount:   agg.ItemCount,
		Outcome:     outcome,
		OccurredAt:  agg.LastActivityAt,
	}
	if err := a.pub.PublishAggregate(ctx, notice); err != nil {
		a.log.Warn().Err(err).Uint("aggregate_id", agg.ID).Msg("publish aggregate notice failed")
	}
}

func (a *Aggregator) fail(err error) error {
	if IsRetryable(err) {
		a.metrics.RecordConflict()
		return err
	}
	return wrapInternal("record failed", err)
}

// decode validates raw against the kind's schema and returns its compact form.
func decode(kind models.ActionKind, raw []byte) (models.Payload, []byte, error) {
	payload, err := models.DecodePayload(kind, raw)
	if err != nil {
		if errors.Is(err, models.ErrMalformedPayload) {
			return nil, nil, ErrValidation(err.Error())
		}
		return nil, nil, wrapInternal("payload decode failed", err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return payload, []byte("{}"), nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, nil, ErrValidation("malformed payload")
	}
	if buf.Len() > MaxPayloadBytes {
		return nil, nil, ErrValidation(fmt.Sprintf("payload exceeds %d bytes", MaxPayloadBytes))
	}
	return payload, buf.Bytes(), nil
}
