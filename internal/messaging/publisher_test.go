package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/shelflog/backend/internal/feed"
	"github.com/anonto42/shelflog/backend/internal/models"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	sent []published
	err  error
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func TestPublishAggregate_RoutesByOutcome(t *testing.T) {
	ch := &fakeChannel{}
	p := NewRabbitMQPublisher(ch, "shelflog.feed")
	shelf := uint(4)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	err := p.PublishAggregate(ctx, feed.AggregateNotice{
		AggregateID: 7,
		ActorID:     1,
		ShelfID:     &shelf,
		ActionKind:  models.ActionItemAdded,
		ItemCount:   3,
		Outcome:     feed.OutcomeExtended,
		OccurredAt:  at,
	})
	require.NoError(t, err)
	require.Len(t, ch.sent, 1)

	sent := ch.sent[0]
	assert.Equal(t, "shelflog.feed", sent.exchange)
	assert.Equal(t, "feed.aggregate.extended", sent.key)
	assert.Equal(t, "application/json", sent.msg.ContentType)
	assert.Equal(t, "req-1", sent.msg.Headers["X-Request-ID"])
	assert.Equal(t, at, sent.msg.Timestamp)

	var body map[string]any
	require.NoError(t, json.Unmarshal(sent.msg.Body, &body))
	assert.EqualValues(t, 7, body["aggregate_id"])
	assert.EqualValues(t, 4, body["shelf_id"])
	assert.Equal(t, "item-added", body["action_kind"])
	assert.Equal(t, "extended", body["outcome"])
}

func TestPublishAggregate_NoRequestIDHeader(t *testing.T) {
	ch := &fakeChannel{}
	p := NewRabbitMQPublisher(ch, "x")

	require.NoError(t, p.PublishAggregate(context.Background(), feed.AggregateNotice{Outcome: feed.OutcomeCreated}))
	assert.Equal(t, "feed.aggregate.created", ch.sent[0].key)
	assert.NotContains(t, ch.sent[0].msg.Headers, "X-Request-ID")
}

func TestPublishAggregate_ReturnsChannelError(t *testing.T) {
	p := NewRabbitMQPublisher(&fakeChannel{err: errors.New("channel closed")}, "x")
	err := p.PublishAggregate(context.Background(), feed.AggregateNotice{Outcome: feed.OutcomeCheckIn})
	assert.EqualError(t, err, "channel closed")
}
