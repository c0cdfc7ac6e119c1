package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type published struct {
	exchange, key string
	msg           amqp.Publishing
}

type mockChannel struct {
	declared   []string
	published  []published
	declareErr error
	publishErr error
	closed     bool
}

func (m *mockChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	m.declared = append(m.declared, name)
	return amqp.Queue{Name: name}, m.declareErr
}

func (m *mockChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (m *mockChannel) Close() error {
	m.closed = true
	return nil
}

func TestAMQPPublisher_Publish(t *testing.T) {
	ch := &mockChannel{}
	p, err := newAMQPPublisher(ch, "cell.occupancy", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []string{"cell.occupancy"}, ch.declared)

	occupant := int64(7)
	event := OccupancyEvent{
		Type:       TypeCellAssigned,
		CellID:     11,
		RackID:     2,
		Position:   "A1",
		OccupantID: &occupant,
		ActorID:    3,
		Version:    2,
		OccurredAt: time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.Publish(context.Background(), event))

	require.Len(t, ch.published, 1)
	got := ch.published[0]
	assert.Equal(t, "", got.exchange)
	assert.Equal(t, "cell.occupancy", got.key)
	assert.Equal(t, "application/json", got.msg.ContentType)
	assert.Equal(t, amqp.Persistent, got.msg.DeliveryMode)
	assert.Equal(t, TypeCellAssigned, got.msg.Type)

	var decoded OccupancyEvent
	require.NoError(t, json.Unmarshal(got.msg.Body, &decoded))
	assert.Equal(t, event, decoded)

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestAMQPPublisher_Errors(t *testing.T) {
	_, err := newAMQPPublisher(&mockChannel{declareErr: errors.New("no access")}, "q", zap.NewNop())
	assert.ErrorContains(t, err, "queue declare failed")

	p, err := newAMQPPublisher(&mockChannel{publishErr: errors.New("closed")}, "q", zap.NewNop())
	require.NoError(t, err)
	assert.ErrorContains(t, p.Publish(context.Background(), OccupancyEvent{Type: TypeCellReleased}), "publish failed")
}
