package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	exchange, key string
	msg           amqp.Publishing
	err           error
	closed        bool
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return f.err
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestPublishSendsPersistentJSON(t *testing.T) {
	ch := &fakeChannel{}
	p := NewPublisher(ch, "capitolwatch", "collection.run.completed")

	require.NoError(t, p.Publish(context.Background(), map[string]any{"run_id": "r-1", "status": "Completed"}))
	assert.Equal(t, "capitolwatch", ch.exchange)
	assert.Equal(t, "collection.run.completed", ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)

	var body map[string]string
	require.NoError(t, json.Unmarshal(ch.msg.Body, &body))
	assert.Equal(t, "r-1", body["run_id"])

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestPublishPropagatesChannelError(t *testing.T) {
	p := NewPublisher(&fakeChannel{err: errors.New("channel closed")}, "x", "y")
	assert.EqualError(t, p.Publish(context.Background(), struct{}{}), "channel closed")
}
