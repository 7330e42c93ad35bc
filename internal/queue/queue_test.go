package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	require.NoError(t, q.Publish(ctx, Message{Type: TypeMark, Body: []byte("att-1")}))

	messages, err := q.Consume(ctx)
	require.NoError(t, err)

	select {
	case msg := <-messages:
		assert.Equal(t, TypeMark, msg.Type)
		assert.Equal(t, "att-1", string(msg.Body))
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
}

func TestInMemoryPublishHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := NewInMemory(1)
	require.NoError(t, q.Publish(ctx, Message{Type: TypeMark}))

	cancel()
	err := q.Publish(ctx, Message{Type: TypeMark}) // buffer full, ctx done
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSerializeRoundTrip(t *testing.T) {
	msg, err := deserialize(serialize(Message{Type: TypeMark, Body: []byte("att|2")}))
	require.NoError(t, err)
	assert.Equal(t, TypeMark, msg.Type)
	assert.Equal(t, "att|2", string(msg.Body))
}

func TestDeserializeWithoutType(t *testing.T) {
	msg, err := deserialize("raw-body")
	require.NoError(t, err)
	assert.Empty(t, msg.Type)
	assert.Equal(t, "raw-body", string(msg.Body))
}
