package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("no deadline")
	}
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaPublisher_Publish(t *testing.T) {
	t.Parallel()

	w := &fakeWriter{}
	p := &KafkaPublisher{w: w}

	require.NoError(t, p.Publish(context.Background(), Event{Type: UserRegistered, UserUID: "u-1", Email: "a@b.io"}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "u-1", string(w.msgs[0].Key))

	var got Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, UserRegistered, got.Type)
	assert.Equal(t, "a@b.io", got.Email)
	assert.False(t, got.At.IsZero())

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WrapsWriteError(t *testing.T) {
	t.Parallel()

	boom := errors.New("broker down")
	p := &KafkaPublisher{w: &fakeWriter{err: boom}}

	err := p.Publish(context.Background(), Event{Type: UserDeleted, UserUID: "u-2"})
	assert.ErrorIs(t, err, boom)
}

func TestRecorder(t *testing.T) {
	t.Parallel()

	var r Recorder
	require.NoError(t, r.Publish(context.Background(), Event{Type: UserLoggedIn}))
	require.NoError(t, r.Publish(context.Background(), Event{Type: UserDeleted}))
	assert.Equal(t, []string{UserLoggedIn, UserDeleted}, r.Types())

	assert.NoError(t, Nop{}.Publish(context.Background(), Event{}))
}
