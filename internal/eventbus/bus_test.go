package eventbus

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func startBus(t *testing.T) *Bus {
	t.Helper()
	b := New(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	b.Start(ctx)
	t.Cleanup(func() {
		_ = b.Shutdown(context.Background())
		cancel()
	})
	return b
}

func receive(t *testing.T, s *Subscriber) Event {
	t.Helper()
	select {
	case e := <-s.Events:
		return e
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
		return Event{}
	}
}

func TestBus_PublishToChannelSubscribers(t *testing.T) {
	b := startBus(t)

	kits, err := b.Subscribe("project-kits-changed")
	require.NoError(t, err)
	registry, err := b.Subscribe("project-registry-changed")
	require.NoError(t, err)

	require.NoError(t, b.Publish("project-kits-changed", []string{"/p/.bluekit/kits/a.md"}))

	e := receive(t, kits)
	assert.Equal(t, "project-kits-changed", e.Channel)
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.Timestamp.IsZero())

	var paths []string
	require.NoError(t, json.Unmarshal(e.Payload, &paths))
	assert.Equal(t, []string{"/p/.bluekit/kits/a.md"}, paths)

	select {
	case e := <-registry.Events:
		t.Fatalf("registry subscriber got %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_UnitPayload(t *testing.T) {
	b := startBus(t)

	s, err := b.Subscribe("project-registry-changed")
	require.NoError(t, err)

	require.NoError(t, b.Publish("project-registry-changed", nil))
	e := receive(t, s)
	assert.JSONEq(t, "null", string(e.Payload))
}

func TestBus_WildcardSubscriber(t *testing.T) {
	b := startBus(t)

	all, err := b.Subscribe()
	require.NoError(t, err)
	assert.True(t, all.Wants("anything"))

	require.NoError(t, b.Publish("a", 1))
	require.NoError(t, b.Publish("b", 2))

	assert.Equal(t, "a", receive(t, all).Channel)
	assert.Equal(t, "b", receive(t, all).Channel)
}

func TestBus_NoSubscribersIsNotAnError(t *testing.T) {
	b := startBus(t)
	assert.NoError(t, b.Publish("nobody-listens", []string{"x"}))
}

func TestBus_EncodeError(t *testing.T) {
	b := startBus(t)
	_, err := b.Subscribe()
	require.NoError(t, err)

	err = b.Publish("ch", make(chan int))
	assert.Error(t, err)
}

func TestBus_EmptyChannel(t *testing.T) {
	b := startBus(t)
	assert.ErrorIs(t, b.Publish("", nil), ErrNoTarget)
}

func TestBus_PublishAfterShutdown(t *testing.T) {
	b := New(testLogger())
	b.Start(context.Background())
	assert.False(t, b.Closed())
	require.NoError(t, b.Shutdown(context.Background()))
	assert.True(t, b.Closed())

	assert.ErrorIs(t, b.Publish("ch", nil), ErrClosed)
	_, err := b.Subscribe()
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, b.Shutdown(context.Background()))
}

func TestBus_ShutdownDrainsAndClosesSubscribers(t *testing.T) {
	b := New(testLogger())
	s, err := b.Subscribe("ch")
	require.NoError(t, err)

	require.NoError(t, b.Publish("ch", "queued before start"))
	b.Start(context.Background())
	require.NoError(t, b.Shutdown(context.Background()))

	e, ok := <-s.Events
	require.True(t, ok)
	assert.Equal(t, "ch", e.Channel)

	_, ok = <-s.Events
	assert.False(t, ok)
	assert.Zero(t, b.SubscriberCount())
}

func TestBus_BackpressureReturnsError(t *testing.T) {
	b := New(testLogger())
	_, err := b.Subscribe("ch")
	require.NoError(t, err)

	// Not started, so nothing drains the queue.
	for i := 0; i < defaultQueueSize; i++ {
		require.NoError(t, b.Publish("ch", i))
	}
	assert.ErrorIs(t, b.Publish("ch", "one too many"), ErrBusFull)
}

func TestBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := startBus(t)

	slow, err := b.Subscribe("ch")
	require.NoError(t, err)
	fast, err := b.Subscribe("ch")
	require.NoError(t, err)

	for i := 0; i < defaultSubscriberSize+10; i++ {
		require.NoError(t, b.Publish("ch", i))
		receive(t, fast)
	}
	assert.Len(t, slow.Events, defaultSubscriberSize)
}

func TestBus_Unsubscribe(t *testing.T) {
	b := startBus(t)

	s, err := b.Subscribe("ch")
	require.NoError(t, err)
	assert.Equal(t, 1, b.SubscriberCount())

	b.Unsubscribe(s.ID)
	b.Unsubscribe(s.ID)
	assert.Zero(t, b.SubscriberCount())

	_, ok := <-s.Done
	assert.False(t, ok)
}
