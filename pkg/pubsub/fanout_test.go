package pubsub

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSubscriber hands out one buffered channel per subscription and counts
// driver calls.
type fakeSubscriber struct {
	mu            sync.Mutex
	channels      map[string]chan *Event
	subscribes    int
	unsubscribes  int
	failSubscribe error
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{channels: make(map[string]chan *Event)}
}

func (f *fakeSubscriber) Subscribe(ctx context.Context, channel string) (<-chan *Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSubscribe != nil {
		return nil, f.failSubscribe
	}
	f.subscribes++
	ch := make(chan *Event, 16)
	f.channels[channel] = ch
	return ch, nil
}

func (f *fakeSubscriber) Unsubscribe(ctx context.Context, channel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribes++
	if ch, ok := f.channels[channel]; ok {
		close(ch)
		delete(f.channels, channel)
	}
	return nil
}

func (f *fakeSubscriber) emit(channel string, ev *Event) {
	f.mu.Lock()
	ch := f.channels[channel]
	f.mu.Unlock()
	ch <- ev
}

func (f *fakeSubscriber) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribes, f.unsubscribes
}

type collector struct {
	mu     sync.Mutex
	events []*Event
}

func (c *collector) handle(ev *Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func TestFanoutSharesOneDriverSubscription(t *testing.T) {
	ctx := context.Background()
	sub := newFakeSubscriber()
	f := NewFanout(sub)
	t.Cleanup(f.Close)

	channel := RoomMessagesChannel("room-1")
	var a, b collector
	releaseA, err := f.Subscribe(ctx, channel, a.handle)
	require.NoError(t, err)
	releaseB, err := f.Subscribe(ctx, channel, b.handle)
	require.NoError(t, err)

	subs, _ := sub.counts()
	assert.Equal(t, 1, subs)
	assert.Equal(t, 2, f.Subscribers(channel))

	ev, err := NewEvent(EventMessageInsert, "room-1", map[string]string{"id": "m1"})
	require.NoError(t, err)
	sub.emit(channel, ev)

	require.Eventually(t, func() bool { return a.len() == 1 && b.len() == 1 }, time.Second, 5*time.Millisecond)

	releaseA()
	releaseA()
	_, unsubs := sub.counts()
	assert.Equal(t, 0, unsubs, "channel stays open while a subscriber remains")
	assert.Equal(t, 1, f.Subscribers(channel))

	releaseB()
	_, unsubs = sub.counts()
	assert.Equal(t, 1, unsubs)
	assert.Equal(t, 0, f.Subscribers(channel))
}

func TestFanoutSubscribeFailure(t *testing.T) {
	sub := newFakeSubscriber()
	sub.failSubscribe = errors.New("broker down")
	f := NewFanout(sub)
	t.Cleanup(f.Close)

	_, err := f.Subscribe(context.Background(), RoomTypingChannel("room-1"), func(*Event) {})
	assert.Error(t, err)
	assert.Equal(t, 0, f.Subscribers(RoomTypingChannel("room-1")))

	sub.mu.Lock()
	sub.failSubscribe = nil
	sub.mu.Unlock()

	release, err := f.Subscribe(context.Background(), RoomTypingChannel("room-1"), func(*Event) {})
	require.NoError(t, err, "a failed channel can be reopened")
	release()
}

func TestRedisPubSubRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	ps := NewRedisPubSubFromClient(client, 0)
	t.Cleanup(func() { ps.Close() })

	ctx := context.Background()
	channel := RoomMessagesChannel("room-1")
	events, err := ps.Subscribe(ctx, channel)
	require.NoError(t, err)

	ev, err := NewEvent(EventMessageDelete, "room-1", map[string]string{"id": "m1"})
	require.NoError(t, err)
	require.NoError(t, ps.Publish(ctx, channel, ev))

	select {
	case got := <-events:
		assert.Equal(t, EventMessageDelete, got.Type)
		assert.Equal(t, "room-1", got.RoomID)
		assert.JSONEq(t, `{"id":"m1"}`, string(got.Payload))
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}

	require.NoError(t, ps.Unsubscribe(ctx, channel))
	require.NoError(t, client.Ping(ctx).Err(), "a borrowed client stays open")
}

func TestChannelToTopicAndKey(t *testing.T) {
	topic, key, err := channelToTopicAndKey(RoomTypingChannel("r42"))
	require.NoError(t, err)
	assert.Equal(t, "chat-typing", topic)
	assert.Equal(t, "r42", key)

	_, _, err = channelToTopicAndKey("chat:messages")
	assert.Error(t, err)
}
