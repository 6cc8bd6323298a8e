package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case e, ok := <-ch:
		require.True(t, ok, "channel closed")
		return e
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
	return Event{}
}

func TestSubscribeAndPublish(t *testing.T) {
	bus := New()
	sub, unsubscribe := bus.Subscribe("store.write", 1)
	defer unsubscribe()

	bus.TryPublish("store.write", "payload")

	e := receive(t, sub.Channel)
	assert.Equal(t, "store.write", e.Topic)
	assert.Equal(t, "payload", e.Data)
}

func TestPatternSubscription(t *testing.T) {
	bus := New()
	storeSub, unsubStore := bus.Subscribe("store.*", 4)
	defer unsubStore()
	allSub, unsubAll := bus.Subscribe("*", 4)
	defer unsubAll()
	storeCh, allCh := storeSub.Channel, allSub.Channel

	bus.TryPublish("store.seek", 1)
	bus.TryPublish("server.ready", 2)

	assert.Equal(t, "store.seek", receive(t, storeCh).Topic)
	assert.Equal(t, "store.seek", receive(t, allCh).Topic)
	assert.Equal(t, "server.ready", receive(t, allCh).Topic)
	assert.Len(t, storeCh, 0)
}

func TestMatchTopic(t *testing.T) {
	tests := []struct {
		pattern, topic string
		want           bool
	}{
		{"store.read", "store.read", true},
		{"store.*", "store.read", true},
		{"*.read", "store.read", true},
		{"*", "anything.at.all", true},
		{"store.*", "store", false},
		{"store.*", "store.read.extra", false},
		{"", "store.read", false},
		{"store.read", "", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchTopic(tt.pattern, tt.topic), "%s vs %s", tt.pattern, tt.topic)
	}
}

func TestTryPublishDropsWhenFull(t *testing.T) {
	bus := New()
	sub, unsubscribe := bus.Subscribe("store.*", 1)
	defer unsubscribe()
	other, unsubOther := bus.Subscribe("*", 1)
	defer unsubOther()

	done := make(chan struct{})
	go func() {
		bus.TryPublish("store.write", "first")
		bus.TryPublish("store.write", "second")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("TryPublish blocked")
	}

	assert.Equal(t, "first", receive(t, sub.Channel).Data)
	assert.Equal(t, uint64(1), sub.Dropped())
	assert.Equal(t, uint64(1), other.Dropped())
	assert.Equal(t, uint64(2), bus.Dropped())

	// a closed subscriber is not counted as dropping
	unsubOther()
	bus.TryPublish("store.write", "third")
	assert.Equal(t, uint64(2), bus.Dropped())
	assert.Equal(t, "third", receive(t, sub.Channel).Data)
}

func TestUnsubscribe(t *testing.T) {
	bus := New()
	sub, unsubscribe := bus.Subscribe("store.*", 1)
	unsubscribe()
	unsubscribe()

	bus.TryPublish("store.write", "data")
	_, ok := <-sub.Channel
	assert.False(t, ok)
	assert.Empty(t, bus.subscribers)
}

func TestShutdown(t *testing.T) {
	bus := New()
	sub1, unsub1 := bus.Subscribe("store.*", 1)
	defer unsub1()
	sub2, unsub2 := bus.Subscribe("*", 1)
	defer unsub2()

	bus.Shutdown()
	bus.TryPublish("store.write", "data")

	for _, sub := range []*Subscriber{sub1, sub2} {
		_, ok := <-sub.Channel
		assert.False(t, ok)
	}
}
