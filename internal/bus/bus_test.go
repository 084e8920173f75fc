package bus

import (
	"testing"
)

func TestPublishFansOut(t *testing.T) {
	b := New[int](4, nil)

	ch1, cancel1 := b.Subscribe()
	ch2, cancel2 := b.Subscribe()
	defer cancel1()
	defer cancel2()

	b.Publish(7)

	if got := <-ch1; got != 7 {
		t.Errorf("subscriber 1 got %d, want 7", got)
	}
	if got := <-ch2; got != 7 {
		t.Errorf("subscriber 2 got %d, want 7", got)
	}
}

func TestPublishPreservesOrder(t *testing.T) {
	b := New[int](8, nil)
	ch, cancel := b.Subscribe()
	defer cancel()

	for i := 0; i < 5; i++ {
		b.Publish(i)
	}
	for i := 0; i < 5; i++ {
		if got := <-ch; got != i {
			t.Fatalf("event %d = %d, out of order", i, got)
		}
	}
}

func TestSlowSubscriberDropsOnly(t *testing.T) {
	b := New[int](1, nil)

	slow, cancelSlow := b.Subscribe()
	fast, cancelFast := b.Subscribe()
	defer cancelSlow()
	defer cancelFast()

	// The slow subscriber never drains; its buffer holds one event.
	b.Publish(1)
	<-fast
	b.Publish(2)
	<-fast

	if got := b.Dropped(); got != 1 {
		t.Errorf("dropped = %d, want 1", got)
	}

	// The slow subscriber still has the first event.
	if got := <-slow; got != 1 {
		t.Errorf("slow subscriber got %d, want 1", got)
	}
	select {
	case v := <-slow:
		t.Errorf("slow subscriber got extra event %d", v)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New[int](4, nil)
	ch, cancel := b.Subscribe()

	cancel()

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after unsubscribe")
	}

	// Publishing after unsubscribe must not panic or block.
	b.Publish(1)

	// Double cancel is a no-op.
	cancel()
}

func TestCloseClosesAllSubscribers(t *testing.T) {
	b := New[int](4, nil)
	ch1, _ := b.Subscribe()
	ch2, _ := b.Subscribe()

	b.Close()

	if _, ok := <-ch1; ok {
		t.Error("subscriber 1 channel should be closed")
	}
	if _, ok := <-ch2; ok {
		t.Error("subscriber 2 channel should be closed")
	}

	// Publish and a second Close are no-ops after Close.
	b.Publish(1)
	b.Close()
}

func TestSubscribeAfterClose(t *testing.T) {
	b := New[int](4, nil)
	b.Close()

	ch, cancel := b.Subscribe()
	defer cancel()

	if _, ok := <-ch; ok {
		t.Error("subscribing to a closed bus should yield a closed channel")
	}
}

func TestBufferedDeliveryBeforeClose(t *testing.T) {
	b := New[string](4, nil)
	ch, _ := b.Subscribe()

	b.Publish("a")
	b.Publish("b")
	b.Close()

	// Buffered events are still readable after Close.
	if got, ok := <-ch; !ok || got != "a" {
		t.Errorf("first event = %q ok=%v, want a", got, ok)
	}
	if got, ok := <-ch; !ok || got != "b" {
		t.Errorf("second event = %q ok=%v, want b", got, ok)
	}
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after draining")
	}
}
