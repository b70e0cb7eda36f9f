package eventbus

import (
	"sync"
	"testing"
)

func TestSubscribePrefixFilter(t *testing.T) {
	t.Parallel()
	b := New()
	all, unsubAll := b.Subscribe(8)
	defer unsubAll()
	dev, unsubDev := b.Subscribe(8, "device.")
	defer unsubDev()

	b.Publish(Event{Type: "schedule.fired"})
	b.Publish(Event{Type: "device.locked"})

	if got := len(all); got != 2 {
		t.Fatalf("unfiltered subscriber got %d events, want 2", got)
	}
	if got := len(dev); got != 1 {
		t.Fatalf("filtered subscriber got %d events, want 1", got)
	}
	e := <-dev
	if e.Type != "device.locked" || e.Topic() != "device" || e.Time.IsZero() {
		t.Fatalf("event = %+v", e)
	}
}

func TestSlowSubscriberDrops(t *testing.T) {
	t.Parallel()
	b := New()
	_, unsub := b.Subscribe(1)
	defer unsub()
	for i := 0; i < 5; i++ {
		b.Publish(Event{Type: "x"})
	}
	if got := b.Dropped(); got != 4 {
		t.Fatalf("Dropped() = %d, want 4", got)
	}
}

func TestUnsubscribeDuringPublish(t *testing.T) {
	t.Parallel()
	b := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		_, unsub := b.Subscribe(1)
		wg.Add(2)
		go func() { defer wg.Done(); b.Publish(Event{Type: "x"}) }()
		go func() { defer wg.Done(); unsub(); unsub() }()
	}
	wg.Wait()
}

func TestTopicWithoutDot(t *testing.T) {
	t.Parallel()
	if got := (Event{Type: "shutdown"}).Topic(); got != "shutdown" {
		t.Fatalf("Topic() = %q", got)
	}
}
