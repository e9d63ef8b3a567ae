package mqtt

import "sync"

// FakePublisher records published events for tests.
type FakePublisher struct {
	mu           sync.Mutex
	ZoneEvents   []ZoneEvent
	SystemEvents []SystemEvent
	Closed       bool

	// PublishError, if set, is returned by both publish methods.
	PublishError error
}

func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

func (f *FakePublisher) PublishZone(event ZoneEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.ZoneEvents = append(f.ZoneEvents, event)
	return nil
}

func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.SystemEvents = append(f.SystemEvents, event)
	return nil
}

func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// ZoneEventKinds returns the recorded zone event kinds in publish order.
func (f *FakePublisher) ZoneEventKinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	kinds := make([]string, len(f.ZoneEvents))
	for i, e := range f.ZoneEvents {
		kinds[i] = e.Event
	}
	return kinds
}
