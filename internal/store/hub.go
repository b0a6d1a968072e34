package store

import (
	"context"
	"sync"

	"github.com/kingrea/ideaboard/internal/idea"
)

// hub fans snapshots out to subscribers. Each subscriber sees only its
// project scope, and a slow subscriber loses its oldest queued snapshot
// rather than blocking writers: every snapshot supersedes the previous one.
type hub struct {
	mu          sync.RWMutex
	subscribers map[*subscriber]struct{}
	capacity    int
	logger      Logger
}

func newHub(capacity int, logger Logger) *hub {
	return &hub{
		subscribers: map[*subscriber]struct{}{},
		capacity:    capacity,
		logger:      logger,
	}
}

// subscribe registers a subscriber and hands it the initial snapshot. The
// subscription ends on Close or when ctx is done.
func (h *hub) subscribe(ctx context.Context, project string, initial []idea.Idea) Subscription {
	sub := newSubscriber(project, h.capacity, h.logger)
	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()
	sub.deliver(filter(initial, project))

	var once sync.Once
	remove := func() {
		once.Do(func() { h.remove(sub) })
	}
	stop := context.AfterFunc(ctx, remove)
	return Subscription{
		Snapshots: sub.channel(),
		cancel: func() {
			stop()
			remove()
		},
	}
}

func (h *hub) publish(all []idea.Idea) {
	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.subscribers))
	for sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()
	for _, sub := range subs {
		sub.deliver(filter(all, sub.project))
	}
}

func (h *hub) remove(sub *subscriber) {
	h.mu.Lock()
	delete(h.subscribers, sub)
	h.mu.Unlock()
	sub.close()
}

func (h *hub) closeAll() {
	h.mu.Lock()
	subs := h.subscribers
	h.subscribers = map[*subscriber]struct{}{}
	h.mu.Unlock()
	for sub := range subs {
		sub.close()
	}
}

type subscriber struct {
	project string
	ch      chan []idea.Idea
	logger  Logger
	mu      sync.Mutex
	closed  bool
}

func newSubscriber(project string, capacity int, logger Logger) *subscriber {
	if capacity <= 0 {
		capacity = defaultSubscriberCapacity
	}
	return &subscriber{
		project: project,
		ch:      make(chan []idea.Idea, capacity),
		logger:  logger,
	}
}

func (s *subscriber) channel() <-chan []idea.Idea {
	return s.ch
}

func (s *subscriber) deliver(snapshot []idea.Idea) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- snapshot:
		return
	default:
	}
	select {
	case <-s.ch:
		if s.logger != nil {
			s.logger.Printf("store: dropped stale snapshot for project %q", s.project)
		}
	default:
	}
	select {
	case s.ch <- snapshot:
	default:
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
