package gateway

import (
	iface "ColorDetServer/interface"
	"sync"

	"github.com/google/uuid"
)

const subscriberBuffer = 16

// Store keeps the latest report and fans reports out to subscribers.
// A subscriber that falls behind loses reports rather than stalling the pipeline.
type Store struct {
	mu     sync.RWMutex
	latest *iface.Report
	subs   map[string]chan iface.Report
}

func NewStore() *Store {
	return &Store{subs: map[string]chan iface.Report{}}
}

func (s *Store) Publish(r iface.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = &r
	for _, ch := range s.subs {
		select {
		case ch <- r:
		default:
		}
	}
}

func (s *Store) Latest() (iface.Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return iface.Report{}, false
	}
	return *s.latest, true
}

func (s *Store) Subscribe() (string, <-chan iface.Report) {
	id := uuid.NewString()
	ch := make(chan iface.Report, subscriberBuffer)
	s.mu.Lock()
	s.subs[id] = ch
	s.mu.Unlock()
	return id, ch
}

func (s *Store) Unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
}

func (s *Store) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
