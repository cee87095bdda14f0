// Package notification fans player notifications out to subscriber streams.
package notification

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	tapedeckv1 "github.com/osa030/tapedeck/internal/api/tapedeckv1"
)

// DefaultSendTimeout bounds a single stream send.
const DefaultSendTimeout = 500 * time.Millisecond

// Stream represents a notification stream for a subscriber.
type Stream interface {
	Send(*tapedeckv1.Notification) error
}

type subscription struct {
	id       string
	stream   Stream
	progress bool // receives progress notifications

	// sends are serialized per stream; a send still running when the next
	// broadcast arrives makes the subscriber skip that notification.
	busy atomic.Bool
}

// Manager manages notification subscriptions and broadcasting.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	sequenceNo    atomic.Uint64
	sendTimeout   time.Duration
}

// NewManager creates a new notification manager.
func NewManager(sendTimeout time.Duration) *Manager {
	if sendTimeout <= 0 {
		sendTimeout = DefaultSendTimeout
	}
	return &Manager{
		subscriptions: make(map[string]*subscription),
		sendTimeout:   sendTimeout,
	}
}

// Subscribe adds a new subscription and returns the subscription ID.
func (m *Manager) Subscribe(stream Stream, withProgress bool) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.subscriptions[id] = &subscription{
		id:       id,
		stream:   stream,
		progress: withProgress,
	}
	return id
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, subscriptionID)
}

// NextSequenceNo returns the next sequence number.
func (m *Manager) NextSequenceNo() uint64 {
	return m.sequenceNo.Add(1)
}

// Broadcast stamps n with the next sequence number and sends it to all
// subscribers in parallel. It returns once every send finished or timed out.
// A subscriber whose send fails is removed.
func (m *Manager) Broadcast(n *tapedeckv1.Notification) {
	n.SequenceNo = m.NextSequenceNo()
	isProgress := n.Type == tapedeckv1.NotificationProgress

	m.mu.RLock()
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		if isProgress && !sub.progress {
			continue
		}
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, sub := range subs {
		if !sub.busy.CompareAndSwap(false, true) {
			zlog.Debug().Msgf("subscriber busy, notification %d skipped: %s", n.SequenceNo, sub.id)
			continue
		}

		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()

			done := make(chan error, 1)
			go func() {
				defer s.busy.Store(false)
				done <- s.stream.Send(n)
			}()

			timer := time.NewTimer(m.sendTimeout)
			defer timer.Stop()

			select {
			case err := <-done:
				if err != nil {
					zlog.Debug().Msgf("notification send failed, unsubscribing %s: %v", s.id, err)
					m.Unsubscribe(s.id)
				}
			case <-timer.C:
				zlog.Debug().Msgf("notification send timed out: %s", s.id)
			}
		}(sub)
	}
	wg.Wait()
}

// Send sends a notification to a specific subscriber.
func (m *Manager) Send(subscriptionID string, n *tapedeckv1.Notification) error {
	m.mu.RLock()
	sub, ok := m.subscriptions[subscriptionID]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	return sub.stream.Send(n)
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = make(map[string]*subscription)
}
