package scheduler

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// DefaultMaxConcurrent is the admission limit used when Config leaves it unset.
const DefaultMaxConcurrent = 5

// Config holds scheduler configuration.
type Config struct {
	MaxConcurrent int
}

// Scheduler admits at most MaxConcurrent calls at a time. Waiting calls are
// admitted newest first.
type Scheduler struct {
	mu sync.Mutex

	transport Transport
	limit     int

	waiting   []*PendingCall // LIFO stack, top at the end
	executing map[CallbackID]*PendingCall
	closed    bool
}

// New creates a new scheduler on top of transport.
func New(transport Transport, config Config) *Scheduler {
	limit := config.MaxConcurrent
	if limit <= 0 {
		limit = DefaultMaxConcurrent
	}
	return &Scheduler{
		transport: transport,
		limit:     limit,
		executing: make(map[CallbackID]*PendingCall),
	}
}

// Submit queues a call under id. It never blocks on the call itself.
// onComplete fires exactly once when the transport reports completion.
func (s *Scheduler) Submit(req Request, id CallbackID, onComplete CompletionFunc) error {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.isOutstandingLocked(id) {
		s.mu.Unlock()
		return errors.Wrapf(ErrAlreadyEnqueued, "callback %s", id)
	}

	s.waiting = append(s.waiting, &PendingCall{
		ID:          id,
		Request:     req,
		OnComplete:  onComplete,
		SubmittedAt: time.Now(),
	})
	admitted := s.admitNextLocked()
	s.mu.Unlock()

	s.dispatch(admitted)
	return nil
}

// Stats returns the current counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Waiting: len(s.waiting), Executing: len(s.executing), Limit: s.limit}
}

// IsOutstanding reports whether id is waiting or executing.
func (s *Scheduler) IsOutstanding(id CallbackID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isOutstandingLocked(id)
}

// Close rejects further submissions and fails every waiting call with ErrClosed.
// Executing calls run to completion.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	dropped := s.waiting
	s.waiting = nil
	s.mu.Unlock()

	if len(dropped) > 0 {
		zlog.Info().Msgf("scheduler closed, dropping %d waiting calls", len(dropped))
	}
	for _, call := range dropped {
		if call.OnComplete != nil {
			call.OnComplete(Response{Err: ErrClosed})
		}
	}
}

func (s *Scheduler) isOutstandingLocked(id CallbackID) bool {
	if _, ok := s.executing[id]; ok {
		return true
	}
	for _, call := range s.waiting {
		if call.ID == id {
			return true
		}
	}
	return false
}

// admitNextLocked moves calls from the top of the waiting stack to the
// executing set while below the limit. The caller dispatches them after
// releasing the lock.
func (s *Scheduler) admitNextLocked() []*PendingCall {
	var admitted []*PendingCall
	for len(s.executing) < s.limit && len(s.waiting) > 0 {
		top := len(s.waiting) - 1
		call := s.waiting[top]
		s.waiting[top] = nil
		s.waiting = s.waiting[:top]

		call.StartedAt = time.Now()
		s.executing[call.ID] = call
		admitted = append(admitted, call)
	}
	if len(admitted) > 0 {
		zlog.Debug().Msgf("scheduler: admitted %d (executing=%d, waiting=%d)", len(admitted), len(s.executing), len(s.waiting))
	}
	return admitted
}

func (s *Scheduler) dispatch(calls []*PendingCall) {
	for _, call := range calls {
		call := call
		s.transport.Execute(call.Request, func(resp Response) {
			s.onCompleted(call, resp)
		})
	}
}

// onCompleted releases the executing slot held by call, admits waiting calls
// and then hands resp to the caller's completion func. The slot must still
// belong to this very call: a completion for an id that is not executing, or
// whose id was resubmitted since, means the transport fired twice, which is fatal.
func (s *Scheduler) onCompleted(call *PendingCall, resp Response) {
	s.mu.Lock()
	cur, ok := s.executing[call.ID]
	if !ok || cur != call {
		s.mu.Unlock()
		err := errors.AssertionFailedf("double completion for callback %s", call.ID)
		zlog.Error().Err(err).Msg("scheduler bookkeeping corrupted")
		panic(err)
	}
	delete(s.executing, call.ID)
	admitted := s.admitNextLocked()
	s.mu.Unlock()

	zlog.Debug().Msgf("scheduler: %s completed in %s", call.ID, time.Since(call.StartedAt))

	s.dispatch(admitted)
	if call.OnComplete != nil {
		call.OnComplete(resp)
	}
}
