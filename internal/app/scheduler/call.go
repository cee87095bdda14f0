// Package scheduler bounds the number of concurrent calls to the streaming server.
package scheduler

import (
	"net/url"
	"time"

	"github.com/cockroachdb/errors"
)

// Errors
var (
	ErrAlreadyEnqueued = errors.New("callback already enqueued")
	ErrClosed          = errors.New("scheduler closed")
)

// CallbackID identifies a call from submission until its completion fires.
type CallbackID string

// Request is one remote call. The scheduler never looks inside it.
type Request struct {
	Method string     // HTTP method, GET when empty
	Path   string     // Path relative to the transport's base URL
	Query  url.Values // Query parameters
}

// Response is the outcome of an executed Request.
type Response struct {
	StatusCode int
	Body       []byte
	Err        error // Transport-level failure
}

// CompletionFunc receives the outcome of a call. Called exactly once per submission.
type CompletionFunc func(Response)

// Transport executes one request and invokes done exactly once, asynchronously.
type Transport interface {
	Execute(req Request, done CompletionFunc)
}

// PendingCall is a submitted call waiting for or undergoing execution.
type PendingCall struct {
	ID          CallbackID
	Request     Request
	OnComplete  CompletionFunc
	SubmittedAt time.Time
	StartedAt   time.Time // Zero while waiting
}

// Stats is a point-in-time view of the scheduler counters.
type Stats struct {
	Waiting   int
	Executing int
	Limit     int
}
