package station

import (
	"sync"
	"time"
)

// CachedRequest tracks one in-flight outgoing CALL, per spec.md §3: keyed
// by message id, removed before its callback returns or when its deadline
// fires, whichever comes first. Grounded on the teacher's
// csms/internal/ocpp.Command (uuid key, timer-bound, single callback) but
// trimmed from a retryable command queue down to the spec's single
// resolve/reject future.
type CachedRequest struct {
	CommandName    string
	RequestPayload interface{}
	resolve        func(payload []byte)
	reject         func(err error)
	timer          *time.Timer
}

// RequestCache implements "at-most-one in-flight per message id" (spec.md
// §4.1) with per-request deadlines.
type RequestCache struct {
	mu       sync.Mutex
	inFlight map[string]*CachedRequest
	timeout  time.Duration
}

// NewRequestCache builds a cache with the given per-request timeout
// (OCPP_WS_COMMAND_TIMEOUT, default 60s per spec.md §5).
func NewRequestCache(timeout time.Duration) *RequestCache {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &RequestCache{inFlight: make(map[string]*CachedRequest), timeout: timeout}
}

// Register adds a cached request under id, arming its timeout timer. It
// panics if id is already cached — callers must generate fresh UUIDs
// (spec.md §8: "a given message id is cached exactly once at a time").
func (c *RequestCache) Register(id, commandName string, requestPayload interface{}, onTimeout func()) *CachedRequest {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.inFlight[id]; exists {
		panic("station: duplicate in-flight message id " + id)
	}

	cr := &CachedRequest{CommandName: commandName, RequestPayload: requestPayload}
	cr.timer = time.AfterFunc(c.timeout, func() {
		c.remove(id)
		onTimeout()
	})
	c.inFlight[id] = cr
	return cr
}

// SetCallbacks attaches the resolve/reject pair once the caller has one
// (kept separate from Register so the timeout closure above can call
// remove+onTimeout without racing construction).
func (c *RequestCache) SetCallbacks(id string, resolve func([]byte), reject func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cr, ok := c.inFlight[id]; ok {
		cr.resolve = resolve
		cr.reject = reject
	}
}

// Resolve delivers a CALLRESULT payload to the waiting caller and removes
// the entry.
func (c *RequestCache) Resolve(id string, payload []byte) bool {
	cr := c.remove(id)
	if cr == nil {
		return false
	}
	if cr.resolve != nil {
		cr.resolve(payload)
	}
	return true
}

// Reject delivers a CALLERROR or local failure to the waiting caller and
// removes the entry.
func (c *RequestCache) Reject(id string, err error) bool {
	cr := c.remove(id)
	if cr == nil {
		return false
	}
	if cr.reject != nil {
		cr.reject(err)
	}
	return true
}

func (c *RequestCache) remove(id string) *CachedRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	cr, ok := c.inFlight[id]
	if !ok {
		return nil
	}
	if cr.timer != nil {
		cr.timer.Stop()
	}
	delete(c.inFlight, id)
	return cr
}

// Has reports whether id is currently cached.
func (c *RequestCache) Has(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inFlight[id]
	return ok
}

// Len reports the number of in-flight requests.
func (c *RequestCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inFlight)
}

// DrainWithError rejects every in-flight request with err and clears the
// cache, used by Engine.stop() to cancel in-flight requests (spec.md §5's
// cancellation semantics).
func (c *RequestCache) DrainWithError(err error) {
	c.mu.Lock()
	entries := c.inFlight
	c.inFlight = make(map[string]*CachedRequest)
	c.mu.Unlock()

	for _, cr := range entries {
		if cr.timer != nil {
			cr.timer.Stop()
		}
		if cr.reject != nil {
			cr.reject(err)
		}
	}
}
