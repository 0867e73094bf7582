// Package controlbus implements the typed message bus between UIServer
// and every WorkerHost, per spec.md §4.5: request fan-out by hashId set,
// response aggregation by correlation id, and partial-failure reporting.
package controlbus

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Status values for a Response.
const (
	StatusSuccess = "SUCCESS"
	StatusFailure = "FAILURE"
)

// Request is one control-plane call, per spec.md §4.5's wire shape
// `[uuid, procedureName, payload]`.
type Request struct {
	UUID      string
	Procedure string
	Payload   map[string]interface{}
	HashIds   []string // target set; empty/absent means every station
}

// Response is one station's (or a UIServer-local procedure's) reply.
type Response struct {
	UUID    string
	HashId  string
	Status  string
	Payload map[string]interface{}

	// Populated when Status == StatusFailure.
	Command        string
	RequestPayload map[string]interface{}
	ErrorMessage   string
	ErrorStack     string
	ErrorDetails   map[string]interface{}
}

// Handler executes one procedure against one station (or the fleet, for
// UIServer-local procedures) and returns its Response payload or an
// error, which the bus turns into a FAILURE response.
type Handler func(ctx context.Context, req Request, hashID string) (map[string]interface{}, error)

// Aggregate is the fan-out result of one Publish call, per spec.md §4.5:
// counts and per-station outcome of a request scattered across the
// fleet.
type Aggregate struct {
	UUID              string
	ExpectedResponses int
	HashIdsSucceeded  []string
	HashIdsFailed     []string
	ResponsesFailed   []Response
	TimedOut          bool

	// Payload carries a UIServer-local procedure's result (e.g.
	// LIST_CHARGING_STATIONS' station list), unused for station fan-outs.
	Payload map[string]interface{}
}

// Bus routes requests to registered handlers and aggregates fan-out
// responses. One Bus instance is shared by UIServer and every WorkerHost
// in-process; there is no network hop (spec.md §1: single-process
// simulator).
type Bus struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	members  map[string]struct{} // known hashIds across the fleet, for fleet-wide fan-out
	timeout  time.Duration
	logger   *zap.Logger
}

// New builds a Bus. timeout <= 0 defaults to 120s, the server-side
// aggregation timeout named in spec.md §4.5.
func New(timeout time.Duration, logger *zap.Logger) *Bus {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Bus{
		handlers: make(map[string]Handler),
		members:  make(map[string]struct{}),
		timeout:  timeout,
		logger:   logger,
	}
}

// RegisterHandler wires a procedure name to its implementation. Later
// registrations for the same procedure replace earlier ones (used when a
// WorkerHost joins after startup and re-registers a fleet-wide handler
// covering the enlarged station set).
func (b *Bus) RegisterHandler(procedure string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[procedure] = h
}

// RegisterMember adds hashID to the known fleet, used to compute
// fleet-wide expectedNumberOfResponses when a request omits hashIds.
func (b *Bus) RegisterMember(hashID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.members[hashID] = struct{}{}
}

// RemoveMember drops hashID from the known fleet (a stopped station no
// longer counts toward fleet-wide fan-out).
func (b *Bus) RemoveMember(hashID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.members, hashID)
}

// NewCorrelationID returns a fresh request uuid.
func NewCorrelationID() string { return uuid.NewString() }

// Publish dispatches req to its handler, fanning out across req.HashIds
// (or the whole known fleet if empty) and aggregating responses until
// every target has replied or the bus timeout elapses, per spec.md §4.5.
func (b *Bus) Publish(ctx context.Context, req Request) (*Aggregate, error) {
	if req.UUID == "" {
		req.UUID = NewCorrelationID()
	}

	b.mu.RLock()
	handler, ok := b.handlers[req.Procedure]
	b.mu.RUnlock()
	if !ok {
		return nil, errors.New("controlbus: unknown procedure " + req.Procedure)
	}

	targets := req.HashIds
	if len(targets) == 0 {
		b.mu.RLock()
		for id := range b.members {
			targets = append(targets, id)
		}
		b.mu.RUnlock()
	}

	agg := &Aggregate{UUID: req.UUID, ExpectedResponses: len(targets)}
	if len(targets) == 0 {
		// UIServer-local procedures (e.g. LIST_CHARGING_STATIONS) run once
		// against the empty target, not once per station.
		payload, err := handler(ctx, req, "")
		if err != nil {
			agg.ResponsesFailed = append(agg.ResponsesFailed, failureResponse(req, "", err))
			return agg, nil
		}
		agg.Payload = payload
		agg.ExpectedResponses = 1
		return agg, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	type outcome struct {
		hashID string
		resp   Response
	}
	results := make(chan outcome, len(targets))

	for _, hashID := range targets {
		go func(id string) {
			payload, err := handler(callCtx, req, id)
			if err != nil {
				results <- outcome{hashID: id, resp: failureResponse(req, id, err)}
				return
			}
			results <- outcome{hashID: id, resp: Response{UUID: req.UUID, HashId: id, Status: StatusSuccess, Payload: payload}}
		}(hashID)
	}

	remaining := len(targets)
	for remaining > 0 {
		select {
		case out := <-results:
			remaining--
			if out.resp.Status == StatusSuccess {
				agg.HashIdsSucceeded = append(agg.HashIdsSucceeded, out.hashID)
			} else {
				agg.HashIdsFailed = append(agg.HashIdsFailed, out.hashID)
				agg.ResponsesFailed = append(agg.ResponsesFailed, out.resp)
			}
		case <-callCtx.Done():
			agg.TimedOut = true
			for _, id := range targets {
				if !contains(agg.HashIdsSucceeded, id) && !contains(agg.HashIdsFailed, id) {
					agg.HashIdsFailed = append(agg.HashIdsFailed, id)
					agg.ResponsesFailed = append(agg.ResponsesFailed, failureResponse(req, id, errors.New("controlbus: aggregation timeout")))
				}
			}
			return agg, nil
		}
	}

	return agg, nil
}

func failureResponse(req Request, hashID string, err error) Response {
	return Response{
		UUID: req.UUID, HashId: hashID, Status: StatusFailure,
		Command: req.Procedure, RequestPayload: req.Payload, ErrorMessage: err.Error(),
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
