package ocpp

import "context"

// Sender is the minimal capability an OcppService needs from its owning
// StationEngine: encode+send a CALL and await its CALLRESULT/CALLERROR, or
// emit a CALLRESULT/CALLERROR for an inbound CALL. Defined here (rather
// than depending on the station package) so v16 and v20 stay import-free
// of the engine, per spec.md §9's "inheritance chains ... replace with
// per-version modules satisfying a shared capability set".
type Sender interface {
	// Call sends action with payload and returns the raw response payload
	// once the CALLRESULT arrives, or an error (CallError, TimeoutError,
	// or a local guard failure).
	Call(ctx context.Context, action string, payload interface{}) ([]byte, error)
	// Result sends a CALLRESULT for a previously received CALL id.
	Result(id string, payload interface{}) error
	// Error sends a CALLERROR for a previously received CALL id.
	Error(id, code, description string) error
}

// Service is the capability set both OCPP versions implement: build and
// validate outgoing requests, validate and dispatch incoming ones.
// StationEngine holds a Service selected by the station's configured
// OcppVersion rather than an inheritance chain.
type Service interface {
	Version() string
	// HandleIncoming parses payload for action, invokes the matching
	// handler, validates and sends the response (or a CALLERROR on
	// failure).
	HandleIncoming(ctx context.Context, sender Sender, id, action string, payload []byte) error
}
