// Package ocpp implements the OCPP-J wire framing shared by both protocol
// versions: CALL/CALLRESULT/CALLERROR parsing and construction (spec.md
// §4.1, §6), grounded on the teacher's ocpp-server/internal/ocpp parser
// and router, generalized from a server (parses only CALL) to a client
// that must parse all three frame types.
package ocpp

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Message types per the OCPP-J envelope.
const (
	TypeCall       = 2
	TypeCallResult = 3
	TypeCallError  = 4
)

// Frame is a parsed OCPP-J message, discriminated by Type.
type Frame struct {
	Type            int
	UniqueID        string
	Action          string          // CALL only
	Payload         json.RawMessage // CALL, CALLRESULT
	ErrorCode       string          // CALLERROR
	ErrorDesc       string          // CALLERROR
	ErrorDetails    json.RawMessage // CALLERROR
}

// Parse decodes a raw OCPP-J frame. Any shape other than the three
// documented arrays is a ProtocolError, per spec.md §4.1's inbound message
// flow.
func Parse(data []byte) (*Frame, error) {
	var array []json.RawMessage
	if err := json.Unmarshal(data, &array); err != nil {
		return nil, NewProtocolError("malformed frame: " + err.Error())
	}
	if len(array) < 3 {
		return nil, NewProtocolError("frame too short")
	}

	var msgType int
	if err := json.Unmarshal(array[0], &msgType); err != nil {
		return nil, NewProtocolError("unreadable message type")
	}

	f := &Frame{Type: msgType}
	if err := json.Unmarshal(array[1], &f.UniqueID); err != nil {
		return nil, NewProtocolError("unreadable unique id")
	}

	switch msgType {
	case TypeCall:
		if len(array) != 4 {
			return nil, NewProtocolError("malformed CALL frame")
		}
		if err := json.Unmarshal(array[2], &f.Action); err != nil {
			return nil, NewProtocolError("unreadable action")
		}
		f.Payload = array[3]
	case TypeCallResult:
		if len(array) != 3 {
			return nil, NewProtocolError("malformed CALLRESULT frame")
		}
		f.Payload = array[2]
	case TypeCallError:
		if len(array) != 5 {
			return nil, NewProtocolError("malformed CALLERROR frame")
		}
		if err := json.Unmarshal(array[2], &f.ErrorCode); err != nil {
			return nil, NewProtocolError("unreadable error code")
		}
		if err := json.Unmarshal(array[3], &f.ErrorDesc); err != nil {
			return nil, NewProtocolError("unreadable error description")
		}
		f.ErrorDetails = array[4]
	default:
		return nil, NewProtocolError(fmt.Sprintf("unsupported message type %d", msgType))
	}

	return f, nil
}

// NewMessageID returns a fresh UUID v4 string, the "id" of an outgoing
// CALL frame (spec.md §8: "r.id is a fresh UUID v4").
func NewMessageID() string {
	return uuid.NewString()
}

// BuildCall encodes a CALL frame.
func BuildCall(id, action string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal([]interface{}{TypeCall, id, action, json.RawMessage(body)})
}

// BuildCallResult encodes a CALLRESULT frame.
func BuildCallResult(id string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal([]interface{}{TypeCallResult, id, json.RawMessage(body)})
}

// BuildCallError encodes a CALLERROR frame.
func BuildCallError(id, code, description string, details interface{}) ([]byte, error) {
	if details == nil {
		details = map[string]string{}
	}
	return json.Marshal([]interface{}{TypeCallError, id, code, description, details})
}
