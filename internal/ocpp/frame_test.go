package ocpp

import (
	"encoding/json"
	"testing"
)

func TestBuildCallThenParseRoundTrips(t *testing.T) {
	data, err := BuildCall("abc-123", "Heartbeat", map[string]string{})
	if err != nil {
		t.Fatalf("BuildCall: %v", err)
	}

	f, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if f.Type != TypeCall || f.UniqueID != "abc-123" || f.Action != "Heartbeat" {
		t.Fatalf("unexpected parsed frame: %+v", f)
	}
	var payload map[string]string
	if err := json.Unmarshal(f.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
}

func TestBuildCallResultThenParseRoundTrips(t *testing.T) {
	data, err := BuildCallResult("abc-123", map[string]string{"status": "Accepted"})
	if err != nil {
		t.Fatalf("BuildCallResult: %v", err)
	}
	f, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if f.Type != TypeCallResult || f.UniqueID != "abc-123" {
		t.Fatalf("unexpected parsed frame: %+v", f)
	}
	var payload map[string]string
	if err := json.Unmarshal(f.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload["status"] != "Accepted" {
		t.Fatalf("expected status Accepted, got %+v", payload)
	}
}

func TestBuildCallErrorThenParseRoundTrips(t *testing.T) {
	data, err := BuildCallError("abc-123", ErrNotImplemented, "no handler", nil)
	if err != nil {
		t.Fatalf("BuildCallError: %v", err)
	}
	f, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if f.Type != TypeCallError || f.ErrorCode != ErrNotImplemented || f.ErrorDesc != "no handler" {
		t.Fatalf("unexpected parsed frame: %+v", f)
	}
}

func TestParseRejectsNonArrayFrame(t *testing.T) {
	if _, err := Parse([]byte(`{"not":"an array"}`)); err == nil {
		t.Fatal("expected an error parsing a non-array frame")
	}
}

func TestParseRejectsShortFrame(t *testing.T) {
	if _, err := Parse([]byte(`[2, "id"]`)); err == nil {
		t.Fatal("expected an error parsing a frame shorter than 3 elements")
	}
}

func TestParseRejectsWrongArityForType(t *testing.T) {
	if _, err := Parse([]byte(`[2, "id", "Heartbeat"]`)); err == nil {
		t.Fatal("expected an error parsing a CALL frame missing its payload element")
	}
	if _, err := Parse([]byte(`[3, "id"]`)); err == nil {
		t.Fatal("expected an error parsing a CALLRESULT frame missing its payload element")
	}
	if _, err := Parse([]byte(`[4, "id", "NotImplemented", "desc"]`)); err == nil {
		t.Fatal("expected an error parsing a CALLERROR frame missing its details element")
	}
}

func TestParseRejectsUnknownMessageType(t *testing.T) {
	if _, err := Parse([]byte(`[9, "id", {}]`)); err == nil {
		t.Fatal("expected an error parsing an unknown message type")
	}
}

func TestParseRejectsNonNumericMessageType(t *testing.T) {
	if _, err := Parse([]byte(`["nope", "id", {}]`)); err == nil {
		t.Fatal("expected an error parsing a non-numeric message type")
	}
}
