package station

import (
	"errors"
	"testing"
	"time"
)

func TestRegisterThenResolveDeliversPayload(t *testing.T) {
	c := NewRequestCache(time.Second)
	cr := c.Register("id-1", "Heartbeat", nil, func() { t.Fatal("did not expect timeout") })
	_ = cr

	var got []byte
	c.SetCallbacks("id-1", func(payload []byte) { got = payload }, func(error) { t.Fatal("did not expect reject") })

	if !c.Resolve("id-1", []byte(`{"ok":true}`)) {
		t.Fatal("expected Resolve to find the registered request")
	}
	if string(got) != `{"ok":true}` {
		t.Fatalf("unexpected resolved payload: %s", got)
	}
	if c.Has("id-1") {
		t.Fatal("expected the entry to be removed after Resolve")
	}
}

func TestRegisterThenRejectDeliversError(t *testing.T) {
	c := NewRequestCache(time.Second)
	c.Register("id-1", "Heartbeat", nil, func() { t.Fatal("did not expect timeout") })

	var got error
	c.SetCallbacks("id-1", func([]byte) { t.Fatal("did not expect resolve") }, func(err error) { got = err })

	wantErr := errors.New("boom")
	if !c.Reject("id-1", wantErr) {
		t.Fatal("expected Reject to find the registered request")
	}
	if got != wantErr {
		t.Fatalf("expected the exact error to be delivered, got %v", got)
	}
}

func TestResolveUnknownIDReportsFalse(t *testing.T) {
	c := NewRequestCache(time.Second)
	if c.Resolve("missing", nil) {
		t.Fatal("expected Resolve to report false for an unregistered id")
	}
}

func TestRegisterDuplicateIDPanics(t *testing.T) {
	c := NewRequestCache(time.Second)
	c.Register("id-1", "Heartbeat", nil, func() {})

	defer func() {
		if recover() == nil {
			t.Fatal("expected registering a duplicate id to panic")
		}
	}()
	c.Register("id-1", "Heartbeat", nil, func() {})
}

func TestRequestTimeoutFiresOnTimeoutAndRemovesEntry(t *testing.T) {
	c := NewRequestCache(10 * time.Millisecond)
	timedOut := make(chan struct{})
	c.Register("id-1", "Heartbeat", nil, func() { close(timedOut) })

	select {
	case <-timedOut:
	case <-time.After(time.Second):
		t.Fatal("expected the timeout callback to fire")
	}
	if c.Has("id-1") {
		t.Fatal("expected the entry to be removed once its deadline fires")
	}
}

func TestDrainWithErrorRejectsEveryInFlightRequest(t *testing.T) {
	c := NewRequestCache(time.Second)
	var got1, got2 error
	c.Register("id-1", "Heartbeat", nil, func() { t.Fatal("did not expect timeout for id-1") })
	c.SetCallbacks("id-1", nil, func(err error) { got1 = err })
	c.Register("id-2", "StatusNotification", nil, func() { t.Fatal("did not expect timeout for id-2") })
	c.SetCallbacks("id-2", nil, func(err error) { got2 = err })

	wantErr := errors.New("connection closed")
	c.DrainWithError(wantErr)

	if got1 != wantErr || got2 != wantErr {
		t.Fatalf("expected both requests to be rejected with the drain error, got %v, %v", got1, got2)
	}
	if c.Len() != 0 {
		t.Fatalf("expected the cache to be empty after draining, got len %d", c.Len())
	}
}

func TestLenReflectsInFlightCount(t *testing.T) {
	c := NewRequestCache(time.Second)
	if c.Len() != 0 {
		t.Fatalf("expected empty cache, got %d", c.Len())
	}
	c.Register("id-1", "Heartbeat", nil, func() {})
	c.Register("id-2", "Heartbeat", nil, func() {})
	if c.Len() != 2 {
		t.Fatalf("expected 2 in-flight requests, got %d", c.Len())
	}
	c.Resolve("id-1", nil)
	if c.Len() != 1 {
		t.Fatalf("expected 1 in-flight request after resolving one, got %d", c.Len())
	}
}
