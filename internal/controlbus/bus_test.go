package controlbus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestPublishUnknownProcedureErrors(t *testing.T) {
	b := New(0, zap.NewNop())
	if _, err := b.Publish(context.Background(), Request{Procedure: "NOPE"}); err == nil {
		t.Fatal("expected an error for an unregistered procedure")
	}
}

func TestPublishFansOutToExplicitTargets(t *testing.T) {
	b := New(time.Second, zap.NewNop())
	b.RegisterHandler("PING", func(ctx context.Context, req Request, hashID string) (map[string]interface{}, error) {
		if hashID == "bad" {
			return nil, errors.New("boom")
		}
		return map[string]interface{}{"hashId": hashID}, nil
	})

	agg, err := b.Publish(context.Background(), Request{Procedure: "PING", HashIds: []string{"good1", "good2", "bad"}})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if agg.ExpectedResponses != 3 {
		t.Fatalf("expected 3 expected responses, got %d", agg.ExpectedResponses)
	}
	if len(agg.HashIdsSucceeded) != 2 {
		t.Fatalf("expected 2 successes, got %v", agg.HashIdsSucceeded)
	}
	if len(agg.HashIdsFailed) != 1 || agg.HashIdsFailed[0] != "bad" {
		t.Fatalf("expected exactly [bad] to fail, got %v", agg.HashIdsFailed)
	}
	if len(agg.ResponsesFailed) != 1 || agg.ResponsesFailed[0].ErrorMessage != "boom" {
		t.Fatalf("expected the failure detail to carry the handler error, got %+v", agg.ResponsesFailed)
	}
	if agg.TimedOut {
		t.Fatal("did not expect a timeout for a fast handler")
	}
}

func TestPublishFleetWideUsesRegisteredMembers(t *testing.T) {
	b := New(time.Second, zap.NewNop())
	b.RegisterMember("s1")
	b.RegisterMember("s2")
	var mu sync.Mutex
	var seen []string

	b.RegisterHandler("STATUS", func(ctx context.Context, req Request, hashID string) (map[string]interface{}, error) {
		mu.Lock()
		seen = append(seen, hashID)
		mu.Unlock()
		return map[string]interface{}{}, nil
	})

	agg, err := b.Publish(context.Background(), Request{Procedure: "STATUS"})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if agg.ExpectedResponses != 2 {
		t.Fatalf("expected fan-out to both registered members, got %d", agg.ExpectedResponses)
	}
	if len(seen) != 2 {
		t.Fatalf("expected both members to receive the request, got %v", seen)
	}
}

func TestPublishRemoveMemberShrinksFleetWideFanOut(t *testing.T) {
	b := New(time.Second, zap.NewNop())
	b.RegisterMember("s1")
	b.RegisterMember("s2")
	b.RemoveMember("s2")
	b.RegisterHandler("STATUS", func(ctx context.Context, req Request, hashID string) (map[string]interface{}, error) {
		return map[string]interface{}{}, nil
	})

	agg, err := b.Publish(context.Background(), Request{Procedure: "STATUS"})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if agg.ExpectedResponses != 1 {
		t.Fatalf("expected removed member to drop out of fleet-wide fan-out, got %d", agg.ExpectedResponses)
	}
}

func TestPublishZeroTargetProcedurePopulatesAggregatePayload(t *testing.T) {
	b := New(time.Second, zap.NewNop())
	b.RegisterHandler("LIST_CHARGING_STATIONS", func(ctx context.Context, req Request, hashID string) (map[string]interface{}, error) {
		if hashID != "" {
			t.Fatalf("expected a UIServer-local call with an empty hashID, got %q", hashID)
		}
		return map[string]interface{}{"count": 0}, nil
	})

	agg, err := b.Publish(context.Background(), Request{Procedure: "LIST_CHARGING_STATIONS"})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if agg.Payload == nil || agg.Payload["count"] != 0 {
		t.Fatalf("expected the local handler's payload on the aggregate, got %+v", agg.Payload)
	}
	if len(agg.HashIdsSucceeded)+len(agg.HashIdsFailed) != 0 {
		t.Fatal("did not expect any per-station outcomes for a zero-target procedure")
	}
}

func TestPublishZeroTargetProcedureFailureIsReported(t *testing.T) {
	b := New(time.Second, zap.NewNop())
	b.RegisterHandler("LIST_CHARGING_STATIONS", func(ctx context.Context, req Request, hashID string) (map[string]interface{}, error) {
		return nil, errors.New("store unavailable")
	})

	agg, err := b.Publish(context.Background(), Request{Procedure: "LIST_CHARGING_STATIONS"})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(agg.ResponsesFailed) != 1 || agg.ResponsesFailed[0].ErrorMessage != "store unavailable" {
		t.Fatalf("expected the local handler's error to surface, got %+v", agg.ResponsesFailed)
	}
}

func TestPublishTimesOutSlowHandlers(t *testing.T) {
	b := New(20*time.Millisecond, zap.NewNop())
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })

	b.RegisterHandler("SLOW", func(ctx context.Context, req Request, hashID string) (map[string]interface{}, error) {
		<-block
		return map[string]interface{}{}, nil
	})

	agg, err := b.Publish(context.Background(), Request{Procedure: "SLOW", HashIds: []string{"s1"}})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !agg.TimedOut {
		t.Fatal("expected the aggregate to report a timeout")
	}
	if len(agg.HashIdsFailed) != 1 || agg.HashIdsFailed[0] != "s1" {
		t.Fatalf("expected the never-responding target to be marked failed, got %v", agg.HashIdsFailed)
	}
}
