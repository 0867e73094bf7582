package worker

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"stationfleet/internal/config"
	"stationfleet/internal/stationtemplate"
)

func testTemplate(model string) *stationtemplate.Template {
	return &stationtemplate.Template{ChargePointModel: model, TemplateHash: "hash-" + model}
}

// badSupervisionURL fails gorilla/websocket's Dialer synchronously (an
// unrecognized scheme), so StartWorkerElement returns an error without
// making a real network call.
const badSupervisionURL = "not-a-url"

func TestStartWorkerElementRegistersDespiteDialFailure(t *testing.T) {
	h := New("test", config.WorkerConfig{}, nil, nil, zap.NewNop())
	hashID, err := h.StartWorkerElement(context.Background(), StartWorkerElementRequest{
		Index: 1, Template: testTemplate("X"), SupervisionURL: badSupervisionURL,
	})
	if err == nil {
		t.Fatal("expected the dial to fail for a malformed supervision url")
	}
	if hashID == "" {
		t.Fatal("expected a hashID even when the dial fails")
	}
	if h.Len() != 1 {
		t.Fatalf("expected the element to remain registered after a dial failure, got %d", h.Len())
	}
}

func TestAtCapacityRespectsElementsPerWorker(t *testing.T) {
	h := New("test", config.WorkerConfig{ElementsPerWorker: 1}, nil, nil, zap.NewNop())
	if _, err := h.StartWorkerElement(context.Background(), StartWorkerElementRequest{
		Index: 1, Template: testTemplate("X"), SupervisionURL: badSupervisionURL,
	}); err == nil {
		t.Fatal("expected the first start to fail its dial")
	}

	_, err := h.StartWorkerElement(context.Background(), StartWorkerElementRequest{
		Index: 2, Template: testTemplate("Y"), SupervisionURL: badSupervisionURL,
	})
	if err == nil || err.Error() != "worker: host at capacity" {
		t.Fatalf("expected a capacity error for the second element, got %v", err)
	}
}

func TestAtCapacityUnboundedWhenElementsPerWorkerIsZero(t *testing.T) {
	h := New("test", config.WorkerConfig{}, nil, nil, zap.NewNop())
	for i := 1; i <= 5; i++ {
		if _, err := h.StartWorkerElement(context.Background(), StartWorkerElementRequest{
			Index: i, Template: testTemplate("X"), SupervisionURL: badSupervisionURL,
		}); err == nil {
			t.Fatalf("expected element %d's dial to fail", i)
		}
	}
	if h.Len() != 5 {
		t.Fatalf("expected 5 registered elements with no configured cap, got %d", h.Len())
	}
}

func TestStopWorkerElementUnknownReturnsError(t *testing.T) {
	h := New("test", config.WorkerConfig{}, nil, nil, zap.NewNop())
	if err := h.StopWorkerElement("missing", "test"); err == nil {
		t.Fatal("expected an error stopping an unregistered hashID")
	}
}

func TestStopWorkerElementRemovesFromElements(t *testing.T) {
	h := New("test", config.WorkerConfig{}, nil, nil, zap.NewNop())
	hashID, _ := h.StartWorkerElement(context.Background(), StartWorkerElementRequest{
		Index: 1, Template: testTemplate("X"), SupervisionURL: badSupervisionURL,
	})

	if err := h.StopWorkerElement(hashID, "test"); err != nil {
		t.Fatalf("StopWorkerElement: %v", err)
	}
	if h.Len() != 0 {
		t.Fatalf("expected the element to be gone after stopping, got len %d", h.Len())
	}
	if _, ok := h.Element(hashID); ok {
		t.Fatal("expected Element lookup to miss after stopping")
	}
}

func TestReapIdleOnlyAppliesToDynamicPool(t *testing.T) {
	h := New("test", config.WorkerConfig{ProcessType: "staticPool"}, nil, nil, zap.NewNop())
	hashID, _ := h.StartWorkerElement(context.Background(), StartWorkerElementRequest{
		Index: 1, Template: testTemplate("X"), SupervisionURL: badSupervisionURL,
	})
	h.ReapIdle(0)
	if _, ok := h.Element(hashID); !ok {
		t.Fatal("expected ReapIdle to be a no-op outside dynamicPool mode")
	}
}

func TestReapIdleEvictsStoppedElementsPastMaxIdle(t *testing.T) {
	h := New("test", config.WorkerConfig{ProcessType: "dynamicPool"}, nil, nil, zap.NewNop())
	hashID, _ := h.StartWorkerElement(context.Background(), StartWorkerElementRequest{
		Index: 1, Template: testTemplate("X"), SupervisionURL: badSupervisionURL,
	})
	// The dial failure above leaves Engine.Started false, matching the
	// "stopped and untouched" precondition ReapIdle checks.
	time.Sleep(5 * time.Millisecond)
	h.ReapIdle(time.Millisecond)

	if _, ok := h.Element(hashID); ok {
		t.Fatal("expected ReapIdle to evict a long-idle, stopped element")
	}
}

func TestElementsSnapshotIsIndependentOfLiveMap(t *testing.T) {
	h := New("test", config.WorkerConfig{}, nil, nil, zap.NewNop())
	hashID, _ := h.StartWorkerElement(context.Background(), StartWorkerElementRequest{
		Index: 1, Template: testTemplate("X"), SupervisionURL: badSupervisionURL,
	})

	snapshot := h.Elements()
	if len(snapshot) != 1 {
		t.Fatalf("expected 1 element in the snapshot, got %d", len(snapshot))
	}
	h.StopWorkerElement(hashID, "test")
	if len(snapshot) != 1 {
		t.Fatal("expected the earlier snapshot to be unaffected by a later Stop")
	}
}
