package atg

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"stationfleet/internal/idtags"
)

type fakeStation struct {
	accepted    bool
	available   map[int]bool
	status      map[int]string
	authorize   func(idTag string) (bool, error)
	starts      []int
	stops       []int
	requireAuth bool
}

func (f *fakeStation) Accepted() bool { return f.accepted }
func (f *fakeStation) ConnectorIDs() []int {
	ids := make([]int, 0, len(f.available))
	for id := range f.available {
		ids = append(ids, id)
	}
	return ids
}
func (f *fakeStation) ConnectorAvailable(connectorID int) bool { return f.available[connectorID] }
func (f *fakeStation) ConnectorStatus(connectorID int) string  { return f.status[connectorID] }
func (f *fakeStation) RequireAuthorize() bool                  { return f.requireAuth }
func (f *fakeStation) Authorize(ctx context.Context, connectorID int, idTag string) (bool, error) {
	if f.authorize != nil {
		return f.authorize(idTag)
	}
	return true, nil
}
func (f *fakeStation) StartTransaction(ctx context.Context, connectorID int, idTag string) error {
	f.starts = append(f.starts, connectorID)
	return nil
}
func (f *fakeStation) StopTransaction(ctx context.Context, connectorID int, reason string) error {
	f.stops = append(f.stops, connectorID)
	return nil
}

func TestRandomBetweenClampsInvertedRange(t *testing.T) {
	if got := randomBetween(100, 50); got != 100 {
		t.Fatalf("expected clamp to lo when hi<=lo, got %d", got)
	}
	if got := randomBetween(10, 10); got != 10 {
		t.Fatalf("expected clamp to lo when hi==lo, got %d", got)
	}
}

func TestGuardOKRejectsUnacceptedStation(t *testing.T) {
	station := &fakeStation{accepted: false, available: map[int]bool{1: true}, status: map[int]string{1: "Available"}}
	g := New(station, idtags.FromSlice([]string{"TAG-1"}), Policy{}, zap.NewNop())
	if g.guardOK(1) {
		t.Fatal("expected guardOK to reject a station that hasn't accepted registration")
	}
}

func TestGuardOKRejectsUnavailableOrFaultedConnector(t *testing.T) {
	station := &fakeStation{
		accepted:  true,
		available: map[int]bool{1: false, 2: true},
		status:    map[int]string{1: "Available", 2: "Unavailable"},
	}
	g := New(station, idtags.FromSlice([]string{"TAG-1"}), Policy{}, zap.NewNop())
	if g.guardOK(1) {
		t.Fatal("expected guardOK to reject a connector marked unavailable")
	}
	if g.guardOK(2) {
		t.Fatal("expected guardOK to reject a connector whose status is Unavailable")
	}
}

func TestGuardOKAcceptsReadyConnector(t *testing.T) {
	station := &fakeStation{accepted: true, available: map[int]bool{1: true}, status: map[int]string{1: "Available"}}
	g := New(station, idtags.FromSlice([]string{"TAG-1"}), Policy{}, zap.NewNop())
	if !g.guardOK(1) {
		t.Fatal("expected guardOK to accept an accepted station with an available connector")
	}
}

func TestStopWithoutRunningLoopsIsANoop(t *testing.T) {
	station := &fakeStation{accepted: true, available: map[int]bool{1: true}, status: map[int]string{1: "Available"}}
	g := New(station, idtags.FromSlice([]string{"TAG-1"}), Policy{}, zap.NewNop())

	g.Stop(nil)
	g.Stop([]int{1, 2})

	if got := g.Counters(1); !got.StartDate.IsZero() {
		t.Fatalf("expected zero-value counters for a connector with no loop, got %+v", got)
	}
}
