// Package atg implements AutomaticTransactionGenerator: a per-connector
// cooperative loop that starts and stops transactions under a
// probabilistic, time-bounded policy (spec.md §4.3). Grounded on the
// teacher's per-connection goroutine shape (ws.Connection's readPump/
// writePump pair) but generalized from one goroutine per connection to
// one per connector.
package atg

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"stationfleet/internal/idtags"
)

// StationView is the subset of station.Engine a Generator needs. Defined
// here in terms of primitive types (rather than importing package
// station) so the two packages don't form an import cycle: station holds
// an atg.Generator through its own ATGController interface, and atg holds
// a StationView here.
type StationView interface {
	Accepted() bool
	ConnectorIDs() []int
	ConnectorAvailable(connectorID int) bool
	ConnectorStatus(connectorID int) string
	RequireAuthorize() bool
	Authorize(ctx context.Context, connectorID int, idTag string) (bool, error)
	StartTransaction(ctx context.Context, connectorID int, idTag string) error
	StopTransaction(ctx context.Context, connectorID int, reason string) error
}

// Policy configures one connector's loop, per spec.md §4.3.
type Policy struct {
	Enabled                       bool
	MinDelayBetweenTransactionsMs int
	MaxDelayBetweenTransactionsMs int
	ProbabilityOfStart            float64
	MinDurationMs                 int
	MaxDurationMs                 int
	StopAfterHours                float64
	IdTagDistribution             idtags.Distribution
}

// Counters mirrors the persisted counter set of spec.md §4.3.
type Counters struct {
	AuthorizeRequests             int
	AcceptedAuthorizeRequests     int
	RejectedAuthorizeRequests     int
	StartTransactionRequests      int
	AcceptedStartTransactions     int
	RejectedStartTransactions     int
	StopTransactionRequests       int
	AcceptedStopTransactions      int
	RejectedStopTransactions      int
	SkippedConsecutiveTransactions int
	SkippedTransactions           int
	StartDate                     time.Time
	LastRunDate                   time.Time
	StopDate                      time.Time
	StoppedDate                   time.Time
}

// connectorLoop tracks the running goroutine and counters for one
// connector.
type connectorLoop struct {
	cancel  context.CancelFunc
	done    chan struct{}
	counters Counters
}

// Generator runs one cooperative loop per connector, bound to a
// StationView (spec.md §4.5's "ATG handle" on StationEngine).
type Generator struct {
	station StationView
	tags    *idtags.Cache
	policy  Policy
	logger  *zap.Logger

	loops map[int]*connectorLoop
}

// New builds a Generator for station, reading id tags from tags and
// applying policy to every connector it is started against.
func New(station StationView, tags *idtags.Cache, policy Policy, logger *zap.Logger) *Generator {
	return &Generator{
		station: station,
		tags:    tags,
		policy:  policy,
		logger:  logger,
		loops:   make(map[int]*connectorLoop),
	}
}

// Start implements station.ATGController: launches the loop for each id
// in connectorIDs, or every connector the station reports if the slice is
// empty — spec.md §9's "union behavior" resolution of Open Question #3.
func (g *Generator) Start(connectorIDs []int) {
	if !g.policy.Enabled {
		return
	}
	ids := connectorIDs
	if len(ids) == 0 {
		ids = g.station.ConnectorIDs()
	}
	for _, id := range ids {
		g.startOne(id)
	}
}

func (g *Generator) startOne(connectorID int) {
	if _, running := g.loops[connectorID]; running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	loop := &connectorLoop{cancel: cancel, done: make(chan struct{})}
	loop.counters.StartDate = time.Now().UTC()
	loop.counters.StopDate = loop.counters.StartDate.Add(time.Duration(g.policy.StopAfterHours * float64(time.Hour)))
	g.loops[connectorID] = loop

	go g.run(ctx, connectorID, loop)
}

// Stop implements station.ATGController: cancels the loop for each id in
// connectorIDs, or every running loop if the slice is empty/nil.
func (g *Generator) Stop(connectorIDs []int) {
	ids := connectorIDs
	if len(ids) == 0 {
		for id := range g.loops {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		if loop, ok := g.loops[id]; ok {
			loop.cancel()
			delete(g.loops, id)
		}
	}
}

// Counters returns a snapshot of connectorID's counters, or the zero
// value if it has no loop running or completed.
func (g *Generator) Counters(connectorID int) Counters {
	if loop, ok := g.loops[connectorID]; ok {
		return loop.counters
	}
	return Counters{}
}

// run implements the loop body of spec.md §4.3 for one connector.
func (g *Generator) run(ctx context.Context, connectorID int, loop *connectorLoop) {
	defer close(loop.done)
	c := &loop.counters

	for {
		select {
		case <-ctx.Done():
			c.StoppedDate = time.Now().UTC()
			return
		default:
		}

		if time.Now().After(c.StopDate) {
			c.StoppedDate = time.Now().UTC()
			return
		}

		if !g.guardOK(connectorID) {
			c.StoppedDate = time.Now().UTC()
			return
		}

		wait := randomBetween(g.policy.MinDelayBetweenTransactionsMs, g.policy.MaxDelayBetweenTransactionsMs)
		select {
		case <-time.After(time.Duration(wait) * time.Millisecond):
		case <-ctx.Done():
			c.StoppedDate = time.Now().UTC()
			return
		}

		if rand.Float64() < g.policy.ProbabilityOfStart {
			c.SkippedConsecutiveTransactions = 0
			g.attemptTransaction(ctx, connectorID, c)
		} else {
			c.SkippedConsecutiveTransactions++
			c.SkippedTransactions++
		}

		c.LastRunDate = time.Now().UTC()
	}
}

// guardOK implements step 2 of spec.md §4.3's loop body.
func (g *Generator) guardOK(connectorID int) bool {
	if !g.station.Accepted() {
		return false
	}
	if !g.station.ConnectorAvailable(connectorID) {
		return false
	}
	if g.station.ConnectorStatus(connectorID) == "Unavailable" {
		return false
	}
	return true
}

// attemptTransaction implements step 4 of spec.md §4.3's loop body: pick
// an idTag, authorize if required, start, hold for a random duration,
// then stop.
func (g *Generator) attemptTransaction(ctx context.Context, connectorID int, c *Counters) {
	idTag := g.tags.Next(g.policy.IdTagDistribution, connectorID)

	if g.station.RequireAuthorize() {
		c.AuthorizeRequests++
		ok, err := g.station.Authorize(ctx, connectorID, idTag)
		if err != nil || !ok {
			c.RejectedAuthorizeRequests++
			return
		}
		c.AcceptedAuthorizeRequests++
	}

	c.StartTransactionRequests++
	if err := g.station.StartTransaction(ctx, connectorID, idTag); err != nil {
		c.RejectedStartTransactions++
		if g.logger != nil {
			g.logger.Info("atg: start transaction rejected", zap.Int("connector", connectorID), zap.Error(err))
		}
		return
	}
	c.AcceptedStartTransactions++

	duration := randomBetween(g.policy.MinDurationMs, g.policy.MaxDurationMs)
	select {
	case <-time.After(time.Duration(duration) * time.Millisecond):
	case <-ctx.Done():
	}

	c.StopTransactionRequests++
	if err := g.station.StopTransaction(ctx, connectorID, "Local"); err != nil {
		c.RejectedStopTransactions++
		if g.logger != nil {
			g.logger.Info("atg: stop transaction rejected", zap.Int("connector", connectorID), zap.Error(err))
		}
		return
	}
	c.AcceptedStopTransactions++
}

// randomBetween draws an integer in [lo, hi]; if hi <= lo it returns lo.
func randomBetween(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + rand.Intn(hi-lo+1)
}
