// Package worker implements WorkerHost: a bounded pool of StationEngine
// instances, per spec.md §4.4. Grounded on the teacher's
// ocpp-server/internal/ws.Manager (a mutex-protected map of live
// connections with Add/Remove), generalized from WebSocket client
// connections to charging-station engines and given the three pooling
// modes the spec names.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"stationfleet/internal/atg"
	"stationfleet/internal/config"
	"stationfleet/internal/idtags"
	"stationfleet/internal/ocpp/schema"
	"stationfleet/internal/ocppconfig"
	"stationfleet/internal/station"
	"stationfleet/internal/stationtemplate"
)

// LifecycleEvent is published by a Host whenever a station starts,
// stops, or fails, matching spec.md §2's "publishes lifecycle events".
type LifecycleEvent struct {
	HashID    string
	StationID string
	Kind      string // "started" | "stopped" | "error"
	Err       error
	At        time.Time
}

// Element is one hosted station: its engine plus the template it was
// spawned from.
type Element struct {
	Engine   *station.Engine
	Template *stationtemplate.Template
}

// Host manages a bounded set of station.Engine instances under one of the
// three pooling modes named in spec.md §4.4.
type Host struct {
	name   string
	cfg    config.WorkerConfig
	logger *zap.Logger

	schemas *schema.Registry
	audit   station.AuditSink

	mu       sync.RWMutex
	elements map[string]*Element // keyed by hashId

	events chan LifecycleEvent

	lastActive sync.Map // hashId -> time.Time, dynamicPool idle tracking
}

// New builds a Host. schemas is shared across every hosted engine's OCPP
// service (spec.md §5's "template parse cache ... shared across all
// stations on the same host").
func New(name string, cfg config.WorkerConfig, schemas *schema.Registry, audit station.AuditSink, logger *zap.Logger) *Host {
	return &Host{
		name:     name,
		cfg:      cfg,
		logger:   logger,
		schemas:  schemas,
		audit:    audit,
		elements: make(map[string]*Element),
		events:   make(chan LifecycleEvent, 256),
	}
}

// Events returns the channel of lifecycle events this host publishes.
// Nothing in this module reads it; publish drops an event once the
// channel's 256-slot buffer is full.
func (h *Host) Events() <-chan LifecycleEvent { return h.events }

func (h *Host) publish(ev LifecycleEvent) {
	ev.At = time.Now().UTC()
	select {
	case h.events <- ev:
	default:
		h.logger.Warn("worker: event channel full, dropping event", zap.String("host", h.name), zap.String("kind", ev.Kind))
	}
}

// StartWorkerElementRequest carries the parameters of spec.md §4.4's
// "startWorkerElement{stationId, templateFile}" command.
type StartWorkerElementRequest struct {
	Index          int
	Template       *stationtemplate.Template
	SupervisionURL string
	OcppOptions    station.Options
	ATGPolicy      atg.Policy
	IDTags         *idtags.Cache
	Persisted      *ocppconfig.PersistedConfiguration
}

// StartWorkerElement loads the template, builds a Station and Engine,
// wires ATG, and starts it, subject to elementStartDelay pacing.
func (h *Host) StartWorkerElement(ctx context.Context, req StartWorkerElementRequest) (string, error) {
	if h.cfg.ElementStartDelayMs > 0 {
		select {
		case <-time.After(time.Duration(h.cfg.ElementStartDelayMs) * time.Millisecond):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if h.atCapacity() {
		return "", errors.New("worker: host at capacity")
	}

	st, err := station.NewFromTemplate(req.Template, station.FromTemplateOptions{
		Index:          req.Index,
		SupervisionURL: req.SupervisionURL,
		Persisted:      req.Persisted,
	})
	if err != nil {
		return "", fmt.Errorf("worker: build station: %w", err)
	}

	engine := station.New(st, h.logger.With(zap.String("station", st.ChargingStationID)), req.OcppOptions, h.schemas)
	if h.audit != nil {
		engine.SetAuditSink(h.audit)
	}

	if req.Template.AutomaticTransactionGenerator != nil && req.Template.AutomaticTransactionGenerator.Enable {
		gen := atg.New(engine, req.IDTags, req.ATGPolicy, h.logger)
		engine.SetATG(gen)
	}

	h.mu.Lock()
	h.elements[st.HashID] = &Element{Engine: engine, Template: req.Template}
	h.mu.Unlock()
	h.lastActive.Store(st.HashID, time.Now())

	if err := engine.Start(ctx); err != nil {
		h.publish(LifecycleEvent{HashID: st.HashID, StationID: st.ChargingStationID, Kind: "error", Err: err})
		return st.HashID, err
	}
	h.publish(LifecycleEvent{HashID: st.HashID, StationID: st.ChargingStationID, Kind: "started"})
	return st.HashID, nil
}

// atCapacity reports whether this host has reached its configured element
// bound, applicable to workerSet and staticPool modes.
func (h *Host) atCapacity() bool {
	if h.cfg.ElementsPerWorker <= 0 {
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.elements) >= h.cfg.ElementsPerWorker
}

// AtCapacity reports atCapacity to callers outside the package, letting a
// Supervisor decide when to spawn another Host under workerSet mode
// (spec.md §4.4/§4.7).
func (h *Host) AtCapacity() bool { return h.atCapacity() }

// StopWorkerElement stops and removes the hosted station identified by
// hashID.
func (h *Host) StopWorkerElement(hashID, reason string) error {
	h.mu.Lock()
	el, ok := h.elements[hashID]
	if ok {
		delete(h.elements, hashID)
	}
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("worker: no such station %s", hashID)
	}

	el.Engine.Stop(reason)
	h.lastActive.Delete(hashID)
	h.publish(LifecycleEvent{HashID: hashID, StationID: el.Engine.ChargingStationID, Kind: "stopped"})
	return nil
}

// Element looks up one hosted station by hashId.
func (h *Host) Element(hashID string) (*Element, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	el, ok := h.elements[hashID]
	return el, ok
}

// Elements returns every hosted station's element, snapshotted.
func (h *Host) Elements() []*Element {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Element, 0, len(h.elements))
	for _, el := range h.elements {
		out = append(out, el)
	}
	return out
}

// Len reports the number of hosted stations.
func (h *Host) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.elements)
}

// Stop stops every hosted station, ensuring outstanding transactions are
// properly stopped first, per spec.md §4.7's supervisor stop() contract.
func (h *Host) Stop(reason string) {
	h.mu.RLock()
	ids := make([]string, 0, len(h.elements))
	for id := range h.elements {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	for _, id := range ids {
		if el, ok := h.Element(id); ok {
			for _, c := range el.Engine.AllConnectors() {
				if c.TransactionStarted {
					_ = el.Engine.StopTransaction(context.Background(), c.Index, "Other")
				}
			}
		}
		_ = h.StopWorkerElement(id, reason)
	}
	close(h.events)
}

// ReapIdle implements dynamicPool's POOL_MAX_INACTIVE_TIME eviction:
// any element whose engine has been stopped and untouched longer than
// maxIdle is dropped. Only meaningful when cfg.ProcessType is
// "dynamicPool"; callers run this on a periodic tick.
func (h *Host) ReapIdle(maxIdle time.Duration) {
	if h.cfg.ProcessType != "dynamicPool" {
		return
	}
	now := time.Now()
	h.mu.RLock()
	var stale []string
	for id, el := range h.elements {
		if el.Engine.Started {
			continue
		}
		last, ok := h.lastActive.Load(id)
		if ok && now.Sub(last.(time.Time)) > maxIdle {
			stale = append(stale, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range stale {
		h.mu.Lock()
		delete(h.elements, id)
		h.mu.Unlock()
		h.lastActive.Delete(id)
		h.logger.Debug("worker: reaped idle element", zap.String("host", h.name), zap.String("hashId", id))
	}
}
