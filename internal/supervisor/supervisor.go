// Package supervisor implements the top-level bootstrap lifecycle of
// spec.md §4.7: read configuration, spawn WorkerHosts and their stations
// from the configured templates, distribute supervision URLs across them,
// and own start/stop/reset of the whole fleet.
package supervisor

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"stationfleet/internal/atg"
	"stationfleet/internal/audit"
	"stationfleet/internal/config"
	"stationfleet/internal/controlbus"
	"stationfleet/internal/idtags"
	"stationfleet/internal/ocpp/schema"
	"stationfleet/internal/ocppconfig"
	"stationfleet/internal/station"
	"stationfleet/internal/stationtemplate"
	"stationfleet/internal/uiserver"
	"stationfleet/internal/worker"
)

const configurationDir = "configurations"

// Supervisor owns the fleet: it satisfies controlbus.FleetLocator so
// ControlBus handlers can resolve a hashId to its hosting Element, and it
// drives the bootstrap sequence spec.md §4.7 describes.
type Supervisor struct {
	store  *config.Store
	logger *zap.Logger

	schemas   *schema.Registry
	templates *stationtemplate.Store
	auditSink station.AuditSink

	bus *controlbus.Bus
	ui  *uiserver.Server

	mu    sync.RWMutex
	hosts []*worker.Host
	rng   *rand.Rand
}

// New builds a Supervisor from a loaded configuration store. It does not
// start anything; call Start.
func New(store *config.Store, logger *zap.Logger) *Supervisor {
	s := &Supervisor{
		store:     store,
		logger:    logger,
		schemas:   schema.NewRegistry(),
		templates: stationtemplate.New(store.Document().Worker.SharedCache.LRUSize, logger),
		bus:       controlbus.New(0, logger),
		rng:       rand.New(rand.NewSource(1)),
	}
	controlbus.RegisterFleetProcedures(s.bus, s)
	controlbus.RegisterStationProcedures(s.bus, s)
	s.bus.RegisterHandler(controlbus.ProcStartSimulator, s.handleStartSimulator)
	s.bus.RegisterHandler(controlbus.ProcStopSimulator, s.handleStopSimulator)
	return s
}

// Locate implements controlbus.FleetLocator.
func (s *Supervisor) Locate(hashID string) (*worker.Element, bool) {
	s.mu.RLock()
	hosts := append([]*worker.Host(nil), s.hosts...)
	s.mu.RUnlock()
	for _, h := range hosts {
		if el, ok := h.Element(hashID); ok {
			return el, true
		}
	}
	return nil, false
}

// Hosts implements controlbus.FleetLocator.
func (s *Supervisor) Hosts() []*worker.Host {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*worker.Host(nil), s.hosts...)
}

func (s *Supervisor) handleStartSimulator(ctx context.Context, req controlbus.Request, hashID string) (map[string]interface{}, error) {
	if err := s.start(ctx); err != nil {
		return nil, err
	}
	return map[string]interface{}{"started": true}, nil
}

func (s *Supervisor) handleStopSimulator(ctx context.Context, req controlbus.Request, hashID string) (map[string]interface{}, error) {
	s.stop("STOP_SIMULATOR requested")
	return map[string]interface{}{"stopped": true}, nil
}

// Start runs the bootstrap sequence and then serves the UIServer until ctx
// is cancelled, per spec.md §4.7. It returns after a clean shutdown.
func (s *Supervisor) Start(ctx context.Context) error {
	if err := s.start(ctx); err != nil {
		return err
	}
	defer s.stop("supervisor shutdown")

	doc := s.store.Document()
	s.ui = uiserver.New(doc.UIServer, s.bus, s.logger)

	if err := s.store.Watch(); err != nil {
		s.logger.Warn("supervisor: config watch failed, continuing without live reload", zap.Error(err))
	}
	s.store.OnChange(func(*config.Document) {
		s.logger.Info("supervisor: configuration changed on disk")
	})

	go s.runReaper(ctx, doc.Worker)

	return s.ui.Start(ctx)
}

// runReaper periodically evicts dynamicPool hosts' long-idle stopped
// elements past PoolMaxInactiveMs, per spec.md §4.4's
// POOL_MAX_INACTIVE_TIME eviction. A no-op outside dynamicPool mode or
// with no configured max idle time.
func (s *Supervisor) runReaper(ctx context.Context, cfg config.WorkerConfig) {
	if cfg.ProcessType != "dynamicPool" || cfg.PoolMaxInactiveMs <= 0 {
		return
	}
	maxIdle := time.Duration(cfg.PoolMaxInactiveMs) * time.Millisecond
	interval := maxIdle / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, h := range s.Hosts() {
				h.ReapIdle(maxIdle)
			}
		}
	}
}

// start opens the audit sink (if configured) and spawns every configured
// station template's WorkerHost, per spec.md §4.7 steps 1-4.
func (s *Supervisor) start(ctx context.Context) error {
	doc := s.store.Document()

	if doc.PerformanceStorage.Audit.Enabled {
		sink, err := audit.NewSink(doc.PerformanceStorage.Audit.DSN, s.logger)
		if err != nil {
			return fmt.Errorf("supervisor: audit sink: %w", err)
		}
		s.auditSink = sink
	}

	urls := doc.SupervisionURLList()

	hostCount := 0
	newHost := func() *worker.Host {
		hostCount++
		h := worker.New(fmt.Sprintf("host-%d", hostCount), doc.Worker, s.schemas, s.auditSink, s.logger)
		s.mu.Lock()
		s.hosts = append(s.hosts, h)
		s.mu.Unlock()
		return h
	}
	host := newHost()

	index := 0
	for _, tmplURL := range doc.StationTemplateURLs {
		tpl, err := s.templates.Get(tmplURL.File)
		if err != nil {
			return fmt.Errorf("supervisor: load template %s: %w", tmplURL.File, err)
		}

		count := tmplURL.NumberOfStations
		if count <= 0 {
			count = 1
		}

		for i := 0; i < count; i++ {
			index++
			supervisionURL := distributeSupervisionURL(urls, doc.SupervisionURLDistribution, index-1, s.rng)

			if host.AtCapacity() {
				// spec.md §4.4's workerSet mode: once a host's
				// elementsPerWorker bound is reached, spawn another rather
				// than dropping the remaining stations, spacing the spawn
				// by workerStartDelay.
				if doc.Worker.WorkerStartDelayMs > 0 {
					select {
					case <-time.After(time.Duration(doc.Worker.WorkerStartDelayMs) * time.Millisecond):
					case <-ctx.Done():
						return ctx.Err()
					}
				}
				host = newHost()
			}

			hashID, err := host.StartWorkerElement(ctx, worker.StartWorkerElementRequest{
				Index:          index,
				Template:       tpl,
				SupervisionURL: supervisionURL,
				OcppOptions:    stationOptionsFrom(doc),
				ATGPolicy:      atgPolicyFrom(tpl),
				IDTags:         idtags.FromSlice(defaultIDTags(index)),
				Persisted:      loadPersisted(tmplURL.File, index),
			})
			if err != nil {
				s.logger.Error("supervisor: failed to start element", zap.String("template", tmplURL.File), zap.Int("index", index), zap.Error(err))
				continue
			}
			s.bus.RegisterMember(hashID)
		}
	}

	return nil
}

// stop halts every hosted station across every host and closes the audit
// sink, per spec.md §4.7's stop() contract.
func (s *Supervisor) stop(reason string) {
	s.mu.Lock()
	hosts := s.hosts
	s.hosts = nil
	s.mu.Unlock()

	for _, h := range hosts {
		h.Stop(reason)
	}
	if s.ui != nil {
		_ = s.ui.Stop()
	}
	if closer, ok := s.auditSink.(interface{ Close() error }); ok && closer != nil {
		_ = closer.Close()
	}
}

// Reset tears down every hosted station and re-runs the bootstrap
// sequence, per spec.md §4.7's reset() contract (config re-read, fresh
// WorkerHosts).
func (s *Supervisor) Reset(ctx context.Context) error {
	s.stop("reset requested")
	return s.start(ctx)
}

// distributeSupervisionURL implements spec.md §4.7's URL-assignment
// algorithm: ROUND_ROBIN and CHARGING_STATION_AFFINITY both cycle through
// urls by station index, RANDOM draws uniformly, and an unrecognized
// distribution value falls back to affinity.
func distributeSupervisionURL(urls []string, mode config.SupervisionURLDistribution, index int, rng *rand.Rand) string {
	if len(urls) == 0 {
		return ""
	}
	switch mode {
	case config.Random:
		return urls[rng.Intn(len(urls))]
	case config.RoundRobin, config.ChargingStationAffinity:
		return urls[index%len(urls)]
	default:
		return urls[index%len(urls)]
	}
}

func stationOptionsFrom(doc *config.Document) station.Options {
	opts := station.Options{
		PayloadSchemaValidation: true,
		StrictCompliance:        doc.StrictCompliance,
		BeginEndMeterValues:     doc.BeginEndMeterValues,
		OutOfOrderEndMeterValues: doc.OutOfOrderEndMeterValues,
	}
	if doc.AutoReconnectMaxRetries != nil {
		opts.AutoReconnectMaxRetries = *doc.AutoReconnectMaxRetries
	}
	return opts
}

func atgPolicyFrom(tpl *stationtemplate.Template) atg.Policy {
	t := tpl.AutomaticTransactionGenerator
	if t == nil {
		return atg.Policy{}
	}
	return atg.Policy{
		Enabled:                       t.Enable,
		MinDelayBetweenTransactionsMs: t.MinDelayBetweenTwoTransactions,
		MaxDelayBetweenTransactionsMs: t.MaxDelayBetweenTwoTransactions,
		ProbabilityOfStart:            t.ProbabilityOfStart,
		MinDurationMs:                 t.MinDurationMs,
		MaxDurationMs:                 t.MaxDurationMs,
		StopAfterHours:                t.StopAfterHours,
		IdTagDistribution:             idtags.RandomDistribution,
	}
}

// loadPersisted reads a station's persisted configuration file, if one
// exists on disk from a prior run. A missing file is not an error: the
// station falls back to template-only initialization.
func loadPersisted(templateFile string, index int) *ocppconfig.PersistedConfiguration {
	name := fmt.Sprintf("%s-%d.json", filenameStem(templateFile), index)
	pc, err := ocppconfig.Load(filepath.Join(configurationDir, name))
	if err != nil {
		return nil
	}
	return pc
}

func filenameStem(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}

// defaultIDTags synthesizes a per-station id-tag pool when a template
// doesn't ship its own idTagsFile, so ATG can still exercise Authorize and
// StartTransaction against unseeded stations.
func defaultIDTags(stationIndex int) []string {
	tags := make([]string, 5)
	for i := range tags {
		tags[i] = fmt.Sprintf("SIM-%d-%d", stationIndex, i+1)
	}
	return tags
}
