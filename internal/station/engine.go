package station

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"stationfleet/internal/ocpp"
	"stationfleet/internal/ocpp/schema"
	"stationfleet/internal/ocpp/v16"
	"stationfleet/internal/ocpp/v20"
)

// AuditSink records outbound/inbound OCPP frames for optional debugging
// (spec.md §7's message trace). Best-effort: failures are logged, never
// fatal.
type AuditSink interface {
	Record(ctx context.Context, stationHashID, direction, messageType, action string, payload []byte)
}

// ATGController is the subset of atg.Generator's surface Engine needs,
// defined here (rather than importing package atg) to avoid a station<->atg
// import cycle: atg depends on station's Engine through its own StationView
// interface, defined in terms of primitive types, and Engine depends on
// ATGController here.
type ATGController interface {
	Start(connectorIDs []int)
	Stop(connectorIDs []int)
}

// Options configures a new Engine, sourced from the station template and
// simulator-wide defaults (spec.md §6).
type Options struct {
	RegistrationMaxRetries     int // -1 = infinite, 0 = no retry
	RegistrationRetryIntervalS int
	AutoReconnectMaxRetries    int // -1 = unlimited, 0 = disabled
	ReconnectExponentialDelay  bool
	ConnectionTimeoutSec       int
	WebSocketPingIntervalSec   int
	PayloadSchemaValidation    bool
	StrictCompliance           bool
	BeginEndMeterValues        bool
	OutOfOrderEndMeterValues   bool
	CustomValueLimitationMeterValues bool
	MeterValueSampleIntervalMs int
	RequestTimeout             time.Duration
	FluctuationPercent         float64
}

func (o Options) withDefaults() Options {
	if o.ConnectionTimeoutSec <= 0 {
		o.ConnectionTimeoutSec = 30
	}
	if o.WebSocketPingIntervalSec <= 0 {
		o.WebSocketPingIntervalSec = 60
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 60 * time.Second
	}
	if o.MeterValueSampleIntervalMs <= 0 {
		o.MeterValueSampleIntervalMs = 60000
	}
	if o.FluctuationPercent <= 0 {
		o.FluctuationPercent = 5
	}
	return o
}

// Engine is the per-station actor described in spec.md §4.1: it owns the
// WebSocket connection, drives the boot/heartbeat/status sequencing and
// implements ocpp.Sender so the version-specific Service can send and
// receive frames through it.
type Engine struct {
	*Station

	logger *zap.Logger
	opts   Options

	svc16 *v16.Service
	svc20 *v20.Service

	reqCache *RequestCache
	audit    AuditSink

	connMu sync.Mutex
	conn   *websocket.Conn
	send   chan []byte

	bufferMu sync.Mutex
	buffer   [][]byte

	stopHeartbeat chan struct{}
	stopPing      chan struct{}

	reconnectRetryCount  int
	wsConnectionRestarted bool

	meterTimersMu sync.Mutex
	meterStop     map[int]chan struct{}

	atg ATGController

	lifecycleMu sync.Mutex
	closeSignal chan struct{}
}

// New builds an Engine around a freshly initialized Station.
func New(st *Station, logger *zap.Logger, opts Options, schemas *schema.Registry) *Engine {
	opts = opts.withDefaults()
	e := &Engine{
		Station:   st,
		logger:    logger,
		opts:      opts,
		reqCache:  NewRequestCache(opts.RequestTimeout),
		meterStop: make(map[int]chan struct{}),
	}
	e.svc16 = v16.NewService(schemas, opts.PayloadSchemaValidation)
	e.svc20 = v20.NewService(schemas, opts.PayloadSchemaValidation)
	e.svc16.SetHandlers(e)
	return e
}

// SetAuditSink installs the optional wire-trace sink.
func (e *Engine) SetAuditSink(sink AuditSink) { e.audit = sink }

// SetATG installs the per-connector transaction generator controller.
func (e *Engine) SetATG(ctrl ATGController) { e.atg = ctrl }

// activeService returns the OCPP service selected by the station's
// configured version.
func (e *Engine) activeService() ocpp.Service {
	if e.OcppVersion == "2.0" || e.OcppVersion == "2.0.1" {
		return e.svc20
	}
	return e.svc16
}

// Start marks the station started and opens its connection, per spec.md
// §4.1's lifecycle: "started (WebSocket connect -> boot)".
func (e *Engine) Start(ctx context.Context) error {
	e.lifecycleMu.Lock()
	if e.Started {
		e.lifecycleMu.Unlock()
		return nil
	}
	e.Starting = true
	e.closeSignal = make(chan struct{})
	e.lifecycleMu.Unlock()

	err := e.openConnection(ctx, dialOptions{})

	e.lifecycleMu.Lock()
	e.Starting = false
	if err == nil {
		e.Started = true
	}
	e.lifecycleMu.Unlock()
	return err
}

// dialOptions mirrors spec.md §4.1's openConnection(opts, {closeOpened,
// terminateOpened}).
type dialOptions struct {
	closeOpened     bool
	terminateOpened bool
}

// openConnection dials the CSMS and, on success, launches the read/write
// pumps and the boot sequence.
func (e *Engine) openConnection(ctx context.Context, opts dialOptions) error {
	e.connMu.Lock()
	if e.conn != nil {
		if opts.closeOpened || opts.terminateOpened {
			e.conn.Close()
			e.conn = nil
		} else {
			e.connMu.Unlock()
			return ocpp.NewStateError("connection already open")
		}
	}
	e.connMu.Unlock()

	url := e.dialURL()
	subprotocol := "ocpp1.6"
	if e.OcppVersion == "2.0" || e.OcppVersion == "2.0.1" {
		subprotocol = "ocpp2.0.1"
	}

	dialer := websocket.Dialer{
		Subprotocols:     []string{subprotocol},
		HandshakeTimeout: time.Duration(e.opts.ConnectionTimeoutSec) * time.Second,
		TLSClientConfig:  &tls.Config{},
	}

	conn, _, err := dialer.DialContext(ctx, url, http.Header{})
	if err != nil {
		e.logger.Warn("station: dial failed", zap.String("station", e.ChargingStationID), zap.String("url", url), zap.Error(err))
		return err
	}

	e.connMu.Lock()
	e.conn = conn
	e.send = make(chan []byte, 64)
	e.connMu.Unlock()

	go e.writePump()
	go e.readPump()

	e.onOpen(ctx)
	return nil
}

// dialURL builds "{supervisionBase}/{chargingStationId}" per spec.md
// §4.1: the OCPP-configured supervision URL key wins if the station
// publishes one, else the pre-selected supervision URL.
func (e *Engine) dialURL() string {
	base := e.SupervisionURL
	if e.ConfigKeys != nil {
		if key, ok := e.ConfigKeys.Get("OcppSupervisionUrl"); ok && key.Value != "" {
			base = key.Value
		}
	}
	return fmt.Sprintf("%s/%s", trimTrailingSlash(base), e.ChargingStationID)
}

func trimTrailingSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

// closeConnection closes the socket with a normal close code.
func (e *Engine) closeConnection() {
	e.connMu.Lock()
	defer e.connMu.Unlock()
	if e.conn == nil {
		return
	}
	deadline := time.Now().Add(2 * time.Second)
	_ = e.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	e.conn.Close()
	e.conn = nil
}

// Stop implements spec.md §4.1's stop(): halt timers and ATG, drain the
// request cache, close the socket.
func (e *Engine) Stop(reason string) {
	e.lifecycleMu.Lock()
	if !e.Started {
		e.lifecycleMu.Unlock()
		return
	}
	e.Stopping = true
	e.lifecycleMu.Unlock()

	if e.atg != nil {
		e.atg.Stop(nil)
	}
	e.stopHeartbeatTimer()
	e.stopPingTimer()
	e.stopAllMeterTimers()
	e.reqCache.DrainWithError(ocpp.NewStateError("station stopped: " + reason))
	e.closeConnection()

	if e.closeSignal != nil {
		close(e.closeSignal)
	}

	e.lifecycleMu.Lock()
	e.Started = false
	e.Stopping = false
	e.BootNotificationResponse = nil
	e.lifecycleMu.Unlock()
}

// Reset implements spec.md §3's lifecycle: stop -> sleep(resetTime) ->
// reinit -> start. Re-initialization (rebuilding Station from
// template+persisted config) is the caller's responsibility; Reset only
// owns the stop/sleep/start choreography.
func (e *Engine) Reset(ctx context.Context, reason string, resetDelay time.Duration, reinit func() error) error {
	e.Stop(reason)
	if resetDelay > 0 {
		select {
		case <-time.After(resetDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if reinit != nil {
		if err := reinit(); err != nil {
			return err
		}
	}
	return e.Start(ctx)
}

// onOpen runs the boot sequence described in spec.md §4.1.
func (e *Engine) onOpen(ctx context.Context) {
	go func() {
		if err := e.bootSequence(ctx); err != nil {
			e.logger.Warn("station: boot sequence aborted", zap.String("station", e.ChargingStationID), zap.Error(err))
			return
		}
		if e.wsConnectionRestarted {
			e.flushBuffer()
			e.wsConnectionRestarted = false
		}
	}()
}

// bootSequence retries BootNotification per RegistrationMaxRetries until
// Accepted, then performs the post-accept setup named in spec.md §4.1.
func (e *Engine) bootSequence(ctx context.Context) error {
	attempts := 0
	for {
		resp, err := e.sendBootNotification(ctx, "PowerUp")
		attempts++
		if err == nil && resp.Status == v16.RegistrationAccepted {
			e.acceptRegistration(resp)
			return nil
		}

		if e.opts.RegistrationMaxRetries == 0 {
			return ocpp.NewStateError("boot notification rejected, retries disabled")
		}
		if e.opts.RegistrationMaxRetries > 0 && attempts > e.opts.RegistrationMaxRetries {
			return ocpp.NewStateError("boot notification retries exhausted")
		}

		interval := e.opts.RegistrationRetryIntervalS
		if err == nil && resp.Interval > 0 {
			interval = resp.Interval
		}
		if interval <= 0 {
			interval = 10
		}
		select {
		case <-time.After(time.Duration(interval) * time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// acceptRegistration performs the post-accept boot steps of spec.md §4.1:
// arm the heartbeat/ping timers, announce every connector's status, and
// report a completed firmware install if one was pending.
func (e *Engine) acceptRegistration(resp bootResult) {
	e.BootNotificationResponse = &BootNotificationResult{Status: resp.Status, Interval: resp.Interval, CurrentTime: resp.CurrentTime}
	e.HeartbeatIntervalSeconds = resp.Interval
	if e.ConfigKeys != nil {
		e.ConfigKeys.SetHeartbeatInterval(fmt.Sprintf("%d", resp.Interval))
	}
	e.reconnectRetryCount = 0

	e.startHeartbeatTimer()
	e.startPingTimer()

	for _, c := range e.AllConnectors() {
		status := e.bootConnectorStatus(c)
		_ = e.sendStatusNotification(context.Background(), c.Index, status)
	}

	if e.FirmwareStatus == "Installing" && !e.usingV20() {
		_, _ = e.svc16.FirmwareStatusNotification(context.Background(), e, "Installed")
		e.FirmwareStatus = "Installed"
	}

	if e.atg != nil {
		e.atg.Start(nil)
	}
}

// bootConnectorStatus computes the initial status to announce.
func (e *Engine) bootConnectorStatus(c *Connector) ConnectorStatus {
	if c.Availability == Inoperative {
		return StatusUnavailable
	}
	return StatusAvailable
}
