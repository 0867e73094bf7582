package station

import (
	"context"
	"time"

	"go.uber.org/zap"

	"stationfleet/internal/ocpp"
	"stationfleet/internal/ocpp/v16"
)

// Authorize sends an Authorize request for idTag on connectorID and
// reports whether it was accepted, per spec.md §4.1's pre-transaction
// authorization step. A prior Authorize already accepted for the same
// idTag on this connector short-circuits the round trip, per spec.md
// §3's local authorization state; StartTransaction clears the cache once
// it consumes it.
func (e *Engine) Authorize(ctx context.Context, connectorID int, idTag string) (bool, error) {
	if err := e.requireV16("Authorize"); err != nil {
		return false, err
	}
	c, ok := e.ConnectorByID(connectorID)
	if ok && c.IdTagLocalAuthorized && c.LocalAuthorizeIdTag == idTag {
		return true, nil
	}

	resp, err := e.svc16.Authorize(ctx, e, idTag)
	if err != nil {
		return false, err
	}
	accepted := resp.IdTagInfo.Status == v16.AuthorizationAccepted
	if ok {
		c.AuthorizeIdTag = idTag
		c.IdTagAuthorized = accepted
		if accepted {
			c.LocalAuthorizeIdTag = idTag
			c.IdTagLocalAuthorized = true
		}
	}
	return accepted, nil
}

// StartTransaction implements spec.md §4.1's transaction start sequence:
// guard the connector, authorize (unless already authorized), send
// StartTransaction, transition the connector to Charging, and start its
// meter value timer.
func (e *Engine) StartTransaction(ctx context.Context, connectorID int, idTag string) error {
	if err := e.requireV16("StartTransaction"); err != nil {
		return err
	}
	if !e.Accepted() {
		return ocpp.NewStateError("station not accepted")
	}
	c, ok := e.ConnectorByID(connectorID)
	if !ok {
		return ocpp.NewStateError("unknown connector")
	}
	if c.TransactionStarted {
		return ocpp.NewStateError("connector already has a running transaction")
	}
	if c.Availability == Inoperative {
		return ocpp.NewStateError("connector is inoperative")
	}
	if c.Status != StatusAvailable && c.Status != StatusPreparing {
		return ocpp.NewStateError("connector not in Available or Preparing state")
	}

	if e.RequireAuthorize() && !(c.IdTagLocalAuthorized && c.LocalAuthorizeIdTag == idTag) {
		accepted, err := e.Authorize(ctx, connectorID, idTag)
		if err != nil {
			return err
		}
		if !accepted {
			return ocpp.NewSecurityError("idTag not authorized")
		}
	}

	var reservationID *int
	if c.Reservation != nil {
		if c.Reservation.IdTag != idTag {
			e.logger.Warn("station: idTag does not match reservation, starting anyway",
				zap.String("station", e.ChargingStationID), zap.Int("connector", connectorID))
		}
		if time.Now().After(c.Reservation.ExpiryDate) {
			e.logger.Warn("station: reservation expired, starting anyway",
				zap.String("station", e.ChargingStationID), zap.Int("connector", connectorID))
		}
		rid := c.Reservation.ID
		reservationID = &rid
	}

	resp, err := e.svc16.StartTransaction(ctx, e, v16.StartTransactionRequest{
		ConnectorID:   connectorID,
		IdTag:         idTag,
		MeterStart:    int(c.EnergyActiveImportRegisterValue),
		ReservationID: reservationID,
		Timestamp:     v16.Now(),
	})
	if err != nil {
		return err
	}
	if resp.IdTagInfo.Status != v16.AuthorizationAccepted {
		return ocpp.NewSecurityError("idTag rejected: " + resp.IdTagInfo.Status)
	}

	c.TransactionStarted = true
	c.TransactionID = resp.TransactionID
	c.TransactionIdTag = idTag
	c.TransactionStart = time.Now().UTC()
	c.TransactionEnergyActiveImportRegisterValue = 0
	c.IdTagLocalAuthorized = false
	c.LocalAuthorizeIdTag = ""
	if c.Reservation != nil {
		e.terminateReservation(c, ReservationTransactionStarted)
	}

	e.transitionConnector(c, StatusCharging)

	if e.opts.BeginEndMeterValues {
		cfg := e.meterConfigFor(c)
		mv := buildMeterValue(c, cfg, "Transaction.Begin", 0, c.TransactionStart)
		if err := e.sendMeterValues(ctx, c, mv); err != nil {
			e.logger.Warn("station: transaction begin meter value failed",
				zap.String("station", e.ChargingStationID), zap.Int("connector", connectorID), zap.Error(err))
		}
	}

	e.startMeterTimer(c)
	return nil
}

// sendMeterValues delivers one MeterValues CALL for c, enforcing strict
// compliance's out-of-order rejection: a sample that doesn't advance past
// c's last delivered sample is refused unless outOfOrderEndMeterValues
// permits it.
func (e *Engine) sendMeterValues(ctx context.Context, c *Connector, mv v16.MeterValue) error {
	if e.opts.StrictCompliance && !e.opts.OutOfOrderEndMeterValues && !mv.Timestamp.After(c.LastMeterValueAt) {
		return ocpp.NewStateError("out-of-order meter value rejected")
	}
	var txID *int
	if c.TransactionStarted {
		id := c.TransactionID
		txID = &id
	}
	_, err := e.svc16.MeterValues(ctx, e, v16.MeterValuesRequest{
		ConnectorID:   c.Index,
		TransactionID: txID,
		MeterValue:    []v16.MeterValue{mv},
	})
	if err == nil {
		c.LastMeterValueAt = mv.Timestamp
	}
	return err
}

// StopTransaction implements spec.md §4.1's transaction stop sequence:
// stop the meter timer, send StopTransaction with the final meter value
// and any buffered transactionData, and transition back to Available.
func (e *Engine) StopTransaction(ctx context.Context, connectorID int, reason string) error {
	if err := e.requireV16("StopTransaction"); err != nil {
		return err
	}
	c, ok := e.ConnectorByID(connectorID)
	if !ok {
		return ocpp.NewStateError("unknown connector")
	}
	if !c.TransactionStarted {
		return ocpp.NewStateError("connector has no running transaction")
	}

	e.stopMeterTimer(c.Index)

	if e.opts.BeginEndMeterValues && e.opts.StrictCompliance && !e.opts.OutOfOrderEndMeterValues {
		cfg := e.meterConfigFor(c)
		mv := buildMeterValue(c, cfg, "Transaction.End", 0, time.Now().UTC())
		if err := e.sendMeterValues(ctx, c, mv); err != nil {
			e.logger.Warn("station: transaction end meter value failed",
				zap.String("station", e.ChargingStationID), zap.Int("connector", connectorID), zap.Error(err))
		}
	}

	_, err := e.svc16.StopTransaction(ctx, e, v16.StopTransactionRequest{
		TransactionID: c.TransactionID,
		IdTag:         c.TransactionIdTag,
		MeterStop:     int(c.EnergyActiveImportRegisterValue),
		Timestamp:     v16.Now(),
		Reason:        reason,
	})

	c.TransactionStarted = false
	c.TransactionID = 0
	c.TransactionIdTag = ""

	e.transitionConnector(c, StatusFinishing)
	go e.settleToAvailable(c)

	return err
}

// settleToAvailable moves a Finishing connector back to Available after a
// short grace period, matching the teacher's status-notification cadence
// around a completed session rather than an instant reset.
func (e *Engine) settleToAvailable(c *Connector) {
	time.Sleep(2 * time.Second)
	e.transitionConnector(c, StatusAvailable)
}

// transitionConnector validates and applies a connector status change,
// announcing it via StatusNotification (spec.md §4.1's status-change
// contract). Illegal transitions are logged and refused.
func (e *Engine) transitionConnector(c *Connector, to ConnectorStatus) {
	if !CanTransition(e.OcppVersion, c.Status, to) {
		e.logger.Warn("station: illegal connector transition refused",
			zap.String("station", e.ChargingStationID), zap.Int("connector", c.Index),
			zap.String("from", string(c.Status)), zap.String("to", string(to)))
		return
	}
	c.Status = to
	_ = e.sendStatusNotification(context.Background(), c.Index, to)
}

// startMeterTimer arms a ticker sending MeterValues for c every
// MeterValueSampleIntervalMs while its transaction runs, per spec.md
// §4.1's meter value synthesis.
func (e *Engine) startMeterTimer(c *Connector) {
	stop := make(chan struct{})
	e.meterTimersMu.Lock()
	e.meterStop[c.Index] = stop
	e.meterTimersMu.Unlock()

	cfg := e.meterConfigFor(c)
	interval := time.Duration(e.opts.MeterValueSampleIntervalMs) * time.Millisecond

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				delta := energyDeltaFor(cfg, interval)
				mv := buildMeterValue(c, cfg, "Sample.Periodic", delta, time.Now().UTC())
				if err := e.sendMeterValues(context.Background(), c, mv); err != nil {
					e.logger.Warn("station: meter values failed", zap.String("station", e.ChargingStationID), zap.Int("connector", c.Index), zap.Error(err))
				}
			case <-stop:
				return
			}
		}
	}()
}

func (e *Engine) stopMeterTimer(connectorID int) {
	e.meterTimersMu.Lock()
	defer e.meterTimersMu.Unlock()
	if stop, ok := e.meterStop[connectorID]; ok {
		close(stop)
		delete(e.meterStop, connectorID)
	}
}

// meterConfigFor derives a connector's meterConfig from the station's
// electrical characteristics, applying powerSharedByConnectors when more
// than one transaction is running concurrently (spec.md §4.1 step 4).
func (e *Engine) meterConfigFor(c *Connector) meterConfig {
	divider := e.PowerDivider
	if divider <= 0 {
		divider = 1
	}
	if running := e.RunningTransactions(); running > 1 {
		divider = running
	}
	return meterConfig{
		currentOutType:        e.CurrentOutType,
		numberOfPhases:        e.NumberOfPhases,
		voltageOut:            e.VoltageOut,
		maxPowerW:             e.MaximumPowerW,
		powerDivider:          divider,
		fluctuationPercent:    e.fluctuationPercent(),
		unitDivider:           1000,
		includePower:          true,
		includeCurrent:        true,
		includeVoltage:        true,
		customValueLimitation: e.opts.CustomValueLimitationMeterValues,
	}
}

func (e *Engine) fluctuationPercent() float64 {
	if e.opts.FluctuationPercent > 0 {
		return e.opts.FluctuationPercent
	}
	return 5
}

// energyDeltaFor estimates the Wh delivered over one sampling interval at
// the connector's configured power, the basis for the cumulative energy
// register advanced by buildMeterValue.
func energyDeltaFor(cfg meterConfig, interval time.Duration) float64 {
	power := cfg.maxPowerW
	if cfg.powerDivider > 0 {
		power = power / float64(cfg.powerDivider)
	}
	hours := interval.Hours()
	return power * hours
}
