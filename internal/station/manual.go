package station

import (
	"context"
	"time"

	"stationfleet/internal/ocpp"
	"stationfleet/internal/ocpp/v16"
	"stationfleet/internal/ocppconfig"
)

// These methods back the control-bus procedures of spec.md §4.5 that
// trigger a single OCPP action out of band from the engine's own
// sequencing (boot retry, heartbeat timer, meter timer). Each mirrors the
// send an engine would already perform on its own schedule.

// SetSupervisionURL implements the SET_SUPERVISION_URL procedure: updates
// the OcppSupervisionUrl configuration key and the station's own field, so
// the next reconnect dials the new endpoint.
func (e *Engine) SetSupervisionURL(url string) {
	e.SupervisionURL = url
	if e.ConfigKeys != nil {
		if _, ok := e.ConfigKeys.Get("OcppSupervisionUrl"); ok {
			e.ConfigKeys.Set("OcppSupervisionUrl", url)
		} else {
			e.ConfigKeys.Add(ocppconfig.Key{Key: "OcppSupervisionUrl", Value: url, Readonly: false, Visible: true}, false)
		}
	}
}

// UpdateStatus implements the UPDATE_STATUS procedure: forces connectorID
// through transitionConnector, refusing an illegal transition the same way
// an internally-driven status change would.
func (e *Engine) UpdateStatus(connectorID int, status string) error {
	c, ok := e.ConnectorByID(connectorID)
	if !ok {
		return ocpp.NewStateError("unknown connector")
	}
	e.transitionConnector(c, ConnectorStatus(status))
	return nil
}

// UpdateFirmwareStatus implements the UPDATE_FIRMWARE_STATUS procedure:
// sets the station's firmware status and announces it, independent of the
// OnUpdateFirmware download/install sequence.
func (e *Engine) UpdateFirmwareStatus(ctx context.Context, status string) error {
	if err := e.requireV16("FirmwareStatusNotification"); err != nil {
		return err
	}
	e.FirmwareStatus = status
	_, err := e.svc16.FirmwareStatusNotification(ctx, e, status)
	return err
}

// SendBootNotification implements the BOOT_NOTIFICATION procedure: issues
// one BootNotification outside the automatic retry sequence, without
// re-arming the heartbeat/ping timers on acceptance.
func (e *Engine) SendBootNotification(ctx context.Context) (bootResult, error) {
	return e.sendBootNotification(ctx, "Triggered")
}

// SendStatusNotification implements the STATUS_NOTIFICATION procedure: it
// re-announces connectorID's current status without changing it.
func (e *Engine) SendStatusNotification(ctx context.Context, connectorID int) error {
	c, ok := e.ConnectorByID(connectorID)
	if !ok {
		return ocpp.NewStateError("unknown connector")
	}
	return e.sendStatusNotification(ctx, c.Index, c.Status)
}

// SendMeterValues implements the METER_VALUES procedure: emits one sample
// for connectorID outside its regular sampling interval.
func (e *Engine) SendMeterValues(ctx context.Context, connectorID int) error {
	if err := e.requireV16("MeterValues"); err != nil {
		return err
	}
	c, ok := e.ConnectorByID(connectorID)
	if !ok {
		return ocpp.NewStateError("unknown connector")
	}
	cfg := e.meterConfigFor(c)
	interval := time.Duration(e.opts.MeterValueSampleIntervalMs) * time.Millisecond
	delta := energyDeltaFor(cfg, interval)
	mv := buildMeterValue(c, cfg, "Trigger", delta, time.Now().UTC())
	return e.sendMeterValues(ctx, c, mv)
}

// SendDataTransfer implements the DATA_TRANSFER procedure: forwards an
// operator-supplied vendor payload.
func (e *Engine) SendDataTransfer(ctx context.Context, vendorID, messageID, data string) (v16.DataTransferResponse, error) {
	if err := e.requireV16("DataTransfer"); err != nil {
		return v16.DataTransferResponse{}, err
	}
	return e.svc16.DataTransfer(ctx, e, v16.DataTransferRequest{
		VendorID:  vendorID,
		MessageID: messageID,
		Data:      data,
	})
}

// SendDiagnosticsStatusNotification implements the
// DIAGNOSTICS_STATUS_NOTIFICATION procedure.
func (e *Engine) SendDiagnosticsStatusNotification(ctx context.Context, status string) (v16.DiagnosticsStatusNotificationResponse, error) {
	if err := e.requireV16("DiagnosticsStatusNotification"); err != nil {
		return v16.DiagnosticsStatusNotificationResponse{}, err
	}
	return e.svc16.DiagnosticsStatusNotification(ctx, e, status)
}

// SendFirmwareStatusNotification implements the
// FIRMWARE_STATUS_NOTIFICATION procedure, without touching FirmwareStatus
// (unlike UpdateFirmwareStatus, this only announces).
func (e *Engine) SendFirmwareStatusNotification(ctx context.Context, status string) (v16.FirmwareStatusNotificationResponse, error) {
	if err := e.requireV16("FirmwareStatusNotification"); err != nil {
		return v16.FirmwareStatusNotificationResponse{}, err
	}
	return e.svc16.FirmwareStatusNotification(ctx, e, status)
}
