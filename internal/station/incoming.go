package station

import (
	"context"
	"time"

	"go.uber.org/zap"

	"stationfleet/internal/ocpp/v16"
)

// This file implements v16.IncomingHandlers: reactions to CSMS-initiated
// requests, per spec.md §4.2's incoming action set.

func (e *Engine) OnReset(req v16.ResetRequest) v16.ResetResponse {
	go func() {
		delay := 2 * time.Second
		_ = e.Reset(context.Background(), "remote reset: "+req.Type, delay, nil)
	}()
	return v16.ResetResponse{Status: "Accepted"}
}

func (e *Engine) OnClearCache() string {
	return "Accepted"
}

func (e *Engine) OnChangeAvailability(req v16.ChangeAvailabilityRequest) v16.ChangeAvailabilityResponse {
	if req.ConnectorID == 0 {
		for _, c := range e.AllConnectors() {
			e.applyAvailability(c, req.Type)
		}
		return v16.ChangeAvailabilityResponse{Status: "Accepted"}
	}
	c, ok := e.ConnectorByID(req.ConnectorID)
	if !ok {
		return v16.ChangeAvailabilityResponse{Status: "Rejected"}
	}
	if c.TransactionStarted {
		return v16.ChangeAvailabilityResponse{Status: "Scheduled"}
	}
	e.applyAvailability(c, req.Type)
	return v16.ChangeAvailabilityResponse{Status: "Accepted"}
}

func (e *Engine) applyAvailability(c *Connector, changeType string) {
	if changeType == "Inoperative" {
		c.Availability = Inoperative
		e.transitionConnector(c, StatusUnavailable)
		return
	}
	c.Availability = Operative
	e.transitionConnector(c, StatusAvailable)
}

func (e *Engine) OnUnlockConnector(req v16.UnlockConnectorRequest) v16.UnlockConnectorResponse {
	c, ok := e.ConnectorByID(req.ConnectorID)
	if !ok {
		return v16.UnlockConnectorResponse{Status: "NotSupported"}
	}
	if c.TransactionStarted {
		return v16.UnlockConnectorResponse{Status: "UnlockFailed"}
	}
	return v16.UnlockConnectorResponse{Status: "Unlocked"}
}

func (e *Engine) OnGetConfiguration(req v16.GetConfigurationRequest) v16.GetConfigurationResponse {
	if e.ConfigKeys == nil {
		return v16.GetConfigurationResponse{}
	}
	if len(req.Key) == 0 {
		var out []v16.ConfigurationKeyDTO
		for _, k := range e.ConfigKeys.Keys() {
			if !k.Visible {
				continue
			}
			out = append(out, v16.ConfigurationKeyDTO{Key: k.Key, Readonly: k.Readonly, Value: k.Value})
		}
		return v16.GetConfigurationResponse{ConfigurationKey: out}
	}
	var out []v16.ConfigurationKeyDTO
	var unknown []string
	for _, name := range req.Key {
		k, ok := e.ConfigKeys.Get(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		out = append(out, v16.ConfigurationKeyDTO{Key: k.Key, Readonly: k.Readonly, Value: k.Value})
	}
	return v16.GetConfigurationResponse{ConfigurationKey: out, UnknownKey: unknown}
}

func (e *Engine) OnChangeConfiguration(req v16.ChangeConfigurationRequest) v16.ChangeConfigurationResponse {
	if e.ConfigKeys == nil {
		return v16.ChangeConfigurationResponse{Status: "NotSupported"}
	}
	if _, ok := e.ConfigKeys.Get(req.Key); !ok {
		return v16.ChangeConfigurationResponse{Status: "NotSupported"}
	}
	if !e.ConfigKeys.Set(req.Key, req.Value) {
		return v16.ChangeConfigurationResponse{Status: "Rejected"}
	}
	if k, ok := e.ConfigKeys.Get(req.Key); ok && k.Reboot {
		return v16.ChangeConfigurationResponse{Status: "RebootRequired"}
	}
	return v16.ChangeConfigurationResponse{Status: "Accepted"}
}

func (e *Engine) OnGetCompositeSchedule(req v16.GetCompositeScheduleRequest) v16.GetCompositeScheduleResponse {
	return v16.GetCompositeScheduleResponse{Status: "Rejected"}
}

func (e *Engine) OnSetChargingProfile(req v16.SetChargingProfileRequest) v16.SetChargingProfileResponse {
	c, ok := e.ConnectorByID(req.ConnectorID)
	if !ok {
		return v16.SetChargingProfileResponse{Status: "Rejected"}
	}
	c.ChargingProfiles = append(c.ChargingProfiles, req.ChargingProfile)
	return v16.SetChargingProfileResponse{Status: "Accepted"}
}

func (e *Engine) OnClearChargingProfile(req v16.ClearChargingProfileRequest) v16.ClearChargingProfileResponse {
	cleared := false
	for _, c := range e.AllConnectors() {
		if req.ID != nil && *req.ID != c.Index {
			continue
		}
		if len(c.ChargingProfiles) > 0 {
			c.ChargingProfiles = nil
			cleared = true
		}
	}
	if cleared {
		return v16.ClearChargingProfileResponse{Status: "Accepted"}
	}
	return v16.ClearChargingProfileResponse{Status: "Unknown"}
}

func (e *Engine) OnRemoteStartTransaction(req v16.RemoteStartTransactionRequest) v16.RemoteStartTransactionResponse {
	connectorID := 1
	if req.ConnectorID != nil {
		connectorID = *req.ConnectorID
	}
	go func() {
		if err := e.StartTransaction(context.Background(), connectorID, req.IdTag); err != nil {
			e.logger.Info("station: remote start rejected", zap.String("station", e.ChargingStationID), zap.Error(err))
		}
	}()
	return v16.RemoteStartTransactionResponse{Status: "Accepted"}
}

func (e *Engine) OnRemoteStopTransaction(req v16.RemoteStopTransactionRequest) v16.RemoteStopTransactionResponse {
	var target *Connector
	for _, c := range e.AllConnectors() {
		if c.TransactionID == req.TransactionID && c.TransactionStarted {
			target = c
			break
		}
	}
	if target == nil {
		return v16.RemoteStopTransactionResponse{Status: "Rejected"}
	}
	go func() {
		_ = e.StopTransaction(context.Background(), target.Index, "Remote")
	}()
	return v16.RemoteStopTransactionResponse{Status: "Accepted"}
}

func (e *Engine) OnGetDiagnostics(req v16.GetDiagnosticsRequest) v16.GetDiagnosticsResponse {
	// GetDiagnostics is itself outside v20.Service's incoming action set,
	// so this handler is only ever reached over OCPP 1.6.
	fileName := e.ChargingStationID + "-diagnostics.zip"
	go func() {
		_, _ = e.svc16.DiagnosticsStatusNotification(context.Background(), e, "Uploading")
		time.Sleep(500 * time.Millisecond)
		_, _ = e.svc16.DiagnosticsStatusNotification(context.Background(), e, "Uploaded")
	}()
	return v16.GetDiagnosticsResponse{FileName: fileName}
}

func (e *Engine) OnTriggerMessage(req v16.TriggerMessageRequest) v16.TriggerMessageResponse {
	go e.sendTriggeredMessage(req)
	return v16.TriggerMessageResponse{Status: "Accepted"}
}

func (e *Engine) sendTriggeredMessage(req v16.TriggerMessageRequest) {
	ctx := context.Background()
	switch req.RequestedMessage {
	case "BootNotification":
		_ = e.bootSequence(ctx)
	case "Heartbeat":
		_, _ = e.sendHeartbeat(ctx)
	case "StatusNotification":
		for _, c := range e.connectorsForTrigger(req.ConnectorID) {
			_ = e.sendStatusNotification(ctx, c.Index, c.Status)
		}
	case "MeterValues":
		for _, c := range e.connectorsForTrigger(req.ConnectorID) {
			cfg := e.meterConfigFor(c)
			mv := buildMeterValue(c, cfg, "Trigger", 0, time.Now().UTC())
			_ = e.sendMeterValues(ctx, c, mv)
		}
	case "DiagnosticsStatusNotification":
		_, _ = e.svc16.DiagnosticsStatusNotification(ctx, e, "Idle")
	case "FirmwareStatusNotification":
		_, _ = e.svc16.FirmwareStatusNotification(ctx, e, e.FirmwareStatus)
	}
}

func (e *Engine) connectorsForTrigger(connectorID *int) []*Connector {
	if connectorID == nil {
		return e.AllConnectors()
	}
	if c, ok := e.ConnectorByID(*connectorID); ok {
		return []*Connector{c}
	}
	return nil
}

func (e *Engine) OnDataTransfer(req v16.DataTransferRequest) v16.DataTransferResponse {
	return v16.DataTransferResponse{Status: "UnknownVendorId"}
}

func (e *Engine) OnUpdateFirmware(req v16.UpdateFirmwareRequest) {
	go func() {
		delay := time.Until(req.RetrieveDate)
		if delay > 0 {
			time.Sleep(delay)
		}
		e.FirmwareStatus = "Downloading"
		_, _ = e.svc16.FirmwareStatusNotification(context.Background(), e, "Downloading")
		time.Sleep(500 * time.Millisecond)
		e.FirmwareStatus = "Installing"
		_, _ = e.svc16.FirmwareStatusNotification(context.Background(), e, "Installing")
		time.Sleep(500 * time.Millisecond)
		e.FirmwareStatus = "Installed"
		_, _ = e.svc16.FirmwareStatusNotification(context.Background(), e, "Installed")
	}()
}

func (e *Engine) OnReserveNow(req v16.ReserveNowRequest) v16.ReserveNowResponse {
	c, ok := e.ConnectorByID(req.ConnectorID)
	if !ok {
		return v16.ReserveNowResponse{Status: "Rejected"}
	}
	if c.TransactionStarted {
		return v16.ReserveNowResponse{Status: "Occupied"}
	}
	if c.Availability == Inoperative {
		return v16.ReserveNowResponse{Status: "Unavailable"}
	}
	e.applyReservation(c, Reservation{
		ID:          req.ReservationID,
		ConnectorID: req.ConnectorID,
		IdTag:       req.IdTag,
		ParentIdTag: req.ParentIdTag,
		ExpiryDate:  req.ExpiryDate,
		Status:      "Accepted",
	})
	return v16.ReserveNowResponse{Status: "Accepted"}
}

// applyReservation installs res on c, transitions it to Reserved, and
// arms its expiry, the reservation-side-effects both OnReserveNow and the
// operator-facing AddReservation (reservation.go) share.
func (e *Engine) applyReservation(c *Connector, res Reservation) {
	c.Reservation = &res
	e.transitionConnector(c, StatusReserved)
	go e.expireReservation(c, res.ID, res.ExpiryDate)
}

// expireReservation clears a reservation once its expiry passes without a
// matching StartTransaction, resolving Open Question #2 (SPEC_FULL.md)
// with an explicit termination-reason switch rather than the source's
// defective boolean chain.
func (e *Engine) expireReservation(c *Connector, reservationID int, expiry time.Time) {
	delay := time.Until(expiry)
	if delay > 0 {
		time.Sleep(delay)
	}
	if c.Reservation == nil || c.Reservation.ID != reservationID {
		return
	}
	e.terminateReservation(c, ReservationExpired)
}

func (e *Engine) terminateReservation(c *Connector, reason ReservationTerminationReason) {
	switch reason {
	case ReservationExpired, ReservationCanceled, ReservationReplaced:
		c.Reservation = nil
		if c.Status == StatusReserved {
			e.transitionConnector(c, StatusAvailable)
		}
	case ReservationTransactionStarted:
		c.Reservation = nil
	}
}

func (e *Engine) OnCancelReservation(req v16.CancelReservationRequest) v16.CancelReservationResponse {
	for _, c := range e.AllConnectors() {
		if c.Reservation != nil && c.Reservation.ID == req.ReservationID {
			e.terminateReservation(c, ReservationCanceled)
			return v16.CancelReservationResponse{Status: "Accepted"}
		}
	}
	return v16.CancelReservationResponse{Status: "Rejected"}
}
