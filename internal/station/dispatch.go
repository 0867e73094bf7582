package station

import (
	"context"
	"time"

	"stationfleet/internal/ocpp"
	"stationfleet/internal/ocpp/v16"
	"stationfleet/internal/ocpp/v20"
)

// This file routes every outbound OCPP call through the station's
// configured protocol version, per spec.md §4.1/§4.2's dual-version
// requirement. activeService() (engine.go) already does this for the
// inbound path; these wrappers give the outbound path the same
// discriminator instead of reaching straight for svc16.

// usingV20 reports whether this station negotiates OCPP 2.0.1 rather than
// 1.6, mirroring activeService()'s own check.
func (e *Engine) usingV20() bool {
	return e.OcppVersion == "2.0" || e.OcppVersion == "2.0.1"
}

// requireV16 rejects outbound actions outside v20.Service's reduced
// action set (BootNotification, Heartbeat, StatusNotification): a
// 2.0.1-configured station has no wire shape for these rather than
// silently sending a 1.6 payload over a 2.0.1 subprotocol.
func (e *Engine) requireV16(action string) error {
	if e.usingV20() {
		return ocpp.NewStateError(action + " is not supported over OCPP 2.0.1 by this simulator")
	}
	return nil
}

// bootResult is the version-neutral shape acceptRegistration/bootSequence
// work with, translated from whichever concrete response the negotiated
// version returned.
type bootResult struct {
	Status      string
	Interval    int
	CurrentTime time.Time
}

func (e *Engine) sendBootNotification(ctx context.Context, reason string) (bootResult, error) {
	if e.usingV20() {
		resp, err := e.svc20.BootNotification(ctx, e, v20.BootNotificationRequest{
			Reason: reason,
			ChargingStation: v20.ChargingStation{
				Model:           e.ChargingStationID,
				VendorName:      "stationfleet",
				FirmwareVersion: e.FirmwareStatus,
			},
		})
		return bootResult{Status: resp.Status, Interval: resp.Interval, CurrentTime: resp.CurrentTime}, err
	}
	resp, err := e.svc16.BootNotification(ctx, e, v16.BootNotificationRequest{
		ChargePointVendor: "stationfleet",
		ChargePointModel:  e.ChargingStationID,
		FirmwareVersion:   e.FirmwareStatus,
	})
	return bootResult{Status: resp.Status, Interval: resp.Interval, CurrentTime: resp.CurrentTime}, err
}

func (e *Engine) sendHeartbeat(ctx context.Context) (time.Time, error) {
	if e.usingV20() {
		resp, err := e.svc20.Heartbeat(ctx, e)
		return resp.CurrentTime, err
	}
	resp, err := e.svc16.Heartbeat(ctx, e)
	return resp.CurrentTime, err
}

// sendStatusNotification announces connectorID's status, using v20's
// ConnectorStatus field name and evseId=0 (station has no EVSE-scoped
// notion of connector identity here) when the station runs 2.0.1.
func (e *Engine) sendStatusNotification(ctx context.Context, connectorID int, status ConnectorStatus) error {
	if e.usingV20() {
		_, err := e.svc20.StatusNotification(ctx, e, v20.StatusNotificationRequest{
			Timestamp:       time.Now().UTC(),
			ConnectorStatus: string(status),
			EvseID:          0,
			ConnectorID:     connectorID,
		})
		return err
	}
	_, err := e.svc16.StatusNotification(ctx, e, v16.StatusNotificationRequest{
		ConnectorID: connectorID,
		ErrorCode:   "NoError",
		Status:      string(status),
		Timestamp:   v16.Now(),
	})
	return err
}
