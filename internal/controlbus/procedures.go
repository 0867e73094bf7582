package controlbus

import (
	"context"
	"fmt"
	"time"

	"stationfleet/internal/worker"
)

// Procedure names, per spec.md §4.5.
const (
	ProcStartSimulator                = "START_SIMULATOR"
	ProcStopSimulator                 = "STOP_SIMULATOR"
	ProcListChargingStations          = "LIST_CHARGING_STATIONS"
	ProcStartChargingStation          = "START_CHARGING_STATION"
	ProcStopChargingStation           = "STOP_CHARGING_STATION"
	ProcOpenConnection                = "OPEN_CONNECTION"
	ProcCloseConnection               = "CLOSE_CONNECTION"
	ProcStartTransaction              = "START_TRANSACTION"
	ProcStopTransaction               = "STOP_TRANSACTION"
	ProcStartATG                      = "START_AUTOMATIC_TRANSACTION_GENERATOR"
	ProcStopATG                       = "STOP_AUTOMATIC_TRANSACTION_GENERATOR"
	ProcSetSupervisionURL             = "SET_SUPERVISION_URL"
	ProcUpdateStatus                  = "UPDATE_STATUS"
	ProcUpdateFirmwareStatus          = "UPDATE_FIRMWARE_STATUS"
	ProcAuthorize                     = "AUTHORIZE"
	ProcBootNotification              = "BOOT_NOTIFICATION"
	ProcStatusNotification            = "STATUS_NOTIFICATION"
	ProcHeartbeat                     = "HEARTBEAT"
	ProcMeterValues                   = "METER_VALUES"
	ProcDataTransfer                  = "DATA_TRANSFER"
	ProcDiagnosticsStatusNotification = "DIAGNOSTICS_STATUS_NOTIFICATION"
	ProcFirmwareStatusNotification    = "FIRMWARE_STATUS_NOTIFICATION"
	ProcAddReservation                = "ADD_RESERVATION"
	ProcRemoveReservation             = "REMOVE_RESERVATION"
)

// FleetLocator finds the hosted Element owning a hashId, searching across
// every WorkerHost the supervisor spawned. Defined as an interface here
// (rather than depending on package supervisor) so controlbus stays free
// of a supervisor import; Supervisor supplies a closure satisfying it.
type FleetLocator interface {
	Locate(hashID string) (*worker.Element, bool)
	Hosts() []*worker.Host
}

// RegisterStationProcedures wires every station-scoped procedure named in
// spec.md §4.5 onto bus, resolving the target station through locator.
func RegisterStationProcedures(bus *Bus, locator FleetLocator) {
	bus.RegisterHandler(ProcStartChargingStation, withElement(locator, func(ctx context.Context, el *worker.Element, req Request) (map[string]interface{}, error) {
		return nil, el.Engine.Start(ctx)
	}))
	bus.RegisterHandler(ProcStopChargingStation, withElement(locator, func(ctx context.Context, el *worker.Element, req Request) (map[string]interface{}, error) {
		el.Engine.Stop(stringField(req.Payload, "reason", "control bus request"))
		return nil, nil
	}))
	bus.RegisterHandler(ProcOpenConnection, withElement(locator, func(ctx context.Context, el *worker.Element, req Request) (map[string]interface{}, error) {
		return nil, el.Engine.Start(ctx)
	}))
	bus.RegisterHandler(ProcCloseConnection, withElement(locator, func(ctx context.Context, el *worker.Element, req Request) (map[string]interface{}, error) {
		el.Engine.Stop("close connection requested")
		return nil, nil
	}))
	bus.RegisterHandler(ProcStartTransaction, withElement(locator, func(ctx context.Context, el *worker.Element, req Request) (map[string]interface{}, error) {
		connectorID := intField(req.Payload, "connectorId", 1)
		idTag, _ := req.Payload["idTag"].(string)
		return nil, el.Engine.StartTransaction(ctx, connectorID, idTag)
	}))
	bus.RegisterHandler(ProcStopTransaction, withElement(locator, func(ctx context.Context, el *worker.Element, req Request) (map[string]interface{}, error) {
		connectorID := intField(req.Payload, "connectorId", 1)
		reason := stringField(req.Payload, "reason", "Remote")
		return nil, el.Engine.StopTransaction(ctx, connectorID, reason)
	}))
	bus.RegisterHandler(ProcStartATG, withElement(locator, func(ctx context.Context, el *worker.Element, req Request) (map[string]interface{}, error) {
		return nil, el.Engine.StartATG(intSliceField(req.Payload, "connectorIds"))
	}))
	bus.RegisterHandler(ProcStopATG, withElement(locator, func(ctx context.Context, el *worker.Element, req Request) (map[string]interface{}, error) {
		return nil, el.Engine.StopATG(intSliceField(req.Payload, "connectorIds"))
	}))
	bus.RegisterHandler(ProcAuthorize, withElement(locator, func(ctx context.Context, el *worker.Element, req Request) (map[string]interface{}, error) {
		connectorID := intField(req.Payload, "connectorId", 1)
		idTag, _ := req.Payload["idTag"].(string)
		accepted, err := el.Engine.Authorize(ctx, connectorID, idTag)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"accepted": accepted}, nil
	}))
	bus.RegisterHandler(ProcHeartbeat, withElement(locator, func(ctx context.Context, el *worker.Element, req Request) (map[string]interface{}, error) {
		currentTime, err := el.Engine.Heartbeat(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"currentTime": currentTime}, nil
	}))
	bus.RegisterHandler(ProcSetSupervisionURL, withElement(locator, func(ctx context.Context, el *worker.Element, req Request) (map[string]interface{}, error) {
		el.Engine.SetSupervisionURL(stringField(req.Payload, "supervisionUrl", ""))
		return nil, nil
	}))
	bus.RegisterHandler(ProcUpdateStatus, withElement(locator, func(ctx context.Context, el *worker.Element, req Request) (map[string]interface{}, error) {
		connectorID := intField(req.Payload, "connectorId", 1)
		status := stringField(req.Payload, "status", "Available")
		return nil, el.Engine.UpdateStatus(connectorID, status)
	}))
	bus.RegisterHandler(ProcUpdateFirmwareStatus, withElement(locator, func(ctx context.Context, el *worker.Element, req Request) (map[string]interface{}, error) {
		return nil, el.Engine.UpdateFirmwareStatus(ctx, stringField(req.Payload, "status", "Installed"))
	}))
	bus.RegisterHandler(ProcBootNotification, withElement(locator, func(ctx context.Context, el *worker.Element, req Request) (map[string]interface{}, error) {
		resp, err := el.Engine.SendBootNotification(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"status": resp.Status, "interval": resp.Interval}, nil
	}))
	bus.RegisterHandler(ProcStatusNotification, withElement(locator, func(ctx context.Context, el *worker.Element, req Request) (map[string]interface{}, error) {
		connectorID := intField(req.Payload, "connectorId", 1)
		return nil, el.Engine.SendStatusNotification(ctx, connectorID)
	}))
	bus.RegisterHandler(ProcMeterValues, withElement(locator, func(ctx context.Context, el *worker.Element, req Request) (map[string]interface{}, error) {
		connectorID := intField(req.Payload, "connectorId", 1)
		return nil, el.Engine.SendMeterValues(ctx, connectorID)
	}))
	bus.RegisterHandler(ProcDataTransfer, withElement(locator, func(ctx context.Context, el *worker.Element, req Request) (map[string]interface{}, error) {
		vendorID := stringField(req.Payload, "vendorId", "")
		messageID := stringField(req.Payload, "messageId", "")
		data := stringField(req.Payload, "data", "")
		resp, err := el.Engine.SendDataTransfer(ctx, vendorID, messageID, data)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"status": resp.Status, "data": resp.Data}, nil
	}))
	bus.RegisterHandler(ProcDiagnosticsStatusNotification, withElement(locator, func(ctx context.Context, el *worker.Element, req Request) (map[string]interface{}, error) {
		_, err := el.Engine.SendDiagnosticsStatusNotification(ctx, stringField(req.Payload, "status", "Idle"))
		return nil, err
	}))
	bus.RegisterHandler(ProcFirmwareStatusNotification, withElement(locator, func(ctx context.Context, el *worker.Element, req Request) (map[string]interface{}, error) {
		_, err := el.Engine.SendFirmwareStatusNotification(ctx, stringField(req.Payload, "status", el.Engine.FirmwareStatus))
		return nil, err
	}))
	bus.RegisterHandler(ProcAddReservation, withElement(locator, func(ctx context.Context, el *worker.Element, req Request) (map[string]interface{}, error) {
		connectorID := intField(req.Payload, "connectorId", 1)
		reservationID := intField(req.Payload, "reservationId", 0)
		idTag := stringField(req.Payload, "idTag", "")
		parentIdTag := stringField(req.Payload, "parentIdTag", "")
		expiryDate := timeField(req.Payload, "expiryDate", time.Now().Add(time.Hour))
		return nil, el.Engine.AddReservation(connectorID, reservationID, idTag, parentIdTag, expiryDate)
	}))
	bus.RegisterHandler(ProcRemoveReservation, withElement(locator, func(ctx context.Context, el *worker.Element, req Request) (map[string]interface{}, error) {
		reservationID := intField(req.Payload, "reservationId", 0)
		return nil, el.Engine.RemoveReservation(reservationID)
	}))
}

// RegisterFleetProcedures wires LIST_CHARGING_STATIONS, the one procedure
// spec.md §4.5 names as UIServer-local: it runs once against the whole
// fleet rather than fanning out per hashId.
func RegisterFleetProcedures(bus *Bus, locator FleetLocator) {
	bus.RegisterHandler(ProcListChargingStations, func(ctx context.Context, req Request, hashID string) (map[string]interface{}, error) {
		var stations []map[string]interface{}
		for _, host := range locator.Hosts() {
			for _, el := range host.Elements() {
				stations = append(stations, map[string]interface{}{
					"hashId":            el.Engine.HashID,
					"chargingStationId": el.Engine.ChargingStationID,
					"ocppVersion":       el.Engine.OcppVersion,
					"accepted":          el.Engine.Accepted(),
					"connectors":        el.Engine.NumberOfConnectors(),
				})
			}
		}
		return map[string]interface{}{"stations": stations}, nil
	})
}

func intSliceField(payload map[string]interface{}, key string) []int {
	raw, ok := payload[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]int, 0, len(raw))
	for _, v := range raw {
		if f, ok := v.(float64); ok {
			out = append(out, int(f))
		}
	}
	return out
}

// withElement adapts a per-element handler into a Handler by resolving
// hashID through locator first, giving a uniform unknown-station failure for
// every station-scoped procedure.
func withElement(locator FleetLocator, fn func(ctx context.Context, el *worker.Element, req Request) (map[string]interface{}, error)) Handler {
	return func(ctx context.Context, req Request, hashID string) (map[string]interface{}, error) {
		el, ok := locator.Locate(hashID)
		if !ok {
			return nil, fmt.Errorf("controlbus: unknown station %s", hashID)
		}
		return fn(ctx, el, req)
	}
}

func stringField(payload map[string]interface{}, key, def string) string {
	if v, ok := payload[key].(string); ok && v != "" {
		return v
	}
	return def
}

func intField(payload map[string]interface{}, key string, def int) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

// timeField parses an RFC3339 timestamp field, falling back to def when
// the key is absent or malformed.
func timeField(payload map[string]interface{}, key string, def time.Time) time.Time {
	s, ok := payload[key].(string)
	if !ok {
		return def
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return def
	}
	return t
}
