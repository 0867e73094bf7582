package v16

import (
	"context"
	"encoding/json"
	"time"

	"stationfleet/internal/ocpp"
	"stationfleet/internal/ocpp/schema"
)

// IncomingHandlers is implemented by the StationEngine to react to
// CSMS-initiated requests. Each method returns the typed response to
// send; handlers that cannot be satisfied should be implemented to return
// a NotImplemented-flavored status in their own response type rather than
// erroring, matching real charge point behavior — only truly malformed
// requests should reach the CALLERROR path.
type IncomingHandlers interface {
	OnReset(req ResetRequest) ResetResponse
	OnClearCache() string
	OnChangeAvailability(req ChangeAvailabilityRequest) ChangeAvailabilityResponse
	OnUnlockConnector(req UnlockConnectorRequest) UnlockConnectorResponse
	OnGetConfiguration(req GetConfigurationRequest) GetConfigurationResponse
	OnChangeConfiguration(req ChangeConfigurationRequest) ChangeConfigurationResponse
	OnGetCompositeSchedule(req GetCompositeScheduleRequest) GetCompositeScheduleResponse
	OnSetChargingProfile(req SetChargingProfileRequest) SetChargingProfileResponse
	OnClearChargingProfile(req ClearChargingProfileRequest) ClearChargingProfileResponse
	OnRemoteStartTransaction(req RemoteStartTransactionRequest) RemoteStartTransactionResponse
	OnRemoteStopTransaction(req RemoteStopTransactionRequest) RemoteStopTransactionResponse
	OnGetDiagnostics(req GetDiagnosticsRequest) GetDiagnosticsResponse
	OnTriggerMessage(req TriggerMessageRequest) TriggerMessageResponse
	OnDataTransfer(req DataTransferRequest) DataTransferResponse
	OnUpdateFirmware(req UpdateFirmwareRequest)
	OnReserveNow(req ReserveNowRequest) ReserveNowResponse
	OnCancelReservation(req CancelReservationRequest) CancelReservationResponse
}

// Service implements ocpp.Service for OCPP 1.6-J plus a typed request
// builder for every outgoing action named in spec.md §4.2.
type Service struct {
	schemas    *schema.Registry
	validate   bool
	handlers   IncomingHandlers
}

// NewService builds a v1.6 service. handlers may be nil until the owning
// StationEngine finishes initializing; HandleIncoming will reply
// NotImplemented until it is set via SetHandlers.
func NewService(schemas *schema.Registry, validate bool) *Service {
	return &Service{schemas: schemas, validate: validate}
}

// SetHandlers wires the incoming-request handler set, done once the
// station's engine exists (breaks the construction-order cycle between
// Service and its owning StationEngine).
func (s *Service) SetHandlers(h IncomingHandlers) { s.handlers = h }

func (s *Service) Version() string { return "1.6" }

func (s *Service) validateOut(action string, payload []byte) error {
	if !s.validate {
		return nil
	}
	if ok, err := s.schemas.Validate("1.6", action, "request", payload); ok && err != nil {
		return ocpp.NewValidationError(action, err.Error())
	}
	return nil
}

func (s *Service) validateIn(action string, payload []byte) error {
	if !s.validate {
		return nil
	}
	if ok, err := s.schemas.Validate("1.6", action, "response", payload); ok && err != nil {
		return ocpp.NewValidationError(action, err.Error())
	}
	return nil
}

func (s *Service) call(ctx context.Context, sender ocpp.Sender, action string, req interface{}, resp interface{}) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	if err := s.validateOut(action, body); err != nil {
		return err
	}
	raw, err := sender.Call(ctx, action, req)
	if err != nil {
		return err
	}
	if err := s.validateIn(action, raw); err != nil {
		return err
	}
	return json.Unmarshal(raw, resp)
}

func (s *Service) BootNotification(ctx context.Context, sender ocpp.Sender, req BootNotificationRequest) (BootNotificationResponse, error) {
	var resp BootNotificationResponse
	err := s.call(ctx, sender, ActionBootNotification, req, &resp)
	return resp, err
}

func (s *Service) Heartbeat(ctx context.Context, sender ocpp.Sender) (HeartbeatResponse, error) {
	var resp HeartbeatResponse
	err := s.call(ctx, sender, ActionHeartbeat, HeartbeatRequest{}, &resp)
	return resp, err
}

func (s *Service) Authorize(ctx context.Context, sender ocpp.Sender, idTag string) (AuthorizeResponse, error) {
	var resp AuthorizeResponse
	err := s.call(ctx, sender, ActionAuthorize, AuthorizeRequest{IdTag: idTag}, &resp)
	return resp, err
}

func (s *Service) StartTransaction(ctx context.Context, sender ocpp.Sender, req StartTransactionRequest) (StartTransactionResponse, error) {
	var resp StartTransactionResponse
	err := s.call(ctx, sender, ActionStartTransaction, req, &resp)
	return resp, err
}

func (s *Service) StopTransaction(ctx context.Context, sender ocpp.Sender, req StopTransactionRequest) (StopTransactionResponse, error) {
	var resp StopTransactionResponse
	err := s.call(ctx, sender, ActionStopTransaction, req, &resp)
	return resp, err
}

func (s *Service) StatusNotification(ctx context.Context, sender ocpp.Sender, req StatusNotificationRequest) (StatusNotificationResponse, error) {
	var resp StatusNotificationResponse
	err := s.call(ctx, sender, ActionStatusNotification, req, &resp)
	return resp, err
}

func (s *Service) MeterValues(ctx context.Context, sender ocpp.Sender, req MeterValuesRequest) (MeterValuesResponse, error) {
	var resp MeterValuesResponse
	err := s.call(ctx, sender, ActionMeterValues, req, &resp)
	return resp, err
}

func (s *Service) DataTransfer(ctx context.Context, sender ocpp.Sender, req DataTransferRequest) (DataTransferResponse, error) {
	var resp DataTransferResponse
	err := s.call(ctx, sender, ActionDataTransfer, req, &resp)
	return resp, err
}

func (s *Service) DiagnosticsStatusNotification(ctx context.Context, sender ocpp.Sender, status string) (DiagnosticsStatusNotificationResponse, error) {
	var resp DiagnosticsStatusNotificationResponse
	err := s.call(ctx, sender, ActionDiagnosticsStatusNotification, DiagnosticsStatusNotificationRequest{Status: status}, &resp)
	return resp, err
}

func (s *Service) FirmwareStatusNotification(ctx context.Context, sender ocpp.Sender, status string) (FirmwareStatusNotificationResponse, error) {
	var resp FirmwareStatusNotificationResponse
	err := s.call(ctx, sender, ActionFirmwareStatusNotification, FirmwareStatusNotificationRequest{Status: status}, &resp)
	return resp, err
}

// HandleIncoming implements ocpp.Service, dispatching a received CALL to
// the registered IncomingHandlers and replying with a CALLRESULT, or a
// CALLERROR when the payload fails validation or no handler is wired.
func (s *Service) HandleIncoming(ctx context.Context, sender ocpp.Sender, id, action string, payload []byte) error {
	if s.validate {
		if ok, err := s.schemas.Validate("1.6", action, "request", payload); ok && err != nil {
			return sender.Error(id, ocpp.ErrFormationViolation, err.Error())
		}
	}

	if s.handlers == nil {
		return sender.Error(id, ocpp.ErrNotImplemented, "station not ready")
	}

	switch action {
	case ActionReset:
		return dispatch(sender, id, payload, s.handlers.OnReset)
	case ActionClearCache:
		var req struct{}
		_ = json.Unmarshal(payload, &req)
		return sender.Result(id, map[string]string{"status": s.handlers.OnClearCache()})
	case ActionChangeAvailability:
		return dispatch(sender, id, payload, s.handlers.OnChangeAvailability)
	case ActionUnlockConnector:
		return dispatch(sender, id, payload, s.handlers.OnUnlockConnector)
	case ActionGetConfiguration:
		return dispatch(sender, id, payload, s.handlers.OnGetConfiguration)
	case ActionChangeConfiguration:
		return dispatch(sender, id, payload, s.handlers.OnChangeConfiguration)
	case ActionGetCompositeSchedule:
		return dispatch(sender, id, payload, s.handlers.OnGetCompositeSchedule)
	case ActionSetChargingProfile:
		return dispatch(sender, id, payload, s.handlers.OnSetChargingProfile)
	case ActionClearChargingProfile:
		return dispatch(sender, id, payload, s.handlers.OnClearChargingProfile)
	case ActionRemoteStartTransaction:
		return dispatch(sender, id, payload, s.handlers.OnRemoteStartTransaction)
	case ActionRemoteStopTransaction:
		return dispatch(sender, id, payload, s.handlers.OnRemoteStopTransaction)
	case ActionGetDiagnostics:
		return dispatch(sender, id, payload, s.handlers.OnGetDiagnostics)
	case ActionTriggerMessage:
		return dispatch(sender, id, payload, s.handlers.OnTriggerMessage)
	case ActionDataTransfer:
		return dispatch(sender, id, payload, s.handlers.OnDataTransfer)
	case ActionUpdateFirmware:
		var req UpdateFirmwareRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return sender.Error(id, ocpp.ErrFormationViolation, err.Error())
		}
		s.handlers.OnUpdateFirmware(req)
		return sender.Result(id, UpdateFirmwareResponse{})
	case ActionReserveNow:
		return dispatch(sender, id, payload, s.handlers.OnReserveNow)
	case ActionCancelReservation:
		return dispatch(sender, id, payload, s.handlers.OnCancelReservation)
	default:
		return sender.Error(id, ocpp.ErrNotImplemented, "unsupported action "+action)
	}
}

// dispatch is a small generic helper: decode payload into Req, call fn,
// send the returned Resp as a CALLRESULT.
func dispatch[Req any, Resp any](sender ocpp.Sender, id string, payload []byte, fn func(Req) Resp) error {
	var req Req
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			return sender.Error(id, ocpp.ErrFormationViolation, err.Error())
		}
	}
	resp := fn(req)
	return sender.Result(id, resp)
}

// Now returns the current UTC time, used by handlers building request and
// response timestamps.
func Now() time.Time { return time.Now().UTC() }
