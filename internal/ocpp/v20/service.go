package v20

import (
	"context"
	"encoding/json"

	"stationfleet/internal/ocpp"
	"stationfleet/internal/ocpp/schema"
)

// Service implements ocpp.Service for OCPP 2.0.1-J's reduced action set.
// Actions outside {BootNotification, Heartbeat, StatusNotification} are
// acknowledged as NotImplemented, matching spec.md §4.2's "placeholders
// for the incoming set" — the simulator is a load/conformance testing
// tool, not a full 2.0.1 client, and spec.md scopes the 2.0 surface down
// deliberately.
type Service struct {
	schemas  *schema.Registry
	validate bool
}

// NewService builds a v2.0.1 service.
func NewService(schemas *schema.Registry, validate bool) *Service {
	return &Service{schemas: schemas, validate: validate}
}

func (s *Service) Version() string { return "2.0.1" }

func (s *Service) call(ctx context.Context, sender ocpp.Sender, action string, req interface{}, resp interface{}) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	if s.validate {
		if ok, verr := s.schemas.Validate("2.0", action, "request", body); ok && verr != nil {
			return ocpp.NewValidationError(action, verr.Error())
		}
	}
	raw, err := sender.Call(ctx, action, req)
	if err != nil {
		return err
	}
	if s.validate {
		if ok, verr := s.schemas.Validate("2.0", action, "response", raw); ok && verr != nil {
			return ocpp.NewValidationError(action, verr.Error())
		}
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

func (s *Service) StatusNotification(ctx context.Context, sender ocpp.Sender, req StatusNotificationRequest) (StatusNotificationResponse, error) {
	var resp StatusNotificationResponse
	err := s.call(ctx, sender, ActionStatusNotification, req, &resp)
	return resp, err
}

// HandleIncoming implements ocpp.Service. The 2.0.1 station never accepts
// incoming commands in this simulator's scope; every inbound CALL is
// acknowledged as NotImplemented.
func (s *Service) HandleIncoming(ctx context.Context, sender ocpp.Sender, id, action string, payload []byte) error {
	return sender.Error(id, ocpp.ErrNotImplemented, "action "+action+" not supported over OCPP 2.0.1 by this simulator")
}
