// Package v16 implements the OCPP 1.6-J request/response types and
// station-side service, covering the action set named in spec.md §4.2.
package v16

import "time"

// Action names, OCPP 1.6.
const (
	ActionBootNotification              = "BootNotification"
	ActionHeartbeat                     = "Heartbeat"
	ActionAuthorize                     = "Authorize"
	ActionStartTransaction              = "StartTransaction"
	ActionStopTransaction               = "StopTransaction"
	ActionStatusNotification            = "StatusNotification"
	ActionMeterValues                   = "MeterValues"
	ActionDataTransfer                  = "DataTransfer"
	ActionDiagnosticsStatusNotification = "DiagnosticsStatusNotification"
	ActionFirmwareStatusNotification    = "FirmwareStatusNotification"

	// Incoming (CSMS -> station).
	ActionReset                   = "Reset"
	ActionClearCache              = "ClearCache"
	ActionChangeAvailability      = "ChangeAvailability"
	ActionUnlockConnector         = "UnlockConnector"
	ActionGetConfiguration        = "GetConfiguration"
	ActionChangeConfiguration     = "ChangeConfiguration"
	ActionGetCompositeSchedule    = "GetCompositeSchedule"
	ActionSetChargingProfile      = "SetChargingProfile"
	ActionClearChargingProfile    = "ClearChargingProfile"
	ActionRemoteStartTransaction  = "RemoteStartTransaction"
	ActionRemoteStopTransaction   = "RemoteStopTransaction"
	ActionGetDiagnostics          = "GetDiagnostics"
	ActionTriggerMessage          = "TriggerMessage"
	ActionUpdateFirmware          = "UpdateFirmware"
	ActionReserveNow              = "ReserveNow"
	ActionCancelReservation       = "CancelReservation"
)

// RegistrationStatus values.
const (
	RegistrationAccepted = "Accepted"
	RegistrationPending  = "Pending"
	RegistrationRejected = "Rejected"
)

// AuthorizationStatus values.
const (
	AuthorizationAccepted     = "Accepted"
	AuthorizationBlocked      = "Blocked"
	AuthorizationExpired      = "Expired"
	AuthorizationInvalid      = "Invalid"
	AuthorizationConcurrentTx = "ConcurrentTx"
)

type IdTagInfo struct {
	Status      string     `json:"status"`
	ExpiryDate  *time.Time `json:"expiryDate,omitempty"`
	ParentIdTag string     `json:"parentIdTag,omitempty"`
}

type BootNotificationRequest struct {
	ChargePointVendor       string `json:"chargePointVendor"`
	ChargePointModel        string `json:"chargePointModel"`
	ChargePointSerialNumber string `json:"chargePointSerialNumber,omitempty"`
	ChargeBoxSerialNumber   string `json:"chargeBoxSerialNumber,omitempty"`
	FirmwareVersion         string `json:"firmwareVersion,omitempty"`
}

type BootNotificationResponse struct {
	Status      string    `json:"status"`
	CurrentTime time.Time `json:"currentTime"`
	Interval    int       `json:"interval"`
}

type HeartbeatRequest struct{}

type HeartbeatResponse struct {
	CurrentTime time.Time `json:"currentTime"`
}

type AuthorizeRequest struct {
	IdTag string `json:"idTag"`
}

type AuthorizeResponse struct {
	IdTagInfo IdTagInfo `json:"idTagInfo"`
}

type StartTransactionRequest struct {
	ConnectorID   int       `json:"connectorId"`
	IdTag         string    `json:"idTag"`
	MeterStart    int       `json:"meterStart"`
	ReservationID *int      `json:"reservationId,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

type StartTransactionResponse struct {
	TransactionID int       `json:"transactionId"`
	IdTagInfo     IdTagInfo `json:"idTagInfo"`
}

type StopTransactionRequest struct {
	TransactionID   int              `json:"transactionId"`
	IdTag           string           `json:"idTag,omitempty"`
	MeterStop       int              `json:"meterStop"`
	Timestamp       time.Time        `json:"timestamp"`
	Reason          string           `json:"reason,omitempty"`
	TransactionData []MeterValue     `json:"transactionData,omitempty"`
}

type StopTransactionResponse struct {
	IdTagInfo *IdTagInfo `json:"idTagInfo,omitempty"`
}

type StatusNotificationRequest struct {
	ConnectorID     int       `json:"connectorId"`
	ErrorCode       string    `json:"errorCode"`
	Info            string    `json:"info,omitempty"`
	Status          string    `json:"status"`
	Timestamp       time.Time `json:"timestamp"`
	VendorID        string    `json:"vendorId,omitempty"`
	VendorErrorCode string    `json:"vendorErrorCode,omitempty"`
}

type StatusNotificationResponse struct{}

type SampledValue struct {
	Value     string `json:"value"`
	Context   string `json:"context,omitempty"`
	Format    string `json:"format,omitempty"`
	Measurand string `json:"measurand,omitempty"`
	Phase     string `json:"phase,omitempty"`
	Location  string `json:"location,omitempty"`
	Unit      string `json:"unit,omitempty"`
}

type MeterValue struct {
	Timestamp    time.Time      `json:"timestamp"`
	SampledValue []SampledValue `json:"sampledValue"`
}

type MeterValuesRequest struct {
	ConnectorID   int          `json:"connectorId"`
	TransactionID *int         `json:"transactionId,omitempty"`
	MeterValue    []MeterValue `json:"meterValue"`
}

type MeterValuesResponse struct{}

type DataTransferRequest struct {
	VendorID  string `json:"vendorId"`
	MessageID string `json:"messageId,omitempty"`
	Data      string `json:"data,omitempty"`
}

type DataTransferResponse struct {
	Status string `json:"status"`
	Data   string `json:"data,omitempty"`
}

type DiagnosticsStatusNotificationRequest struct {
	Status string `json:"status"`
}

type DiagnosticsStatusNotificationResponse struct{}

type FirmwareStatusNotificationRequest struct {
	Status string `json:"status"`
}

type FirmwareStatusNotificationResponse struct{}

// -- Incoming request payloads (CSMS -> station) --

type ResetRequest struct {
	Type string `json:"type"`
}

type ResetResponse struct {
	Status string `json:"status"`
}

type ChangeAvailabilityRequest struct {
	ConnectorID int    `json:"connectorId"`
	Type        string `json:"type"`
}

type ChangeAvailabilityResponse struct {
	Status string `json:"status"`
}

type UnlockConnectorRequest struct {
	ConnectorID int `json:"connectorId"`
}

type UnlockConnectorResponse struct {
	Status string `json:"status"`
}

type GetConfigurationRequest struct {
	Key []string `json:"key,omitempty"`
}

type GetConfigurationResponse struct {
	ConfigurationKey []ConfigurationKeyDTO `json:"configurationKey,omitempty"`
	UnknownKey       []string              `json:"unknownKey,omitempty"`
}

type ConfigurationKeyDTO struct {
	Key      string `json:"key"`
	Readonly bool   `json:"readonly"`
	Value    string `json:"value,omitempty"`
}

type ChangeConfigurationRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type ChangeConfigurationResponse struct {
	Status string `json:"status"`
}

type RemoteStartTransactionRequest struct {
	ConnectorID *int   `json:"connectorId,omitempty"`
	IdTag       string `json:"idTag"`
}

type RemoteStartTransactionResponse struct {
	Status string `json:"status"`
}

type RemoteStopTransactionRequest struct {
	TransactionID int `json:"transactionId"`
}

type RemoteStopTransactionResponse struct {
	Status string `json:"status"`
}

type GetDiagnosticsRequest struct {
	Location string `json:"location"`
}

type GetDiagnosticsResponse struct {
	FileName string `json:"fileName,omitempty"`
}

type TriggerMessageRequest struct {
	RequestedMessage string `json:"requestedMessage"`
	ConnectorID      *int   `json:"connectorId,omitempty"`
}

type TriggerMessageResponse struct {
	Status string `json:"status"`
}

type UpdateFirmwareRequest struct {
	Location      string    `json:"location"`
	RetrieveDate  time.Time `json:"retrieveDate"`
}

type UpdateFirmwareResponse struct{}

type ReserveNowRequest struct {
	ConnectorID   int        `json:"connectorId"`
	ExpiryDate    time.Time  `json:"expiryDate"`
	IdTag         string     `json:"idTag"`
	ParentIdTag   string     `json:"parentIdTag,omitempty"`
	ReservationID int        `json:"reservationId"`
}

type ReserveNowResponse struct {
	Status string `json:"status"`
}

type CancelReservationRequest struct {
	ReservationID int `json:"reservationId"`
}

type CancelReservationResponse struct {
	Status string `json:"status"`
}

type GetCompositeScheduleRequest struct {
	ConnectorID      int `json:"connectorId"`
	DurationSeconds  int `json:"duration"`
}

type GetCompositeScheduleResponse struct {
	Status string `json:"status"`
}

type SetChargingProfileRequest struct {
	ConnectorID     int             `json:"connectorId"`
	ChargingProfile map[string]any  `json:"csChargingProfiles"`
}

type SetChargingProfileResponse struct {
	Status string `json:"status"`
}

type ClearChargingProfileRequest struct {
	ID *int `json:"id,omitempty"`
}

type ClearChargingProfileResponse struct {
	Status string `json:"status"`
}
