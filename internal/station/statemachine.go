package station

// transitions16 encodes the legal OCPP 1.6 connector status graph (spec.md
// §4.1: "OCPP 1.6 connector status transitions follow the published state
// diagram"). Available is reachable from every other status, Faulted
// included, to model StopTransaction/UnlockConnector/ChangeAvailability
// and fault recovery paths; the
// remaining edges follow the charging session lifecycle.
var transitions16 = map[ConnectorStatus][]ConnectorStatus{
	StatusAvailable:     {StatusPreparing, StatusReserved, StatusUnavailable, StatusFaulted},
	StatusPreparing:     {StatusCharging, StatusAvailable, StatusFaulted, StatusUnavailable},
	StatusCharging:      {StatusSuspendedEVSE, StatusSuspendedEV, StatusFinishing, StatusAvailable, StatusFaulted},
	StatusSuspendedEVSE: {StatusCharging, StatusFinishing, StatusAvailable, StatusFaulted},
	StatusSuspendedEV:   {StatusCharging, StatusFinishing, StatusAvailable, StatusFaulted},
	StatusFinishing:     {StatusAvailable, StatusFaulted},
	StatusReserved:      {StatusPreparing, StatusAvailable, StatusFaulted},
	StatusUnavailable:   {StatusAvailable, StatusFaulted},
	StatusFaulted:       {StatusAvailable, StatusUnavailable},
}

// transitions20 encodes OCPP 2.0.1's reduced connector status set.
var transitions20 = map[ConnectorStatus][]ConnectorStatus{
	StatusAvailable:   {StatusOccupied, StatusReserved, StatusUnavailable, StatusFaulted},
	StatusOccupied:    {StatusAvailable, StatusFaulted},
	StatusReserved:    {StatusOccupied, StatusAvailable, StatusFaulted},
	StatusUnavailable: {StatusAvailable, StatusFaulted},
	StatusFaulted:     {StatusAvailable, StatusUnavailable},
}

// CanTransition reports whether from -> to is a legal edge for ocppVersion.
// An illegal transition should be logged and refused by the caller,
// per spec.md §4.1.
func CanTransition(ocppVersion string, from, to ConnectorStatus) bool {
	if from == to {
		return true
	}
	table := transitions16
	if ocppVersion == "2.0" || ocppVersion == "2.0.1" {
		table = transitions20
	}
	for _, allowed := range table[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
