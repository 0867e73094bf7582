package station

// This file implements atg.StationView (defined in package atg in terms of
// primitive types to avoid an atg<->station import cycle): the read-only
// surface an automatic transaction generator loop needs from its bound
// engine, plus the Authorize/StartTransaction/StopTransaction methods
// already defined in transaction.go and the Accepted() method inherited
// from the embedded Station.

// ConnectorIDs returns every connector index, in unspecified order.
func (e *Engine) ConnectorIDs() []int {
	var ids []int
	for _, c := range e.AllConnectors() {
		ids = append(ids, c.Index)
	}
	return ids
}

// ConnectorStatus reports a connector's current OCPP status string, or
// "" if the connector is unknown.
func (e *Engine) ConnectorStatus(connectorID int) string {
	c, ok := e.ConnectorByID(connectorID)
	if !ok {
		return ""
	}
	return string(c.Status)
}

// ConnectorAvailable reports whether a connector is Operative and free of
// a running transaction, the precondition an ATG loop checks before
// attempting to start one.
func (e *Engine) ConnectorAvailable(connectorID int) bool {
	c, ok := e.ConnectorByID(connectorID)
	if !ok {
		return false
	}
	return c.Availability == Operative && !c.TransactionStarted && c.Status != StatusFaulted
}

// RequireAuthorize reports whether this station's ATG must send an
// Authorize before StartTransaction, per its AuthorizeRemoteTxRequests
// configuration key.
func (e *Engine) RequireAuthorize() bool {
	if e.ConfigKeys == nil {
		return true
	}
	if k, ok := e.ConfigKeys.Get("AuthorizeRemoteTxRequests"); ok {
		return k.Value != "false"
	}
	return true
}
