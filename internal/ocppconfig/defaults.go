package ocppconfig

import "strconv"

// DefaultsInput carries the derived values needed to compute default keys,
// per spec.md §4.1 step 5.
type DefaultsInput struct {
	NumberOfConnectors      int
	SupportedFeatureProfiles string
	SupervisionUrlOcppKey    string
	SupervisionUrl           string
	LocalAuthListSupported   bool
}

// InstallDefaults adds the standard OCPP configuration keys the engine
// expects to exist, skipping any that are already present (Add with
// overwrite=false), matching spec.md's "install default OCPP keys if
// absent".
func InstallDefaults(s *KeyStore, in DefaultsInput) {
	s.Add(Key{Key: "HeartbeatInterval", Value: "0", Visible: true}, false)
	s.Add(Key{Key: "HeartBeatInterval", Value: "0", Visible: false}, false)

	profiles := in.SupportedFeatureProfiles
	if profiles == "" {
		profiles = "Core,FirmwareManagement,LocalAuthListManagement,SmartCharging,RemoteTrigger,Reservation"
	}
	s.Add(Key{Key: "SupportedFeatureProfiles", Value: profiles, Readonly: true, Visible: true}, false)

	s.Add(Key{Key: "NumberOfConnectors", Value: strconv.Itoa(in.NumberOfConnectors), Readonly: true, Visible: true}, false)

	s.Add(Key{Key: "MeterValuesSampledData", Value: "Energy.Active.Import.Register", Visible: true}, false)

	s.Add(Key{Key: "ConnectorPhaseRotation", Value: defaultPhaseRotation(in.NumberOfConnectors), Visible: true}, false)

	s.Add(Key{Key: "AuthorizeRemoteTxRequests", Value: "true", Visible: true}, false)

	s.Add(Key{Key: "ConnectionTimeOut", Value: "30", Visible: true}, false)

	if in.LocalAuthListSupported {
		s.Add(Key{Key: "LocalAuthListEnabled", Value: "false", Visible: true}, false)
	}

	if in.SupervisionUrlOcppKey != "" {
		s.Add(Key{Key: in.SupervisionUrlOcppKey, Value: in.SupervisionUrl, Visible: true}, false)
	}
}

func defaultPhaseRotation(numberOfConnectors int) string {
	out := ""
	for i := 0; i <= numberOfConnectors; i++ {
		if i > 0 {
			out += ","
		}
		out += strconv.Itoa(i) + ".RST"
	}
	return out
}
