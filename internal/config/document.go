package config

import "strings"

// SupervisionURLDistribution selects how a station's index maps onto a
// list of supervision URLs. See spec.md §4.7.
type SupervisionURLDistribution string

const (
	RoundRobin              SupervisionURLDistribution = "ROUND_ROBIN"
	Random                  SupervisionURLDistribution = "RANDOM"
	ChargingStationAffinity SupervisionURLDistribution = "CHARGING_STATION_AFFINITY"
)

// StationTemplateURL names a template file and how many stations to spawn
// from it.
type StationTemplateURL struct {
	File              string `yaml:"file"`
	NumberOfStations  int    `yaml:"numberOfStations"`
}

// WorkerConfig controls WorkerHost pooling.
type WorkerConfig struct {
	ProcessType         string `yaml:"processType"` // workerSet | staticPool | dynamicPool
	ElementsPerWorker   int    `yaml:"elementsPerWorker"`
	ElementStartDelayMs int    `yaml:"elementStartDelay"`
	WorkerStartDelayMs  int    `yaml:"workerStartDelay"`
	PoolMinSize         int    `yaml:"poolMinSize"`
	PoolMaxSize         int    `yaml:"poolMaxSize"`
	PoolMaxInactiveMs   int    `yaml:"poolMaxInactiveTime"`
	RestartOnError      bool   `yaml:"restartWorkerOnError"`
	SharedCache         struct {
		LRUSize int `yaml:"lruSize"`
		Redis   struct {
			Addr     string `yaml:"addr" env:"WORKER_SHAREDCACHE_REDIS_ADDR"`
			Password string `yaml:"password" env:"WORKER_SHAREDCACHE_REDIS_PASSWORD"`
			TTLSec   int    `yaml:"ttlSeconds"`
		} `yaml:"redis"`
	} `yaml:"sharedCache"`
}

// UIServerAuthConfig configures the optional control-plane authentication.
type UIServerAuthConfig struct {
	Type     string `yaml:"type"` // "" | "basic" | "jwt"
	Username string `yaml:"username" env:"UISERVER_AUTH_USERNAME"`
	Password string `yaml:"password" env:"UISERVER_AUTH_PASSWORD"`
	JWTSecret string `yaml:"jwtSecret" env:"UISERVER_AUTH_JWT_SECRET"`
}

// UIServerConfig configures UIServer.
type UIServerConfig struct {
	Enabled             bool                `yaml:"enabled"`
	ApplicationProtocol string              `yaml:"applicationProtocol"` // "ws" | "http"
	ListenAddress       string              `yaml:"listenAddress" env:"UISERVER_LISTEN_ADDRESS"`
	Auth                UIServerAuthConfig  `yaml:"authentication"`
}

// AuditConfig configures the optional OCPP wire-frame audit sink.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn" env:"PERFORMANCESTORAGE_AUDIT_DSN"`
}

// PerformanceStorageConfig is mostly out of scope (spec.md §1); the audit
// sink is the one component this simulator implements itself.
type PerformanceStorageConfig struct {
	Enabled bool        `yaml:"enabled"`
	Audit   AuditConfig `yaml:"audit"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level    string `yaml:"level" env:"LOG_LEVEL"`
	Encoding string `yaml:"encoding"`
}

// Document is the top-level configuration file shape.
type Document struct {
	SupervisionURLs            interface{}                `yaml:"supervisionUrls"` // string or []string
	SupervisionURLDistribution SupervisionURLDistribution  `yaml:"supervisionUrlDistribution"`
	StationTemplateURLs        []StationTemplateURL        `yaml:"stationTemplateUrls"`
	Log                        LogConfig                   `yaml:"log"`
	Worker                     WorkerConfig                `yaml:"worker"`
	UIServer                   UIServerConfig              `yaml:"uiServer"`
	PerformanceStorage         PerformanceStorageConfig    `yaml:"performanceStorage"`
	AutoReconnectMaxRetries    *int                        `yaml:"autoReconnectMaxRetries"`
	StrictCompliance           bool                        `yaml:"strictCompliance"`
	BeginEndMeterValues        bool                        `yaml:"beginEndMeterValues"`
	OutOfOrderEndMeterValues   bool                        `yaml:"outOfOrderEndMeterValues"`

	// Deprecated aliases, tolerated with a warning by Load.
	DeprecatedSupervisionURLs interface{} `yaml:"supervisionURLs"`
	DeprecatedUIWebSocket     interface{} `yaml:"uiWebSocketServer"`
}

// applyDeprecatedAliases folds deprecated keys onto their replacement and
// returns the list of deprecated keys that were actually in use.
func (d *Document) applyDeprecatedAliases() []string {
	var used []string
	if d.SupervisionURLs == nil && d.DeprecatedSupervisionURLs != nil {
		d.SupervisionURLs = d.DeprecatedSupervisionURLs
		used = append(used, "supervisionURLs")
	}
	if !d.UIServer.Enabled && d.DeprecatedUIWebSocket != nil {
		d.UIServer.Enabled = true
		used = append(used, "uiWebSocketServer")
	}
	return used
}

// SupervisionURLList normalizes the string|[]string union into a slice.
func (d *Document) SupervisionURLList() []string {
	switch v := d.SupervisionURLs.(type) {
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return nil
		}
		return []string{v}
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return v
	default:
		return nil
	}
}
