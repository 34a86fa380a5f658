package config

import "github.com/veesix-networks/osvrouter/pkg/logger"

type Config struct {
	Logging    Logging     `yaml:"logging"`
	Dataplane  Dataplane   `yaml:"dataplane"`
	API        API         `yaml:"api,omitempty"`
	Monitoring Monitoring  `yaml:"monitoring,omitempty"`
	Diversions []Diversion `yaml:"diversions,omitempty"`
}

type Logging struct {
	Format     string                     `yaml:"format"`
	Level      logger.LogLevel            `yaml:"level"`
	Components map[string]logger.LogLevel `yaml:"components,omitempty"`
}

type Dataplane struct {
	VPPAPISocket     string `yaml:"vpp_api_socket,omitempty"`
	PuntSocketPath   string `yaml:"punt_socket_path,omitempty"`
	InjectSocketPath string `yaml:"inject_socket_path,omitempty"`
	ShadowNetns      string `yaml:"shadow_netns,omitempty"`
	OpDBPath         string `yaml:"opdb_path,omitempty"`
}

type API struct {
	Address string `yaml:"address"`
}

type Monitoring struct {
	MetricsAddress string `yaml:"metrics_address,omitempty"`
}

// Diversion is a statically configured diversion applied at startup, using
// the same setup path as the runtime "divert" command.
type Diversion struct {
	Protocols string `yaml:"protocols"`
	Interface string `yaml:"interface"`
	Shadow    string `yaml:"shadow"`
}
