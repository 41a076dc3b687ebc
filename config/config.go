// Package config loads the proxy's tuning surface (listen address,
// pipeline caps, backend backoff, etc.) via github.com/spf13/viper,
// merging a YAML file with RCPROXY_-prefixed environment overrides.
//
// Grounded on Luit-rcp/cmd/root.go's viper usage (SetConfigName,
// AddConfigPath, SetEnvPrefix, AutomaticEnv) — kept the same merge
// order (file, then env) but dropped its cobra/pflag CLI layer
// entirely, since spec.md lists CLI argument parsing as out of scope;
// a config file path is the only thing read from argv here, and it's
// read with the standard library's flag package rather than re-adding
// the dependency cobra pulls in for that one string.
//
// Replaces chuimengdaoxizhou-go-redis/config/config.go's hand-rolled
// bufio.Scanner key=value parser, which only understood two fields
// (bind, port) of its own ServerProperties struct.
package config

import (
	"os"
	"time"

	"github.com/spf13/viper"
)

// Properties is the proxy's resolved configuration, populated by Load.
type Properties struct {
	Bind string
	Port int

	// AdminTenant is the tenant name UMCTL is restricted to and that
	// unauthenticated data commands are evaluated against.
	AdminTenant string

	// PipelineCap bounds requests in flight per session before a
	// request gets an overload error. Zero means unbounded.
	PipelineCap int
	// MaxOpenSessions bounds concurrently open client connections.
	// Zero means unbounded.
	MaxOpenSessions int

	// BackendOutstandingCap bounds in-flight requests per backend
	// connection. Zero means unbounded.
	BackendOutstandingCap int
	// BackendConnectTimeout bounds how long a backend dial may take.
	BackendConnectTimeout time.Duration
	// BackendBackoffMin/Max bound the exponential reconnect delay.
	BackendBackoffMin time.Duration
	BackendBackoffMax time.Duration

	// LogPath/LogName/LogExt feed lib/logger.Settings.
	LogPath string
	LogName string
	LogExt  string
}

func defaults() *Properties {
	return &Properties{
		Bind:                  "0.0.0.0",
		Port:                  6379,
		AdminTenant:           "admin",
		PipelineCap:           4096,
		MaxOpenSessions:       0,
		BackendOutstandingCap: 1024,
		BackendConnectTimeout: 3 * time.Second,
		BackendBackoffMin:     50 * time.Millisecond,
		BackendBackoffMax:     5 * time.Second,
		LogPath:               "logs",
		LogName:               "rcproxy",
		LogExt:                "log",
	}
}

// Load reads configFile (if non-empty and present) merged with
// RCPROXY_-prefixed environment variables, falling back to defaults()
// for anything neither sets.
func Load(configFile string) (*Properties, error) {
	p := defaults()

	v := viper.New()
	v.SetEnvPrefix("rcproxy")
	v.AutomaticEnv()
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	if v.IsSet("bind") {
		p.Bind = v.GetString("bind")
	}
	if v.IsSet("port") {
		p.Port = v.GetInt("port")
	}
	if v.IsSet("admin_tenant") {
		p.AdminTenant = v.GetString("admin_tenant")
	}
	if v.IsSet("pipeline_cap") {
		p.PipelineCap = v.GetInt("pipeline_cap")
	}
	if v.IsSet("max_open_sessions") {
		p.MaxOpenSessions = v.GetInt("max_open_sessions")
	}
	if v.IsSet("backend_outstanding_cap") {
		p.BackendOutstandingCap = v.GetInt("backend_outstanding_cap")
	}
	if v.IsSet("backend_connect_timeout") {
		p.BackendConnectTimeout = v.GetDuration("backend_connect_timeout")
	}
	if v.IsSet("backend_backoff_min") {
		p.BackendBackoffMin = v.GetDuration("backend_backoff_min")
	}
	if v.IsSet("backend_backoff_max") {
		p.BackendBackoffMax = v.GetDuration("backend_backoff_max")
	}
	if v.IsSet("log_path") {
		p.LogPath = v.GetString("log_path")
	}
	if v.IsSet("log_name") {
		p.LogName = v.GetString("log_name")
	}
	if v.IsSet("log_ext") {
		p.LogExt = v.GetString("log_ext")
	}
	return p, nil
}
