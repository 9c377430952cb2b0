// Package profiling starts continuous profiling with Pyroscope.
package profiling

import (
	"fmt"

	"github.com/grafana/pyroscope-go"

	"github.com/kilianp07/dispatchmap/infra/logger"
)

// Config enables the Pyroscope profiler.
type Config struct {
	Enabled           bool              `json:"enabled"`
	ServerAddress     string            `json:"server_address"`
	ApplicationName   string            `json:"application_name"`
	BasicAuthUser     string            `json:"basic_auth_user"`
	BasicAuthPassword string            `json:"basic_auth_password"`
	Tags              map[string]string `json:"tags"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.ServerAddress == "" {
		c.ServerAddress = "http://localhost:4040"
	}
	if c.ApplicationName == "" {
		c.ApplicationName = "dispatchmap"
	}
}

// pyroscopeConfig builds the profiler configuration.
func (c Config) pyroscopeConfig(version string) pyroscope.Config {
	tags := map[string]string{"service": c.ApplicationName, "version": version}
	for k, v := range c.Tags {
		tags[k] = v
	}
	pc := pyroscope.Config{
		ApplicationName: c.ApplicationName,
		ServerAddress:   c.ServerAddress,
		Tags:            tags,
	}
	if c.BasicAuthUser != "" && c.BasicAuthPassword != "" {
		pc.BasicAuthUser = c.BasicAuthUser
		pc.BasicAuthPassword = c.BasicAuthPassword
	}
	return pc
}

// InitProfiling starts the profiler and returns its stop function. A
// profiler that fails to start is logged and replaced by a no-op.
func InitProfiling(cfg Config, version string) (func(), error) {
	log := logger.New("profiling")
	if !cfg.Enabled {
		log.Debugf("pyroscope profiling disabled")
		return func() {}, nil
	}
	cfg.SetDefaults()
	profiler, err := pyroscope.Start(cfg.pyroscopeConfig(version))
	if err != nil {
		log.Warnf("failed to start pyroscope profiler: %v", err)
		return func() {}, nil
	}
	log.Infof("pyroscope profiling to %s as %s", cfg.ServerAddress, cfg.ApplicationName)
	return func() {
		if err := profiler.Stop(); err != nil {
			log.Errorf("stop pyroscope profiler: %v", err)
		}
	}, nil
}

// Validate checks the basic auth pair is complete.
func (c Config) Validate() error {
	if (c.BasicAuthUser == "") != (c.BasicAuthPassword == "") {
		return fmt.Errorf("profiling basic auth needs both user and password")
	}
	return nil
}
