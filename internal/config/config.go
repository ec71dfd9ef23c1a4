// Package config loads gate configuration from a YAML file with
// environment-variable overrides. Environment wins over the file, the
// file wins over the built-in defaults, so a containerized deployment can
// run with no config file at all.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable names recognized by FromEnv.
const (
	EnvAuthKey       = "AUTH_KEY"
	EnvAllowlistPath = "ALLOWLIST_PATH"
	EnvExecTimeout   = "EXEC_TIMEOUT_SEC"
	EnvListenAddr    = "LISTEN_ADDR"
	EnvPythonBin     = "PYTHON_BIN"
	EnvSnapshotPath  = "CAPS_SNAPSHOT_PATH"
)

// Config holds everything the service and CLI need to run.
type Config struct {
	// ListenAddr is the HTTP bind address.
	ListenAddr string `yaml:"listen_addr"`
	// AuthKey is the bearer token required on every API request. An empty
	// key makes the service refuse all requests rather than open up.
	AuthKey string `yaml:"auth_key"`
	// AllowlistPath points at the policy document.
	AllowlistPath string `yaml:"allowlist_path"`
	// SnapshotPath optionally points at a capability snapshot to preload.
	SnapshotPath string `yaml:"snapshot_path"`
	// PythonBin is the interpreter used for probing and execution.
	PythonBin string `yaml:"python_bin"`
	// ExecTimeoutSec bounds one script execution.
	ExecTimeoutSec int `yaml:"exec_timeout_sec"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListenAddr:     ":8000",
		AllowlistPath:  "allowlist.json",
		PythonBin:      "python3",
		ExecTimeoutSec: 20,
	}
}

// Load reads a YAML config file over the defaults. A missing file is not
// an error; the defaults are returned as-is.
func Load(path string) (Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return c, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	return c, nil
}

// FromEnv overlays recognized environment variables onto c.
func FromEnv(c Config) (Config, error) {
	if v := os.Getenv(EnvAuthKey); v != "" {
		c.AuthKey = v
	}
	if v := os.Getenv(EnvAllowlistPath); v != "" {
		c.AllowlistPath = v
	}
	if v := os.Getenv(EnvListenAddr); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv(EnvPythonBin); v != "" {
		c.PythonBin = v
	}
	if v := os.Getenv(EnvSnapshotPath); v != "" {
		c.SnapshotPath = v
	}
	if v := os.Getenv(EnvExecTimeout); v != "" {
		sec, err := strconv.Atoi(v)
		if err != nil || sec <= 0 {
			return c, fmt.Errorf("config: %s must be a positive integer, got %q", EnvExecTimeout, v)
		}
		c.ExecTimeoutSec = sec
	}
	return c, nil
}

// ExecTimeout converts the configured execution bound to a duration.
func (c Config) ExecTimeout() time.Duration {
	return time.Duration(c.ExecTimeoutSec) * time.Second
}
