package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical pointer defaults file.
const DefaultConfigPath = "config/pointer.defaults.json"

// PointerConfig is the root configuration of the pointer daemon. Every
// field is optional; the Get* methods supply defaults for omitted ones.
type PointerConfig struct {
	// Pipeline
	PoolCapacity          *int     `json:"pool_capacity,omitempty"`
	QueueDepth            *int     `json:"queue_depth,omitempty"`
	TickRateHz            *float64 `json:"tick_rate_hz,omitempty"`
	RayProjectionDistance *float64 `json:"ray_projection_distance,omitempty"`
	RestartPolicy         *string  `json:"restart_policy,omitempty"`
	RestartGap            *string  `json:"restart_gap,omitempty"` // duration string like "250ms"
	IdleTimeout           *string  `json:"idle_timeout,omitempty"` // "0s" keeps silent gestures open
	AssertInvariants      *bool    `json:"assert_invariants,omitempty"`

	// Sources
	SerialPort *string `json:"serial_port,omitempty"`
	SerialBaud *int    `json:"serial_baud,omitempty"`
	UDPListen  *string `json:"udp_listen,omitempty"`

	// Outputs
	TraceDB       *string `json:"trace_db,omitempty"`
	MonitorListen *string `json:"monitor_listen,omitempty"`
	GRPCListen    *string `json:"grpc_listen,omitempty"`
	Verbose       *bool   `json:"verbose,omitempty"`
}

// LoadPointerConfig loads a PointerConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadPointerConfig(path string) (*PointerConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &PointerConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded; intended
// for test setup.
func MustLoadDefaultConfig() *PointerConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/spatial/pipeline/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadPointerConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *PointerConfig) Validate() error {
	if c.PoolCapacity != nil && (*c.PoolCapacity < 1 || *c.PoolCapacity > 64) {
		return fmt.Errorf("pool_capacity must be between 1 and 64, got %d", *c.PoolCapacity)
	}
	if c.QueueDepth != nil && *c.QueueDepth < 2 {
		// A restart queues Cancelled and Began together.
		return fmt.Errorf("queue_depth must be at least 2, got %d", *c.QueueDepth)
	}
	if c.TickRateHz != nil && (*c.TickRateHz <= 0 || *c.TickRateHz > 1000) {
		return fmt.Errorf("tick_rate_hz must be in (0, 1000], got %f", *c.TickRateHz)
	}
	if c.RayProjectionDistance != nil && *c.RayProjectionDistance <= 0 {
		return fmt.Errorf("ray_projection_distance must be positive, got %f", *c.RayProjectionDistance)
	}
	if c.RestartGap != nil && *c.RestartGap != "" {
		if _, err := time.ParseDuration(*c.RestartGap); err != nil {
			return fmt.Errorf("invalid restart_gap '%s': %w", *c.RestartGap, err)
		}
	}
	if c.IdleTimeout != nil && *c.IdleTimeout != "" {
		d, err := time.ParseDuration(*c.IdleTimeout)
		if err != nil {
			return fmt.Errorf("invalid idle_timeout '%s': %w", *c.IdleTimeout, err)
		}
		if d < 0 {
			return fmt.Errorf("idle_timeout must not be negative, got %s", d)
		}
	}
	if c.SerialBaud != nil && *c.SerialBaud <= 0 {
		return fmt.Errorf("serial_baud must be positive, got %d", *c.SerialBaud)
	}
	return nil
}

// GetPoolCapacity returns the pool_capacity value or the default.
func (c *PointerConfig) GetPoolCapacity() int {
	if c.PoolCapacity == nil {
		return 2
	}
	return *c.PoolCapacity
}

// GetQueueDepth returns the queue_depth value or the default.
func (c *PointerConfig) GetQueueDepth() int {
	if c.QueueDepth == nil {
		return 32
	}
	return *c.QueueDepth
}

// GetTickRateHz returns the tick_rate_hz value or the default.
func (c *PointerConfig) GetTickRateHz() float64 {
	if c.TickRateHz == nil {
		return 90
	}
	return *c.TickRateHz
}

// GetRayProjectionDistance returns the ray_projection_distance value or the default.
func (c *PointerConfig) GetRayProjectionDistance() float64 {
	if c.RayProjectionDistance == nil {
		return 1.0
	}
	return *c.RayProjectionDistance
}

// GetRestartPolicy returns the restart_policy value or the default.
func (c *PointerConfig) GetRestartPolicy() string {
	if c.RestartPolicy == nil {
		return "repeat_in_batch,kind_change,gap"
	}
	return *c.RestartPolicy
}

// GetRestartGap parses and returns the RestartGap as a time.Duration.
func (c *PointerConfig) GetRestartGap() time.Duration {
	if c.RestartGap == nil || *c.RestartGap == "" {
		return 250 * time.Millisecond
	}
	d, err := time.ParseDuration(*c.RestartGap)
	if err != nil {
		return 250 * time.Millisecond
	}
	return d
}

// GetIdleTimeout returns how long a gesture may go without samples before
// it is cancelled. Zero, the default, disables expiry.
func (c *PointerConfig) GetIdleTimeout() time.Duration {
	if c.IdleTimeout == nil || *c.IdleTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(*c.IdleTimeout)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// GetAssertInvariants returns the assert_invariants value or the default.
func (c *PointerConfig) GetAssertInvariants() bool {
	return c.AssertInvariants != nil && *c.AssertInvariants
}

// GetSerialPort returns the serial_port value; empty disables the bridge.
func (c *PointerConfig) GetSerialPort() string {
	if c.SerialPort == nil {
		return ""
	}
	return *c.SerialPort
}

// GetSerialBaud returns the serial_baud value or the default.
func (c *PointerConfig) GetSerialBaud() int {
	if c.SerialBaud == nil {
		return 115200
	}
	return *c.SerialBaud
}

// GetUDPListen returns the udp_listen value; empty disables the listener.
func (c *PointerConfig) GetUDPListen() string {
	if c.UDPListen == nil {
		return ""
	}
	return *c.UDPListen
}

// GetTraceDB returns the trace_db path; empty disables recording.
func (c *PointerConfig) GetTraceDB() string {
	if c.TraceDB == nil {
		return ""
	}
	return *c.TraceDB
}

// GetMonitorListen returns the monitor_listen value or the default.
func (c *PointerConfig) GetMonitorListen() string {
	if c.MonitorListen == nil {
		return "127.0.0.1:8090"
	}
	return *c.MonitorListen
}

// GetGRPCListen returns the grpc_listen value or the default.
func (c *PointerConfig) GetGRPCListen() string {
	if c.GRPCListen == nil {
		return "127.0.0.1:50071"
	}
	return *c.GRPCListen
}

// GetVerbose returns the verbose value or the default.
func (c *PointerConfig) GetVerbose() bool {
	return c.Verbose != nil && *c.Verbose
}
