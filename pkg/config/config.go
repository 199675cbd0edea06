package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the full controller configuration loaded from pilot_config.yaml.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Hub       HubConfig       `yaml:"hub"`
	Input     InputConfig     `yaml:"input"`
	Drive     DriveConfig     `yaml:"drive"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogPath string `yaml:"log_path,omitempty"`
}

// HubConfig holds hub connection settings.
type HubConfig struct {
	Simulate         bool   `yaml:"simulate"`
	DeviceName       string `yaml:"device_name"`
	ScanTimeoutMs    int    `yaml:"scan_timeout_ms"`
	ConnectTimeoutMs int    `yaml:"connect_timeout_ms"`
}

// InputConfig holds gamepad device settings.
type InputConfig struct {
	DevicePath      string  `yaml:"device_path"`
	EventPath       string  `yaml:"event_path,omitempty"`
	StickDeadzone   float64 `yaml:"stick_deadzone"`
	TriggerDeadzone float64 `yaml:"trigger_deadzone"`
}

// DriveConfig holds the drive policy tuning.
type DriveConfig struct {
	TickRateHz      int             `yaml:"tick_rate_hz"`
	GearMultipliers []float64       `yaml:"gear_multipliers"`
	BrakeThreshold  float64         `yaml:"brake_threshold"`
	ReverseCap      int             `yaml:"reverse_cap"`
	InnerDeadzone   int             `yaml:"inner_deadzone"`
	Smoothing       SmoothingConfig `yaml:"smoothing"`
}

// SmoothingConfig holds the per-mode power slew factors.
type SmoothingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ComfortAccel float64 `yaml:"comfort_accel"`
	ComfortBrake float64 `yaml:"comfort_brake"`
	SportAccel   float64 `yaml:"sport_accel"`
	SportBrake   float64 `yaml:"sport_brake"`
}

// TelemetryConfig holds the telemetry surface settings.
type TelemetryConfig struct {
	Enabled   bool      `yaml:"enabled"`
	HTTPPort  int       `yaml:"http_port"`
	QueueSize int       `yaml:"queue_size"`
	ZMQ       ZMQConfig `yaml:"zmq"`
}

// ZMQConfig holds the ZeroMQ snapshot publisher settings.
type ZMQConfig struct {
	Enabled            bool   `yaml:"enabled"`
	PublishBindAddress string `yaml:"publish_bind_address"`
	Topic              string `yaml:"topic"`
}

// LoadConfig loads pilot_config.yaml from configDir, applies defaults and
// validates required fields.
func LoadConfig(configDir string) (*Config, error) {
	configPath := filepath.Join(configDir, "pilot_config.yaml")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file '%s': %w", configPath, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file '%s': %w", configPath, err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Hub.ScanTimeoutMs == 0 {
		c.Hub.ScanTimeoutMs = 5000
	}
	if c.Hub.ConnectTimeoutMs == 0 {
		c.Hub.ConnectTimeoutMs = 10000
	}
	if c.Input.DevicePath == "" {
		c.Input.DevicePath = "/dev/input/js0"
	}
	if c.Input.StickDeadzone == 0 {
		c.Input.StickDeadzone = 0.08
	}
	if c.Input.TriggerDeadzone == 0 {
		c.Input.TriggerDeadzone = 0.05
	}
	if c.Drive.TickRateHz == 0 {
		c.Drive.TickRateHz = 50
	}
	if len(c.Drive.GearMultipliers) == 0 {
		c.Drive.GearMultipliers = []float64{0.25, 0.50, 1.00}
	}
	if c.Drive.BrakeThreshold == 0 {
		c.Drive.BrakeThreshold = 0.8
	}
	if c.Drive.ReverseCap == 0 {
		c.Drive.ReverseCap = 40
	}
	if c.Drive.Smoothing.ComfortAccel == 0 {
		c.Drive.Smoothing.ComfortAccel = 0.01
	}
	if c.Drive.Smoothing.ComfortBrake == 0 {
		c.Drive.Smoothing.ComfortBrake = 0.15
	}
	if c.Drive.Smoothing.SportAccel == 0 {
		c.Drive.Smoothing.SportAccel = 0.15
	}
	if c.Drive.Smoothing.SportBrake == 0 {
		c.Drive.Smoothing.SportBrake = 0.35
	}
	if c.Telemetry.HTTPPort == 0 {
		c.Telemetry.HTTPPort = 8000
	}
	if c.Telemetry.QueueSize == 0 {
		c.Telemetry.QueueSize = 64
	}
	if c.Telemetry.ZMQ.Topic == "" {
		c.Telemetry.ZMQ.Topic = "pilot.telemetry"
	}
}

func (c *Config) validate() error {
	if !c.Hub.Simulate && c.Hub.DeviceName == "" {
		return fmt.Errorf("missing required field in config: hub.device_name (required unless hub.simulate is true)")
	}
	if len(c.Drive.GearMultipliers) != 3 {
		return fmt.Errorf("drive.gear_multipliers must list exactly 3 values, got %d", len(c.Drive.GearMultipliers))
	}
	for i, m := range c.Drive.GearMultipliers {
		if m <= 0 || m > 1 {
			return fmt.Errorf("drive.gear_multipliers[%d] must be in (0, 1], got %v", i, m)
		}
	}
	if c.Drive.BrakeThreshold <= 0 || c.Drive.BrakeThreshold >= 1 {
		return fmt.Errorf("drive.brake_threshold must be in (0, 1), got %v", c.Drive.BrakeThreshold)
	}
	if c.Drive.ReverseCap < 0 || c.Drive.ReverseCap > 100 {
		return fmt.Errorf("drive.reverse_cap must be in [0, 100], got %d", c.Drive.ReverseCap)
	}
	if c.Telemetry.ZMQ.Enabled && c.Telemetry.ZMQ.PublishBindAddress == "" {
		return fmt.Errorf("missing required field in config: telemetry.zmq.publish_bind_address")
	}
	return nil
}
