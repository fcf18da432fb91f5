// Package config loads and validates the receiver configuration from
// YAML. Validation is fail-fast: a config that parses but cannot run
// is rejected at load time, not when the camera is already open.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/y3nr1ng/NLC-Receiver/camera"
)

// Config is the complete receiver configuration.
type Config struct {
	InstanceID string        `yaml:"instance_id"`
	Camera     CameraConfig  `yaml:"camera"`
	Capture    CaptureConfig `yaml:"capture"`
	MQTT       *MQTTConfig   `yaml:"mqtt,omitempty"`
	HTTP       *HTTPConfig   `yaml:"http,omitempty"`
}

// CameraConfig selects and configures the device.
type CameraConfig struct {
	// GUID is the 16-digit hex device identifier. Empty selects the
	// first camera on the bus.
	GUID string `yaml:"guid"`
	// BusSpeed is the isochronous speed: 100, 200, 400 or 800.
	BusSpeed string `yaml:"bus_speed"`
	// FrameRate in fps: 1.875, 3.75, 7.5, 15, 30 or 60.
	FrameRate string `yaml:"frame_rate"`
	// ROI is the Format7 region of interest.
	ROI ROIConfig `yaml:"roi"`
	// Simulated replaces the hardware backend with the in-memory bus.
	Simulated bool `yaml:"simulated"`
}

// ROIConfig is the Format7 region of interest.
type ROIConfig struct {
	Left   int `yaml:"left"`
	Top    int `yaml:"top"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// CaptureConfig controls the acquisition session and frame handling.
type CaptureConfig struct {
	// DMABuffers is the capture ring size.
	DMABuffers int `yaml:"dma_buffers"`
	// OutputDir, when set, saves captured frames as PNG files.
	OutputDir string `yaml:"output_dir"`
	// MaxFrames stops capture after this many frames; 0 is unlimited.
	MaxFrames int `yaml:"max_frames"`
	// StatsIntervalS is the seconds between stats reports.
	StatsIntervalS int `yaml:"stats_interval_s"`
}

// MQTTConfig enables the capture-stats emitter.
type MQTTConfig struct {
	Broker string `yaml:"broker"`
	Topic  string `yaml:"topic"`
	QoS    byte   `yaml:"qos"`
}

// HTTPConfig enables the status/snapshot HTTP surface.
type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		InstanceID: "nlc-receiver",
		Camera: CameraConfig{
			BusSpeed:  "400",
			FrameRate: "15",
			ROI:       ROIConfig{Width: 1024, Height: 768},
		},
		Capture: CaptureConfig{
			DMABuffers:     8,
			StatsIntervalS: 10,
		},
	}
}

// Load reads a YAML config file over the defaults and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field that would otherwise fail mid-capture.
func (c *Config) Validate() error {
	if c.InstanceID == "" {
		return fmt.Errorf("config: instance_id is required")
	}
	if _, err := c.Camera.Speed(); err != nil {
		return err
	}
	if _, err := c.Camera.Rate(); err != nil {
		return err
	}
	if _, _, err := c.Camera.GUIDValue(); err != nil {
		return err
	}
	roi := c.Camera.ROI
	if roi.Left < 0 || roi.Top < 0 || roi.Width < 0 || roi.Height < 0 {
		return fmt.Errorf("config: roi values must be non-negative")
	}
	if c.Capture.DMABuffers < 0 {
		return fmt.Errorf("config: dma_buffers must be non-negative, got %d", c.Capture.DMABuffers)
	}
	if c.Capture.MaxFrames < 0 {
		return fmt.Errorf("config: max_frames must be non-negative, got %d", c.Capture.MaxFrames)
	}
	// Feeds a ticker period; zero would panic at startup.
	if c.Capture.StatsIntervalS <= 0 {
		return fmt.Errorf("config: stats_interval_s must be positive, got %d", c.Capture.StatsIntervalS)
	}
	if c.MQTT != nil {
		if c.MQTT.Broker == "" {
			return fmt.Errorf("config: mqtt.broker is required when mqtt is enabled")
		}
		if c.MQTT.QoS > 2 {
			return fmt.Errorf("config: mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
		}
	}
	if c.HTTP != nil {
		if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
			return fmt.Errorf("config: http.port out of range: %d", c.HTTP.Port)
		}
	}
	return nil
}

// Speed maps the configured bus speed onto the camera enumeration.
func (c *CameraConfig) Speed() (camera.Speed, error) {
	switch c.BusSpeed {
	case "100":
		return camera.Speed100, nil
	case "200":
		return camera.Speed200, nil
	case "400":
		return camera.Speed400, nil
	case "800":
		return camera.Speed800, nil
	default:
		return 0, fmt.Errorf("config: invalid bus_speed %q (100, 200, 400 or 800)", c.BusSpeed)
	}
}

// Rate maps the configured frame rate onto the camera enumeration.
func (c *CameraConfig) Rate() (camera.FrameRate, error) {
	switch c.FrameRate {
	case "1.875":
		return camera.Rate1_875, nil
	case "3.75":
		return camera.Rate3_75, nil
	case "7.5":
		return camera.Rate7_5, nil
	case "15":
		return camera.Rate15, nil
	case "30":
		return camera.Rate30, nil
	case "60":
		return camera.Rate60, nil
	default:
		return 0, fmt.Errorf("config: invalid frame_rate %q (1.875, 3.75, 7.5, 15, 30 or 60)", c.FrameRate)
	}
}

// GUIDValue parses the configured GUID. The boolean reports whether a
// GUID was configured at all; false means "use the first on the bus".
func (c *CameraConfig) GUIDValue() (camera.GUID, bool, error) {
	if c.GUID == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseUint(c.GUID, 16, 64)
	if err != nil {
		return 0, false, fmt.Errorf("config: invalid guid %q: %w", c.GUID, err)
	}
	return camera.GUID(v), true, nil
}
