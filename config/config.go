// Package config loads config.yaml for ColorDetServer.
package config

import (
	"ColorDetServer/engine"
	iface "ColorDetServer/interface"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPath = "config.yaml"
	PathEnv     = "COLORDET_CONFIG"
)

// TargetColor derives a ColorRange from a single hex color. The hue window is
// not wrapped around 0/180, so hues near red are clamped.
type TargetColor struct {
	Hex           string  `yaml:"hex"`
	HueTolerance  float64 `yaml:"hueTolerance"`
	MinSaturation float64 `yaml:"minSaturation"`
	MinValue      float64 `yaml:"minValue"`
}

type Config struct {
	Source      string `yaml:"source"`
	Label       string `yaml:"label"`
	Headless    bool   `yaml:"headless"`
	LogLevel    string `yaml:"logLevel"`
	Development bool   `yaml:"development"`

	ColorRange  *iface.ColorRange `yaml:"colorRange"`
	TargetColor *TargetColor      `yaml:"targetColor"`
	Detection   engine.Params     `yaml:"detection"`

	HTTPPort         int    `yaml:"httpPort"`
	RPCPort          int    `yaml:"RPCPort"`
	MetricsPort      int    `yaml:"metricsPort"`
	UseRegServer     bool   `yaml:"UseRegServer"`
	RegServerHost    string `yaml:"RegServerHost"`
	RegServerPort    int    `yaml:"RegServerPort"`
	HeartbeatSeconds int    `yaml:"heartbeatSeconds"`
}

func Default() Config {
	return Config{
		Source:           "0",
		Label:            "Target",
		LogLevel:         "info",
		Detection:        engine.DefaultParams(),
		HTTPPort:         8080,
		RPCPort:          50051,
		MetricsPort:      50053,
		RegServerHost:    "127.0.0.1",
		RegServerPort:    8000,
		HeartbeatSeconds: 5,
	}
}

// Path returns the config file location, honouring COLORDET_CONFIG.
func Path() string {
	if p := os.Getenv(PathEnv); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads and validates the yaml file at path. Fields missing from the
// file keep their Default values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Range resolves the color range: an explicit colorRange wins over targetColor,
// and the default green range is used when neither is set.
func (c Config) Range() (iface.ColorRange, error) {
	switch {
	case c.ColorRange != nil:
		return *c.ColorRange, nil
	case c.TargetColor != nil:
		return c.TargetColor.Range()
	default:
		return engine.DefaultColorRange(), nil
	}
}

func (t TargetColor) Range() (iface.ColorRange, error) {
	col, err := colorful.Hex(t.Hex)
	if err != nil {
		return iface.ColorRange{}, fmt.Errorf("%w: target color %q: %v", engine.ErrInvalidRange, t.Hex, err)
	}
	h, _, _ := col.Hsv()
	// OpenCV 8-bit hue is degrees / 2
	hue := h / 2
	return iface.ColorRange{
		Lower: iface.HSV{H: math.Max(0, hue-t.HueTolerance), S: t.MinSaturation, V: t.MinValue},
		Upper: iface.HSV{H: math.Min(180, hue+t.HueTolerance), S: 255, V: 255},
	}, nil
}

// DeviceIndex reports whether Source names a capture device rather than a file.
func (c Config) DeviceIndex() (int, bool) {
	idx, err := strconv.Atoi(c.Source)
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}

func (c Config) Validate() error {
	if c.Source == "" {
		return errors.New("source cannot be empty")
	}
	for name, port := range map[string]int{"httpPort": c.HTTPPort, "RPCPort": c.RPCPort, "metricsPort": c.MetricsPort} {
		if port <= 0 || port > 65535 {
			return fmt.Errorf("%s must be between 1 and 65535, got %d", name, port)
		}
	}
	if c.UseRegServer {
		if c.RegServerHost == "" || c.RegServerPort <= 0 {
			return errors.New("UseRegServer requires RegServerHost and RegServerPort")
		}
		if c.HeartbeatSeconds <= 0 {
			return fmt.Errorf("heartbeatSeconds must be positive, got %d", c.HeartbeatSeconds)
		}
	}
	rng, err := c.Range()
	if err != nil {
		return err
	}
	if err := engine.ValidateRange(rng); err != nil {
		return err
	}
	return c.Detection.Validate()
}
