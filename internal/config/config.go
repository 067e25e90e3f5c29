package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type SPI struct {
	Dev     string `yaml:"dev"`      // e.g. /dev/spidev0.0; empty picks the first port
	SpeedHz int    `yaml:"speed_hz"` // e.g. 2500000
}

type Surface struct {
	Driver string `yaml:"driver"` // "sim" | "led"
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	LEDs   int    `yaml:"leds"`
	SPI    SPI    `yaml:"spi,omitempty"`
}

type Engine struct {
	MeshWidth  int     `yaml:"mesh_width"`
	MeshHeight int     `yaml:"mesh_height"`
	PixelRatio float64 `yaml:"pixel_ratio"`
}

type Presets struct {
	Dir     string `yaml:"dir"`
	Watch   bool   `yaml:"watch"`
	Initial string `yaml:"initial"`
}

type Activity struct {
	Sink       string `yaml:"sink"` // "none" | "http" | "sqlite"
	URL        string `yaml:"url,omitempty"`
	TimeoutMs  int    `yaml:"timeout_ms"`
	SQLitePath string `yaml:"sqlite_path,omitempty"`
}

type Config struct {
	FPS      int      `yaml:"fps"`
	Addr     string   `yaml:"addr"`
	Surface  Surface  `yaml:"surface"`
	Engine   Engine   `yaml:"engine"`
	Presets  Presets  `yaml:"presets"`
	Activity Activity `yaml:"activity"`
}

// Defaults fills every zero field with its default.
func (c *Config) Defaults() {
	if c.FPS <= 0 {
		c.FPS = 60
	}
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.Surface.Driver == "" {
		c.Surface.Driver = "sim"
	}
	if c.Surface.Width <= 0 {
		c.Surface.Width = 64
	}
	if c.Surface.Height <= 0 {
		c.Surface.Height = 48
	}
	if c.Surface.LEDs <= 0 {
		c.Surface.LEDs = 150
	}
	if c.Surface.SPI.SpeedHz <= 0 {
		c.Surface.SPI.SpeedHz = 2500000
	}
	if c.Engine.MeshWidth <= 0 {
		c.Engine.MeshWidth = 32
	}
	if c.Engine.MeshHeight <= 0 {
		c.Engine.MeshHeight = 24
	}
	if c.Engine.PixelRatio <= 0 {
		c.Engine.PixelRatio = 1
	}
	if c.Presets.Dir == "" {
		c.Presets.Dir = "presets"
	}
	if c.Activity.Sink == "" {
		c.Activity.Sink = "none"
	}
	if c.Activity.TimeoutMs <= 0 {
		c.Activity.TimeoutMs = 10000
	}
	if c.Activity.SQLitePath == "" {
		c.Activity.SQLitePath = "activity.db"
	}
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Surface.Driver {
	case "sim", "led":
	default:
		return fmt.Errorf("unknown surface driver %q", c.Surface.Driver)
	}
	switch c.Activity.Sink {
	case "none", "sqlite":
	case "http":
		if c.Activity.URL == "" {
			return fmt.Errorf("activity sink http needs a url")
		}
	default:
		return fmt.Errorf("unknown activity sink %q", c.Activity.Sink)
	}
	return nil
}

func Load(path string) (*Config, error) {
	var c Config
	if err := LoadInto(path, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadInto decodes path over c: keys present in the file replace what c
// already holds, everything else is kept.
func LoadInto(path string, c *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}
