// Package config loads the relay configuration. Every key is optional;
// Defaults supplies the values a bare install runs with.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const maxFileSize = 1 << 20

type Output struct {
	Width  int `yaml:"width" validate:"gt=0"`
	Height int `yaml:"height" validate:"gt=0"`
}

type Capture struct {
	Device string `yaml:"device" validate:"required"`
	Width  int    `yaml:"width" validate:"gte=0"`
	Height int    `yaml:"height" validate:"gte=0"`
}

type Calibration struct {
	File string `yaml:"file" validate:"required"`
	Key  string `yaml:"key" validate:"required"`
}

type Plane struct {
	MaxIterations   int     `yaml:"max_iterations" validate:"gt=0"`
	Refine          bool    `yaml:"refine"`
	DistanceScale   float64 `yaml:"distance_scale" validate:"gt=0"`
	InitialDistance float64 `yaml:"initial_distance"`
	DistanceStep    float64 `yaml:"distance_step" validate:"gt=0"`
	Workers         int     `yaml:"workers" validate:"gte=0"`
	Seed            uint64  `yaml:"seed"`
}

type Filter struct {
	Enabled     bool    `yaml:"enabled"`
	Background  []uint8 `yaml:"background" validate:"len=3"`
	MaskInvalid bool    `yaml:"mask_invalid"`
}

type Depth struct {
	File  string  `yaml:"file"`
	Scale float64 `yaml:"scale" validate:"gt=0"`
	Min   float64 `yaml:"min" validate:"gte=0"`
	Max   float64 `yaml:"max" validate:"gtfield=Min"`
	Fx    float64 `yaml:"fx" validate:"gte=0"`
	Fy    float64 `yaml:"fy" validate:"gte=0"`
	Cx    float64 `yaml:"cx"`
	Cy    float64 `yaml:"cy"`
}

type Sink struct {
	Kind        string `yaml:"kind" validate:"oneof=window web"`
	Listen      string `yaml:"listen" validate:"required_if=Kind web"`
	Queue       int    `yaml:"queue" validate:"gt=0"`
	JPEGQuality int    `yaml:"jpeg_quality" validate:"gte=1,lte=100"`
}

type Log struct {
	Level      string `yaml:"level" validate:"oneof=debug info warn warning error"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `yaml:"max_backups" validate:"gte=0"`
}

type Config struct {
	Output      Output      `yaml:"output"`
	Capture     Capture     `yaml:"capture"`
	Calibration Calibration `yaml:"calibration"`
	Plane       Plane       `yaml:"plane"`
	Filter      Filter      `yaml:"filter"`
	Depth       Depth       `yaml:"depth"`
	Sink        Sink        `yaml:"sink"`
	Log         Log         `yaml:"log"`
}

func Defaults() *Config {
	return &Config{
		Output:      Output{Width: 1280, Height: 720},
		Capture:     Capture{Device: "0", Width: 1280, Height: 720},
		Calibration: Calibration{File: "perspective.yaml", Key: "perspective"},
		Plane: Plane{
			MaxIterations:   200,
			Refine:          true,
			DistanceScale:   10,
			InitialDistance: 1.0,
			DistanceStep:    0.2,
			Workers:         runtime.GOMAXPROCS(0),
		},
		Filter: Filter{Enabled: true, Background: []uint8{0x99, 0x99, 0x99}},
		Depth:  Depth{Scale: 1, Min: 500, Max: 4500},
		Sink:   Sink{Kind: "window", Listen: ":8080", Queue: 2, JPEGQuality: 80},
		Log:    Log{Level: "info", MaxSizeMB: 50, MaxBackups: 3},
	}
}

// Load reads path over the defaults. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, cfg.Validate()
	}

	clean := filepath.Clean(path)
	info, err := os.Stat(clean)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}
	data, err := os.ReadFile(clean)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %s: %w", clean, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
