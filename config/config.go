// Package config loads the analyzer's config.yaml.
package config

import (
	"errors"
	"fmt"
	"os"

	"FaceStabilityServer/detector"
	"FaceStabilityServer/engine"
	iface "FaceStabilityServer/interface"

	"gopkg.in/yaml.v3"
)

type Overlay struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

type Recorder struct {
	CSVPath    string `yaml:"csvPath"`
	SQLitePath string `yaml:"sqlitePath"`
}

type Camera struct {
	Device   string `yaml:"device"`
	Rotation int    `yaml:"rotation"`
}

type Registry struct {
	Enabled         bool   `yaml:"enabled"`
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	IntervalSeconds int    `yaml:"intervalSeconds"`
}

type Log struct {
	Development bool   `yaml:"development"`
	Level       string `yaml:"level"`
}

type Config struct {
	RPCPort     int             `yaml:"rpcPort"`
	HTTPPort    int             `yaml:"httpPort"`
	MetricsPort int             `yaml:"metricsPort"`
	Overlay     Overlay         `yaml:"overlay"`
	Detector    detector.Config `yaml:"detector"`
	Engine      engine.Config   `yaml:"engine"`
	Recorder    Recorder        `yaml:"recorder"`
	Camera      Camera          `yaml:"camera"`
	Registry    Registry        `yaml:"registry"`
	Log         Log             `yaml:"log"`
}

func Default() Config {
	return Config{
		RPCPort:     50051,
		HTTPPort:    8080,
		MetricsPort: 9090,
		Overlay:     Overlay{Width: 1080, Height: 1920},
		Detector: detector.Config{
			Kind:           detector.KindCascade,
			CascadePath:    "models/haarcascade_frontalface_default.xml",
			MinFaceRatio:   detector.DefaultMinFaceRatio,
			TimeoutSeconds: 5,
		},
		Engine: engine.Config{
			Backend:    engine.BackendTflite,
			ModelPath:  "models/stability.tflite",
			NumThreads: 2,
		},
		Recorder: Recorder{CSVPath: "results.csv"},
		Camera:   Camera{Device: "0"},
		Registry: Registry{IntervalSeconds: 5},
		Log:      Log{Level: "info"},
	}
}

// Load reads path over the defaults. Keys missing from the file keep their
// default value.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the analyzer cannot run with and resets the
// ones that have a safe fallback.
func (c *Config) Validate() error {
	var errs []error
	if c.Overlay.Width <= 0 || c.Overlay.Height <= 0 {
		errs = append(errs, fmt.Errorf("overlay size must be positive, got %dx%d", c.Overlay.Width, c.Overlay.Height))
	}
	if !iface.ValidRotation(c.Camera.Rotation) {
		errs = append(errs, fmt.Errorf("camera rotation must be 0, 90, 180 or 270, got %d", c.Camera.Rotation))
	}
	switch c.Detector.Kind {
	case detector.KindCascade, detector.KindRemote:
	case "":
		c.Detector.Kind = detector.KindCascade
	default:
		errs = append(errs, fmt.Errorf("unknown detector kind %q", c.Detector.Kind))
	}
	if c.Detector.Kind == detector.KindRemote && c.Detector.RemoteURL == "" {
		errs = append(errs, errors.New("detector.remoteURL is required for the remote detector"))
	}
	if c.Detector.MinFaceRatio <= 0 || c.Detector.MinFaceRatio > 1 {
		c.Detector.MinFaceRatio = detector.DefaultMinFaceRatio
	}
	switch c.Engine.Backend {
	case engine.BackendOnnx, engine.BackendTflite:
	default:
		errs = append(errs, fmt.Errorf("unknown engine backend %q", c.Engine.Backend))
	}
	if c.Engine.ModelPath == "" {
		errs = append(errs, errors.New("engine.modelPath is required"))
	}
	if c.Engine.NumThreads <= 0 {
		c.Engine.NumThreads = 1
	}
	if c.Recorder.CSVPath == "" {
		errs = append(errs, errors.New("recorder.csvPath is required"))
	}
	if c.Registry.IntervalSeconds <= 0 {
		c.Registry.IntervalSeconds = 5
	}
	if c.Registry.Enabled && c.Registry.Host == "" {
		errs = append(errs, errors.New("registry.host is required when the registry is enabled"))
	}
	return errors.Join(errs...)
}
