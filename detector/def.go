// Package detector provides the face detectors the pipeline consumes.
package detector

import (
	"fmt"

	iface "FaceStabilityServer/interface"

	"go.uber.org/zap"
)

const (
	KindCascade = "cascade"
	KindRemote  = "remote"
)

// DefaultMinFaceRatio is the smallest face accepted, as a fraction of the
// upright image width.
const DefaultMinFaceRatio = 0.15

type Config struct {
	Kind           string  `yaml:"kind"`
	CascadePath    string  `yaml:"cascadePath"`
	MinFaceRatio   float64 `yaml:"minFaceRatio"`
	RemoteURL      string  `yaml:"remoteURL"`
	TimeoutSeconds int     `yaml:"timeoutSeconds"`
}

func (c Config) minFaceRatio() float64 {
	if c.MinFaceRatio <= 0 || c.MinFaceRatio > 1 {
		return DefaultMinFaceRatio
	}
	return c.MinFaceRatio
}

// Open builds the detector selected by cfg.Kind.
func Open(cfg Config, log *zap.Logger) (iface.Detector, error) {
	switch cfg.Kind {
	case KindCascade, "":
		return NewCascade(cfg, log)
	case KindRemote:
		return NewRemote(cfg, log)
	}
	return nil, fmt.Errorf("unknown detector kind: %s", cfg.Kind)
}
