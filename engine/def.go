package engine

import (
	"errors"
	"path/filepath"
	"strings"

	iface "FaceStabilityServer/interface"
)

const UNREGISTERED = 0x0001
const REGISTERED = 0x0002
const IDLE = 0x0003
const BUSY = 0x0004

const (
	BackendOnnx   = "onnx"
	BackendTflite = "tflite"
)

var (
	ErrBusy      = errors.New("engine is busy")
	ErrNotLoaded = errors.New("model not loaded")
)

type Config struct {
	Backend           string `yaml:"backend"`
	ModelPath         string `yaml:"modelPath"`
	SharedLibraryPath string `yaml:"sharedLibraryPath"`
	NumThreads        int    `yaml:"numThreads"`
}

// runner is one loaded model on a concrete runtime.
type runner interface {
	run(input iface.InputTensor) (float32, error)
	destroy() error
}

type backend struct {
	ext  string
	open func(cfg Config) (runner, error)
}

var backends = map[string]backend{
	BackendOnnx:   {ext: ".onnx", open: newOnnxRunner},
	BackendTflite: {ext: ".tflite", open: newTfliteRunner},
}

func StateName(state int) string {
	switch state {
	case UNREGISTERED:
		return "unregistered"
	case REGISTERED:
		return "registered"
	case IDLE:
		return "idle"
	case BUSY:
		return "busy"
	}
	return "unknown"
}

func hasExt(path, ext string) bool {
	return strings.EqualFold(filepath.Ext(path), ext)
}
