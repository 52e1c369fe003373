// Package engine runs the face stability model on onnxruntime or TFLite.
package engine

import (
	"fmt"
	"sync"
	"sync/atomic"

	iface "FaceStabilityServer/interface"

	"go.uber.org/zap"
)

// Engine owns one loaded model. It is not safe for concurrent inference: a
// second Infer while one is running fails with ErrBusy.
type Engine struct {
	mu     sync.Mutex
	state  atomic.Int32
	cfg    Config
	runner runner
	log    *zap.Logger
}

// Open loads the model described by cfg.
func Open(cfg Config, log *zap.Logger) (*Engine, error) {
	e := New(log)
	if err := e.LoadModel(cfg); err != nil {
		return nil, err
	}
	return e, nil
}

func New(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{log: log}
	e.state.Store(REGISTERED)
	return e
}

func (e *Engine) LoadModel(cfg Config) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.State() != REGISTERED {
		return fmt.Errorf("engine is %s, cannot load model", StateName(e.State()))
	}
	b, ok := backends[cfg.Backend]
	if !ok {
		return fmt.Errorf("unsupported backend: %s", cfg.Backend)
	}
	if !hasExt(cfg.ModelPath, b.ext) {
		return fmt.Errorf("%s backend only supports %s models, got %q", cfg.Backend, b.ext, cfg.ModelPath)
	}
	r, err := b.open(cfg)
	if err != nil {
		return fmt.Errorf("load %s model %s: %w", cfg.Backend, cfg.ModelPath, err)
	}
	e.cfg = cfg
	e.runner = r
	e.state.Store(IDLE)
	e.log.Info("Stability model loaded",
		zap.String("backend", cfg.Backend),
		zap.String("modelPath", cfg.ModelPath),
		zap.Int("numThreads", cfg.NumThreads))
	return nil
}

func (e *Engine) State() int { return int(e.state.Load()) }

func (e *Engine) CheckConfig() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// Infer returns the model's scalar output for input.
func (e *Engine) Infer(input iface.InputTensor) (float32, error) {
	if !e.mu.TryLock() {
		return 0, ErrBusy
	}
	defer e.mu.Unlock()
	switch e.State() {
	case UNREGISTERED:
		return 0, iface.ErrAlreadyReleased
	case REGISTERED:
		return 0, ErrNotLoaded
	}
	if len(input.Data) != iface.TensorLen {
		return 0, fmt.Errorf("input has %d values, model expects %d", len(input.Data), iface.TensorLen)
	}
	e.state.Store(BUSY)
	defer e.state.Store(IDLE)
	return e.runner.run(input)
}

// Close releases the runtime handles. A second call returns
// iface.ErrAlreadyReleased.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.State() == UNREGISTERED {
		return iface.ErrAlreadyReleased
	}
	var err error
	if e.runner != nil {
		err = e.runner.destroy()
	}
	e.runner = nil
	e.cfg = Config{}
	e.state.Store(UNREGISTERED)
	return err
}
