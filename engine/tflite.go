package engine

import (
	"errors"
	"fmt"

	iface "FaceStabilityServer/interface"

	"github.com/mattn/go-tflite"
)

type tfliteRunner struct {
	model   *tflite.Model
	options *tflite.InterpreterOptions
	interp  *tflite.Interpreter
}

func newTfliteRunner(cfg Config) (runner, error) {
	model := tflite.NewModelFromFile(cfg.ModelPath)
	if model == nil {
		return nil, fmt.Errorf("cannot load model %s", cfg.ModelPath)
	}
	options := tflite.NewInterpreterOptions()
	if cfg.NumThreads > 0 {
		options.SetNumThread(cfg.NumThreads)
	}
	r := &tfliteRunner{model: model, options: options}
	r.interp = tflite.NewInterpreter(model, options)
	if r.interp == nil {
		r.destroy()
		return nil, errors.New("cannot create interpreter")
	}
	if status := r.interp.AllocateTensors(); status != tflite.OK {
		r.destroy()
		return nil, fmt.Errorf("allocate tensors: status %d", status)
	}
	if size := r.interp.GetInputTensor(0).ByteSize(); size != iface.TensorBytes {
		r.destroy()
		return nil, fmt.Errorf("model input is %d bytes, expected %d", size, iface.TensorBytes)
	}
	return r, nil
}

// run hands the model the tensor's native-order byte buffer.
func (r *tfliteRunner) run(input iface.InputTensor) (float32, error) {
	if status := r.interp.GetInputTensor(0).CopyFromBuffer(input.Bytes()); status != tflite.OK {
		return 0, fmt.Errorf("tflite input copy: status %d", status)
	}
	if status := r.interp.Invoke(); status != tflite.OK {
		return 0, fmt.Errorf("tflite invoke: status %d", status)
	}
	out := r.interp.GetOutputTensor(0).Float32s()
	if len(out) == 0 {
		return 0, errors.New("tflite invoke: empty output")
	}
	return out[0], nil
}

func (r *tfliteRunner) destroy() error {
	if r.interp != nil {
		r.interp.Delete()
		r.interp = nil
	}
	if r.options != nil {
		r.options.Delete()
		r.options = nil
	}
	if r.model != nil {
		r.model.Delete()
		r.model = nil
	}
	return nil
}
