package engine

import (
	"errors"
	"fmt"

	iface "FaceStabilityServer/interface"

	ort "github.com/yalue/onnxruntime_go"
)

type onnxRunner struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

func initOnnxEnvironment(libPath string) error {
	if ort.IsInitialized() {
		return nil
	}
	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	return ort.InitializeEnvironment()
}

func newOnnxRunner(cfg Config) (runner, error) {
	if err := initOnnxEnvironment(cfg.SharedLibraryPath); err != nil {
		return nil, fmt.Errorf("init onnxruntime: %w", err)
	}
	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("io info: %w", err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return nil, fmt.Errorf("unexpected io (in:%d out:%d)", len(inputs), len(outputs))
	}

	input, err := ort.NewTensor(ort.NewShape(1, iface.TensorSize, iface.TensorSize, iface.TensorChannels), make([]float32, iface.TensorLen))
	if err != nil {
		return nil, err
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		_ = input.Destroy()
		return nil, err
	}
	options, err := ort.NewSessionOptions()
	if err != nil {
		_ = input.Destroy()
		_ = output.Destroy()
		return nil, err
	}
	defer options.Destroy()
	if cfg.NumThreads > 0 {
		_ = options.SetIntraOpNumThreads(cfg.NumThreads)
	}

	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{inputs[0].Name}, []string{outputs[0].Name},
		[]ort.Value{input}, []ort.Value{output}, options)
	if err != nil {
		_ = input.Destroy()
		_ = output.Destroy()
		return nil, err
	}
	return &onnxRunner{session: session, input: input, output: output}, nil
}

func (r *onnxRunner) run(input iface.InputTensor) (float32, error) {
	copy(r.input.GetData(), input.Data)
	if err := r.session.Run(); err != nil {
		return 0, fmt.Errorf("onnx run: %w", err)
	}
	out := r.output.GetData()
	if len(out) == 0 {
		return 0, errors.New("onnx run: empty output")
	}
	return out[0], nil
}

func (r *onnxRunner) destroy() error {
	return errors.Join(r.session.Destroy(), r.input.Destroy(), r.output.Destroy())
}
