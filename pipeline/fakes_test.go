package pipeline

import (
	"context"
	"errors"
	"sync"

	iface "FaceStabilityServer/interface"
)

type fakeDetector struct {
	mu      sync.Mutex
	faces   []iface.Face
	err     error
	started chan struct{}
	release chan struct{}
	honour  bool
	closed  int
}

func (d *fakeDetector) Detect(ctx context.Context, frame iface.Frame) ([]iface.Face, error) {
	if d.started != nil {
		close(d.started)
	}
	if d.release != nil {
		if d.honour {
			select {
			case <-d.release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		} else {
			<-d.release
		}
	}
	return d.faces, d.err
}

func (d *fakeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed++
	if d.closed > 1 {
		return iface.ErrAlreadyReleased
	}
	return nil
}

func (d *fakeDetector) closeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// fakeEngine returns scores in order, or the error at the same index.
type fakeEngine struct {
	mu     sync.Mutex
	scores []float32
	errs   map[int]error
	panics map[int]bool
	calls  int
	inputs []iface.InputTensor
	closed int
}

func (e *fakeEngine) Infer(input iface.InputTensor) (float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.calls
	e.calls++
	e.inputs = append(e.inputs, input)
	if e.panics[i] {
		panic("native inference crashed")
	}
	if err := e.errs[i]; err != nil {
		return 0, err
	}
	if i >= len(e.scores) {
		return 0, errors.New("no score scripted")
	}
	return e.scores[i], nil
}

func (e *fakeEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed++
	if e.closed > 1 {
		return iface.ErrAlreadyReleased
	}
	return nil
}

func (e *fakeEngine) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func (e *fakeEngine) closeCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

type fakeOverlay struct {
	mu       sync.Mutex
	size     iface.Size
	calls    []string
	graphics []iface.Graphic
}

func (o *fakeOverlay) Size() iface.Size { return o.size }

func (o *fakeOverlay) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, "clear")
	o.graphics = nil
}

func (o *fakeOverlay) Add(g iface.Graphic) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, "add")
	o.graphics = append(o.graphics, g)
}

func (o *fakeOverlay) RequestRedraw() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, "redraw")
}

func (o *fakeOverlay) history() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.calls...)
}

type memRecorder struct {
	mu    sync.Mutex
	lines []iface.Record
	err   error
}

func (r *memRecorder) Append(label iface.Label, score float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.lines = append(r.lines, iface.Record{Label: label, Score: score})
	return nil
}
