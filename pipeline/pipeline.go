// Package pipeline classifies the faces of each camera frame as Stable or
// Unstable, draws them on the overlay and records every decision.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"FaceStabilityServer/graphic"
	iface "FaceStabilityServer/interface"
	"FaceStabilityServer/mapper"
	"FaceStabilityServer/monitor"
	"FaceStabilityServer/recorder"
	"FaceStabilityServer/tensor"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Options struct {
	// OpenDetector and OpenEngine acquire the two model handles. Both are
	// required; if the engine cannot be opened the detector is released again.
	OpenDetector func() (iface.Detector, error)
	OpenEngine   func() (iface.Engine, error)

	Overlay  iface.OverlaySink
	Recorder iface.Recorder
	// Failures receives detection failures. Optional.
	Failures iface.FailureSink
	Metrics  *monitor.Metrics
	Log      *zap.Logger
}

// FrameResult is delivered once per Analyze call.
type FrameResult struct {
	FrameID  string              `json:"frameId"`
	Faces    int                 `json:"faces"`
	Records  []iface.Record      `json:"records"`
	Graphics []iface.GraphicInfo `json:"graphics"`
	Skipped  int                 `json:"skipped"`
	Err      error               `json:"-"`
}

type Pipeline struct {
	mu    sync.Mutex
	state State

	detector iface.Detector
	engine   iface.Engine
	overlay  iface.OverlaySink
	recorder iface.Recorder
	failures iface.FailureSink
	metrics  *monitor.Metrics
	log      *zap.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup
}

// New acquires the detector and the engine. It either returns a ready
// pipeline or releases whatever it had acquired.
func New(opts Options) (*Pipeline, error) {
	if opts.OpenDetector == nil || opts.OpenEngine == nil {
		return nil, errors.New("pipeline needs a detector and an engine")
	}
	if opts.Overlay == nil || opts.Recorder == nil {
		return nil, errors.New("pipeline needs an overlay and a recorder")
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}

	det, err := opts.OpenDetector()
	if err != nil {
		return nil, fmt.Errorf("open detector: %w", err)
	}
	eng, err := opts.OpenEngine()
	if err != nil {
		if cerr := safeClose(det.Close); cerr != nil {
			log.Error("Resource release failed", zap.Error(&ResourceReleaseError{Resource: "detector", Err: cerr}))
		}
		return nil, fmt.Errorf("open engine: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pipeline{
		state:    Idle,
		detector: det,
		engine:   eng,
		overlay:  opts.Overlay,
		recorder: opts.Recorder,
		failures: opts.Failures,
		metrics:  opts.Metrics,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
	log.Info("Pipeline ready")
	return p, nil
}

func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Analyze starts processing frame and returns a channel that delivers
// exactly one FrameResult. Only one frame may be in flight; a second one is
// answered with ErrBusy. The frame must stay valid until the result arrives.
func (p *Pipeline) Analyze(ctx context.Context, frame iface.Frame) <-chan FrameResult {
	out := make(chan FrameResult, 1)
	frameID := uuid.NewString()

	p.mu.Lock()
	switch p.state {
	case Stopped:
		p.mu.Unlock()
		out <- FrameResult{FrameID: frameID, Err: ErrStopped}
		close(out)
		return out
	case AwaitingDetection, ProcessingFaces:
		p.mu.Unlock()
		out <- FrameResult{FrameID: frameID, Err: ErrBusy}
		close(out)
		return out
	}
	p.state = AwaitingDetection
	p.inflight.Add(1)
	p.mu.Unlock()
	p.metrics.FrameAnalyzed()

	go func() {
		res := p.run(ctx, frameID, frame)
		p.inflight.Done()

		var df *DetectionFailure
		if errors.As(res.Err, &df) && p.failures != nil {
			p.failures.OnFailure(df)
		}
		out <- res
		close(out)
	}()
	return out
}

// Process is Analyze for callers that want to block.
func (p *Pipeline) Process(ctx context.Context, frame iface.Frame) (FrameResult, error) {
	res := <-p.Analyze(ctx, frame)
	return res, res.Err
}

func (p *Pipeline) run(ctx context.Context, frameID string, frame iface.Frame) FrameResult {
	dctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(p.ctx, cancel)
	defer stop()

	faces, err := p.detector.Detect(dctx, frame)

	p.mu.Lock()
	if p.state == Stopped {
		p.mu.Unlock()
		p.log.Debug("Discarding detection result after shutdown", zap.String("frameId", frameID))
		return FrameResult{FrameID: frameID, Err: ErrStopped}
	}
	if err != nil {
		p.state = Idle
		p.mu.Unlock()
		p.metrics.DetectionFailed()
		fail := &DetectionFailure{FrameID: frameID, Err: err}
		p.log.Error("Face detection failed", zap.String("frameId", frameID), zap.Error(err))
		return FrameResult{FrameID: frameID, Err: fail}
	}
	p.state = ProcessingFaces
	p.mu.Unlock()

	res := p.processFaces(frameID, frame, faces)

	p.mu.Lock()
	if p.state == ProcessingFaces {
		p.state = Idle
	}
	p.mu.Unlock()
	return res
}

// processFaces runs every face through map, extract, preprocess, infer and
// classify in detector order, then replaces the overlay contents.
func (p *Pipeline) processFaces(frameID string, frame iface.Frame, faces []iface.Face) FrameResult {
	res := FrameResult{FrameID: frameID, Faces: len(faces)}
	overlaySize := p.overlay.Size()
	sourceSize := frame.EffectiveSize()
	graphics := make([]iface.Graphic, 0, len(faces))

	for i, face := range faces {
		g, rec, ok := p.processFace(frameID, i, face, overlaySize, sourceSize)
		if !ok {
			res.Skipped++
			continue
		}
		res.Records = append(res.Records, rec)
		res.Graphics = append(res.Graphics, g.Describe())
		graphics = append(graphics, g)
	}

	p.overlay.Clear()
	for _, g := range graphics {
		p.overlay.Add(g)
	}
	p.overlay.RequestRedraw()
	return res
}

// processFace classifies one face. ok is false when the face is skipped; a
// panic while handling it only skips that face.
func (p *Pipeline) processFace(frameID string, i int, face iface.Face, overlaySize, sourceSize iface.Size) (g *graphic.Rectangle, rec iface.Record, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p.metrics.FaceSkipped("panic")
			p.log.Error("Face skipped", zap.String("frameId", frameID), zap.Int("face", i),
				zap.Any("panic", r))
			g, rec, ok = nil, iface.Record{}, false
		}
	}()

	rect := mapper.ForFrame(overlaySize, sourceSize, face.Box)
	g = graphic.NewRectangle(face, rect)

	// the region is captured before the label exists
	region, err := g.Bitmap()
	if err != nil {
		p.metrics.FaceSkipped("invalid_region")
		p.log.Warn("Face skipped", zap.String("frameId", frameID), zap.Int("face", i), zap.Error(err))
		return nil, iface.Record{}, false
	}
	input := tensor.ToTensor(region)

	start := time.Now()
	score, err := p.engine.Infer(input)
	p.metrics.ObserveInference(time.Since(start))
	if err != nil {
		p.metrics.FaceSkipped("inference")
		p.log.Warn("Face skipped", zap.String("frameId", frameID),
			zap.Error(&InferenceFailure{Index: i, Err: err}))
		return nil, iface.Record{}, false
	}

	label := iface.Classify(score)
	g.SetLabel(label)
	p.log.Debug("Face classified", zap.String("frameId", frameID), zap.Int("face", i),
		zap.String("label", string(label)), zap.Float32("score", score))

	if err := p.record(frameID, label, score); err != nil {
		p.metrics.RecordFailed()
		p.log.Warn("Record write failed", zap.String("frameId", frameID),
			zap.Error(&RecordWriteFailure{Label: label, Score: score, Err: err}))
	}
	p.metrics.FaceClassified(label)
	return g, iface.Record{Label: label, Score: score}, true
}

func (p *Pipeline) record(frameID string, label iface.Label, score float32) error {
	if fr, ok := p.recorder.(recorder.FrameRecorder); ok {
		return fr.AppendFrame(frameID, label, score)
	}
	return p.recorder.Append(label, score)
}

// Shutdown stops the pipeline, waits for an in-flight frame to settle and
// releases the detector and the engine. Release failures, including a second
// Shutdown finding the handles already released, are logged and swallowed.
func (p *Pipeline) Shutdown() {
	p.mu.Lock()
	first := p.state != Stopped
	p.state = Stopped
	p.mu.Unlock()
	if first {
		p.log.Info("Pipeline stopping")
		p.cancel()
	}
	p.inflight.Wait()

	p.release("detector", p.detector.Close)
	p.release("engine", p.engine.Close)
}

func (p *Pipeline) release(name string, closeFn func() error) {
	if err := safeClose(closeFn); err != nil {
		p.log.Error("Resource release failed", zap.Error(&ResourceReleaseError{Resource: name, Err: err}))
	}
}

func safeClose(closeFn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic recovered: %v", r)
		}
	}()
	return closeFn()
}
