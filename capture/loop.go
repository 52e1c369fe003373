package capture

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	iface "FaceStabilityServer/interface"
	"FaceStabilityServer/monitor"
	"FaceStabilityServer/pipeline"

	"go.uber.org/zap"
)

type Analyzer interface {
	Analyze(ctx context.Context, frame iface.Frame) <-chan pipeline.FrameResult
}

// Loop pulls frames from a source and hands them to the analyzer, keeping
// at most one analysis in flight. Frames arriving meanwhile are dropped.
type Loop struct {
	src      Source
	analyzer Analyzer
	log      *zap.Logger
	metrics  *monitor.Metrics

	// OnResult, if set, receives every analysis result.
	OnResult func(pipeline.FrameResult)

	busy     atomic.Bool
	dropped  atomic.Int64
	analyzed atomic.Int64
	wg       sync.WaitGroup
}

func NewLoop(src Source, analyzer Analyzer, log *zap.Logger, metrics *monitor.Metrics) *Loop {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loop{src: src, analyzer: analyzer, log: log, metrics: metrics}
}

func (l *Loop) Dropped() int64  { return l.dropped.Load() }
func (l *Loop) Analyzed() int64 { return l.analyzed.Load() }

// Run reads until ctx is done or the source ends, then waits for the last
// analysis to finish.
func (l *Loop) Run(ctx context.Context) error {
	defer l.wg.Wait()
	for {
		frame, err := l.src.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				l.log.Info("Capture loop finished",
					zap.Int64("analyzed", l.analyzed.Load()), zap.Int64("dropped", l.dropped.Load()))
				return nil
			}
			return err
		}
		if !l.busy.CompareAndSwap(false, true) {
			l.dropped.Add(1)
			l.metrics.FrameDropped()
			continue
		}
		results := l.analyzer.Analyze(ctx, frame)
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			res := <-results
			l.analyzed.Add(1)
			l.busy.Store(false)
			if res.Err != nil && !errors.Is(res.Err, pipeline.ErrStopped) {
				l.log.Debug("Frame analysis failed", zap.String("frameId", res.FrameID), zap.Error(res.Err))
			}
			if l.OnResult != nil {
				l.OnResult(res)
			}
		}()
	}
}
