package capture

import (
	"context"
	"image"
	"io"
	"sync"
	"testing"
	"time"

	iface "FaceStabilityServer/interface"
	"FaceStabilityServer/monitor"
	"FaceStabilityServer/pipeline"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sliceSource yields n frames as fast as they are asked for.
type sliceSource struct {
	n int
	i int
}

func (s *sliceSource) Next(ctx context.Context) (iface.Frame, error) {
	if s.i >= s.n {
		return iface.Frame{}, io.EOF
	}
	s.i++
	return iface.Frame{Image: image.NewRGBA(image.Rect(0, 0, 4, 4))}, nil
}

func (s *sliceSource) Close() error { return nil }

type gatedAnalyzer struct {
	mu    sync.Mutex
	calls int
	gate  chan struct{}
}

func (a *gatedAnalyzer) Analyze(ctx context.Context, frame iface.Frame) <-chan pipeline.FrameResult {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
	out := make(chan pipeline.FrameResult, 1)
	go func() {
		<-a.gate
		out <- pipeline.FrameResult{FrameID: "f"}
		close(out)
	}()
	return out
}

func TestLoopDropsWhileBusy(t *testing.T) {
	gate := make(chan struct{})
	an := &gatedAnalyzer{gate: gate}
	metrics := monitor.NewMetrics()
	loop := NewLoop(&sliceSource{n: 5}, an, nil, metrics)

	var results []pipeline.FrameResult
	var mu sync.Mutex
	loop.OnResult = func(r pipeline.FrameResult) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}

	done := make(chan error)
	go func() { done <- loop.Run(context.Background()) }()

	// the source drains before the gate opens, so frames 2..5 are dropped
	require.Eventually(t, func() bool { return loop.Dropped() == 4 }, time.Second, time.Millisecond)
	close(gate)
	require.NoError(t, <-done)

	assert.Equal(t, 1, an.calls)
	assert.Equal(t, int64(1), loop.Analyzed())
	assert.Len(t, results, 1)
	assert.Equal(t, 4.0, testutil.ToFloat64(metrics.Dropped))
}

func TestLoopSequential(t *testing.T) {
	gate := make(chan struct{})
	close(gate)
	an := &gatedAnalyzer{gate: gate}
	src := &blockingSource{frames: 3}
	loop := NewLoop(src, an, nil, nil)
	loop.OnResult = func(pipeline.FrameResult) { src.next <- struct{}{} }
	src.next = make(chan struct{}, 1)
	src.next <- struct{}{}

	require.NoError(t, loop.Run(context.Background()))
	assert.Equal(t, 3, an.calls)
	assert.Equal(t, int64(0), loop.Dropped())
}

// blockingSource hands out a frame only after the previous result arrived.
type blockingSource struct {
	frames int
	next   chan struct{}
}

func (s *blockingSource) Next(ctx context.Context) (iface.Frame, error) {
	if s.frames == 0 {
		return iface.Frame{}, io.EOF
	}
	select {
	case <-s.next:
	case <-ctx.Done():
		return iface.Frame{}, ctx.Err()
	}
	s.frames--
	return iface.Frame{Image: image.NewRGBA(image.Rect(0, 0, 4, 4))}, nil
}

func (s *blockingSource) Close() error { return nil }
