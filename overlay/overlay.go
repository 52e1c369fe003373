// Package overlay holds the graphics shown over the camera preview.
package overlay

import (
	"image"
	"sync"

	iface "FaceStabilityServer/interface"

	"go.uber.org/zap"
)

type Snapshot struct {
	Generation uint64              `json:"generation"`
	Size       iface.Size          `json:"size"`
	Graphics   []iface.GraphicInfo `json:"graphics"`
}

// Overlay collects the graphics of the frame being processed and publishes
// them as a whole on RequestRedraw. Readers only ever see a complete frame.
type Overlay struct {
	mu         sync.RWMutex
	size       iface.Size
	pending    []iface.Graphic
	shown      []iface.Graphic
	generation uint64

	lmu       sync.Mutex
	nextID    int
	listeners map[int]func(Snapshot)

	log *zap.Logger
}

func New(width, height int, log *zap.Logger) *Overlay {
	if log == nil {
		log = zap.NewNop()
	}
	return &Overlay{
		size:      iface.Size{Width: width, Height: height},
		listeners: make(map[int]func(Snapshot)),
		log:       log,
	}
}

func (o *Overlay) Size() iface.Size {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.size
}

// Resize changes the display size used for subsequent frames.
func (o *Overlay) Resize(width, height int) {
	o.mu.Lock()
	o.size = iface.Size{Width: width, Height: height}
	o.mu.Unlock()
	o.log.Info("Overlay resized", zap.Int("width", width), zap.Int("height", height))
}

func (o *Overlay) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending = o.pending[:0:0]
}

func (o *Overlay) Add(g iface.Graphic) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending = append(o.pending, g)
}

// RequestRedraw publishes the pending graphics and notifies listeners.
func (o *Overlay) RequestRedraw() {
	o.mu.Lock()
	o.shown = append([]iface.Graphic(nil), o.pending...)
	o.generation++
	snap := o.snapshotLocked()
	o.mu.Unlock()

	o.log.Debug("Overlay redraw", zap.Uint64("generation", snap.Generation), zap.Int("graphics", len(snap.Graphics)))

	o.lmu.Lock()
	fns := make([]func(Snapshot), 0, len(o.listeners))
	for _, fn := range o.listeners {
		fns = append(fns, fn)
	}
	o.lmu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

// OnRedraw registers fn to be called after every redraw. The returned func
// removes it.
func (o *Overlay) OnRedraw(fn func(Snapshot)) func() {
	o.lmu.Lock()
	defer o.lmu.Unlock()
	id := o.nextID
	o.nextID++
	o.listeners[id] = fn
	return func() {
		o.lmu.Lock()
		defer o.lmu.Unlock()
		delete(o.listeners, id)
	}
}

func (o *Overlay) Snapshot() Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.snapshotLocked()
}

func (o *Overlay) snapshotLocked() Snapshot {
	infos := make([]iface.GraphicInfo, 0, len(o.shown))
	for _, g := range o.shown {
		infos = append(infos, g.Describe())
	}
	return Snapshot{Generation: o.generation, Size: o.size, Graphics: infos}
}

// Render draws the published graphics on a transparent canvas of the
// overlay size.
func (o *Overlay) Render() *image.RGBA {
	o.mu.RLock()
	defer o.mu.RUnlock()
	img := image.NewRGBA(image.Rect(0, 0, o.size.Width, o.size.Height))
	for _, g := range o.shown {
		g.Draw(img)
	}
	return img
}
