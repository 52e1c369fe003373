package pipeline

import (
	"errors"
	"fmt"

	iface "FaceStabilityServer/interface"
)

var (
	ErrStopped = errors.New("pipeline stopped")
	ErrBusy    = errors.New("pipeline busy: a frame is already in flight")
)

// DetectionFailure is reported to the failure sink when a frame's detection
// request fails. The frame leaves the overlay and the log untouched.
type DetectionFailure struct {
	FrameID string
	Err     error
}

func (e *DetectionFailure) Error() string {
	return fmt.Sprintf("detection failed for frame %s: %v", e.FrameID, e.Err)
}

func (e *DetectionFailure) Unwrap() error { return e.Err }

// InferenceFailure skips one face whose model evaluation failed.
type InferenceFailure struct {
	Index int
	Err   error
}

func (e *InferenceFailure) Error() string {
	return fmt.Sprintf("inference failed for face %d: %v", e.Index, e.Err)
}

func (e *InferenceFailure) Unwrap() error { return e.Err }

// RecordWriteFailure loses the persisted record of one classified face. The
// face is still shown on the overlay.
type RecordWriteFailure struct {
	Label iface.Label
	Score float32
	Err   error
}

func (e *RecordWriteFailure) Error() string {
	return fmt.Sprintf("record %s,%v not written: %v", e.Label, e.Score, e.Err)
}

func (e *RecordWriteFailure) Unwrap() error { return e.Err }

type ResourceReleaseError struct {
	Resource string
	Err      error
}

func (e *ResourceReleaseError) Error() string {
	return fmt.Sprintf("release %s: %v", e.Resource, e.Err)
}

func (e *ResourceReleaseError) Unwrap() error { return e.Err }
