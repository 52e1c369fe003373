package recorder

import (
	"errors"

	iface "FaceStabilityServer/interface"
)

// FrameRecorder is implemented by recorders that can also store the id of
// the frame a record came from.
type FrameRecorder interface {
	iface.Recorder
	AppendFrame(frameID string, label iface.Label, score float32) error
}

type tee []iface.Recorder

// Tee writes every record to all of rs. Every recorder is tried even when
// an earlier one fails; the failures are joined.
func Tee(rs ...iface.Recorder) FrameRecorder {
	out := make(tee, 0, len(rs))
	for _, r := range rs {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (t tee) Append(label iface.Label, score float32) error {
	return t.AppendFrame("", label, score)
}

func (t tee) AppendFrame(frameID string, label iface.Label, score float32) error {
	var errs []error
	for _, r := range t {
		var err error
		if fr, ok := r.(FrameRecorder); ok {
			err = fr.AppendFrame(frameID, label, score)
		} else {
			err = r.Append(label, score)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
