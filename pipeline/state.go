package pipeline

type State int32

const (
	Idle State = iota
	AwaitingDetection
	ProcessingFaces
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingDetection:
		return "awaiting_detection"
	case ProcessingFaces:
		return "processing_faces"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}
