package detector

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"strconv"
	"sync/atomic"
	"time"

	iface "FaceStabilityServer/interface"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const defaultTimeoutSeconds = 5

type remoteFace struct {
	Left       int  `json:"left"`
	Top        int  `json:"top"`
	Right      int  `json:"right"`
	Bottom     int  `json:"bottom"`
	TrackingID *int `json:"tracking_id,omitempty"`
}

type remoteResponse struct {
	Faces []remoteFace `json:"faces"`
}

// Remote posts each frame as JPEG to an HTTP detection service. The service
// receives the buffer as captured plus its rotation and answers with boxes in
// upright image space.
type Remote struct {
	url    string
	client *resty.Client
	closed atomic.Bool
	log    *zap.Logger
}

func NewRemote(cfg Config, log *zap.Logger) (*Remote, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.RemoteURL == "" {
		return nil, fmt.Errorf("remote detector url is empty")
	}
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = defaultTimeoutSeconds
	}
	client := resty.New().SetTimeout(time.Duration(timeout) * time.Second)
	return &Remote{url: cfg.RemoteURL, client: client, log: log}, nil
}

func (r *Remote) Detect(ctx context.Context, frame iface.Frame) ([]iface.Face, error) {
	if r.closed.Load() {
		return nil, iface.ErrAlreadyReleased
	}
	if frame.Image == nil {
		return nil, fmt.Errorf("frame has no image")
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame.Image, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	var body remoteResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetFileReader("image", "frame.jpg", &buf).
		SetFormData(map[string]string{"rotation": strconv.Itoa(frame.Rotation)}).
		SetResult(&body).
		Post(r.url)
	if err != nil {
		return nil, fmt.Errorf("request error: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("server returned error: %s, body: %s", resp.Status(), resp.String())
	}

	faces := make([]iface.Face, 0, len(body.Faces))
	for _, f := range body.Faces {
		faces = append(faces, iface.Face{
			Box:        iface.Box{Left: f.Left, Top: f.Top, Right: f.Right, Bottom: f.Bottom},
			TrackingID: f.TrackingID,
		})
	}
	r.log.Debug("Remote detection", zap.Int("faces", len(faces)), zap.Duration("took", resp.Time()))
	return faces, nil
}

func (r *Remote) Close() error {
	if r.closed.Swap(true) {
		return iface.ErrAlreadyReleased
	}
	r.client.SetCloseConnection(true)
	return nil
}
