package web

import (
	"net/http"
	"sync"

	"FaceStabilityServer/overlay"
	"FaceStabilityServer/pipeline"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type wsMessage struct {
	Type    string                `json:"type"`
	Overlay *overlay.Snapshot     `json:"overlay,omitempty"`
	Result  *pipeline.FrameResult `json:"result,omitempty"`
	Error   string                `json:"error,omitempty"`
}

// overlayStream pushes an overlay snapshot after every redraw. Text messages
// from the client are base64 frames to analyze; each gets a result reply.
func (s *Server) overlayStream(c *gin.Context) {
	rotation, err := rotationParam(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	conn.SetReadLimit(20 * 1024 * 1024)

	var wmu sync.Mutex
	send := func(m wsMessage) error {
		wmu.Lock()
		defer wmu.Unlock()
		return conn.WriteJSON(m)
	}

	// keep only the newest snapshot for a slow client
	updates := make(chan overlay.Snapshot, 1)
	remove := s.View.OnRedraw(func(snap overlay.Snapshot) {
		select {
		case <-updates:
		default:
		}
		select {
		case updates <- snap:
		default:
		}
	})
	defer remove()

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			case snap := <-updates:
				if err := send(wsMessage{Type: "overlay", Overlay: &snap}); err != nil {
					return
				}
			}
		}
	}()

	first := s.View.Snapshot()
	if err := send(wsMessage{Type: "overlay", Overlay: &first}); err != nil {
		return
	}

	ctx := c.Request.Context()
	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			s.Log.Debug("Overlay stream closed", zap.Error(err))
			return
		}
		if mt != websocket.TextMessage {
			_ = send(wsMessage{Type: "error", Error: "unsupported message type"})
			continue
		}
		frame, err := s.DecodeBase64(string(msg), rotation)
		if err != nil {
			_ = send(wsMessage{Type: "error", Error: "invalid image: " + err.Error()})
			continue
		}
		res, err := s.Analyzer.Process(ctx, frame)
		if err != nil {
			_ = send(wsMessage{Type: "error", Error: err.Error()})
			continue
		}
		_ = send(wsMessage{Type: "result", Result: &res})
	}
}
