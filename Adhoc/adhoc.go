package Adhoc

import (
	"context"
	"fmt"
	"net"
	"time"

	"FaceStabilityServer/logger"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	OnnxInstance   = 0x2001
	TfliteInstance = 0x2002
	TimeOutSeconds = 5
)

type RegisterRequest struct {
	Id            string `json:"id"`
	IP            string `json:"ip"`
	Port          int    `json:"port"`
	HTTPPort      int    `json:"httpPort"`
	InstanceClass int    `json:"instanceClass"`
	Service       string `json:"service"`
	TimeStamp     int64  `json:"timestamp"`
}

type RegisterResponse struct {
	Id      string `json:"id"`
	Success bool   `json:"success"`
}

type RegServerConfig struct {
	Port int
	Addr string
}

func (reg *RegServerConfig) SetAddress(addr string, port int) {
	reg.Addr = addr
	reg.Port = port
}

func (reg RegServerConfig) URL() string {
	return fmt.Sprintf("http://%s:%d/api/register", reg.Addr, reg.Port)
}

// InstanceClassFor maps an engine backend name to the class announced to the
// registry.
func InstanceClassFor(backend string) int {
	if backend == "onnx" {
		return OnnxInstance
	}
	return TfliteInstance
}

// GetOutboundIP returns the local address used to reach the internet. No
// packet is sent.
func GetOutboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}

// Heartbeat announces this analyzer node to a registry server.
type Heartbeat struct {
	URL      string
	Interval time.Duration
	Node     RegisterRequest

	client *resty.Client
	log    *zap.Logger
}

func NewHeartbeat(reg RegServerConfig, node RegisterRequest, interval time.Duration, log *zap.Logger) *Heartbeat {
	if log == nil {
		log = logger.Log()
	}
	if interval <= 0 {
		interval = TimeOutSeconds * time.Second
	}
	if node.Id == "" {
		node.Id = uuid.NewString()
	}
	if node.Service == "" {
		node.Service = "face-stability"
	}
	return &Heartbeat{
		URL:      reg.URL(),
		Interval: interval,
		Node:     node,
		client:   resty.New().SetTimeout(TimeOutSeconds * time.Second),
		log:      log,
	}
}

// Beat sends one registration.
func (h *Heartbeat) Beat(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("heartbeat panic recovered: %v", r)
		}
	}()
	var respBody RegisterResponse
	req := h.Node
	req.TimeStamp = time.Now().Unix()
	resp, err := h.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&respBody).
		Post(h.URL)
	if err != nil {
		return fmt.Errorf("request error: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("server returned error: %s, body: %s", resp.Status(), resp.String())
	}
	if !respBody.Success {
		return fmt.Errorf("registry rejected node %s", h.Node.Id)
	}
	return nil
}

// Run beats immediately and then every Interval until ctx is done.
func (h *Heartbeat) Run(ctx context.Context) {
	ticker := time.NewTicker(h.Interval)
	defer ticker.Stop()
	beat := func() {
		if err := h.Beat(ctx); err != nil && ctx.Err() == nil {
			h.log.Error("Heartbeat failed", zap.String("url", h.URL), zap.Error(err))
		}
	}
	beat()
	for {
		select {
		case <-ctx.Done():
			h.log.Info("Heartbeat context cancelled, exiting")
			return
		case <-ticker.C:
			beat()
		}
	}
}
