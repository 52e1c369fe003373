package Adhoc

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registry struct {
	mu    sync.Mutex
	reqs  []RegisterRequest
	allow bool
}

func (r *registry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.URL.Path != "/api/register" {
		http.NotFound(w, req)
		return
	}
	var body RegisterRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	r.mu.Lock()
	r.reqs = append(r.reqs, body)
	allow := r.allow
	r.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(RegisterResponse{Id: body.Id, Success: allow})
}

func (r *registry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reqs)
}

func regConfig(t *testing.T, srv *httptest.Server) RegServerConfig {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	cfg := RegServerConfig{}
	cfg.SetAddress(host, port)
	return cfg
}

func TestHeartbeat_All(t *testing.T) {
	reg := &registry{allow: true}
	srv := httptest.NewServer(reg)
	defer srv.Close()

	hb := NewHeartbeat(regConfig(t, srv), RegisterRequest{IP: "10.0.0.7", Port: 50051, HTTPPort: 8080, InstanceClass: InstanceClassFor("onnx")}, 20*time.Millisecond, nil)

	t.Run("Test Beat", func(t *testing.T) {
		require.NoError(t, hb.Beat(context.Background()))
		require.Equal(t, 1, reg.count())
		got := reg.reqs[0]
		assert.NotEmpty(t, got.Id)
		assert.Equal(t, "10.0.0.7", got.IP)
		assert.Equal(t, OnnxInstance, got.InstanceClass)
		assert.Equal(t, "face-stability", got.Service)
		assert.NotZero(t, got.TimeStamp)
	})

	t.Run("Test Run", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			hb.Run(ctx)
			close(done)
		}()
		require.Eventually(t, func() bool { return reg.count() >= 4 }, time.Second, 5*time.Millisecond)
		cancel()
		<-done
	})

	t.Run("Test rejected", func(t *testing.T) {
		reg.mu.Lock()
		reg.allow = false
		reg.mu.Unlock()
		assert.Error(t, hb.Beat(context.Background()))
	})
}

func TestHeartbeatUnreachable(t *testing.T) {
	hb := NewHeartbeat(RegServerConfig{Addr: "127.0.0.1", Port: 1}, RegisterRequest{}, 0, nil)
	assert.Equal(t, TimeOutSeconds*time.Second, hb.Interval)
	assert.Equal(t, TfliteInstance, InstanceClassFor("tflite"))
	assert.Error(t, hb.Beat(context.Background()))
}
