package Adhoc

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serverConfig(t *testing.T, ts *httptest.Server) RegServerConfig {
	t.Helper()
	host, portStr, err := net.SplitHostPort(ts.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	cfg := RegServerConfig{}
	cfg.SetAddress(host, port)
	return cfg
}

func TestHeartbeat_SendOnce(t *testing.T) {
	var got RegisterRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/register", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(RegisterResponse{Id: got.Id, Success: true})
	}))
	defer ts.Close()

	hb := NewHeartbeat(serverConfig(t, ts), "10.0.0.2", 8080, "Ball", time.Second)
	hb.Detecting = func() bool { return true }

	resp, err := hb.SendOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, hb.Id, resp.Id)

	assert.Equal(t, "10.0.0.2", got.IP)
	assert.Equal(t, 8080, got.Port)
	assert.Equal(t, InstanceClass, got.InstanceClass)
	assert.Equal(t, "Ball", got.Label)
	assert.True(t, got.Detecting)
	assert.NotZero(t, got.TimeStamp)
}

func TestHeartbeat_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	hb := NewHeartbeat(serverConfig(t, ts), "127.0.0.1", 1, "x", time.Second)
	_, err := hb.SendOnce(context.Background())
	assert.ErrorContains(t, err, "503")
}

func TestHeartbeat_RunStopsOnCancel(t *testing.T) {
	var mu sync.Mutex
	hits := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	hb := NewHeartbeat(serverConfig(t, ts), "127.0.0.1", 1, "x", 20*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go hb.Run(ctx, &wg)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return hits >= 3
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	wg.Wait()
}

func TestHeartbeat_UnreachableIsNotFatal(t *testing.T) {
	cfg := RegServerConfig{}
	cfg.SetAddress("127.0.0.1", 1)
	hb := NewHeartbeat(cfg, "127.0.0.1", 1, "x", 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	var wg sync.WaitGroup
	wg.Add(1)
	hb.Run(ctx, &wg)
	wg.Wait()
}
