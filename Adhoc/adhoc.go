package Adhoc

import (
	"ColorDetServer/logger"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	InstanceClass         = "ColorDet"
	DefaultTimeOutSeconds = 5
)

type RegisterRequest struct {
	Id            string `json:"id"`
	IP            string `json:"ip"`
	Port          int    `json:"port"`
	InstanceClass string `json:"instanceClass"`
	TimeStamp     int64  `json:"timestamp"`
	Label         string `json:"label"`
	Detecting     bool   `json:"detecting"`
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

// Heartbeat 周期性向注册中心上报本实例地址以及当前是否锁定目标
type Heartbeat struct {
	Id        string
	IP        string
	Port      int
	Label     string
	Interval  time.Duration
	Detecting func() bool

	server RegServerConfig
	client *resty.Client
	log    *zap.Logger
}

func NewHeartbeat(server RegServerConfig, ip string, port int, label string, interval time.Duration) *Heartbeat {
	if interval <= 0 {
		interval = DefaultTimeOutSeconds * time.Second
	}
	return &Heartbeat{
		Id:       uuid.NewString(),
		IP:       ip,
		Port:     port,
		Label:    label,
		Interval: interval,
		server:   server,
		client:   resty.New().SetTimeout(interval), // 总超时
		log:      logger.Named("adhoc"),
	}
}

func (h *Heartbeat) request() RegisterRequest {
	detecting := false
	if h.Detecting != nil {
		detecting = h.Detecting()
	}
	return RegisterRequest{
		Id:            h.Id,
		IP:            h.IP,
		Port:          h.Port,
		InstanceClass: InstanceClass,
		TimeStamp:     time.Now().Unix(),
		Label:         h.Label,
		Detecting:     detecting,
	}
}

// SendOnce posts a single registration. Errors are returned, not logged.
func (h *Heartbeat) SendOnce(ctx context.Context) (RegisterResponse, error) {
	var respBody RegisterResponse
	resp, err := h.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(h.request()).
		SetResult(&respBody). // 2xx 自动反序列化到 respBody
		Post(h.server.URL())
	if err != nil {
		return respBody, fmt.Errorf("register request: %w", err)
	}
	if resp.IsError() {
		return respBody, fmt.Errorf("register server returned %s: %s", resp.Status(), resp.String())
	}
	return respBody, nil
}

// Run sends a registration immediately and then every Interval until ctx is
// cancelled. Failures are logged and never stop the loop.
func (h *Heartbeat) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	ticker := time.NewTicker(h.Interval)
	defer ticker.Stop()

	safeSend := func() {
		defer func() {
			if r := recover(); r != nil {
				h.log.Error(fmt.Sprintf("heartbeat panic recovered: %v", r))
			}
		}()
		if _, err := h.SendOnce(ctx); err != nil && ctx.Err() == nil {
			h.log.Warn("heartbeat failed", zap.String("url", h.server.URL()), zap.Error(err))
		}
	}
	safeSend()
	for {
		select {
		case <-ctx.Done():
			h.log.Info("heartbeat context cancelled, exiting goroutine.")
			return
		case <-ticker.C:
			safeSend()
		}
	}
}
