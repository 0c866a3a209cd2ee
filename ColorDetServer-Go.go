package main

import (
	adhoc "ColorDetServer/Adhoc"
	"ColorDetServer/capture"
	"ColorDetServer/config"
	"ColorDetServer/engine"
	rpc "ColorDetServer/gRPC"
	"ColorDetServer/gateway"
	iface "ColorDetServer/interface"
	"ColorDetServer/logger"
	"ColorDetServer/monitor"
	"ColorDetServer/pipeline"
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

func GetOutboundIP() (string, error) {
	// 8.8.8.8 只是为了让内核选路由得到本地出口 IP，不会真正发包
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String(), nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "ColorDetServer:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(config.Path())
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.LogLevel, cfg.Development); err != nil {
		return err
	}
	defer logger.Sync()
	log := logger.Log()

	rng, err := cfg.Range()
	if err != nil {
		return err
	}
	detector, err := engine.NewDetector(rng, cfg.Detection, cfg.Label)
	if err != nil {
		return fmt.Errorf("build detector: %w", err)
	}

	fmt.Println(strings.Repeat("#", 64))
	fmt.Println(" Source      :", cfg.Source)
	fmt.Println(" Label       :", cfg.Label)
	fmt.Printf(" HSV range   : %v - %v\n", rng.Lower, rng.Upper)
	fmt.Println(" HTTP  Port  :", cfg.HTTPPort)
	fmt.Println(" gRPC  Port  :", cfg.RPCPort)
	fmt.Println(" Metrics Port:", cfg.MetricsPort)
	fmt.Println(strings.Repeat("#", 64))

	source, err := capture.Open(cfg.Source)
	if err != nil {
		log.Error("cannot open input", zap.String("source", cfg.Source), zap.Error(err))
		return err
	}
	defer source.Close()
	if idx, ok := cfg.DeviceIndex(); ok {
		log.Info("reading from capture device", zap.Int("device", idx))
	}

	var sink iface.DisplaySink = capture.NullSink{}
	var window *capture.WindowSink
	if !cfg.Headless {
		window = capture.NewWindowSink(10)
		sink = window
	}
	defer sink.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		monitor.StartMon(ctx, cfg.MetricsPort)
	}()

	store := gateway.NewStore()
	httpSrv := gateway.New(store, detector).Start(cfg.HTTPPort)

	health, err := rpc.StartGRPCServer(cfg.RPCPort)
	if err != nil {
		return err
	}

	if cfg.UseRegServer {
		ip, err := GetOutboundIP()
		if err != nil {
			log.Warn("Failed to get outbound IP, heartbeat disabled", zap.Error(err))
		} else {
			reg := adhoc.RegServerConfig{}
			reg.SetAddress(cfg.RegServerHost, cfg.RegServerPort)
			hb := adhoc.NewHeartbeat(reg, ip, cfg.HTTPPort, cfg.Label, time.Duration(cfg.HeartbeatSeconds)*time.Second)
			hb.Detecting = func() bool {
				r, ok := store.Latest()
				return ok && r.Detection != nil
			}
			wg.Add(1)
			go hb.Run(ctx, &wg)
		}
	} else {
		log.Info("UseRegServer is set to false, skipping registration")
	}

	health.SetServing()
	frames, runErr := pipeline.New(detector, source, sink, store.Publish).Run(ctx)
	health.SetNotServing()
	log.Info("pipeline finished", zap.Int("frames", frames))

	if _, still := source.(*capture.StillSource); still && window != nil && runErr == nil && ctx.Err() == nil {
		window.Hold()
	}

	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server Shutdown error", zap.Error(err))
	}
	health.GracefulStop()
	wg.Wait()
	log.Info("Safely exited")
	return runErr
}
