package cmd

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	adhoc "FaceStabilityServer/Adhoc"
	backend "FaceStabilityServer/gRPC"
	"FaceStabilityServer/monitor"
	"FaceStabilityServer/web"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analyzer over gRPC and HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// startServices starts metrics, gRPC, HTTP and the registry heartbeat. The
// returned func stops them again.
func startServices(ctx context.Context, a *app) (stop func(), shutdownRequested <-chan struct{}, err error) {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		monitor.StartMon(a.cfg.MetricsPort, ctx, a.metrics, a.log.Named("monitor"))
	}()

	modelDir := filepath.Dir(a.cfg.Engine.ModelPath)
	rpc := backend.NewServer(a.pipeline, a.overlay, a.metrics, a.log.Named("grpc"))
	rpc.ModelDir = modelDir
	grpcServer, err := backend.StartGRPCServer(a.cfg.RPCPort, rpc)
	if err != nil {
		cancel()
		wg.Wait()
		return nil, nil, err
	}

	httpSrv := web.NewServer(a.pipeline, a.overlay, a.log.Named("http"))
	httpSrv.CSVPath = a.cfg.Recorder.CSVPath
	httpSrv.ModelDir = modelDir
	if a.sqlite != nil {
		httpSrv.Records = a.sqlite
	}
	hs := httpSrv.Start(a.cfg.HTTPPort)

	if a.cfg.Registry.Enabled {
		ip, err := adhoc.GetOutboundIP()
		if err != nil {
			a.log.Warn("Failed to get outbound IP", zap.Error(err))
		}
		reg := adhoc.RegServerConfig{}
		reg.SetAddress(a.cfg.Registry.Host, a.cfg.Registry.Port)
		hb := adhoc.NewHeartbeat(reg, adhoc.RegisterRequest{
			IP:            ip,
			Port:          a.cfg.RPCPort,
			HTTPPort:      a.cfg.HTTPPort,
			InstanceClass: adhoc.InstanceClassFor(a.cfg.Engine.Backend),
		}, time.Duration(a.cfg.Registry.IntervalSeconds)*time.Second, a.log.Named("adhoc"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			hb.Run(ctx)
		}()
	} else {
		a.log.Info("Registry disabled, skipping registration")
	}

	stop = func() {
		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := hs.Shutdown(shutdownCtx); err != nil {
			a.log.Error("HTTP server Shutdown error", zap.Error(err))
		}
		grpcServer.GracefulStop()
		wg.Wait()
	}
	return stop, rpc.Done(), nil
}

func runServe(ctx context.Context) error {
	a, err := buildApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	stop, shutdownRequested, err := startServices(ctx, a)
	if err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		log.Info("Signal received, shutting down")
	case <-shutdownRequested:
	}
	stop()
	log.Info("Safely exited")
	return nil
}
