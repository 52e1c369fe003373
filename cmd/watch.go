package cmd

import (
	"context"

	"FaceStabilityServer/capture"
	"FaceStabilityServer/pipeline"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var watchServe bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Classify faces from the configured camera",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch(cmd.Context())
	},
}

func init() {
	watchCmd.Flags().BoolVarP(&watchServe, "serve", "s", false, "Also serve gRPC, HTTP and metrics while watching")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(ctx context.Context) error {
	a, err := buildApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	cam, err := capture.OpenCamera(cfg.Camera.Device, cfg.Camera.Rotation)
	if err != nil {
		return err
	}
	defer cam.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if watchServe {
		stop, shutdownRequested, err := startServices(ctx, a)
		if err != nil {
			return err
		}
		defer stop()
		go func() {
			select {
			case <-shutdownRequested:
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	loop := capture.NewLoop(cam, a.pipeline, log.Named("capture"), a.metrics)
	loop.OnResult = func(res pipeline.FrameResult) {
		if res.Err != nil {
			return
		}
		for _, r := range res.Records {
			log.Info("Prediction", zap.String("frameId", res.FrameID),
				zap.String("label", string(r.Label)), zap.Float32("score", r.Score))
		}
	}
	log.Info("Watching camera", zap.String("device", cfg.Camera.Device), zap.Int("rotation", cfg.Camera.Rotation))
	return loop.Run(ctx)
}
