package cmd

import (
	"FaceStabilityServer/config"
	"FaceStabilityServer/detector"
	"FaceStabilityServer/engine"
	iface "FaceStabilityServer/interface"
	"FaceStabilityServer/monitor"
	"FaceStabilityServer/overlay"
	"FaceStabilityServer/pipeline"
	"FaceStabilityServer/recorder"

	"go.uber.org/zap"
)

// app is the wired analyzer shared by every subcommand.
type app struct {
	cfg      config.Config
	log      *zap.Logger
	metrics  *monitor.Metrics
	overlay  *overlay.Overlay
	csv      *recorder.CSV
	sqlite   *recorder.SQLite
	pipeline *pipeline.Pipeline
}

func buildApp(cfg config.Config, log *zap.Logger) (*app, error) {
	a := &app{
		cfg:     cfg,
		log:     log,
		metrics: monitor.NewMetrics(),
		overlay: overlay.New(cfg.Overlay.Width, cfg.Overlay.Height, log.Named("overlay")),
		csv:     recorder.NewCSV(cfg.Recorder.CSVPath),
	}
	var rec iface.Recorder = a.csv
	if cfg.Recorder.SQLitePath != "" {
		db, err := recorder.OpenSQLite(cfg.Recorder.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.sqlite = db
		rec = recorder.Tee(a.csv, db)
	}

	p, err := pipeline.New(pipeline.Options{
		OpenDetector: func() (iface.Detector, error) {
			return detector.Open(cfg.Detector, log.Named("detector"))
		},
		OpenEngine: func() (iface.Engine, error) {
			return engine.Open(cfg.Engine, log.Named("engine"))
		},
		Overlay:  a.overlay,
		Recorder: rec,
		Failures: iface.FailureFunc(func(err error) {
			log.Warn("Frame dropped", zap.Error(err))
		}),
		Metrics: a.metrics,
		Log:     log.Named("pipeline"),
	})
	if err != nil {
		if a.sqlite != nil {
			_ = a.sqlite.Close()
		}
		return nil, err
	}
	a.pipeline = p
	return a, nil
}

// close stops the pipeline and releases the record store.
func (a *app) close() error {
	a.pipeline.Shutdown()
	if a.sqlite != nil {
		return a.sqlite.Close()
	}
	return nil
}
