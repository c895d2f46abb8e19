package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/banshee-data/laptrack/internal/config"
	"github.com/banshee-data/laptrack/internal/fsutil"
	"github.com/banshee-data/laptrack/internal/monitoring"
	"github.com/banshee-data/laptrack/internal/trackio"
	"github.com/banshee-data/laptrack/internal/tracking"
	"github.com/banshee-data/laptrack/internal/trackstore"
)

func (a *app) handleTrack(ctx context.Context, args []string) error {
	fs := a.newFlagSet("track")
	spotsPath := fs.String("spots", "", "Spot file to track (.json or .csv, required)")
	outPath := fs.String("out", "graph.json", "Graph document output path")
	configPath := fs.String("config", "", "Tracker tuning file (.json, .yaml or .yml); built-in defaults when empty")
	solver := fs.String("solver", "", "LAP solver override (hungarian, munkres)")
	workers := fs.Int("workers", -1, "Frame-pair worker override; 0 means GOMAXPROCS")
	dbPath := fs.String("db", "", "SQLite run store; the run is not recorded when empty")
	runID := fs.String("run-id", "", "Run ID; a UUID is generated when empty")
	metricsPath := fs.String("metrics", "", "Write Prometheus metrics of the run to this textfile")
	logLevel := fs.String("log-level", "info", "Log level (debug, info, warn, error)")
	jsonLogs := fs.Bool("log-json", false, "Emit JSON log lines instead of console output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *spotsPath == "" {
		fs.Usage()
		return errors.New("track: -spots is required")
	}
	a.setupLogging(*logLevel, *jsonLogs)

	tuning := config.EmptyTrackerTuning()
	if *configPath != "" {
		var err error
		if tuning, err = config.LoadTrackerTuning(*configPath); err != nil {
			return err
		}
	}
	if err := tuning.ApplyEnv(a.getenv); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	if *solver != "" {
		tuning.Solver = solver
	}
	if *workers >= 0 {
		tuning.Workers = workers
	}
	if err := tuning.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	settings := tuning.ToSettings()

	fsys := fsutil.OSFileSystem{}
	frames, err := trackio.ReadSpots(fsys, *spotsPath)
	if err != nil {
		return err
	}
	monitoring.Logf("[laptrack] loaded %d spots in %d frames from %s", frames.NumSpots(), len(frames), *spotsPath)

	reg := prometheus.NewRegistry()
	tracker, err := tracking.NewTracker(settings, tracking.WithMetrics(tracking.NewMetrics(reg)))
	if err != nil {
		return err
	}
	res, err := tracker.LinkFrames(ctx, frames)
	if err != nil {
		return err
	}

	id := *runID
	if id == "" {
		id = uuid.New().String()
	}
	doc := trackio.NewGraphDocument(id, frames, res)

	if *dbPath != "" {
		store, err := trackstore.Open(*dbPath)
		if err != nil {
			return err
		}
		defer store.Close()
		if _, err := store.SaveRun(ctx, *spotsPath, settings, &doc); err != nil {
			return err
		}
	}

	if err := trackio.WriteGraph(fsys, *outPath, doc); err != nil {
		return err
	}
	if *metricsPath != "" {
		if err := prometheus.WriteToTextfile(*metricsPath, reg); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	fmt.Fprintf(a.stdout, "run %s: %d spots, %d edges, %d tracks -> %s\n",
		doc.RunID, len(doc.Spots), len(doc.Edges), len(doc.Tracks), *outPath)
	return nil
}
