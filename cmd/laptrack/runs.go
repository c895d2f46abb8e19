package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/laptrack/internal/fsutil"
	"github.com/banshee-data/laptrack/internal/security"
	"github.com/banshee-data/laptrack/internal/trackio"
	"github.com/banshee-data/laptrack/internal/trackstore"
)

// openStore parses the common -db flag plus any extra flags registered by
// setup, then opens the store.
func (a *app) openStore(name string, args []string, setup func(fs *flag.FlagSet)) (*trackstore.Store, error) {
	fs := a.newFlagSet(name)
	dbPath := fs.String("db", "", "SQLite run store (required)")
	if setup != nil {
		setup(fs)
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *dbPath == "" {
		fs.Usage()
		return nil, fmt.Errorf("%s: -db is required", name)
	}
	a.setupLogging("warn", false)
	return trackstore.Open(*dbPath)
}

func (a *app) handleRuns(ctx context.Context, args []string) error {
	store, err := a.openStore("runs", args, nil)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tCREATED\tSOURCE\tSPOTS\tEDGES\tTRACKS\tSOLVER")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.RunID, r.CreatedAt.Format(time.RFC3339), r.Source,
			r.SpotCount, r.EdgeCount, r.TrackCount, r.Settings.Solver)
	}
	return w.Flush()
}

func (a *app) handleExport(ctx context.Context, args []string) error {
	var runID, outPath, outDir *string
	store, err := a.openStore("export", args, func(fs *flag.FlagSet) {
		runID = fs.String("run", "", "Run ID to export; every run when empty and -out-dir is set")
		outPath = fs.String("out", "graph.json", "Graph document output path for a single run")
		outDir = fs.String("out-dir", "", "Write each run to <out-dir>/<run-id>.json")
	})
	if err != nil {
		return err
	}
	defer store.Close()

	fsys := fsutil.OSFileSystem{}
	if *outDir == "" {
		if *runID == "" {
			return errors.New("export: -run or -out-dir is required")
		}
		return a.exportRun(ctx, store, fsys, *runID, *outPath)
	}

	ids := []string{*runID}
	if *runID == "" {
		runs, err := store.ListRuns(ctx)
		if err != nil {
			return err
		}
		ids = ids[:0]
		for _, r := range runs {
			ids = append(ids, r.RunID)
		}
	}
	if err := fsys.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	for _, id := range ids {
		path, err := security.RunExportPath(*outDir, id)
		if err != nil {
			return err
		}
		if err := a.exportRun(ctx, store, fsys, id, path); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) exportRun(ctx context.Context, store *trackstore.Store, fsys fsutil.FileSystem, runID, path string) error {
	doc, err := store.LoadDocument(ctx, runID)
	if err != nil {
		return err
	}
	if err := trackio.WriteGraph(fsys, path, doc); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "run %s -> %s\n", doc.RunID, path)
	return nil
}

func (a *app) handleDelete(ctx context.Context, args []string) error {
	var runID *string
	store, err := a.openStore("delete", args, func(fs *flag.FlagSet) {
		runID = fs.String("run", "", "Run ID to delete (required)")
	})
	if err != nil {
		return err
	}
	defer store.Close()
	if *runID == "" {
		return errors.New("delete: -run is required")
	}
	if err := store.DeleteRun(ctx, *runID); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "deleted run %s\n", *runID)
	return nil
}
