// Command laptrack links spot detections into trajectories with the two-stage
// LAP tracker and optionally records each run in a SQLite store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/laptrack/internal/monitoring"
	"github.com/banshee-data/laptrack/internal/version"
)

// app carries the process environment so commands can run under test.
type app struct {
	stdout io.Writer
	stderr io.Writer
	getenv func(string) string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{stdout: os.Stdout, stderr: os.Stderr, getenv: os.Getenv}
	if err := a.run(ctx, os.Args[1:]); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "laptrack: %v\n", err)
		}
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) < 1 {
		a.printUsage()
		return errors.New("no command given")
	}

	command, rest := args[0], args[1:]
	switch command {
	case "track":
		return a.handleTrack(ctx, rest)
	case "runs":
		return a.handleRuns(ctx, rest)
	case "export":
		return a.handleExport(ctx, rest)
	case "delete":
		return a.handleDelete(ctx, rest)
	case "version", "-version", "--version":
		fmt.Fprintln(a.stdout, version.String("laptrack"))
		return nil
	case "help", "-h", "--help":
		a.printUsage()
		return nil
	default:
		a.printUsage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

func (a *app) printUsage() {
	fmt.Fprintln(a.stderr, `laptrack - LAP multi-object tracker

Usage: laptrack <command> [options]

Commands:
  track      Link a spot file into a trajectory graph
  runs       List runs recorded in a store
  export     Write a stored run as a graph document
  delete     Remove a stored run
  version    Show version information
  help       Show this help message

Environment:
  LAPTRACK_SOLVER    Override the LAP solver (hungarian, munkres)
  LAPTRACK_WORKERS   Override the frame-pair worker count

Examples:
  laptrack track -spots spots.csv -out graph.json
  laptrack track -spots spots.json -config tracker.yaml -db runs.db -metrics run.prom
  laptrack runs -db runs.db
  laptrack export -db runs.db -run <run-id> -out graph.json`)
}

// setupLogging installs a zerolog backend for monitoring.Logf.
func (a *app) setupLogging(level string, jsonLogs bool) {
	logger := monitoring.NewLogger(a.stderr, level, !jsonLogs)
	monitoring.SetLogger(monitoring.ZerologLogf(logger))
}

func (a *app) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}
