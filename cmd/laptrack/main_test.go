package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/laptrack/internal/fsutil"
	"github.com/banshee-data/laptrack/internal/monitoring"
	"github.com/banshee-data/laptrack/internal/trackio"
)

func newTestApp(t *testing.T, env map[string]string) (*app, *bytes.Buffer) {
	t.Helper()
	prev := monitoring.Logf
	t.Cleanup(func() { monitoring.Logf = prev })

	var stdout bytes.Buffer
	return &app{
		stdout: &stdout,
		stderr: &bytes.Buffer{},
		getenv: func(k string) string { return env[k] },
	}, &stdout
}

// writeLaneSpots writes two straight lanes 40 units apart, with the upper
// lane missing its frame 3 detection.
func writeLaneSpots(t *testing.T, dir string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("ID,FRAME,POSITION_X,POSITION_Y,MEAN_INTENSITY\n")
	id := 0
	for f := 0; f < 8; f++ {
		fmt.Fprintf(&b, "%d,%d,%d,0,100\n", id, f, f)
		id++
		if f != 3 {
			fmt.Fprintf(&b, "%d,%d,%d,40,80\n", id, f, f)
			id++
		}
	}
	path := filepath.Join(dir, "spots.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func TestRun_Commands(t *testing.T) {
	a, stdout := newTestApp(t, nil)

	require.NoError(t, a.run(context.Background(), []string{"version"}))
	assert.Contains(t, stdout.String(), "laptrack dev")

	require.NoError(t, a.run(context.Background(), []string{"help"}))
	assert.ErrorContains(t, a.run(context.Background(), nil), "no command")
	assert.ErrorContains(t, a.run(context.Background(), []string{"frobnicate"}), "unknown command")
}

func TestTrack_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	spots := writeLaneSpots(t, dir)
	out := filepath.Join(dir, "out", "graph.json")
	db := filepath.Join(dir, "runs.db")
	metrics := filepath.Join(dir, "run.prom")

	a, stdout := newTestApp(t, map[string]string{"LAPTRACK_SOLVER": "munkres"})
	err := a.run(context.Background(), []string{
		"track", "-spots", spots, "-out", out, "-db", db,
		"-metrics", metrics, "-run-id", "lanes", "-log-level", "error",
	})
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "run lanes: 15 spots, 13 edges, 2 tracks")

	doc, err := trackio.ReadGraph(fsutil.OSFileSystem{}, out)
	require.NoError(t, err)
	assert.Equal(t, "lanes", doc.RunID)
	assert.Len(t, doc.Tracks, 2)
	assert.Equal(t, 1, doc.Stats.GapClosings)

	prom, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `laptrack_events_total{kind="gap_closing"} 1`)

	stdout.Reset()
	require.NoError(t, a.run(context.Background(), []string{"runs", "-db", db}))
	assert.Contains(t, stdout.String(), "lanes")
	assert.Contains(t, stdout.String(), "munkres")

	exported := filepath.Join(dir, "exported.json")
	require.NoError(t, a.run(context.Background(), []string{"export", "-db", db, "-run", "lanes", "-out", exported}))
	back, err := trackio.ReadGraph(fsutil.OSFileSystem{}, exported)
	require.NoError(t, err)
	assert.Equal(t, doc.Edges, back.Edges)
	assert.Equal(t, doc.Tracks, back.Tracks)

	exportDir := filepath.Join(dir, "exports")
	require.NoError(t, a.run(context.Background(), []string{"export", "-db", db, "-out-dir", exportDir}))
	_, err = os.Stat(filepath.Join(exportDir, "lanes.json"))
	assert.NoError(t, err)

	require.NoError(t, a.run(context.Background(), []string{"delete", "-db", db, "-run", "lanes"}))
	assert.Error(t, a.run(context.Background(), []string{"delete", "-db", db, "-run", "lanes"}))
}

func TestTrack_ConfigOverrides(t *testing.T) {
	dir := t.TempDir()
	spots := writeLaneSpots(t, dir)
	cfg := filepath.Join(dir, "tracker.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("allow_gap_closing: false\n"), 0o644))
	out := filepath.Join(dir, "graph.json")

	a, stdout := newTestApp(t, nil)
	err := a.run(context.Background(), []string{
		"track", "-spots", spots, "-out", out, "-config", cfg, "-solver", "hungarian", "-log-level", "error",
	})
	require.NoError(t, err)
	// The upper lane breaks at the missed detection.
	assert.Contains(t, stdout.String(), "12 edges, 3 tracks")
}

func TestTrack_Errors(t *testing.T) {
	dir := t.TempDir()
	spots := writeLaneSpots(t, dir)
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("linking_max_distanse: 3\n"), 0o644))

	tests := []struct {
		name string
		env  map[string]string
		args []string
		want string
	}{
		{"missing spots", nil, []string{"track"}, "-spots is required"},
		{"unknown solver", nil, []string{"track", "-spots", spots, "-solver", "simplex"}, "solver"},
		{"bad env", map[string]string{"LAPTRACK_WORKERS": "many"}, []string{"track", "-spots", spots}, "LAPTRACK_WORKERS"},
		{"unknown config key", nil, []string{"track", "-spots", spots, "-config", bad}, "config"},
		{"missing file", nil, []string{"track", "-spots", filepath.Join(dir, "none.csv")}, "open spots"},
		{"runs without db", nil, []string{"runs"}, "-db is required"},
		{"export without run", nil, []string{"export", "-db", filepath.Join(dir, "x.db")}, "-run or -out-dir is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := newTestApp(t, tt.env)
			err := a.run(context.Background(), tt.args)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}
