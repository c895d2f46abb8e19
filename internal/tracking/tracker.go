package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/laptrack/internal/lap"
	"github.com/banshee-data/laptrack/internal/monitoring"
	"github.com/banshee-data/laptrack/internal/timeutil"
)

// Tracker runs the two LAP stages with one fixed set of settings. It holds
// no per-run state and is safe for concurrent use.
type Tracker struct {
	settings Settings
	solver   lap.Solver
	metrics  *Metrics
	clock    timeutil.Clock
}

// Option customises a Tracker.
type Option func(*Tracker)

// WithSolver overrides the solver named by Settings.Solver.
func WithSolver(s lap.Solver) Option {
	return func(t *Tracker) { t.solver = s }
}

// WithMetrics records stage timings and event counts on m.
func WithMetrics(m *Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

// WithClock replaces the wall clock used for stage durations.
func WithClock(c timeutil.Clock) Option {
	return func(t *Tracker) { t.clock = c }
}

// NewTracker validates settings and returns a tracker using a private copy
// of them.
func NewTracker(settings Settings, opts ...Option) (*Tracker, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	solver, err := lap.ByName(settings.Solver)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	t := &Tracker{
		settings: settings.clone(),
		solver:   solver,
		clock:    timeutil.RealClock{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Settings returns a copy of the tracker's settings.
func (t *Tracker) Settings() Settings {
	return t.settings.clone()
}

// Stats summarises one LinkFrames run.
type Stats struct {
	FramePairs      int
	FrameLinks      int // links kept inside surviving segments
	Segments        int
	DroppedSegments int
	GapClosings     int
	Merges          int
	Splits          int
	Stage1          time.Duration
	Stage2          time.Duration
}

// Result is the output of LinkFrames.
type Result struct {
	Graph    *Graph
	Segments []*Segment
	Stats    Stats
}

// LinkFrames links the spots of frames into trajectories: frame-to-frame
// linking, segment compilation, then gap closing, merging and splitting.
// Stage 2 is skipped when all of its rules are disabled.
func (t *Tracker) LinkFrames(ctx context.Context, frames Frames) (*Result, error) {
	if err := frames.Validate(); err != nil {
		return nil, err
	}
	var stats Stats

	start := t.clock.Now()
	links, err := t.SolveFrameLinks(ctx, frames)
	if err != nil {
		return nil, fmt.Errorf("frame linking: %w", err)
	}
	stats.FramePairs = len(links)

	segments, dropped := CompileSegments(frames, links, t.settings.MinSegmentLength)
	stats.Segments = len(segments)
	stats.DroppedSegments = dropped

	g := NewGraph(frames)
	if err := addSegmentEdges(g, segments, links); err != nil {
		return nil, err
	}
	stats.FrameLinks = g.NumEdges()
	stats.Stage1 = t.clock.Since(start)
	t.metrics.observeStage(stageFrameLinking, stats.Stage1)

	if t.settings.segmentLinking() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start = t.clock.Now()
		ss, err := t.LinkSegments(segments, g)
		if err != nil {
			if errors.Is(err, ErrInsufficientSegments) {
				return nil, fmt.Errorf("%w: all %d segments shorter than %d spots", err, dropped, t.settings.MinSegmentLength)
			}
			return nil, err
		}
		stats.GapClosings = ss.GapClosings
		stats.Merges = ss.Merges
		stats.Splits = ss.Splits
		stats.Stage2 = t.clock.Since(start)
		t.metrics.observeStage(stageSegmentLinking, stats.Stage2)
	}

	t.metrics.observeStats(stats)
	monitoring.Logf("[tracking] %d spots over %d frames: %d links, %d segments (%d dropped), %d gap closings, %d merges, %d splits",
		frames.NumSpots(), len(frames), stats.FrameLinks, stats.Segments, stats.DroppedSegments,
		stats.GapClosings, stats.Merges, stats.Splits)

	return &Result{Graph: g, Segments: segments, Stats: stats}, nil
}

// addSegmentEdges adds the frame links that survived segment compilation.
// Links belonging to dropped segments do not reach the graph.
func addSegmentEdges(g *Graph, segments []*Segment, links []FrameLinks) error {
	cost := make(map[[2]int64]float64)
	for _, fl := range links {
		for _, l := range fl.Links {
			cost[[2]int64{l.Source.ID, l.Target.ID}] = l.Cost
		}
	}
	for _, seg := range segments {
		for k := 1; k < seg.Len(); k++ {
			a, b := seg.Spots[k-1], seg.Spots[k]
			if err := g.Link(a, b, cost[[2]int64{a.ID, b.ID}], EdgeLink); err != nil {
				return fmt.Errorf("frame linking: %w", err)
			}
		}
	}
	return nil
}
