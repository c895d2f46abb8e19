package tracking

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Link is one frame-to-frame assignment.
type Link struct {
	Source *Spot
	Target *Spot
	Cost   float64
}

// FrameLinks holds the links decided for one pair of consecutive frames.
type FrameLinks struct {
	Frame0 int
	Frame1 int
	Links  []Link
}

// SolveFrameLinks runs the frame-to-frame LAP for every pair of consecutive
// frames. Pairs are independent and are solved on a bounded worker pool;
// the result is ordered by Frame0.
func (t *Tracker) SolveFrameLinks(ctx context.Context, frames Frames) ([]FrameLinks, error) {
	if err := frames.Validate(); err != nil {
		return nil, err
	}
	keys := frames.Indices()
	if len(keys) < 2 {
		return nil, nil
	}

	results := make([]FrameLinks, len(keys)-1)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(t.settings.workers())
	for i := 0; i < len(keys)-1; i++ {
		f0, f1 := keys[i], keys[i+1]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fl, err := t.linkFramePair(f0, f1, byID(frames[f0]), byID(frames[f1]))
			if err != nil {
				return err
			}
			results[i] = fl
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// byID returns a copy of one frame's spots in ID order, so the matrix rows
// and columns do not depend on the order the detections were loaded in.
func byID(spots []*Spot) []*Spot {
	out := slices.Clone(spots)
	slices.SortFunc(out, compareSpots)
	return out
}

// linkFramePair builds and solves the (n0+n1)² matrix for one frame pair.
func (t *Tracker) linkFramePair(f0, f1 int, s0, s1 []*Spot) (FrameLinks, error) {
	out := FrameLinks{Frame0: f0, Frame1: f1}
	if len(s0) == 0 || len(s1) == 0 {
		return out, nil
	}
	blocking := t.settings.BlockingValue

	topLeft := t.frameCostMatrix(s0, s1)
	costs := finiteCosts(topLeft, blocking)
	if len(costs) == 0 {
		// Every pairing is out of reach: nothing to solve.
		return out, nil
	}
	alt := alternativeCost(costs, t.settings.CutoffPercentile, t.settings.AlternativeLinkingCostFactor, blocking)
	full := assembleLAPMatrix(topLeft, alt, blocking)
	t.metrics.observeMatrix(stageFrameLinking, full)

	a, err := t.solver.Solve(full, blocking)
	if err != nil {
		return out, fmt.Errorf("frames %d→%d: %w", f0, f1, err)
	}
	for _, p := range a.Pairs {
		if p.Row < len(s0) && p.Col < len(s1) {
			out.Links = append(out.Links, Link{
				Source: s0[p.Row],
				Target: s1[p.Col],
				Cost:   topLeft.At(p.Row, p.Col),
			})
		}
	}
	return out, nil
}

// frameCostMatrix fills the n0×n1 real-link block.
func (t *Tracker) frameCostMatrix(s0, s1 []*Spot) *mat.Dense {
	cf := NewCostFunction(t.settings.LinkingMaxDistance, t.settings.BlockingValue, t.settings.LinkingFeaturePenalties)
	m := mat.NewDense(len(s0), len(s1), nil)
	for i, a := range s0 {
		for j, b := range s1 {
			m.Set(i, j, cf.Cost(a, b))
		}
	}
	return m
}
