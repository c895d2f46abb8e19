package tracking

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/laptrack/internal/lap"
)

// SegmentStats counts the events decided by the segment linking stage.
type SegmentStats struct {
	GapClosings int
	Merges      int
	Splits      int
}

// segmentMatrix is the top-left block of the segment LAP together with the
// bookkeeping needed to read a solution back.
type segmentMatrix struct {
	segments  []*Segment
	merging   []MiddlePoint // columns nS..nS+len(merging)-1
	splitting []MiddlePoint // rows nS..nS+len(splitting)-1
	topLeft   *mat.Dense
}

// LinkSegments solves the gap closing / merging / splitting LAP over
// segments and adds the resulting edges to g.
//
// Rows of the top-left block are segment ends followed by split candidates;
// columns are segment starts followed by merge candidates. Split × merge
// cells are blocked.
func (t *Tracker) LinkSegments(segments []*Segment, g *Graph) (SegmentStats, error) {
	var stats SegmentStats
	if len(segments) < 1 {
		return stats, ErrInsufficientSegments
	}
	blocking := t.settings.BlockingValue

	sm := t.segmentCostMatrix(segments)
	nR, nC := sm.topLeft.Dims()
	costs := finiteCosts(sm.topLeft, blocking)
	if len(costs) == 0 {
		// No gap, split or merge is possible: every segment stands alone.
		return stats, nil
	}
	alt := alternativeCost(costs, t.settings.CutoffPercentile, t.settings.AlternativeLinkingCostFactor, blocking)
	full := assembleLAPMatrix(sm.topLeft, alt, blocking)
	t.metrics.observeMatrix(stageSegmentLinking, full)

	a, err := t.solver.Solve(full, blocking)
	if err != nil {
		return stats, fmt.Errorf("segment linking: %w", err)
	}

	nS := len(segments)
	for _, p := range a.Pairs {
		if p.Row >= nR || p.Col >= nC {
			continue
		}
		cost := sm.topLeft.At(p.Row, p.Col)
		switch {
		case p.Row < nS && p.Col < nS:
			err = g.Link(segments[p.Row].Last(), segments[p.Col].First(), cost, EdgeGapClosing)
			stats.GapClosings++
		case p.Row < nS:
			err = g.Link(segments[p.Row].Last(), sm.merging[p.Col-nS].Spot, cost, EdgeMerge)
			stats.Merges++
		case p.Col < nS:
			err = g.Link(sm.splitting[p.Row-nS].Spot, segments[p.Col].First(), cost, EdgeSplit)
			stats.Splits++
		}
		if err != nil {
			return stats, fmt.Errorf("segment linking: %w", err)
		}
	}
	return stats, nil
}

// segmentCostMatrix builds the (nS+nSplit)×(nS+nMerge) top-left block.
// Middle points whose row or column holds no finite cost are pruned, which
// keeps the matrix small for long sequences.
func (t *Tracker) segmentCostMatrix(segments []*Segment) segmentMatrix {
	s := t.settings
	blocking := s.BlockingValue
	nS := len(segments)
	idx := IndexMiddlePoints(segments, s.AllowSplitting, s.AllowMerging)

	gap := newBlockedDense(nS, nS, blocking)
	if s.AllowGapClosing {
		cf := NewCostFunction(s.GapClosingMaxDistance, blocking, s.GapClosingFeaturePenalties)
		for i, ei := range segments {
			end := ei.Last()
			for j, sj := range segments {
				start := sj.First()
				if i == j || !withinWindow(end.Frame, start.Frame, s.GapClosingMaxFrameGap) {
					continue
				}
				gap.Set(i, j, cf.Cost(end, start))
			}
		}
	}

	// Merging: segment end i → middle point m.
	mergeCF := NewCostFunction(s.MergingMaxDistance, blocking, s.MergingFeaturePenalties)
	var merging []MiddlePoint
	var mergeCols [][]float64
	for _, m := range idx.Merging {
		col := make([]float64, nS)
		useful := false
		for i, seg := range segments {
			col[i] = blocking
			end := seg.Last()
			if i == m.Segment || !withinWindow(end.Frame, m.Spot.Frame, s.MergeSplitMaxFrameGap) {
				continue
			}
			if !t.plausibleIntensity(m.Spot, segments[m.Segment].Spots[m.Position-1], end) {
				continue
			}
			if v := mergeCF.Cost(end, m.Spot); !lap.IsBlocked(v, blocking) {
				col[i] = v
				useful = true
			}
		}
		if useful {
			merging = append(merging, m)
			mergeCols = append(mergeCols, col)
		}
	}

	// Splitting: middle point m → segment start j.
	splitCF := NewCostFunction(s.SplittingMaxDistance, blocking, s.SplittingFeaturePenalties)
	var splitting []MiddlePoint
	var splitRows [][]float64
	for _, m := range idx.Splitting {
		row := make([]float64, nS)
		useful := false
		for j, seg := range segments {
			row[j] = blocking
			start := seg.First()
			if j == m.Segment || !withinWindow(m.Spot.Frame, start.Frame, s.MergeSplitMaxFrameGap) {
				continue
			}
			if !t.plausibleIntensity(m.Spot, segments[m.Segment].Spots[m.Position+1], start) {
				continue
			}
			if v := splitCF.Cost(m.Spot, start); !lap.IsBlocked(v, blocking) {
				row[j] = v
				useful = true
			}
		}
		if useful {
			splitting = append(splitting, m)
			splitRows = append(splitRows, row)
		}
	}

	topLeft := newBlockedDense(nS+len(splitting), nS+len(merging), blocking)
	topLeft.Slice(0, nS, 0, nS).(*mat.Dense).Copy(gap)
	for k, col := range mergeCols {
		for i, v := range col {
			topLeft.Set(i, nS+k, v)
		}
	}
	for k, row := range splitRows {
		for j, v := range row {
			topLeft.Set(nS+k, j, v)
		}
	}

	return segmentMatrix{
		segments:  segments,
		merging:   merging,
		splitting: splitting,
		topLeft:   topLeft,
	}
}

// withinWindow reports 0 < to−from ≤ maxGap.
func withinWindow(from, to, maxGap int) bool {
	d := to - from
	return d > 0 && d <= maxGap
}

// plausibleIntensity gates a merge or split on the intensity balance of the
// event: the middle spot should carry roughly the summed intensity of its
// own neighbour in the segment and the joining spot. The gate is skipped when
// it is disabled or when any intensity is unavailable.
func (t *Tracker) plausibleIntensity(middle, neighbour, other *Spot) bool {
	s := t.settings
	if s.IntensityFeature == "" {
		return true
	}
	im, ok1 := middle.Feature(s.IntensityFeature)
	in, ok2 := neighbour.Feature(s.IntensityFeature)
	io, ok3 := other.Feature(s.IntensityFeature)
	if !ok1 || !ok2 || !ok3 || in+io == 0 {
		return true
	}
	ratio := im / (in + io)
	return ratio >= s.IntensityRatioMin && ratio <= s.IntensityRatioMax
}
