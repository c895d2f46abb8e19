package tracking

import (
	"github.com/banshee-data/laptrack/internal/monitoring"
)

// Segment is a simple path of spots, one per frame, strictly increasing in
// frame index. Index is the segment's position in the compiler output.
type Segment struct {
	Index int
	Spots []*Spot
}

// First returns the segment's first spot.
func (s *Segment) First() *Spot { return s.Spots[0] }

// Last returns the segment's last spot.
func (s *Segment) Last() *Spot { return s.Spots[len(s.Spots)-1] }

// Len returns the number of spots in the segment.
func (s *Segment) Len() int { return len(s.Spots) }

// Interior returns the spots strictly between First and Last.
func (s *Segment) Interior() []*Spot {
	if len(s.Spots) < 3 {
		return nil
	}
	return s.Spots[1 : len(s.Spots)-1]
}

// CompileSegments follows frame links into maximal chains. Every spot of
// frames ends up in exactly one chain; chains shorter than minLength are
// dropped and counted. The walk is iterative, so sequence length is bounded
// only by memory.
//
// Links that would give a spot a second predecessor or successor, or that
// do not move forward in time, are ignored. The frame linker never produces
// them; they can only come from hand-built link lists.
func CompileSegments(frames Frames, links []FrameLinks, minLength int) (segments []*Segment, dropped int) {
	succ := make(map[int64]*Spot)
	pred := make(map[int64]*Spot)
	for _, fl := range links {
		for _, l := range fl.Links {
			if l.Source == nil || l.Target == nil {
				continue
			}
			if l.Target.Frame <= l.Source.Frame {
				monitoring.Logf("[tracking] ignoring backward link %v → %v", l.Source, l.Target)
				continue
			}
			if _, ok := succ[l.Source.ID]; ok {
				monitoring.Logf("[tracking] ignoring second successor %v of %v", l.Target, l.Source)
				continue
			}
			if _, ok := pred[l.Target.ID]; ok {
				monitoring.Logf("[tracking] ignoring second predecessor %v of %v", l.Source, l.Target)
				continue
			}
			succ[l.Source.ID] = l.Target
			pred[l.Target.ID] = l.Source
		}
	}

	for _, s := range frames.Sorted() {
		if _, hasPred := pred[s.ID]; hasPred {
			continue
		}
		chain := []*Spot{s}
		for cur := s; ; {
			next, ok := succ[cur.ID]
			if !ok {
				break
			}
			chain = append(chain, next)
			cur = next
		}
		if len(chain) < minLength {
			dropped++
			continue
		}
		segments = append(segments, &Segment{Index: len(segments), Spots: chain})
	}
	return segments, dropped
}

// MiddlePoint is an interior spot of a segment that may take part in a
// splitting or merging event. Segment is the position of the owning segment
// in the slice the index was built from; Position is the spot's index inside
// that segment.
type MiddlePoint struct {
	Spot     *Spot
	Segment  int
	Position int
}

// MiddlePointIndex holds the split and merge candidates of a segment set.
type MiddlePointIndex struct {
	Splitting []MiddlePoint
	Merging   []MiddlePoint
}

// IndexMiddlePoints lists every interior spot of segments, in segment order.
// Both roles get the same candidates; a disabled role gets none.
func IndexMiddlePoints(segments []*Segment, allowSplitting, allowMerging bool) MiddlePointIndex {
	var all []MiddlePoint
	if allowSplitting || allowMerging {
		for si, seg := range segments {
			for k := 1; k < seg.Len()-1; k++ {
				all = append(all, MiddlePoint{Spot: seg.Spots[k], Segment: si, Position: k})
			}
		}
	}
	var idx MiddlePointIndex
	if allowSplitting {
		idx.Splitting = all
	}
	if allowMerging {
		idx.Merging = append([]MiddlePoint(nil), all...)
	}
	return idx
}
