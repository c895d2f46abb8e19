package tracking

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileSegments_Chains(t *testing.T) {
	t.Parallel()
	b := newFrameBuilder()
	a0, a1, a2 := b.add(0, 0, 0), b.add(1, 0, 0), b.add(2, 0, 0)
	c1, c2 := b.add(1, 5, 0), b.add(2, 5, 0)
	lone := b.add(2, 9, 0)

	links := []FrameLinks{
		{Frame0: 0, Frame1: 1, Links: []Link{{Source: a0, Target: a1}}},
		{Frame0: 1, Frame1: 2, Links: []Link{{Source: a1, Target: a2}, {Source: c1, Target: c2}}},
	}

	segments, dropped := CompileSegments(b.frames, links, 1)
	assert.Equal(t, 0, dropped)
	require.Len(t, segments, 3)
	assert.Equal(t, []*Spot{a0, a1, a2}, segments[0].Spots)
	assert.Equal(t, []*Spot{c1, c2}, segments[1].Spots)
	assert.Equal(t, []*Spot{lone}, segments[2].Spots)
	for i, seg := range segments {
		assert.Equal(t, i, seg.Index)
	}
	assert.Same(t, a0, segments[0].First())
	assert.Same(t, a2, segments[0].Last())
	assert.Equal(t, []*Spot{a1}, segments[0].Interior())
	assert.Nil(t, segments[1].Interior())

	segments, dropped = CompileSegments(b.frames, links, 3)
	assert.Equal(t, 2, dropped)
	require.Len(t, segments, 1)
	assert.Equal(t, 0, segments[0].Index)
	assert.Equal(t, 3, segments[0].Len())
}

func TestCompileSegments_IgnoresConflictingLinks(t *testing.T) {
	quietLogs(t)
	b := newFrameBuilder()
	a0, a1 := b.add(0, 0, 0), b.add(1, 0, 0)
	x1 := b.add(1, 1, 0)
	y0 := b.add(0, 2, 0)

	links := []FrameLinks{{Frame0: 0, Frame1: 1, Links: []Link{
		{Source: a0, Target: a1},
		{Source: a0, Target: x1}, // second successor
		{Source: y0, Target: a1}, // second predecessor
		{Source: a1, Target: y0}, // backwards
		{Source: nil, Target: x1},
	}}}

	segments, _ := CompileSegments(b.frames, links, 1)
	require.Len(t, segments, 3)
	assert.Equal(t, []*Spot{a0, a1}, segments[0].Spots)
	assert.Equal(t, []*Spot{y0}, segments[1].Spots)
	assert.Equal(t, []*Spot{x1}, segments[2].Spots)
}

// Every spot lands in exactly one chain, chains move strictly forward in
// time, and the kept chains all reach the minimum length.
func TestCompileSegments_Partition(t *testing.T) {
	quietLogs(t)
	rng := rand.New(rand.NewSource(11))
	b := newFrameBuilder()
	for f := 0; f < 30; f++ {
		for k := 0; k < 4; k++ {
			if rng.Intn(5) == 0 {
				continue
			}
			b.add(f, float64(k)*20+rng.Float64()*3, rng.Float64()*3)
		}
	}
	settings := DefaultSettings()
	tr := mustTracker(t, settings)
	links, err := tr.SolveFrameLinks(context.Background(), b.frames)
	require.NoError(t, err)

	all, dropped := CompileSegments(b.frames, links, 1)
	require.Zero(t, dropped)
	seen := make(map[int64]int)
	for _, seg := range all {
		for k, s := range seg.Spots {
			seen[s.ID]++
			if k > 0 {
				require.Greater(t, s.Frame, seg.Spots[k-1].Frame)
			}
		}
	}
	assert.Len(t, seen, b.frames.NumSpots())
	for id, n := range seen {
		assert.Equal(t, 1, n, "spot %d", id)
	}

	kept, dropped := CompileSegments(b.frames, links, settings.MinSegmentLength)
	short := 0
	for _, seg := range all {
		if seg.Len() < settings.MinSegmentLength {
			short++
		}
	}
	assert.Equal(t, short, dropped)
	assert.Len(t, kept, len(all)-short)
	for _, seg := range kept {
		assert.GreaterOrEqual(t, seg.Len(), settings.MinSegmentLength)
	}
}

func TestCompileSegments_LongChain(t *testing.T) {
	t.Parallel()
	b := newFrameBuilder()
	var links []FrameLinks
	var prev *Spot
	for f := 0; f < 50000; f++ {
		s := b.add(f, 0, 0)
		if prev != nil {
			links = append(links, FrameLinks{Frame0: f - 1, Frame1: f, Links: []Link{{Source: prev, Target: s}}})
		}
		prev = s
	}
	segments, _ := CompileSegments(b.frames, links, 3)
	require.Len(t, segments, 1)
	assert.Equal(t, 50000, segments[0].Len())
}

func TestIndexMiddlePoints(t *testing.T) {
	t.Parallel()
	b := newFrameBuilder()
	long := &Segment{Spots: []*Spot{b.add(0, 0, 0), b.add(1, 0, 0), b.add(2, 0, 0), b.add(3, 0, 0)}}
	short := &Segment{Spots: []*Spot{b.add(0, 5, 0), b.add(1, 5, 0)}}
	segments := []*Segment{short, long}

	idx := IndexMiddlePoints(segments, true, true)
	want := []MiddlePoint{
		{Spot: long.Spots[1], Segment: 1, Position: 1},
		{Spot: long.Spots[2], Segment: 1, Position: 2},
	}
	assert.Equal(t, want, idx.Splitting)
	assert.Equal(t, want, idx.Merging)

	idx = IndexMiddlePoints(segments, false, true)
	assert.Empty(t, idx.Splitting)
	assert.Len(t, idx.Merging, 2)

	idx = IndexMiddlePoints(segments, false, false)
	assert.Empty(t, idx.Splitting)
	assert.Empty(t, idx.Merging)
}
