package tracking

import (
	"testing"

	"github.com/banshee-data/laptrack/internal/monitoring"
)

// quietLogs mutes monitoring.Logf for the duration of a test.
func quietLogs(t *testing.T) {
	t.Helper()
	prev := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = prev })
}

// frameBuilder hands out sequential spot IDs.
type frameBuilder struct {
	frames Frames
	nextID int64
}

func newFrameBuilder() *frameBuilder {
	return &frameBuilder{frames: make(Frames)}
}

func (b *frameBuilder) add(frame int, x, y float64) *Spot {
	s := NewSpot(b.nextID, frame, x, y, 0)
	b.nextID++
	b.frames.Add(s)
	return s
}

// emptyFrame registers a frame with no detections.
func (b *frameBuilder) emptyFrame(frame int) {
	if _, ok := b.frames[frame]; !ok {
		b.frames[frame] = []*Spot{}
	}
}

// nearestNeighbourFrames: two objects, two frames, each moving by one unit.
func nearestNeighbourFrames() (Frames, [4]*Spot) {
	b := newFrameBuilder()
	a0 := b.add(0, 0, 0)
	b0 := b.add(0, 10, 0)
	a1 := b.add(1, 1, 0)
	b1 := b.add(1, 11, 0)
	return b.frames, [4]*Spot{a0, b0, a1, b1}
}

// gapFrames: one object moving along x over frames 0..6, undetected in
// frame 3.
func gapFrames() (Frames, map[int]*Spot) {
	b := newFrameBuilder()
	byFrame := make(map[int]*Spot)
	for f := 0; f <= 6; f++ {
		if f == 3 {
			b.emptyFrame(f)
			continue
		}
		byFrame[f] = b.add(f, float64(f), 0)
	}
	return b.frames, byFrame
}

// splitFrames: a mother cell moving along x over frames 0..5 divides into
// two daughters that drift apart over frames 6..9.
func splitFrames() (Frames, *Spot) {
	b := newFrameBuilder()
	var divider *Spot
	for f := 0; f <= 5; f++ {
		s := b.add(f, 2*float64(f), 0)
		if f == 5 {
			divider = s
		}
	}
	for f := 6; f <= 9; f++ {
		dy := 2 * float64(f-5)
		b.add(f, 2*float64(f), dy)
		b.add(f, 2*float64(f), -dy)
	}
	return b.frames, divider
}

// mergeFrames is splitFrames run backwards: two objects converge at frame
// 4 and move on together.
func mergeFrames() (Frames, *Spot) {
	b := newFrameBuilder()
	var joint *Spot
	for f := 0; f <= 3; f++ {
		dy := 2 * float64(4-f)
		b.add(f, 2*float64(9-f), dy)
		b.add(f, 2*float64(9-f), -dy)
	}
	for f := 4; f <= 9; f++ {
		s := b.add(f, 2*float64(9-f), 0)
		if f == 4 {
			joint = s
		}
	}
	return b.frames, joint
}

// mustTracker builds a tracker or fails the test.
func mustTracker(t *testing.T, s Settings, opts ...Option) *Tracker {
	t.Helper()
	tr, err := NewTracker(s, opts...)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	return tr
}
