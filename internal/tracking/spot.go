package tracking

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"
)

// Spot is a detected object in one frame. 2D data leaves Position.Z at zero.
// Features are numeric measurements added by upstream analysers; the tracker
// only reads them.
type Spot struct {
	ID       int64
	Frame    int
	Position r3.Vec
	Radius   float64
	Features map[string]float64
}

// NewSpot creates a spot at (x, y, z) in frame.
func NewSpot(id int64, frame int, x, y, z float64) *Spot {
	return &Spot{
		ID:       id,
		Frame:    frame,
		Position: r3.Vec{X: x, Y: y, Z: z},
	}
}

// SetFeature records a feature value and returns the spot for chaining.
func (s *Spot) SetFeature(name string, v float64) *Spot {
	if s.Features == nil {
		s.Features = make(map[string]float64)
	}
	s.Features[name] = v
	return s
}

// Feature returns the named feature. Missing and NaN values report false.
func (s *Spot) Feature(name string) (float64, bool) {
	v, ok := s.Features[name]
	if !ok || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

func (s *Spot) String() string {
	return fmt.Sprintf("spot#%d@t%d(%.2f, %.2f, %.2f)", s.ID, s.Frame, s.Position.X, s.Position.Y, s.Position.Z)
}

// compareSpots orders spots by frame, then ID.
func compareSpots(a, b *Spot) int {
	if c := cmp.Compare(a.Frame, b.Frame); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// Frames maps a frame index to the spots detected in it. Frame indices need
// not be contiguous; frame pairs are formed from consecutive keys.
type Frames map[int][]*Spot

// Add appends s to its frame.
func (f Frames) Add(s *Spot) {
	f[s.Frame] = append(f[s.Frame], s)
}

// Indices returns the frame keys in ascending order.
func (f Frames) Indices() []int {
	keys := make([]int, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// NumSpots returns the total number of spots over all frames.
func (f Frames) NumSpots() int {
	n := 0
	for _, spots := range f {
		n += len(spots)
	}
	return n
}

// Sorted returns every spot ordered by frame, then ID.
func (f Frames) Sorted() []*Spot {
	all := make([]*Spot, 0, f.NumSpots())
	for _, spots := range f {
		all = append(all, spots...)
	}
	slices.SortFunc(all, compareSpots)
	return all
}

// Validate checks that the collection holds at least one spot, that spot
// IDs are unique and that every spot sits under its own frame key.
func (f Frames) Validate() error {
	if len(f) == 0 || f.NumSpots() == 0 {
		return ErrEmptyInput
	}
	seen := make(map[int64]struct{}, f.NumSpots())
	for frame, spots := range f {
		for _, s := range spots {
			if s == nil {
				return fmt.Errorf("%w: nil spot in frame %d", ErrInvalidInput, frame)
			}
			if s.Frame != frame {
				return fmt.Errorf("%w: %v stored under frame %d", ErrInvalidInput, s, frame)
			}
			if _, dup := seen[s.ID]; dup {
				return fmt.Errorf("%w: duplicate spot id %d", ErrInvalidInput, s.ID)
			}
			seen[s.ID] = struct{}{}
		}
	}
	return nil
}
