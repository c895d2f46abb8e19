package tracking

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// EdgeKind records which stage created an edge.
type EdgeKind int

const (
	EdgeLink       EdgeKind = iota // frame-to-frame link
	EdgeGapClosing                 // segment end → segment start across a gap
	EdgeSplit                      // middle point → segment start
	EdgeMerge                      // segment end → middle point
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeLink:
		return "link"
	case EdgeGapClosing:
		return "gap_closing"
	case EdgeSplit:
		return "split"
	case EdgeMerge:
		return "merge"
	default:
		return fmt.Sprintf("EdgeKind(%d)", int(k))
	}
}

// ParseEdgeKind is the inverse of EdgeKind.String.
func ParseEdgeKind(s string) (EdgeKind, error) {
	for k := EdgeLink; k <= EdgeMerge; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown edge kind %q", s)
}

// Edge is a weighted, time-forward link between two spots.
type Edge struct {
	Source *Spot
	Target *Spot
	Cost   float64
	Kind   EdgeKind
}

// Graph is the trajectory graph: spots are vertices keyed by Spot.ID and
// edges point forward in time. A spot may have several predecessors or
// successors; that is how merges and splits are represented.
type Graph struct {
	g     *simple.WeightedDirectedGraph
	spots map[int64]*Spot
	kinds map[[2]int64]EdgeKind
}

// NewGraph returns a graph holding every spot of frames and no edges.
func NewGraph(frames Frames) *Graph {
	gr := &Graph{
		g:     simple.NewWeightedDirectedGraph(0, math.Inf(1)),
		spots: make(map[int64]*Spot, frames.NumSpots()),
		kinds: make(map[[2]int64]EdgeKind),
	}
	for _, s := range frames.Sorted() {
		gr.AddSpot(s)
	}
	return gr
}

// AddSpot adds s as a vertex. Adding the same spot twice is a no-op.
func (gr *Graph) AddSpot(s *Spot) {
	if _, ok := gr.spots[s.ID]; ok {
		return
	}
	gr.spots[s.ID] = s
	gr.g.AddNode(simple.Node(s.ID))
}

// Spot returns the vertex with the given ID, or nil.
func (gr *Graph) Spot(id int64) *Spot {
	return gr.spots[id]
}

// NumSpots returns the vertex count.
func (gr *Graph) NumSpots() int { return len(gr.spots) }

// NumEdges returns the edge count.
func (gr *Graph) NumEdges() int { return len(gr.kinds) }

// Link adds the edge from → to. Both spots must already be vertices, the
// edge must move forward in time and must not exist yet.
func (gr *Graph) Link(from, to *Spot, cost float64, kind EdgeKind) error {
	if gr.spots[from.ID] == nil || gr.spots[to.ID] == nil {
		return fmt.Errorf("link %v → %v: spot not in graph", from, to)
	}
	if to.Frame <= from.Frame {
		return fmt.Errorf("link %v → %v: edges must move forward in time", from, to)
	}
	key := [2]int64{from.ID, to.ID}
	if _, ok := gr.kinds[key]; ok {
		return fmt.Errorf("link %v → %v: edge already present", from, to)
	}
	gr.g.SetWeightedEdge(gr.g.NewWeightedEdge(simple.Node(from.ID), simple.Node(to.ID), cost))
	gr.kinds[key] = kind
	return nil
}

// HasEdge reports whether from → to exists.
func (gr *Graph) HasEdge(from, to *Spot) bool {
	_, ok := gr.kinds[[2]int64{from.ID, to.ID}]
	return ok
}

// Successors returns the spots s links to, ordered by frame then ID.
func (gr *Graph) Successors(s *Spot) []*Spot {
	return gr.spotsOf(gr.g.From(s.ID))
}

// Predecessors returns the spots linking to s, ordered by frame then ID.
func (gr *Graph) Predecessors(s *Spot) []*Spot {
	return gr.spotsOf(gr.g.To(s.ID))
}

func (gr *Graph) spotsOf(it graph.Nodes) []*Spot {
	var out []*Spot
	for it.Next() {
		out = append(out, gr.spots[it.Node().ID()])
	}
	slices.SortFunc(out, compareSpots)
	return out
}

// Edges returns every edge ordered by source, then target.
func (gr *Graph) Edges() []Edge {
	out := make([]Edge, 0, len(gr.kinds))
	for key, kind := range gr.kinds {
		w, _ := gr.g.Weight(key[0], key[1])
		out = append(out, Edge{
			Source: gr.spots[key[0]],
			Target: gr.spots[key[1]],
			Cost:   w,
			Kind:   kind,
		})
	}
	slices.SortFunc(out, func(a, b Edge) int {
		if c := compareSpots(a.Source, b.Source); c != 0 {
			return c
		}
		return compareSpots(a.Target, b.Target)
	})
	return out
}

// Tracks returns the weakly connected components with at least one edge,
// each ordered by frame then ID, and the components ordered by their first
// spot.
func (gr *Graph) Tracks() [][]*Spot {
	var tracks [][]*Spot
	for _, comp := range topo.ConnectedComponents(graph.Undirect{G: gr.g}) {
		if len(comp) < 2 {
			continue
		}
		track := make([]*Spot, 0, len(comp))
		for _, n := range comp {
			track = append(track, gr.spots[n.ID()])
		}
		slices.SortFunc(track, compareSpots)
		tracks = append(tracks, track)
	}
	slices.SortFunc(tracks, func(a, b []*Spot) int {
		return cmp.Or(compareSpots(a[0], b[0]), cmp.Compare(len(a), len(b)))
	})
	return tracks
}
