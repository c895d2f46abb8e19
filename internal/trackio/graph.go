package trackio

import (
	"encoding/json"
	"fmt"

	"github.com/banshee-data/laptrack/internal/fsutil"
	"github.com/banshee-data/laptrack/internal/tracking"
)

// EdgeRecord is one trajectory graph edge.
type EdgeRecord struct {
	Source int64   `json:"source"`
	Target int64   `json:"target"`
	Cost   float64 `json:"cost"`
	Kind   string  `json:"kind"`
}

// StatsRecord mirrors tracking.Stats with durations in seconds.
type StatsRecord struct {
	FramePairs      int     `json:"frame_pairs"`
	FrameLinks      int     `json:"frame_links"`
	Segments        int     `json:"segments"`
	DroppedSegments int     `json:"dropped_segments"`
	GapClosings     int     `json:"gap_closings"`
	Merges          int     `json:"merges"`
	Splits          int     `json:"splits"`
	Stage1Seconds   float64 `json:"stage1_seconds"`
	Stage2Seconds   float64 `json:"stage2_seconds"`
}

// GraphDocument is the JSON form of a tracking result: every spot, every
// edge, and the spot IDs of each track.
type GraphDocument struct {
	RunID  string       `json:"run_id,omitempty"`
	Spots  []SpotRecord `json:"spots"`
	Edges  []EdgeRecord `json:"edges"`
	Tracks [][]int64    `json:"tracks"`
	Stats  StatsRecord  `json:"stats"`
}

// NewGraphDocument flattens res. Spot order is frame then ID; edge order is
// that of Graph.Edges.
func NewGraphDocument(runID string, frames tracking.Frames, res *tracking.Result) GraphDocument {
	doc := GraphDocument{
		RunID:  runID,
		Spots:  make([]SpotRecord, 0, frames.NumSpots()),
		Edges:  []EdgeRecord{},
		Tracks: [][]int64{},
		Stats: StatsRecord{
			FramePairs:      res.Stats.FramePairs,
			FrameLinks:      res.Stats.FrameLinks,
			Segments:        res.Stats.Segments,
			DroppedSegments: res.Stats.DroppedSegments,
			GapClosings:     res.Stats.GapClosings,
			Merges:          res.Stats.Merges,
			Splits:          res.Stats.Splits,
			Stage1Seconds:   res.Stats.Stage1.Seconds(),
			Stage2Seconds:   res.Stats.Stage2.Seconds(),
		},
	}
	for _, s := range frames.Sorted() {
		doc.Spots = append(doc.Spots, NewSpotRecord(s))
	}
	for _, e := range res.Graph.Edges() {
		doc.Edges = append(doc.Edges, EdgeRecord{
			Source: e.Source.ID,
			Target: e.Target.ID,
			Cost:   e.Cost,
			Kind:   e.Kind.String(),
		})
	}
	for _, track := range res.Graph.Tracks() {
		ids := make([]int64, len(track))
		for i, s := range track {
			ids[i] = s.ID
		}
		doc.Tracks = append(doc.Tracks, ids)
	}
	return doc
}

// Graph rebuilds the trajectory graph described by the document.
func (d GraphDocument) Graph() (*tracking.Graph, error) {
	frames := make(tracking.Frames)
	for _, rec := range d.Spots {
		frames.Add(rec.Spot())
	}
	if err := frames.Validate(); err != nil {
		return nil, err
	}
	g := tracking.NewGraph(frames)
	for _, e := range d.Edges {
		kind, err := tracking.ParseEdgeKind(e.Kind)
		if err != nil {
			return nil, err
		}
		src, dst := g.Spot(e.Source), g.Spot(e.Target)
		if src == nil || dst == nil {
			return nil, fmt.Errorf("edge %d → %d references an unknown spot", e.Source, e.Target)
		}
		if err := g.Link(src, dst, e.Cost, kind); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// WriteGraph writes doc to path, creating parent directories.
func WriteGraph(fsys fsutil.FileSystem, path string, doc GraphDocument) error {
	return writeJSON(fsys, path, doc)
}

// ReadGraph loads a document written by WriteGraph.
func ReadGraph(fsys fsutil.FileSystem, path string) (GraphDocument, error) {
	var doc GraphDocument
	f, err := fsys.Open(path)
	if err != nil {
		return doc, fmt.Errorf("open graph: %w", err)
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(&doc); err != nil {
		return doc, fmt.Errorf("decode graph %s: %w", path, err)
	}
	return doc, nil
}
