// Package trackio reads spot detections and writes tracking results.
//
// Spot input is JSON (the format WriteSpots produces) or a CSV spot table
// with ID, FRAME and POSITION_X/Y[/Z] columns; every other numeric column is
// read as a feature. Results are written as a JSON graph document.
package trackio

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/banshee-data/laptrack/internal/fsutil"
	"github.com/banshee-data/laptrack/internal/tracking"
)

// SpotRecord is the serialised form of a tracking.Spot.
type SpotRecord struct {
	ID       int64              `json:"id"`
	Frame    int                `json:"frame"`
	X        float64            `json:"x"`
	Y        float64            `json:"y"`
	Z        float64            `json:"z,omitempty"`
	Radius   float64            `json:"radius,omitempty"`
	Features map[string]float64 `json:"features,omitempty"`
}

// SpotFile is the top-level JSON document of a spot input file.
type SpotFile struct {
	Spots []SpotRecord `json:"spots"`
}

// NewSpotRecord converts a spot. NaN features are omitted since JSON has no
// encoding for them; readers treat a missing feature like NaN.
func NewSpotRecord(s *tracking.Spot) SpotRecord {
	rec := SpotRecord{
		ID:     s.ID,
		Frame:  s.Frame,
		X:      s.Position.X,
		Y:      s.Position.Y,
		Z:      s.Position.Z,
		Radius: s.Radius,
	}
	for k, v := range s.Features {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if rec.Features == nil {
			rec.Features = make(map[string]float64, len(s.Features))
		}
		rec.Features[k] = v
	}
	return rec
}

// Spot converts the record back to a tracking.Spot.
func (r SpotRecord) Spot() *tracking.Spot {
	s := tracking.NewSpot(r.ID, r.Frame, r.X, r.Y, r.Z)
	s.Radius = r.Radius
	for k, v := range r.Features {
		s.SetFeature(k, v)
	}
	return s
}

// ReadSpots loads the spots of path, choosing the format by extension.
func ReadSpots(fsys fsutil.FileSystem, path string) (tracking.Frames, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open spots: %w", err)
	}
	defer f.Close()

	var frames tracking.Frames
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		frames, err = DecodeSpotsJSON(f)
	case ".csv":
		frames, err = DecodeSpotsCSV(f)
	default:
		return nil, fmt.Errorf("spots file must be .json or .csv, got %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return frames, nil
}

// DecodeSpotsJSON reads a SpotFile document.
func DecodeSpotsJSON(r io.Reader) (tracking.Frames, error) {
	var doc SpotFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode spots: %w", err)
	}
	frames := make(tracking.Frames)
	for _, rec := range doc.Spots {
		frames.Add(rec.Spot())
	}
	return frames, nil
}

// CSV column names, matching spot table exports.
const (
	colID        = "ID"
	colFrame     = "FRAME"
	colPositionX = "POSITION_X"
	colPositionY = "POSITION_Y"
	colPositionZ = "POSITION_Z"
	colRadius    = "RADIUS"
)

// DecodeSpotsCSV reads a spot table. The header row is required; column
// names are matched case-insensitively. Extra columns become features;
// empty or non-numeric cells in them are treated as missing.
func DecodeSpotsCSV(r io.Reader) (tracking.Frames, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToUpper(strings.TrimSpace(h))] = i
	}
	for _, req := range []string{colID, colFrame, colPositionX, colPositionY} {
		if _, ok := cols[req]; !ok {
			return nil, fmt.Errorf("csv header lacks required column %s", req)
		}
	}
	reserved := []string{colID, colFrame, colPositionX, colPositionY, colPositionZ, colRadius}

	frames := make(tracking.Frames)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		// Comment and blank lines are skipped by the reader, so ask it where
		// the record started.
		line, _ := cr.FieldPos(0)
		cell := func(name string) (string, bool) {
			i, ok := cols[name]
			if !ok || i >= len(row) {
				return "", false
			}
			v := strings.TrimSpace(row[i])
			return v, v != ""
		}
		number := func(name string, required bool) (float64, error) {
			v, ok := cell(name)
			if !ok {
				if required {
					return 0, fmt.Errorf("line %d: missing %s", line, name)
				}
				return 0, nil
			}
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return 0, fmt.Errorf("line %d: %s: %w", line, name, err)
			}
			return f, nil
		}

		idText, _ := cell(colID)
		id, err := strconv.ParseInt(idText, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", line, colID, err)
		}
		frameText, _ := cell(colFrame)
		frame, err := strconv.Atoi(frameText)
		if err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", line, colFrame, err)
		}
		var pos [3]float64
		for k, name := range []string{colPositionX, colPositionY, colPositionZ} {
			if pos[k], err = number(name, k < 2); err != nil {
				return nil, err
			}
		}
		radius, err := number(colRadius, false)
		if err != nil {
			return nil, err
		}

		s := tracking.NewSpot(id, frame, pos[0], pos[1], pos[2])
		s.Radius = radius
		for i, h := range header {
			name := strings.TrimSpace(h)
			if i >= len(row) || slices.Contains(reserved, strings.ToUpper(name)) {
				continue
			}
			if v, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64); err == nil {
				s.SetFeature(name, v)
			}
		}
		frames.Add(s)
	}
	return frames, nil
}

// WriteSpots writes frames as a SpotFile, spots ordered by frame then ID.
func WriteSpots(fsys fsutil.FileSystem, path string, frames tracking.Frames) error {
	doc := SpotFile{Spots: make([]SpotRecord, 0, frames.NumSpots())}
	for _, s := range frames.Sorted() {
		doc.Spots = append(doc.Spots, NewSpotRecord(s))
	}
	return writeJSON(fsys, path, doc)
}

func writeJSON(fsys fsutil.FileSystem, path string, v any) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	w, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}
