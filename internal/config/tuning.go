package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/laptrack/internal/fsutil"
	"github.com/banshee-data/laptrack/internal/lap"
	"github.com/banshee-data/laptrack/internal/tracking"
)

// DefaultConfigPath is the path to the canonical tracker defaults file.
const DefaultConfigPath = "config/tracker.defaults.json"

// maxConfigSize caps tuning files at 1MB.
const maxConfigSize = 1 * 1024 * 1024

// TrackerTuning is the on-disk form of tracking.Settings. Every field is
// optional; the Get* accessors supply the default for a nil field, so
// partial files are safe. JSON and YAML share the same snake_case keys.
type TrackerTuning struct {
	// Frame-to-frame linking
	LinkingMaxDistance      *float64           `json:"linking_max_distance,omitempty" yaml:"linking_max_distance,omitempty"`
	LinkingFeaturePenalties map[string]float64 `json:"linking_feature_penalties,omitempty" yaml:"linking_feature_penalties,omitempty"`

	// Gap closing
	AllowGapClosing            *bool              `json:"allow_gap_closing,omitempty" yaml:"allow_gap_closing,omitempty"`
	GapClosingMaxFrameGap      *int               `json:"gap_closing_max_frame_gap,omitempty" yaml:"gap_closing_max_frame_gap,omitempty"`
	GapClosingMaxDistance      *float64           `json:"gap_closing_max_distance,omitempty" yaml:"gap_closing_max_distance,omitempty"`
	GapClosingFeaturePenalties map[string]float64 `json:"gap_closing_feature_penalties,omitempty" yaml:"gap_closing_feature_penalties,omitempty"`

	// Splitting and merging
	AllowSplitting            *bool              `json:"allow_splitting,omitempty" yaml:"allow_splitting,omitempty"`
	SplittingMaxDistance      *float64           `json:"splitting_max_distance,omitempty" yaml:"splitting_max_distance,omitempty"`
	SplittingFeaturePenalties map[string]float64 `json:"splitting_feature_penalties,omitempty" yaml:"splitting_feature_penalties,omitempty"`
	AllowMerging              *bool              `json:"allow_merging,omitempty" yaml:"allow_merging,omitempty"`
	MergingMaxDistance        *float64           `json:"merging_max_distance,omitempty" yaml:"merging_max_distance,omitempty"`
	MergingFeaturePenalties   map[string]float64 `json:"merging_feature_penalties,omitempty" yaml:"merging_feature_penalties,omitempty"`
	MergeSplitMaxFrameGap     *int               `json:"merge_split_max_frame_gap,omitempty" yaml:"merge_split_max_frame_gap,omitempty"`

	// Intensity gate; an empty feature name disables it
	IntensityFeature  *string  `json:"intensity_feature,omitempty" yaml:"intensity_feature,omitempty"`
	IntensityRatioMin *float64 `json:"intensity_ratio_min,omitempty" yaml:"intensity_ratio_min,omitempty"`
	IntensityRatioMax *float64 `json:"intensity_ratio_max,omitempty" yaml:"intensity_ratio_max,omitempty"`

	// Shared
	MinSegmentLength             *int     `json:"min_segment_length,omitempty" yaml:"min_segment_length,omitempty"`
	AlternativeLinkingCostFactor *float64 `json:"alternative_linking_cost_factor,omitempty" yaml:"alternative_linking_cost_factor,omitempty"`
	CutoffPercentile             *float64 `json:"cutoff_percentile,omitempty" yaml:"cutoff_percentile,omitempty"`
	BlockingValue                *float64 `json:"blocking_value,omitempty" yaml:"blocking_value,omitempty"`

	// Execution
	Solver  *string `json:"solver,omitempty" yaml:"solver,omitempty"`
	Workers *int    `json:"workers,omitempty" yaml:"workers,omitempty"`
}

// EmptyTrackerTuning returns a TrackerTuning with all fields unset.
func EmptyTrackerTuning() *TrackerTuning {
	return &TrackerTuning{}
}

// LoadTrackerTuning loads a tuning file from the OS filesystem.
func LoadTrackerTuning(path string) (*TrackerTuning, error) {
	return LoadTrackerTuningFS(fsutil.OSFileSystem{}, path)
}

// LoadTrackerTuningFS loads a tuning file from fsys. The extension selects
// the format: .json, .yaml or .yml. Unknown keys are rejected so typos do
// not silently fall back to defaults.
func LoadTrackerTuningFS(fsys fsutil.FileSystem, path string) (*TrackerTuning, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	data, err := fsutil.ReadFileLimit(fsys, cleanPath, maxConfigSize)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTrackerTuning()
	if ext == ".json" {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded; intended
// for test setup.
func MustLoadDefaultConfig() *TrackerTuning {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/laptrack/
	}
	for _, path := range candidates {
		if cfg, err := LoadTrackerTuning(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// ApplyEnv overrides execution fields from LAPTRACK_SOLVER and
// LAPTRACK_WORKERS. Unparseable values are reported, not ignored.
func (c *TrackerTuning) ApplyEnv(getenv func(string) string) error {
	if v := getenv("LAPTRACK_SOLVER"); v != "" {
		c.Solver = ptrString(v)
	}
	if v := getenv("LAPTRACK_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LAPTRACK_WORKERS: %w", err)
		}
		c.Workers = ptrInt(n)
	}
	return c.Validate()
}

// Validate checks the fields that are set. Cross-field rules that depend on
// defaults are left to tracking.Settings.Validate via ToSettings.
func (c *TrackerTuning) Validate() error {
	if c.CutoffPercentile != nil {
		if p := *c.CutoffPercentile; !(p > 0 && p <= 1) {
			return fmt.Errorf("cutoff_percentile must be in (0, 1], got %v", p)
		}
	}
	if c.MinSegmentLength != nil && *c.MinSegmentLength < 1 {
		return fmt.Errorf("min_segment_length must be >= 1, got %d", *c.MinSegmentLength)
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	if c.Solver != nil {
		if _, err := lap.ByName(*c.Solver); err != nil {
			return fmt.Errorf("solver: %w", err)
		}
	}
	return c.ToSettings().Validate()
}

// ToSettings resolves every field to a tracking.Settings value.
func (c *TrackerTuning) ToSettings() tracking.Settings {
	return tracking.Settings{
		LinkingMaxDistance:           c.GetLinkingMaxDistance(),
		LinkingFeaturePenalties:      c.LinkingFeaturePenalties,
		AllowGapClosing:              c.GetAllowGapClosing(),
		GapClosingMaxFrameGap:        c.GetGapClosingMaxFrameGap(),
		GapClosingMaxDistance:        c.GetGapClosingMaxDistance(),
		GapClosingFeaturePenalties:   c.GapClosingFeaturePenalties,
		AllowSplitting:               c.GetAllowSplitting(),
		SplittingMaxDistance:         c.GetSplittingMaxDistance(),
		SplittingFeaturePenalties:    c.SplittingFeaturePenalties,
		AllowMerging:                 c.GetAllowMerging(),
		MergingMaxDistance:           c.GetMergingMaxDistance(),
		MergingFeaturePenalties:      c.MergingFeaturePenalties,
		MergeSplitMaxFrameGap:        c.GetMergeSplitMaxFrameGap(),
		IntensityFeature:             c.GetIntensityFeature(),
		IntensityRatioMin:            c.GetIntensityRatioMin(),
		IntensityRatioMax:            c.GetIntensityRatioMax(),
		MinSegmentLength:             c.GetMinSegmentLength(),
		AlternativeLinkingCostFactor: c.GetAlternativeLinkingCostFactor(),
		CutoffPercentile:             c.GetCutoffPercentile(),
		BlockingValue:                c.GetBlockingValue(),
		Solver:                       c.GetSolver(),
		Workers:                      c.GetWorkers(),
	}
}

func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }

func (c *TrackerTuning) GetLinkingMaxDistance() float64 {
	if c.LinkingMaxDistance == nil {
		return tracking.DefaultLinkingMaxDistance
	}
	return *c.LinkingMaxDistance
}

func (c *TrackerTuning) GetAllowGapClosing() bool {
	if c.AllowGapClosing == nil {
		return true
	}
	return *c.AllowGapClosing
}

func (c *TrackerTuning) GetGapClosingMaxFrameGap() int {
	if c.GapClosingMaxFrameGap == nil {
		return tracking.DefaultGapClosingMaxFrameGap
	}
	return *c.GapClosingMaxFrameGap
}

func (c *TrackerTuning) GetGapClosingMaxDistance() float64 {
	if c.GapClosingMaxDistance == nil {
		return tracking.DefaultGapClosingMaxDistance
	}
	return *c.GapClosingMaxDistance
}

func (c *TrackerTuning) GetAllowSplitting() bool {
	if c.AllowSplitting == nil {
		return true
	}
	return *c.AllowSplitting
}

func (c *TrackerTuning) GetSplittingMaxDistance() float64 {
	if c.SplittingMaxDistance == nil {
		return tracking.DefaultSplittingMaxDistance
	}
	return *c.SplittingMaxDistance
}

func (c *TrackerTuning) GetAllowMerging() bool {
	if c.AllowMerging == nil {
		return true
	}
	return *c.AllowMerging
}

func (c *TrackerTuning) GetMergingMaxDistance() float64 {
	if c.MergingMaxDistance == nil {
		return tracking.DefaultMergingMaxDistance
	}
	return *c.MergingMaxDistance
}

func (c *TrackerTuning) GetMergeSplitMaxFrameGap() int {
	if c.MergeSplitMaxFrameGap == nil {
		return tracking.DefaultMergeSplitMaxFrameGap
	}
	return *c.MergeSplitMaxFrameGap
}

// GetIntensityFeature returns the gate feature; an explicit "" disables the
// gate and is returned as is.
func (c *TrackerTuning) GetIntensityFeature() string {
	if c.IntensityFeature == nil {
		return tracking.DefaultIntensityFeature
	}
	return *c.IntensityFeature
}

func (c *TrackerTuning) GetIntensityRatioMin() float64 {
	if c.IntensityRatioMin == nil {
		return tracking.DefaultIntensityRatioMin
	}
	return *c.IntensityRatioMin
}

func (c *TrackerTuning) GetIntensityRatioMax() float64 {
	if c.IntensityRatioMax == nil {
		return tracking.DefaultIntensityRatioMax
	}
	return *c.IntensityRatioMax
}

func (c *TrackerTuning) GetMinSegmentLength() int {
	if c.MinSegmentLength == nil {
		return tracking.DefaultMinSegmentLength
	}
	return *c.MinSegmentLength
}

func (c *TrackerTuning) GetAlternativeLinkingCostFactor() float64 {
	if c.AlternativeLinkingCostFactor == nil {
		return tracking.DefaultAlternativeLinkingCostFactor
	}
	return *c.AlternativeLinkingCostFactor
}

func (c *TrackerTuning) GetCutoffPercentile() float64 {
	if c.CutoffPercentile == nil {
		return tracking.DefaultCutoffPercentile
	}
	return *c.CutoffPercentile
}

func (c *TrackerTuning) GetBlockingValue() float64 {
	if c.BlockingValue == nil {
		return tracking.DefaultBlockingValue
	}
	return *c.BlockingValue
}

func (c *TrackerTuning) GetSolver() string {
	if c.Solver == nil {
		return lap.SolverHungarian
	}
	return *c.Solver
}

// GetWorkers returns the frame-pair worker count; 0 means GOMAXPROCS.
func (c *TrackerTuning) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}
