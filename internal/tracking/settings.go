package tracking

import (
	"fmt"
	"maps"
	"math"
	"runtime"
	"slices"
	"strings"

	"github.com/banshee-data/laptrack/internal/lap"
)

// Default values for Settings.
const (
	DefaultMinSegmentLength             = 3
	DefaultLinkingMaxDistance           = 15.0
	DefaultGapClosingMaxFrameGap        = 4
	DefaultGapClosingMaxDistance        = 15.0
	DefaultMergeSplitMaxFrameGap        = 1
	DefaultSplittingMaxDistance         = 15.0
	DefaultMergingMaxDistance           = 15.0
	DefaultAlternativeLinkingCostFactor = 1.05
	DefaultCutoffPercentile             = 0.9
	DefaultBlockingValue                = math.MaxFloat64
	DefaultIntensityFeature             = "MEAN_INTENSITY"
	DefaultIntensityRatioMin            = 0.5
	DefaultIntensityRatioMax            = 4.0

	// DefaultAlternativeCutoff prices alternatives when a matrix holds no
	// usable finite cost to take a percentile from.
	DefaultAlternativeCutoff = 10.0
)

// Settings is the immutable configuration of one tracking run. Construct it
// with DefaultSettings and override fields; the tracker copies it.
type Settings struct {
	// Frame-to-frame linking.
	LinkingMaxDistance      float64
	LinkingFeaturePenalties map[string]float64

	// Gap closing.
	AllowGapClosing            bool
	GapClosingMaxFrameGap      int
	GapClosingMaxDistance      float64
	GapClosingFeaturePenalties map[string]float64

	// Splitting and merging share one frame window.
	AllowSplitting            bool
	SplittingMaxDistance      float64
	SplittingFeaturePenalties map[string]float64
	AllowMerging              bool
	MergingMaxDistance        float64
	MergingFeaturePenalties   map[string]float64
	MergeSplitMaxFrameGap     int

	// Intensity plausibility gate for splitting and merging. An empty
	// feature name disables the gate.
	IntensityFeature  string
	IntensityRatioMin float64
	IntensityRatioMax float64

	MinSegmentLength             int
	AlternativeLinkingCostFactor float64
	CutoffPercentile             float64
	BlockingValue                float64

	Solver  string // lap.SolverHungarian or lap.SolverMunkres
	Workers int    // frame-pair workers; 0 means GOMAXPROCS
}

// DefaultSettings returns the default tracker configuration.
func DefaultSettings() Settings {
	return Settings{
		LinkingMaxDistance:           DefaultLinkingMaxDistance,
		AllowGapClosing:              true,
		GapClosingMaxFrameGap:        DefaultGapClosingMaxFrameGap,
		GapClosingMaxDistance:        DefaultGapClosingMaxDistance,
		AllowSplitting:               true,
		SplittingMaxDistance:         DefaultSplittingMaxDistance,
		AllowMerging:                 true,
		MergingMaxDistance:           DefaultMergingMaxDistance,
		MergeSplitMaxFrameGap:        DefaultMergeSplitMaxFrameGap,
		IntensityFeature:             DefaultIntensityFeature,
		IntensityRatioMin:            DefaultIntensityRatioMin,
		IntensityRatioMax:            DefaultIntensityRatioMax,
		MinSegmentLength:             DefaultMinSegmentLength,
		AlternativeLinkingCostFactor: DefaultAlternativeLinkingCostFactor,
		CutoffPercentile:             DefaultCutoffPercentile,
		BlockingValue:                DefaultBlockingValue,
		Solver:                       lap.SolverHungarian,
	}
}

// clone deep-copies the penalty maps so later caller edits cannot leak into
// a running tracker.
func (s Settings) clone() Settings {
	s.LinkingFeaturePenalties = maps.Clone(s.LinkingFeaturePenalties)
	s.GapClosingFeaturePenalties = maps.Clone(s.GapClosingFeaturePenalties)
	s.SplittingFeaturePenalties = maps.Clone(s.SplittingFeaturePenalties)
	s.MergingFeaturePenalties = maps.Clone(s.MergingFeaturePenalties)
	return s
}

// segmentLinking reports whether any stage-2 rule is enabled.
func (s Settings) segmentLinking() bool {
	return s.AllowGapClosing || s.AllowSplitting || s.AllowMerging
}

func (s Settings) workers() int {
	if s.Workers > 0 {
		return s.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Validate reports every invalid field at once.
func (s Settings) Validate() error {
	var problems []string
	positive := func(name string, v float64) {
		if !(v > 0) || math.IsInf(v, 0) {
			problems = append(problems, fmt.Sprintf("%s must be a positive finite number, got %v", name, v))
		}
	}
	penalties := func(name string, m map[string]float64) {
		for _, k := range slices.Sorted(maps.Keys(m)) {
			if w := m[k]; math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
				problems = append(problems, fmt.Sprintf("%s[%q] must be a non-negative finite weight, got %v", name, k, w))
			}
		}
	}

	positive("linking max distance", s.LinkingMaxDistance)
	penalties("linking feature penalties", s.LinkingFeaturePenalties)

	if s.AllowGapClosing {
		positive("gap closing max distance", s.GapClosingMaxDistance)
		if s.GapClosingMaxFrameGap < 1 {
			problems = append(problems, fmt.Sprintf("gap closing max frame gap must be >= 1, got %d", s.GapClosingMaxFrameGap))
		}
		penalties("gap closing feature penalties", s.GapClosingFeaturePenalties)
	}
	if s.AllowSplitting {
		positive("splitting max distance", s.SplittingMaxDistance)
		penalties("splitting feature penalties", s.SplittingFeaturePenalties)
	}
	if s.AllowMerging {
		positive("merging max distance", s.MergingMaxDistance)
		penalties("merging feature penalties", s.MergingFeaturePenalties)
	}
	if (s.AllowSplitting || s.AllowMerging) && s.MergeSplitMaxFrameGap < 1 {
		problems = append(problems, fmt.Sprintf("merge/split max frame gap must be >= 1, got %d", s.MergeSplitMaxFrameGap))
	}
	if s.IntensityFeature != "" {
		if s.IntensityRatioMin < 0 || !(s.IntensityRatioMin < s.IntensityRatioMax) {
			problems = append(problems, fmt.Sprintf("intensity ratio range must satisfy 0 <= min < max, got [%v, %v]", s.IntensityRatioMin, s.IntensityRatioMax))
		}
	}

	if s.MinSegmentLength < 1 {
		problems = append(problems, fmt.Sprintf("min segment length must be >= 1, got %d", s.MinSegmentLength))
	}
	positive("alternative linking cost factor", s.AlternativeLinkingCostFactor)
	if !(s.CutoffPercentile > 0 && s.CutoffPercentile <= 1) {
		problems = append(problems, fmt.Sprintf("cutoff percentile must be in (0, 1], got %v", s.CutoffPercentile))
	}
	if !(s.BlockingValue > 0) {
		problems = append(problems, fmt.Sprintf("blocking value must be positive, got %v", s.BlockingValue))
	}
	if _, err := lap.ByName(s.Solver); err != nil {
		problems = append(problems, err.Error())
	}
	if s.Workers < 0 {
		problems = append(problems, fmt.Sprintf("workers must be >= 0, got %d", s.Workers))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidSettings, strings.Join(problems, "; "))
	}
	return nil
}

// String renders the settings for log output.
func (s Settings) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "  Linking conditions:\n")
	fmt.Fprintf(&b, "    - max distance: %.1f\n", s.LinkingMaxDistance)
	b.WriteString(echoFeaturePenalties(s.LinkingFeaturePenalties))

	if s.AllowGapClosing {
		fmt.Fprintf(&b, "  Gap-closing conditions:\n")
		fmt.Fprintf(&b, "    - max distance: %.1f\n", s.GapClosingMaxDistance)
		fmt.Fprintf(&b, "    - max frame gap: %d\n", s.GapClosingMaxFrameGap)
		b.WriteString(echoFeaturePenalties(s.GapClosingFeaturePenalties))
	} else {
		b.WriteString("  Gap-closing not allowed.\n")
	}
	if s.AllowSplitting {
		fmt.Fprintf(&b, "  Track splitting conditions:\n")
		fmt.Fprintf(&b, "    - max distance: %.1f\n", s.SplittingMaxDistance)
		b.WriteString(echoFeaturePenalties(s.SplittingFeaturePenalties))
	} else {
		b.WriteString("  Track splitting not allowed.\n")
	}
	if s.AllowMerging {
		fmt.Fprintf(&b, "  Track merging conditions:\n")
		fmt.Fprintf(&b, "    - max distance: %.1f\n", s.MergingMaxDistance)
		b.WriteString(echoFeaturePenalties(s.MergingFeaturePenalties))
	} else {
		b.WriteString("  Track merging not allowed.\n")
	}
	if s.AllowSplitting || s.AllowMerging {
		fmt.Fprintf(&b, "    - merge/split max frame gap: %d\n", s.MergeSplitMaxFrameGap)
	}
	fmt.Fprintf(&b, "  Min segment length: %d, solver: %s\n", s.MinSegmentLength, s.Solver)
	return b.String()
}

func echoFeaturePenalties(penalties map[string]float64) string {
	if len(penalties) == 0 {
		return "    - no feature penalties\n"
	}
	var b strings.Builder
	b.WriteString("    - with feature penalties:\n")
	for _, k := range slices.Sorted(maps.Keys(penalties)) {
		fmt.Fprintf(&b, "      - %s: weight = %.1f\n", k, penalties[k])
	}
	return b.String()
}
