package tracking

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettings_Valid(t *testing.T) {
	t.Parallel()
	s := DefaultSettings()
	require.NoError(t, s.Validate())
	assert.True(t, s.AllowGapClosing)
	assert.True(t, s.AllowSplitting)
	assert.True(t, s.AllowMerging)
	assert.Equal(t, 3, s.MinSegmentLength)
	assert.Equal(t, math.MaxFloat64, s.BlockingValue)
}

func TestSettings_ValidateAggregates(t *testing.T) {
	t.Parallel()
	s := DefaultSettings()
	s.LinkingMaxDistance = 0
	s.GapClosingMaxFrameGap = 0
	s.CutoffPercentile = 1.5
	s.Solver = "simplex"
	s.MergingFeaturePenalties = map[string]float64{"AREA": -1}

	err := s.Validate()
	require.ErrorIs(t, err, ErrInvalidSettings)
	for _, want := range []string{
		"linking max distance",
		"gap closing max frame gap",
		"cutoff percentile",
		"simplex",
		`merging feature penalties["AREA"]`,
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestSettings_ValidateIgnoresDisabledStages(t *testing.T) {
	t.Parallel()
	s := DefaultSettings()
	s.AllowGapClosing = false
	s.AllowSplitting = false
	s.AllowMerging = false
	s.GapClosingMaxDistance = -3
	s.SplittingMaxDistance = math.NaN()
	s.MergeSplitMaxFrameGap = 0
	assert.NoError(t, s.Validate())
}

func TestSettings_ValidateIntensityRange(t *testing.T) {
	t.Parallel()
	s := DefaultSettings()
	s.IntensityRatioMin = 5
	assert.ErrorIs(t, s.Validate(), ErrInvalidSettings)

	s.IntensityFeature = ""
	assert.NoError(t, s.Validate(), "range is unused without a feature")
}

func TestSettings_String(t *testing.T) {
	t.Parallel()
	s := DefaultSettings()
	s.AllowMerging = false
	s.GapClosingFeaturePenalties = map[string]float64{"QUALITY": 0.5, "AREA": 2}

	out := s.String()
	assert.Contains(t, out, "Linking conditions:")
	assert.Contains(t, out, "max frame gap: 4")
	assert.Contains(t, out, "Track merging not allowed.")
	assert.Contains(t, out, "AREA: weight = 2.0")
	assert.Less(t, strings.Index(out, "AREA"), strings.Index(out, "QUALITY"), "penalties listed in sorted order")
}
