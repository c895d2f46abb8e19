package tracking

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/laptrack/internal/lap"
)

func TestAlternativeCost(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		costs      []float64
		percentile float64
		factor     float64
		want       float64
	}{
		{"single cost", []float64{4}, 0.9, 1.05, 4.2},
		{"max percentile", []float64{3, 1, 2}, 1, 2, 6},
		{"unsorted input", []float64{8, 2, 4, 6}, 0.5, 1, 4},
		{"no costs falls back", nil, 0.9, 1.05, 1.05 * DefaultAlternativeCutoff},
		{"all zero falls back", []float64{0, 0}, 0.9, 1, DefaultAlternativeCutoff},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, alternativeCost(tt.costs, tt.percentile, tt.factor, math.MaxFloat64), 1e-9)
		})
	}
}

func TestAlternativeCost_DoesNotReorderInput(t *testing.T) {
	t.Parallel()
	costs := []float64{5, 1, 3}
	alternativeCost(costs, 0.9, 1, math.MaxFloat64)
	assert.Equal(t, []float64{5, 1, 3}, costs)
}

func TestAlternativeCost_StaysBelowBlocking(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		costs    []float64
		blocking float64
	}{
		{"factor pushes past blocking", []float64{9.9}, 10},
		{"fallback above blocking", []float64{0, 0}, 5},
		{"no costs with tiny blocking", nil, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			alt := alternativeCost(tt.costs, 0.9, 1.05, tt.blocking)
			assert.Less(t, alt, tt.blocking)
			assert.False(t, lap.IsBlocked(alt, tt.blocking))
		})
	}
}

func TestAssembleLAPMatrix_SmallBlockingStaysFeasible(t *testing.T) {
	t.Parallel()
	const B = 10.0
	topLeft := mat.NewDense(2, 2, []float64{
		9.9, B,
		B, 9.5,
	})
	costs := finiteCosts(topLeft, B)
	alt := alternativeCost(costs, 0.9, 1.05, B)
	full := assembleLAPMatrix(topLeft, alt, B)

	for _, s := range []lap.Solver{lap.Hungarian{}, lap.Munkres{}} {
		a, err := s.Solve(full, B)
		require.NoError(t, err, s.Name())
		assert.Len(t, a.Pairs, 4, s.Name())
	}
}

func TestFiniteCosts(t *testing.T) {
	t.Parallel()
	const B = math.MaxFloat64
	m := mat.NewDense(2, 3, []float64{1, B, 2, math.NaN(), 0, B})
	assert.ElementsMatch(t, []float64{1, 2, 0}, finiteCosts(m, B))
}

func TestAssembleLAPMatrix(t *testing.T) {
	t.Parallel()
	const B = 1e9
	// 2 rows × 3 cols, (1, 0) blocked.
	topLeft := mat.NewDense(2, 3, []float64{
		1, 2, 3,
		B, 5, 6,
	})
	full := assembleLAPMatrix(topLeft, 7, B)
	require.NotNil(t, full)

	want := mat.NewDense(5, 5, []float64{
		1, 2, 3, 7, B,
		B, 5, 6, B, 7,
		7, B, B, 7, B,
		B, 7, B, 7, 7,
		B, B, 7, 7, 7,
	})
	if !mat.Equal(full, want) {
		t.Errorf("assembled matrix:\n%v\nwant:\n%v", mat.Formatted(full), mat.Formatted(want))
	}
}

func TestNewBlockedDense(t *testing.T) {
	t.Parallel()
	m := newBlockedDense(2, 2, 42)
	r, c := m.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, 42.0, m.At(1, 1))
}
