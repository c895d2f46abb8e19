package tracking

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSquareDistance(t *testing.T) {
	t.Parallel()
	a := NewSpot(1, 0, 1, 2, 3)
	b := NewSpot(2, 1, 4, 6, 3)
	assert.Equal(t, 25.0, SquareDistance(a, b))
	assert.Equal(t, 0.0, SquareDistance(a, a))
}

func TestNormalizedDiff(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		x, y float64
		want float64
	}{
		{"equal", 5, 5, 0},
		{"double", 10, 5, 5.0 / 15},
		{"both zero", 0, 0, 0},
		{"opposite signs", -2, 2, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a := NewSpot(1, 0, 0, 0, 0).SetFeature("I", tt.x)
			b := NewSpot(2, 1, 0, 0, 0).SetFeature("I", tt.y)
			assert.InDelta(t, tt.want, NormalizedDiff(a, b, "I"), 1e-12)
			assert.InDelta(t, tt.want, NormalizedDiff(b, a, "I"), 1e-12)
		})
	}

	a := NewSpot(1, 0, 0, 0, 0)
	b := NewSpot(2, 1, 0, 0, 0).SetFeature("I", 1)
	assert.True(t, math.IsNaN(NormalizedDiff(a, b, "I")), "missing feature")
	a.SetFeature("I", math.NaN())
	assert.True(t, math.IsNaN(NormalizedDiff(a, b, "I")), "NaN feature")
}

func TestLinkingCost_DistanceGate(t *testing.T) {
	t.Parallel()
	const blocking = math.MaxFloat64
	a := NewSpot(1, 0, 0, 0, 0)

	inside := NewSpot(2, 1, 3, 4, 0) // d = 5
	assert.Equal(t, 25.0, LinkingCost(a, inside, 5, blocking, nil), "exactly at the cutoff is allowed")

	outside := NewSpot(3, 1, 3, 4.01, 0)
	assert.Equal(t, blocking, LinkingCost(a, outside, 5, blocking, nil))
	assert.Equal(t, 99.0, LinkingCost(a, outside, 5, 99, nil), "custom blocking value")
}

func TestLinkingCost_FeaturePenalty(t *testing.T) {
	t.Parallel()
	a := NewSpot(1, 0, 0, 0, 0).SetFeature("MEAN_INTENSITY", 10)
	b := NewSpot(2, 1, 2, 0, 0).SetFeature("MEAN_INTENSITY", 20)

	// d² = 4, ndiff = 1/3, penalty = 1 + 2·1.5/3 = 2.
	got := LinkingCost(a, b, 15, math.MaxFloat64, map[string]float64{"MEAN_INTENSITY": 2})
	assert.InDelta(t, 16.0, got, 1e-12)

	// A penalty on a feature neither spot has leaves the cost untouched.
	got = LinkingCost(a, b, 15, math.MaxFloat64, map[string]float64{"QUALITY": 5})
	assert.InDelta(t, 4.0, got, 1e-12)

	// Zero distance stays zero whatever the penalty.
	c := NewSpot(3, 1, 0, 0, 0).SetFeature("MEAN_INTENSITY", 1000)
	assert.Equal(t, 0.0, LinkingCost(a, c, 15, math.MaxFloat64, map[string]float64{"MEAN_INTENSITY": 3}))
}

func TestLinkingCost_Symmetric(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(7))
	penalties := map[string]float64{"A": 1, "B": 0.5, "C": 3}
	for i := 0; i < 500; i++ {
		a := NewSpot(1, 0, rng.Float64()*20, rng.Float64()*20, rng.Float64()*5)
		b := NewSpot(2, 1, rng.Float64()*20, rng.Float64()*20, rng.Float64()*5)
		for _, f := range []string{"A", "B", "C"} {
			if rng.Intn(4) > 0 {
				a.SetFeature(f, rng.NormFloat64()*10)
			}
			if rng.Intn(4) > 0 {
				b.SetFeature(f, rng.NormFloat64()*10)
			}
		}
		ab := LinkingCost(a, b, 15, math.MaxFloat64, penalties)
		ba := LinkingCost(b, a, 15, math.MaxFloat64, penalties)
		if ab != ba {
			t.Fatalf("cost(%v, %v) = %v but reverse = %v", a, b, ab, ba)
		}
		if ab < 0 {
			t.Fatalf("negative cost %v", ab)
		}
	}
}
