package tracking

import (
	"maps"
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"
)

// FeaturePenaltyScale is the constant k in the linking cost. With weight 1,
// a feature that doubles between two spots multiplies the cost by ~2.25.
const FeaturePenaltyScale = 1.5

// SquareDistance returns the squared Euclidean distance between two spots.
func SquareDistance(a, b *Spot) float64 {
	return r3.Norm2(r3.Sub(a.Position, b.Position))
}

// NormalizedDiff returns |x−y| / (|x|+|y|) for the named feature, a symmetric
// value in [0, 1]. It returns NaN when either spot lacks the feature.
func NormalizedDiff(a, b *Spot, feature string) float64 {
	x, ok := a.Feature(feature)
	if !ok {
		return math.NaN()
	}
	y, ok := b.Feature(feature)
	if !ok {
		return math.NaN()
	}
	den := math.Abs(x) + math.Abs(y)
	if den == 0 {
		return 0
	}
	return math.Abs(x-y) / den
}

// CostFunction prices a link between two spots:
//
//	cost = d² · (1 + Σ w_f · k · |ndiff_f|)²
//
// It returns Blocking when d exceeds MaxDistance.
type CostFunction struct {
	MaxDistance float64
	Blocking    float64

	features []string
	weights  []float64
}

// NewCostFunction captures the penalties in sorted feature order so the
// penalty sum is reproducible.
func NewCostFunction(maxDistance, blocking float64, penalties map[string]float64) CostFunction {
	cf := CostFunction{MaxDistance: maxDistance, Blocking: blocking}
	for _, f := range slices.Sorted(maps.Keys(penalties)) {
		cf.features = append(cf.features, f)
		cf.weights = append(cf.weights, penalties[f])
	}
	return cf
}

// Cost returns the linking cost between a and b.
func (cf CostFunction) Cost(a, b *Spot) float64 {
	d2 := SquareDistance(a, b)
	if d2 > cf.MaxDistance*cf.MaxDistance {
		return cf.Blocking
	}
	penalty := 1.0
	for i, f := range cf.features {
		ndiff := NormalizedDiff(a, b, f)
		if math.IsNaN(ndiff) {
			continue
		}
		penalty += cf.weights[i] * FeaturePenaltyScale * ndiff
	}
	return d2 * penalty * penalty
}

// LinkingCost is the one-shot form of CostFunction.Cost.
func LinkingCost(a, b *Spot, maxDistance, blocking float64, penalties map[string]float64) float64 {
	return NewCostFunction(maxDistance, blocking, penalties).Cost(a, b)
}
