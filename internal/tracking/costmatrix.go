package tracking

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/laptrack/internal/lap"
)

// newBlockedDense returns an r×c matrix filled with blocking. gonum refuses
// zero-sized dense matrices, so callers must check r and c first.
func newBlockedDense(r, c int, blocking float64) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = blocking
	}
	return mat.NewDense(r, c, data)
}

// finiteCosts returns every non-blocked value of m.
func finiteCosts(m mat.Matrix, blocking float64) []float64 {
	r, c := m.Dims()
	var out []float64
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := m.At(i, j); !lap.IsBlocked(v, blocking) {
				out = append(out, v)
			}
		}
	}
	return out
}

// alternativeCost prices the "no link" alternatives of a LAP matrix as
// factor × percentile(costs). The cutoff is data-dependent: every matrix gets
// its own calibration from the costs it actually observed. The result stays
// strictly below blocking so the alternatives are never forbidden cells.
func alternativeCost(costs []float64, percentile, factor, blocking float64) float64 {
	cutoff := math.NaN()
	if len(costs) > 0 {
		sorted := append([]float64(nil), costs...)
		sort.Float64s(sorted)
		cutoff = stat.Quantile(percentile, stat.LinInterp, sorted, nil)
	}
	if !(cutoff > 0) || math.IsInf(cutoff, 0) {
		cutoff = DefaultAlternativeCutoff
	}
	alt := factor * cutoff
	if lap.IsBlocked(alt, blocking) {
		alt = math.Nextafter(blocking, math.Inf(-1))
	}
	return alt
}

// assembleLAPMatrix embeds the nR×nC real-link block topLeft into the square
// (nR+nC) LAP matrix:
//
//	| topLeft         | diag(alt) nR×nR |
//	| diag(alt) nC×nC | topLeftᵀ → alt  |
//
// Row i of the top-right block is "row i links to nothing"; column j of the
// bottom-left block is "column j is linked from nothing". The bottom-right
// block is the transpose of topLeft with finite cells priced at alt, so that
// every real link chosen in the top-left frees exactly one dummy pairing.
// A link (i, j) therefore costs c + alt against 2·alt for terminating i and
// initiating j, and is only taken when c < alt. All other cells are blocked.
func assembleLAPMatrix(topLeft mat.Matrix, alt, blocking float64) *mat.Dense {
	nR, nC := topLeft.Dims()
	n := nR + nC
	full := newBlockedDense(n, n, blocking)
	for i := 0; i < nR; i++ {
		for j := 0; j < nC; j++ {
			v := topLeft.At(i, j)
			full.Set(i, j, v)
			if !lap.IsBlocked(v, blocking) {
				full.Set(nR+j, nC+i, alt)
			}
		}
	}
	for i := 0; i < nR; i++ {
		full.Set(i, nC+i, alt)
	}
	for j := 0; j < nC; j++ {
		full.Set(nR+j, j, alt)
	}
	return full
}
