package lap

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Munkres is the classic star/prime formulation of the Hungarian algorithm
// (Munkres 1957, as restated by Bourgeois and Lassalle). It is slower than
// Hungarian, O(n⁴) in the worst case, but its steps map one-to-one onto the
// textbook description, which makes it a useful cross-check. Ties resolve
// exactly as in Hungarian.
type Munkres struct{}

// Name returns the solver name used in configuration.
func (Munkres) Name() string { return SolverMunkres }

// Solve solves the rectangular assignment problem for cost.
func (Munkres) Solve(cost mat.Matrix, blocking float64) (Assignment, error) {
	p, err := newProblem(cost, blocking)
	if err != nil {
		return Assignment{}, err
	}
	rowAssign, reduced := munkresRows(p.c, p.dim)
	return p.result(cost, p.lexicographicFirst(rowAssign, reduced))
}

const (
	unmarked = 0
	starred  = 1
	primed   = 2
)

type munkresState struct {
	n        int
	c        [][]float64
	mark     [][]int
	rowCover []bool
	colCover []bool
	path     [][2]int
}

// munkresRows returns the starred zeros as a row→column mapping, plus the
// reduced matrix they were found in.
func munkresRows(src [][]float64, dim int) ([]int, [][]float64) {
	s := &munkresState{
		n:        dim,
		c:        make([][]float64, dim),
		mark:     make([][]int, dim),
		rowCover: make([]bool, dim),
		colCover: make([]bool, dim),
		path:     make([][2]int, 0, 2*dim+1),
	}
	for i := 0; i < dim; i++ {
		s.c[i] = append([]float64(nil), src[i]...)
		s.mark[i] = make([]int, dim)
	}

	s.reduceRows()
	s.starZeros()
	for !s.coverStarredColumns() {
		for {
			row, col, ok := s.findUncoveredZero()
			if !ok {
				s.adjustByMinimum()
				continue
			}
			s.mark[row][col] = primed
			if starCol := s.findInRow(row, starred); starCol >= 0 {
				s.rowCover[row] = true
				s.colCover[starCol] = false
				continue
			}
			s.augment(row, col)
			break
		}
	}

	rowAssign := make([]int, dim)
	for i := 0; i < dim; i++ {
		rowAssign[i] = s.findInRow(i, starred)
	}
	return rowAssign, s.c
}

// Step 1: subtract each row's minimum.
func (s *munkresState) reduceRows() {
	for i := 0; i < s.n; i++ {
		minVal := math.Inf(1)
		for _, v := range s.c[i] {
			if v < minVal {
				minVal = v
			}
		}
		for j := range s.c[i] {
			s.c[i][j] -= minVal
		}
	}
}

// Step 2: star every zero with no starred zero in its row or column.
func (s *munkresState) starZeros() {
	rowStar := make([]bool, s.n)
	colStar := make([]bool, s.n)
	for i := 0; i < s.n; i++ {
		for j := 0; j < s.n; j++ {
			if s.c[i][j] == 0 && !rowStar[i] && !colStar[j] {
				s.mark[i][j] = starred
				rowStar[i] = true
				colStar[j] = true
			}
		}
	}
}

// Step 3: cover every column holding a starred zero. Reports completion.
func (s *munkresState) coverStarredColumns() bool {
	covered := 0
	for j := 0; j < s.n; j++ {
		s.colCover[j] = false
		for i := 0; i < s.n; i++ {
			if s.mark[i][j] == starred {
				s.colCover[j] = true
				covered++
				break
			}
		}
	}
	return covered >= s.n
}

// Step 4 helper: first uncovered zero in row-major order.
func (s *munkresState) findUncoveredZero() (int, int, bool) {
	for i := 0; i < s.n; i++ {
		if s.rowCover[i] {
			continue
		}
		for j := 0; j < s.n; j++ {
			if !s.colCover[j] && s.c[i][j] == 0 {
				return i, j, true
			}
		}
	}
	return -1, -1, false
}

func (s *munkresState) findInRow(row, kind int) int {
	for j := 0; j < s.n; j++ {
		if s.mark[row][j] == kind {
			return j
		}
	}
	return -1
}

func (s *munkresState) findInCol(col, kind int) int {
	for i := 0; i < s.n; i++ {
		if s.mark[i][col] == kind {
			return i
		}
	}
	return -1
}

// Step 5: flip stars and primes along the alternating path that starts at
// the uncovered primed zero (row, col), then clear covers and primes.
func (s *munkresState) augment(row, col int) {
	s.path = s.path[:0]
	s.path = append(s.path, [2]int{row, col})
	for {
		r := s.findInCol(s.path[len(s.path)-1][1], starred)
		if r < 0 {
			break
		}
		s.path = append(s.path, [2]int{r, s.path[len(s.path)-1][1]})
		c := s.findInRow(r, primed)
		s.path = append(s.path, [2]int{r, c})
	}
	for _, z := range s.path {
		if s.mark[z[0]][z[1]] == starred {
			s.mark[z[0]][z[1]] = unmarked
		} else {
			s.mark[z[0]][z[1]] = starred
		}
	}
	for i := 0; i < s.n; i++ {
		s.rowCover[i] = false
		for j := 0; j < s.n; j++ {
			if s.mark[i][j] == primed {
				s.mark[i][j] = unmarked
			}
		}
	}
}

// Step 6: add the smallest uncovered value to covered rows and subtract it
// from uncovered columns.
func (s *munkresState) adjustByMinimum() {
	minVal := math.Inf(1)
	for i := 0; i < s.n; i++ {
		if s.rowCover[i] {
			continue
		}
		for j := 0; j < s.n; j++ {
			if !s.colCover[j] && s.c[i][j] < minVal {
				minVal = s.c[i][j]
			}
		}
	}
	for i := 0; i < s.n; i++ {
		for j := 0; j < s.n; j++ {
			if s.rowCover[i] {
				s.c[i][j] += minVal
			}
			if !s.colCover[j] {
				s.c[i][j] -= minVal
			}
		}
	}
}
