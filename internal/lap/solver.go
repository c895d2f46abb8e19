package lap

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrEmptyMatrix is returned when the cost matrix has no rows or no columns.
	ErrEmptyMatrix = errors.New("lap: empty cost matrix")
	// ErrNoFeasibleAssignment is returned when some row or column can only be
	// matched through a blocked cell.
	ErrNoFeasibleAssignment = errors.New("lap: no feasible assignment")
)

// Solver finds a minimum-cost assignment for a cost matrix. Cells whose value
// is NaN or >= blocking are forbidden.
type Solver interface {
	Solve(cost mat.Matrix, blocking float64) (Assignment, error)
	Name() string
}

// Pair is one row→column pairing of a solution.
type Pair struct {
	Row int
	Col int
}

// Assignment is the solution of an assignment problem. Pairs only contains
// real cells of the input matrix, sorted by row. RowToCol and ColToRow hold
// -1 for rows/columns left unmatched (rectangular input).
type Assignment struct {
	Pairs    []Pair
	RowToCol []int
	ColToRow []int
	Cost     float64
}

// Solver names accepted by ByName.
const (
	SolverHungarian = "hungarian"
	SolverMunkres   = "munkres"
)

// ByName returns the solver registered under name. The empty string selects
// the default Hungarian solver.
func ByName(name string) (Solver, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", SolverHungarian:
		return Hungarian{}, nil
	case SolverMunkres:
		return Munkres{}, nil
	default:
		return nil, fmt.Errorf("lap: unknown solver %q (want %q or %q)", name, SolverHungarian, SolverMunkres)
	}
}

// IsBlocked reports whether a cell value is forbidden under blocking.
func IsBlocked(v, blocking float64) bool {
	return math.IsNaN(v) || v >= blocking
}

// problem is the square, finite working copy shared by both solvers.
type problem struct {
	rows, cols int // original dimensions
	dim        int // padded square dimension
	c          [][]float64
	blocked    [][]bool
	tol        float64 // reduced costs at or below tol count as tight
}

// newProblem pads cost to a dim×dim matrix. Padding cells cost zero, so a
// row (or column) left over in a rectangular problem is free to stay
// unmatched. Blocked cells are replaced by a big-M value larger than the
// total of any all-finite assignment, which keeps the arithmetic finite while
// guaranteeing that a blocked cell is only chosen when nothing else works.
func newProblem(cost mat.Matrix, blocking float64) (*problem, error) {
	if cost == nil {
		return nil, ErrEmptyMatrix
	}
	n, m := cost.Dims()
	if n == 0 || m == 0 {
		return nil, ErrEmptyMatrix
	}
	dim := n
	if m > dim {
		dim = m
	}

	maxAbs := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			v := cost.At(i, j)
			if IsBlocked(v, blocking) || math.IsInf(v, 0) {
				continue
			}
			if a := math.Abs(v); a > maxAbs {
				maxAbs = a
			}
		}
	}
	bigM := 2 * float64(dim) * (maxAbs + 1)

	p := &problem{rows: n, cols: m, dim: dim, tol: 1e-9 * (maxAbs + 1)}
	p.c = make([][]float64, dim)
	p.blocked = make([][]bool, dim)
	for i := 0; i < dim; i++ {
		p.c[i] = make([]float64, dim)
		p.blocked[i] = make([]bool, dim)
		if i >= n {
			continue
		}
		for j := 0; j < m; j++ {
			v := cost.At(i, j)
			if IsBlocked(v, blocking) || math.IsInf(v, 0) {
				p.c[i][j] = bigM
				p.blocked[i][j] = true
				continue
			}
			p.c[i][j] = v
		}
	}
	return p, nil
}

// lexicographicFirst rewrites rowAssign, an optimal assignment of p.c, into
// the optimal assignment whose row→column sequence is lexicographically
// smallest. reduced holds c[i][j] − u[i] − v[j] under optimal potentials, so
// the optimal assignments are exactly the perfect matchings on tight cells.
// Rows are settled in order: row i moves to the lowest tight column that can
// be freed by shifting later rows along tight cells back into its current
// column.
func (p *problem) lexicographicFirst(rowAssign []int, reduced [][]float64) []int {
	n := p.dim
	colOwner := make([]int, n)
	for i, j := range rowAssign {
		colOwner[j] = i
	}
	tight := func(i, j int) bool { return reduced[i][j] <= p.tol }

	// next[c] is the column the owner of c shifts to when c is taken.
	reach := make([]bool, n)
	next := make([]int, n)
	queue := make([]int, 0, n)
	for i := 0; i < n; i++ {
		home := rowAssign[i]
		for c := range reach {
			reach[c] = false
		}
		reach[home] = true
		queue = append(queue[:0], home)
		for len(queue) > 0 {
			c := queue[0]
			queue = queue[1:]
			for r := i + 1; r < n; r++ {
				if own := rowAssign[r]; !reach[own] && tight(r, c) {
					reach[own] = true
					next[own] = c
					queue = append(queue, own)
				}
			}
		}

		best := home
		for j := 0; j < home; j++ {
			if reach[j] && tight(i, j) {
				best = j
				break
			}
		}
		if best == home {
			continue
		}

		owner := colOwner[best]
		rowAssign[i] = best
		colOwner[best] = i
		for c := best; c != home; {
			to := next[c]
			r := owner
			owner = colOwner[to]
			rowAssign[r] = to
			colOwner[to] = r
			c = to
		}
	}
	return rowAssign
}

// result converts a full square row→column mapping into an Assignment,
// dropping padding cells and rejecting blocked picks.
func (p *problem) result(cost mat.Matrix, rowAssign []int) (Assignment, error) {
	a := Assignment{
		RowToCol: make([]int, p.rows),
		ColToRow: make([]int, p.cols),
	}
	for i := range a.RowToCol {
		a.RowToCol[i] = -1
	}
	for j := range a.ColToRow {
		a.ColToRow[j] = -1
	}

	for i := 0; i < p.rows; i++ {
		j := rowAssign[i]
		if j < 0 || j >= p.cols {
			continue
		}
		if p.blocked[i][j] {
			return Assignment{}, fmt.Errorf("%w: row %d can only be matched to blocked column %d", ErrNoFeasibleAssignment, i, j)
		}
		a.RowToCol[i] = j
		a.ColToRow[j] = i
		a.Pairs = append(a.Pairs, Pair{Row: i, Col: j})
		a.Cost += cost.At(i, j)
	}
	sort.Slice(a.Pairs, func(x, y int) bool { return a.Pairs[x].Row < a.Pairs[y].Row })
	return a, nil
}
