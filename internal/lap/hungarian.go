package lap

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Hungarian solves the assignment problem with row and column potentials,
// growing the matching one row at a time along a shortest augmenting path
// (the Jonker–Volgenant formulation of the Kuhn–Munkres method). It runs in
// O(n³) time.
//
// Among equal-cost optima it returns the one whose row→column sequence is
// lexicographically smallest, the same answer Munkres gives.
type Hungarian struct{}

// Name returns the solver name used in configuration.
func (Hungarian) Name() string { return SolverHungarian }

// Solve solves the rectangular assignment problem for cost.
func (Hungarian) Solve(cost mat.Matrix, blocking float64) (Assignment, error) {
	p, err := newProblem(cost, blocking)
	if err != nil {
		return Assignment{}, err
	}
	rowAssign, reduced := augmentingPaths(p.c)
	return p.result(cost, p.lexicographicFirst(rowAssign, reduced))
}

// augmentingPaths returns an optimal row→column mapping of the square matrix
// c together with its reduced costs under the final potentials.
func augmentingPaths(c [][]float64) ([]int, [][]float64) {
	n := len(c)
	u := make([]float64, n)
	v := make([]float64, n)
	// Column minima make every reduced cost non-negative from the start.
	for j := 0; j < n; j++ {
		v[j] = math.Inf(1)
		for i := 0; i < n; i++ {
			v[j] = math.Min(v[j], c[i][j])
		}
	}

	colRow := make([]int, n) // -1 while the column is free
	for j := range colRow {
		colRow[j] = -1
	}
	dist := make([]float64, n)
	prev := make([]int, n) // column before j on the path, -1 for the start row
	settled := make([]bool, n)
	reduce := func(i, j int) float64 { return c[i][j] - u[i] - v[j] }

	for start := 0; start < n; start++ {
		for j := 0; j < n; j++ {
			dist[j] = reduce(start, j)
			prev[j] = -1
			settled[j] = false
		}

		// Dijkstra over columns until a free one is settled.
		free := -1
		for free < 0 {
			col, d := -1, math.Inf(1)
			for j := 0; j < n; j++ {
				if !settled[j] && dist[j] < d {
					col, d = j, dist[j]
				}
			}
			settled[col] = true
			r := colRow[col]
			if r < 0 {
				free = col
				break
			}
			for j := 0; j < n; j++ {
				if settled[j] {
					continue
				}
				if alt := d + reduce(r, j); alt < dist[j] {
					dist[j] = alt
					prev[j] = col
				}
			}
		}

		// Shift potentials so that every cell stays non-negative and the
		// path just found becomes tight.
		total := dist[free]
		u[start] += total
		for j := 0; j < n; j++ {
			if !settled[j] || j == free {
				continue
			}
			slack := total - dist[j]
			v[j] -= slack
			u[colRow[j]] += slack
		}

		for j := free; ; {
			p := prev[j]
			if p < 0 {
				colRow[j] = start
				break
			}
			colRow[j] = colRow[p]
			j = p
		}
	}

	rowAssign := make([]int, n)
	for j, i := range colRow {
		rowAssign[i] = j
	}
	reduced := make([][]float64, n)
	for i := range reduced {
		reduced[i] = make([]float64, n)
		for j := range reduced[i] {
			reduced[i][j] = reduce(i, j)
		}
	}
	return rowAssign, reduced
}
