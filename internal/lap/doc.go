// Package lap solves linear assignment problems.
//
// Responsibilities: minimum-cost one-to-one pairing of the rows and columns
// of a (possibly rectangular) cost matrix, with support for forbidden
// ("blocked") cells.
// Key types: Solver, Assignment, Hungarian, Munkres.
//
// The package is pure CPU work with no I/O and no internal concurrency; a
// Solver may be shared between goroutines.
package lap
