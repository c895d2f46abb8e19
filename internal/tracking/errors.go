package tracking

import (
	"errors"

	"github.com/banshee-data/laptrack/internal/lap"
)

var (
	// ErrEmptyInput is returned when there are no frames or no spots.
	ErrEmptyInput = errors.New("tracking: no spots to track")
	// ErrInvalidInput is returned for malformed spot collections (duplicate
	// IDs, spots filed under the wrong frame).
	ErrInvalidInput = errors.New("tracking: invalid input")
	// ErrInsufficientSegments is returned when the segment linking stage has
	// no usable track segment.
	ErrInsufficientSegments = errors.New("tracking: no track segments to link")
	// ErrInvalidSettings is returned by Settings.Validate.
	ErrInvalidSettings = errors.New("tracking: invalid settings")
	// ErrNoFeasibleAssignment is the solver error; usually a sign that the
	// distance cutoffs are too small for the data.
	ErrNoFeasibleAssignment = lap.ErrNoFeasibleAssignment
)
