// Package tracking links detected spots across frames into trajectories.
//
// Responsibilities: linking cost model, frame-to-frame LAP, track segment
// compilation, segment-level LAP (gap closing, splitting, merging) and
// assembly of the final trajectory graph.
// Key types: Spot, Frames, Segment, Graph, Tracker, Settings.
//
// Data flows strictly forward:
//
//	Frames → frame-pair cost matrices → assignment → segments
//	       → segment cost matrix → assignment → Graph
//
// Dependency rule: tracking depends on lap for assignment solving, never on
// storage or I/O packages. Persistence of results lives in trackstore and
// trackio.
package tracking
