// Package field provides the double-buffered structures agents share within
// a tick: DBMap, the Grid2D spatial index (sparse and dense), the
// NumberGrid2D scalar field and the continuous Field2D.
//
// Every structure follows the same discipline. Reads (Get, PositionOf,
// OccupantsOf, ...) only consult the view produced by the last Commit and
// may run concurrently. Writes (Insert, SetPosition, Set, ...) are appended
// to an internally synchronised log and become visible at the next Commit.
// Commit must not overlap with any read or write; in a run it is called by
// the Driver after every tick.
package field
