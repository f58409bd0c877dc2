package spatial

import "github.com/golang/geo/s2"

// CellToken returns the S2 cell token covering the given coordinate at
// the requested level. Contribution density lookups group points by
// this token; level 16 cells are roughly 150m across.
func CellToken(lat, lon float64, level int) string {
	cell := s2.CellIDFromLatLng(s2.LatLngFromDegrees(lat, lon))
	return cell.Parent(level).ToToken()
}
