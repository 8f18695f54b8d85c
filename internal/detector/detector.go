// Package detector finds the hand outline in a candidate mask and counts
// raised fingers from its convex hull geometry.
package detector

import "image"

// MaxFingers is the largest count the analyzer reports.
const MaxFingers = 5

// Contour is a closed outline, ordered along the region boundary.
type Contour []image.Point

// Region is a contour together with its enclosed area.
type Region struct {
	Contour Contour
	Area    float64
}

// Defect describes a concavity between two hull points.
type Defect struct {
	Start int     // contour index of the hull point opening the defect
	End   int     // contour index of the hull point closing the defect
	Far   int     // contour index of the deepest point
	Depth float64 // distance of Far from the hull edge, in pixels
	Angle float64 // angle at Far inside the (Start, Far, End) triangle, in degrees
}

// Hand is the geometric reading of one contour.
type Hand struct {
	Contour Contour
	Area    float64
	Hull    []int    // contour indices of the convex hull, ascending
	Defects []Defect // every defect found along the hull
	Valleys []Defect // defects that qualify as gaps between fingers
	Count   int      // raised fingers, 0..MaxFingers
}

// Present reports whether the contour was accepted as a hand.
func (h Hand) Present() bool {
	return h.Count > 0
}

// HullPoints returns the hull as points for drawing.
func (h Hand) HullPoints() []image.Point {
	pts := make([]image.Point, 0, len(h.Hull))
	for _, i := range h.Hull {
		pts = append(pts, h.Contour[i])
	}
	return pts
}

// ValleyPoints returns the deepest point of every qualifying defect.
func (h Hand) ValleyPoints() []image.Point {
	pts := make([]image.Point, 0, len(h.Valleys))
	for _, d := range h.Valleys {
		pts = append(pts, h.Contour[d.Far])
	}
	return pts
}
