package detector

import (
	"image"
	"math"
	"sort"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/spatial/r2"
)

// Analyzer counts raised fingers from the convexity defects of a hand contour.
//
// Counting logic:
// 1. Reject contours below the minimum area as "no hand" (count 0)
// 2. Compute the convex hull and the deepest contour point under each hull edge
// 3. Measure the angle at that point with the law of cosines
// 4. A defect deeper than minDepth with an angle below maxAngle is a valley
// 5. Fingers = valleys + 1, capped at MaxFingers
//
// Any contour that clears the area threshold is a hand, so a closed fist
// reads as 1, the same as a single raised finger.
type Analyzer struct {
	minArea  float64
	minDepth float64
	maxAngle float64
}

// NewAnalyzer creates an Analyzer. maxAngleDeg is in degrees.
func NewAnalyzer(minArea, minDepth, maxAngleDeg float64) *Analyzer {
	return &Analyzer{
		minArea:  minArea,
		minDepth: minDepth,
		maxAngle: maxAngleDeg,
	}
}

// CountFingers returns the raw finger count for a contour.
func (a *Analyzer) CountFingers(contour Contour) int {
	return a.Analyze(contour).Count
}

// Analyze computes hull, defects and the finger count for a contour.
// A nil or degenerate contour yields a Hand with Count 0.
func (a *Analyzer) Analyze(contour Contour) Hand {
	hand := Hand{Contour: contour}
	if len(contour) < 3 {
		return hand
	}

	pv := gocv.NewPointVectorFromPoints(contour)
	defer pv.Close()

	hand.Area = gocv.ContourArea(pv)
	if hand.Area < a.minArea {
		return hand
	}

	hand.Hull = convexHull(pv)
	if len(hand.Hull) < 3 {
		return hand
	}

	hand.Defects = convexityDefects(contour, hand.Hull)
	for _, d := range hand.Defects {
		if d.Depth > a.minDepth && d.Angle < a.maxAngle {
			hand.Valleys = append(hand.Valleys, d)
		}
	}

	hand.Count = min(len(hand.Valleys)+1, MaxFingers)
	return hand
}

// convexHull returns the contour indices of the hull in ascending order.
func convexHull(pv gocv.PointVector) []int {
	hull := gocv.NewMat()
	defer hull.Close()
	gocv.ConvexHull(pv, &hull, false, false)

	indices := make([]int, 0, hull.Rows())
	for i := 0; i < hull.Rows(); i++ {
		indices = append(indices, int(hull.GetIntAt(i, 0)))
	}
	sort.Ints(indices)
	return indices
}

// convexityDefects walks every hull edge, including the one wrapping from the
// last hull point back to the first, and records the contour point between
// its ends that lies farthest from the edge. Edges with no contour points
// between their ends, or whose points all lie on the edge, produce no defect.
func convexityDefects(contour Contour, hull []int) []Defect {
	n := len(contour)
	var defects []Defect

	for k := range hull {
		start := hull[k]
		end := hull[(k+1)%len(hull)]
		span := (end - start + n) % n
		if span < 2 {
			continue
		}

		a := toVec(contour[start])
		edge := r2.Sub(toVec(contour[end]), a)
		length := r2.Norm(edge)
		if length == 0 {
			continue
		}

		far, depth := -1, 0.0
		for j := 1; j < span; j++ {
			idx := (start + j) % n
			d := math.Abs(r2.Cross(edge, r2.Sub(toVec(contour[idx]), a))) / length
			if d > depth {
				far, depth = idx, d
			}
		}
		if far < 0 {
			continue
		}

		defects = append(defects, Defect{
			Start: start,
			End:   end,
			Far:   far,
			Depth: depth,
			Angle: includedAngle(contour[start], contour[far], contour[end]),
		})
	}

	return defects
}

// includedAngle returns the angle at far, in degrees, of the triangle
// (start, far, end) using the law of cosines. Degenerate triangles return 180
// so they never qualify as valleys.
func includedAngle(start, far, end image.Point) float64 {
	sa := r2.Norm(r2.Sub(toVec(start), toVec(far)))
	sb := r2.Norm(r2.Sub(toVec(end), toVec(far)))
	sc := r2.Norm(r2.Sub(toVec(end), toVec(start)))
	if sa*sb == 0 {
		return 180
	}

	cos := (sa*sa + sb*sb - sc*sc) / (2 * sa * sb)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}

func toVec(p image.Point) r2.Vec {
	return r2.Vec{X: float64(p.X), Y: float64(p.Y)}
}
