package detector

import "gocv.io/x/gocv"

// LargestRegion returns the outer contour with the largest area in mask.
// Contours enclosing less than minArea are ignored; a contour of exactly
// minArea is kept. It returns false when nothing clears the threshold.
func LargestRegion(mask gocv.Mat, minArea float64) (Region, bool) {
	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	best := -1
	bestArea := 0.0
	for i := 0; i < contours.Size(); i++ {
		area := gocv.ContourArea(contours.At(i))
		if area < minArea {
			continue
		}
		if best < 0 || area > bestArea {
			best = i
			bestArea = area
		}
	}

	if best < 0 {
		return Region{}, false
	}

	return Region{
		Contour: Contour(contours.At(best).ToPoints()),
		Area:    bestArea,
	}, true
}
