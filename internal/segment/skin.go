package segment

import "gocv.io/x/gocv"

// SkinSegmenter classifies pixels as skin with fixed YCrCb bounds.
// It holds no temporal state.
type SkinSegmenter struct {
	lower gocv.Scalar
	upper gocv.Scalar
}

// NewSkinSegmenter creates a SkinSegmenter with inclusive Y, Cr, Cb bounds.
func NewSkinSegmenter(lower, upper [3]float64) *SkinSegmenter {
	return &SkinSegmenter{
		lower: gocv.NewScalar(lower[0], lower[1], lower[2], 0),
		upper: gocv.NewScalar(upper[0], upper[1], upper[2], 0),
	}
}

// SkinMask returns a single-channel mask where skin-colored pixels are 255.
// The frame is expected in BGR order. The caller owns the returned Mat.
func (s *SkinSegmenter) SkinMask(frame gocv.Mat) gocv.Mat {
	ycrcb := gocv.NewMat()
	defer ycrcb.Close()
	gocv.CvtColor(frame, &ycrcb, gocv.ColorBGRToYCrCb)

	mask := gocv.NewMat()
	gocv.InRangeWithScalar(ycrcb, s.lower, s.upper, &mask)
	return mask
}
