// Package segment turns color frames into binary hand-candidate masks.
package segment

import (
	"errors"
	"image"

	"gocv.io/x/gocv"
)

// ErrNotReady is returned when a foreground mask is requested before the
// background reference has been calibrated.
var ErrNotReady = errors.New("background model is not calibrated")

// ErrSizeMismatch is returned when two masks with different dimensions are combined.
var ErrSizeMismatch = errors.New("mask dimensions do not match")

// BackgroundModel keeps a reference image of the empty scene and marks the
// pixels of later frames that differ from it.
//
// Algorithm:
// 1. Convert each frame to grayscale
// 2. Apply Gaussian blur to reduce sensor noise
// 3. During calibration, fold the frame into a running mean
// 4. Once calibrated, threshold |frame - reference| to get the foreground
type BackgroundModel struct {
	threshold float64
	blurSize  int
	quota     int

	reference gocv.Mat // CV32F grayscale mean
	observed  int
}

// NewBackgroundModel creates a BackgroundModel that calibrates over quota
// frames and treats differences above threshold as foreground.
func NewBackgroundModel(threshold float64, blurSize, quota int) *BackgroundModel {
	return &BackgroundModel{
		threshold: threshold,
		blurSize:  blurSize,
		quota:     quota,
		reference: gocv.NewMat(),
	}
}

// Observe folds a frame into the reference while calibrating. Frames
// observed after the quota has been met are ignored; the reference is frozen.
func (b *BackgroundModel) Observe(frame gocv.Mat) {
	if b.Calibrated() {
		return
	}

	sample := b.prepare(frame)
	defer sample.Close()

	next := foldReference(b.reference, b.observed, sample)
	b.reference.Close()
	b.reference = next
	b.observed++
}

// foldReference returns the running mean after adding sample as the
// (n+1)-th observation. ref holds the mean of the first n observations and
// is left untouched.
func foldReference(ref gocv.Mat, n int, sample gocv.Mat) gocv.Mat {
	if n == 0 || ref.Empty() {
		return sample.Clone()
	}

	next := gocv.NewMat()
	weight := 1.0 / float64(n+1)
	gocv.AddWeighted(ref, 1-weight, sample, weight, 0, &next)
	return next
}

// ForegroundMask returns a single-channel mask where differing pixels are 255.
// The caller owns the returned Mat, which is empty when an error is returned.
func (b *BackgroundModel) ForegroundMask(frame gocv.Mat) (gocv.Mat, error) {
	if !b.Calibrated() {
		return gocv.NewMat(), ErrNotReady
	}

	sample := b.prepare(frame)
	defer sample.Close()

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(sample, b.reference, &diff)

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(diff, &binary, float32(b.threshold), 255, gocv.ThresholdBinary)

	mask := gocv.NewMat()
	binary.ConvertTo(&mask, gocv.MatTypeCV8U)
	return mask, nil
}

// Calibrated reports whether the calibration quota has been met.
func (b *BackgroundModel) Calibrated() bool {
	return b.observed >= b.quota
}

// Progress returns how many frames have been observed out of the quota.
func (b *BackgroundModel) Progress() (observed, quota int) {
	return b.observed, b.quota
}

// HasReference reports whether any reference image exists.
func (b *BackgroundModel) HasReference() bool {
	return !b.reference.Empty()
}

// Reset discards the reference and restarts calibration.
func (b *BackgroundModel) Reset() {
	b.reference.Close()
	b.reference = gocv.NewMat()
	b.observed = 0
}

// Close releases the reference image.
func (b *BackgroundModel) Close() {
	b.reference.Close()
	b.observed = 0
}

// prepare converts a frame to blurred CV32F grayscale. The caller owns the result.
func (b *BackgroundModel) prepare(frame gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	defer gray.Close()

	if frame.Channels() > 1 {
		gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	if b.blurSize > 1 {
		gocv.GaussianBlur(gray, &gray, image.Point{X: b.blurSize, Y: b.blurSize}, 0, 0, gocv.BorderDefault)
	}

	out := gocv.NewMat()
	gray.ConvertTo(&out, gocv.MatTypeCV32F)
	return out
}
