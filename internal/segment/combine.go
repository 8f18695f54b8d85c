package segment

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// MaskCombiner fuses the foreground and skin masks into one hand-candidate mask.
type MaskCombiner struct {
	kernel gocv.Mat
}

// NewMaskCombiner creates a MaskCombiner with a square structuring element
// of the given side length.
func NewMaskCombiner(kernelSize int) *MaskCombiner {
	return &MaskCombiner{
		kernel: gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: kernelSize, Y: kernelSize}),
	}
}

// Combine keeps the pixels set in both masks, then applies an opening to drop
// speckle noise and a closing to fill small holes. The caller owns the result.
func (c *MaskCombiner) Combine(foreground, skin gocv.Mat) (gocv.Mat, error) {
	if foreground.Rows() != skin.Rows() || foreground.Cols() != skin.Cols() {
		return gocv.NewMat(), fmt.Errorf("%w: foreground %dx%d, skin %dx%d", ErrSizeMismatch,
			foreground.Cols(), foreground.Rows(), skin.Cols(), skin.Rows())
	}

	both := gocv.NewMat()
	defer both.Close()
	gocv.BitwiseAnd(foreground, skin, &both)

	opened := gocv.NewMat()
	defer opened.Close()
	gocv.MorphologyEx(both, &opened, gocv.MorphOpen, c.kernel)

	closed := gocv.NewMat()
	gocv.MorphologyEx(opened, &closed, gocv.MorphClose, c.kernel)
	return closed, nil
}

// Close releases the structuring element.
func (c *MaskCombiner) Close() {
	c.kernel.Close()
}
