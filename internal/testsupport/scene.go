// Package testsupport builds synthetic frames and hand outlines for tests.
package testsupport

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Frame dimensions used by most tests.
const (
	FrameWidth  = 640
	FrameHeight = 480
)

// Hand silhouette geometry in pixels.
const (
	// FingerPitch is the horizontal distance between neighboring fingertips.
	FingerPitch = 60
	// FingerLength is the depth of the valley between two fingers.
	FingerLength = 150
	// PalmHeight is the height of the palm below the valleys.
	PalmHeight = 250
)

var (
	// SkinColor lands inside the default YCrCb skin bounds.
	SkinColor = color.RGBA{R: 220, G: 160, B: 120, A: 0}
	// BackgroundColor is a saturated blue that is never classified as skin.
	BackgroundColor = color.RGBA{R: 20, G: 50, B: 200, A: 0}
	// ObjectColor is a green that differs from the background but is not skin.
	ObjectColor = color.RGBA{R: 30, G: 200, B: 30, A: 0}
)

// HandOrigin places a five-finger hand in the middle of a default frame.
var HandOrigin = image.Pt(170, 40)

// SolidFrame returns a BGR frame filled with c. The caller owns the Mat.
func SolidFrame(rows, cols int, c color.RGBA) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(
		gocv.NewScalar(float64(c.B), float64(c.G), float64(c.R), 0),
		rows, cols, gocv.MatTypeCV8UC3)
}

// FillPolygon paints the polygon onto frame.
func FillPolygon(frame *gocv.Mat, pts []image.Point, c color.RGBA) {
	pv := gocv.NewPointsVectorFromPoints([][]image.Point{pts})
	defer pv.Close()
	gocv.FillPoly(frame, pv, c)
}

// HandPolygon returns the outline of a hand with the given number of raised
// fingers, starting at the bottom-left corner of the palm. Fingertips follow a
// shallow arc, the middle finger highest, so every tip is a hull vertex. Each
// pair of neighboring fingers is separated by a narrow valley reaching
// FingerLength below the top of the frame box. Zero fingers yields a plain
// fist-like rectangle.
func HandPolygon(origin image.Point, fingers int) []image.Point {
	if fingers <= 0 {
		w, h := 4*FingerPitch, FingerLength+PalmHeight
		return []image.Point{
			origin.Add(image.Pt(0, h)),
			origin,
			origin.Add(image.Pt(w, 0)),
			origin.Add(image.Pt(w, h)),
		}
	}

	bottom := FingerLength + PalmHeight
	pts := []image.Point{
		origin.Add(image.Pt(0, bottom)),
		origin.Add(image.Pt(0, FingerLength)),
	}
	for i := 0; i < fingers; i++ {
		off := 2*i - (fingers - 1)
		tip := image.Pt(i*FingerPitch+FingerPitch/2, 2*off*off)
		valley := image.Pt((i+1)*FingerPitch, FingerLength)
		pts = append(pts, origin.Add(tip), origin.Add(valley))
	}
	pts = append(pts, origin.Add(image.Pt(fingers*FingerPitch, bottom)))
	return pts
}

// NotchedRect returns a rectangle with a single V-shaped notch of the given
// width and depth centered on its top edge. The top edge slopes down
// shoulderDrop pixels from each notch rim to the outer corner so both rims
// are hull vertices.
func NotchedRect(origin image.Point, width, height, notchWidth, notchDepth int) []image.Point {
	const shoulderDrop = 10
	mid := width / 2
	return []image.Point{
		origin.Add(image.Pt(0, height)),
		origin.Add(image.Pt(0, shoulderDrop)),
		origin.Add(image.Pt(mid-notchWidth/2, 0)),
		origin.Add(image.Pt(mid, notchDepth)),
		origin.Add(image.Pt(mid+notchWidth/2, 0)),
		origin.Add(image.Pt(width, shoulderDrop)),
		origin.Add(image.Pt(width, height)),
	}
}

// HandFrame returns a default-sized background frame with a skin-colored
// hand of the given finger count painted at HandOrigin. The caller owns the Mat.
func HandFrame(fingers int) gocv.Mat {
	frame := SolidFrame(FrameHeight, FrameWidth, BackgroundColor)
	FillPolygon(&frame, HandPolygon(HandOrigin, fingers), SkinColor)
	return frame
}

// EmptyScene returns a default-sized frame showing only the background.
func EmptyScene() gocv.Mat {
	return SolidFrame(FrameHeight, FrameWidth, BackgroundColor)
}

// MaskWithRects returns a single-channel mask that is 255 inside each
// rectangle and 0 elsewhere. The caller owns the Mat.
func MaskWithRects(rows, cols int, rects ...image.Rectangle) gocv.Mat {
	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), rows, cols, gocv.MatTypeCV8U)
	for _, r := range rects {
		roi := mask.Region(r)
		roi.SetTo(gocv.NewScalar(255, 0, 0, 0))
		roi.Close()
	}
	return mask
}
