// Package render draws pipeline results onto preview frames.
package render

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/fingercount/internal/detector"
)

// Overlay colors (RGBA; gocv converts to BGR when drawing).
var (
	ContourColor = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	HullColor    = color.RGBA{R: 255, G: 200, B: 0, A: 0}
	ValleyColor  = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	BadgeColor   = color.RGBA{R: 30, G: 30, B: 30, A: 0}
	TextColor    = color.RGBA{R: 255, G: 255, B: 255, A: 0}
)

// Overlay is what gets drawn on a frame.
type Overlay struct {
	Calibrating bool
	Observed    int
	Quota       int
	Count       int
	Hand        detector.Hand
}

// Annotate draws o onto a copy of frame. The frame itself is left untouched;
// the caller owns the returned Mat.
//
// While calibrating only a progress bar is drawn. Otherwise the hand
// contour, its hull and valley points are drawn when a hand is present,
// followed by the count badge.
func Annotate(frame gocv.Mat, o Overlay) gocv.Mat {
	out := frame.Clone()
	if out.Empty() {
		return out
	}

	if o.Calibrating {
		drawProgress(&out, o.Observed, o.Quota)
		return out
	}

	if o.Hand.Present() {
		drawHand(&out, o.Hand)
	}
	drawBadge(&out, o.Count)
	return out
}

func drawHand(img *gocv.Mat, hand detector.Hand) {
	contour := gocv.NewPointsVectorFromPoints([][]image.Point{hand.Contour})
	defer contour.Close()
	gocv.DrawContours(img, contour, -1, ContourColor, 2)

	if hull := hand.HullPoints(); len(hull) >= 3 {
		pv := gocv.NewPointsVectorFromPoints([][]image.Point{hull})
		defer pv.Close()
		gocv.Polylines(img, pv, true, HullColor, 2)
	}

	for _, p := range hand.ValleyPoints() {
		gocv.Circle(img, p, 6, ValleyColor, -1)
	}
}

func drawBadge(img *gocv.Mat, count int) {
	gocv.Rectangle(img, image.Rect(10, 10, 90, 90), BadgeColor, -1)
	gocv.PutText(img, fmt.Sprintf("%d", count), image.Pt(28, 75), gocv.FontHersheySimplex, 2, TextColor, 4)
}

func drawProgress(img *gocv.Mat, observed, quota int) {
	const barHeight = 20
	width := img.Cols() - 20
	if width <= 0 || quota <= 0 {
		return
	}

	filled := width * min(observed, quota) / quota
	bar := image.Rect(10, 10, 10+width, 10+barHeight)
	gocv.Rectangle(img, bar, BadgeColor, -1)
	if filled > 0 {
		gocv.Rectangle(img, image.Rect(10, 10, 10+filled, 10+barHeight), ContourColor, -1)
	}

	label := fmt.Sprintf("Calibrating %d%%  keep the hand out of view", 100*min(observed, quota)/quota)
	gocv.PutText(img, label, image.Pt(10, 10+barHeight+25), gocv.FontHersheySimplex, 0.6, TextColor, 2)
}

// EncodeJPEG encodes img as a JPEG at the given quality (1-100).
func EncodeJPEG(img gocv.Mat, quality int) ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	// GetBytes aliases native memory released by Close.
	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	return data, nil
}
