package render

import (
	"bytes"
	"image"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/ayusman/fingercount/internal/detector"
	"github.com/ayusman/fingercount/internal/testsupport"
)

func countDiff(t *testing.T, a, b gocv.Mat) int {
	t.Helper()
	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(a, b, &diff)
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(diff, &gray, gocv.ColorBGRToGray)
	return gocv.CountNonZero(gray)
}

func TestAnnotate_LeavesFrameUntouched(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	frame := testsupport.EmptyScene()
	defer frame.Close()
	original := frame.Clone()
	defer original.Close()

	out := Annotate(frame, Overlay{Count: 3})
	defer out.Close()

	assert.Zero(t, countDiff(t, frame, original))
	assert.NotZero(t, countDiff(t, out, original))
	assert.Equal(t, frame.Rows(), out.Rows())
	assert.Equal(t, frame.Cols(), out.Cols())
}

func TestAnnotate_DrawsHand(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	frame := testsupport.EmptyScene()
	defer frame.Close()

	contour := detector.Contour(testsupport.HandPolygon(testsupport.HandOrigin, 3))
	hand := detector.NewAnalyzer(5000, 10, 90).Analyze(contour)
	require.True(t, hand.Present())

	withHand := Annotate(frame, Overlay{Count: 3, Hand: hand})
	defer withHand.Close()
	badgeOnly := Annotate(frame, Overlay{Count: 3})
	defer badgeOnly.Close()

	assert.NotZero(t, countDiff(t, withHand, badgeOnly))

	valley := hand.ValleyPoints()[0]
	px := withHand.GetVecbAt(valley.Y, valley.X)
	assert.Equal(t, ValleyColor.R, px[2])
	assert.Equal(t, ValleyColor.B, px[0])
}

func TestAnnotate_Calibrating(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	frame := testsupport.EmptyScene()
	defer frame.Close()

	half := Annotate(frame, Overlay{Calibrating: true, Observed: 15, Quota: 30})
	defer half.Close()

	// Progress bar filled up to the middle of the frame.
	filledX := 10 + (frame.Cols()-20)/4
	emptyX := 10 + 3*(frame.Cols()-20)/4
	assert.Equal(t, ContourColor.G, half.GetVecbAt(15, filledX)[1])
	assert.Equal(t, BadgeColor.G, half.GetVecbAt(15, emptyX)[1])
}

func TestAnnotate_EmptyFrame(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()

	out := Annotate(empty, Overlay{Count: 2})
	defer out.Close()
	assert.True(t, out.Empty())
}

func TestEncodeJPEG(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	frame := testsupport.HandFrame(2)
	defer frame.Close()

	data, err := EncodeJPEG(frame, 80)
	require.NoError(t, err)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(testsupport.FrameWidth, testsupport.FrameHeight), image.Pt(cfg.Width, cfg.Height))
}
