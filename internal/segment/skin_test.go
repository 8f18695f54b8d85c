package segment

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"gocv.io/x/gocv"

	"github.com/ayusman/fingercount/internal/config"
	"github.com/ayusman/fingercount/internal/testsupport"
)

func TestSkinSegmenter_SkinMask(t *testing.T) {
	d := config.DefaultDetection()
	skin := NewSkinSegmenter(d.SkinLowerBound, d.SkinUpperBound)

	tests := []struct {
		name     string
		color    color.RGBA
		wantSkin bool
	}{
		{name: "skin tone", color: testsupport.SkinColor, wantSkin: true},
		{name: "blue background", color: testsupport.BackgroundColor, wantSkin: false},
		{name: "green object", color: testsupport.ObjectColor, wantSkin: false},
		{name: "white", color: color.RGBA{R: 255, G: 255, B: 255}, wantSkin: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := testsupport.SolidFrame(20, 30, tt.color)
			defer frame.Close()

			mask := skin.SkinMask(frame)
			defer mask.Close()

			assert.Equal(t, 1, mask.Channels())
			assert.Equal(t, 20, mask.Rows())
			assert.Equal(t, 30, mask.Cols())

			want := 0
			if tt.wantSkin {
				want = 20 * 30
			}
			assert.Equal(t, want, gocv.CountNonZero(mask))
		})
	}
}

func TestSkinSegmenter_BoundsAreInclusive(t *testing.T) {
	frame := testsupport.SolidFrame(4, 4, testsupport.SkinColor)
	defer frame.Close()

	ycrcb := gocv.NewMat()
	defer ycrcb.Close()
	gocv.CvtColor(frame, &ycrcb, gocv.ColorBGRToYCrCb)
	px := ycrcb.GetVecbAt(0, 0)
	exact := [3]float64{float64(px[0]), float64(px[1]), float64(px[2])}

	t.Run("value equal to both bounds is skin", func(t *testing.T) {
		mask := NewSkinSegmenter(exact, exact).SkinMask(frame)
		defer mask.Close()
		assert.Equal(t, 16, gocv.CountNonZero(mask))
	})

	t.Run("any single channel out of range rejects", func(t *testing.T) {
		for ch := 0; ch < 3; ch++ {
			lower := exact
			lower[ch]++
			upper := exact
			upper[ch] = 255

			mask := NewSkinSegmenter(lower, upper).SkinMask(frame)
			assert.Zero(t, gocv.CountNonZero(mask), "channel %d", ch)
			mask.Close()
		}
	})
}

func TestSkinSegmenter_MixedFrame(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	d := config.DefaultDetection()
	skin := NewSkinSegmenter(d.SkinLowerBound, d.SkinUpperBound)

	frame := testsupport.HandFrame(2)
	defer frame.Close()

	mask := skin.SkinMask(frame)
	defer mask.Close()

	assert.Equal(t, uint8(0), mask.GetUCharAt(0, 0))
	assert.Equal(t, uint8(255), mask.GetUCharAt(testsupport.HandOrigin.Y+300, testsupport.HandOrigin.X+60))
}
