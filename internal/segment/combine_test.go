package segment

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/ayusman/fingercount/internal/testsupport"
)

func TestMaskCombiner_Combine(t *testing.T) {
	const rows, cols = 120, 160
	block := image.Rect(10, 10, 110, 60) // 100x50

	combiner := NewMaskCombiner(5)
	defer combiner.Close()

	t.Run("keeps pixels set in both masks", func(t *testing.T) {
		fg := testsupport.MaskWithRects(rows, cols, image.Rect(0, 0, cols, rows))
		defer fg.Close()
		skin := testsupport.MaskWithRects(rows, cols, block)
		defer skin.Close()

		out, err := combiner.Combine(fg, skin)
		require.NoError(t, err)
		defer out.Close()

		assert.Equal(t, 100*50, gocv.CountNonZero(out))
		assert.Equal(t, uint8(255), out.GetUCharAt(30, 50))
		assert.Equal(t, uint8(0), out.GetUCharAt(100, 150))
	})

	t.Run("disjoint masks produce nothing", func(t *testing.T) {
		fg := testsupport.MaskWithRects(rows, cols, image.Rect(0, 0, 50, 50))
		defer fg.Close()
		skin := testsupport.MaskWithRects(rows, cols, image.Rect(70, 60, 150, 110))
		defer skin.Close()

		out, err := combiner.Combine(fg, skin)
		require.NoError(t, err)
		defer out.Close()

		assert.Zero(t, gocv.CountNonZero(out))
	})

	t.Run("opening removes speckles", func(t *testing.T) {
		fg := testsupport.MaskWithRects(rows, cols, image.Rect(0, 0, cols, rows))
		defer fg.Close()
		skin := testsupport.MaskWithRects(rows, cols,
			image.Rect(130, 90, 132, 92),
			image.Rect(20, 100, 21, 101),
		)
		defer skin.Close()

		out, err := combiner.Combine(fg, skin)
		require.NoError(t, err)
		defer out.Close()

		assert.Zero(t, gocv.CountNonZero(out))
	})

	t.Run("closing fills small holes", func(t *testing.T) {
		fg := testsupport.MaskWithRects(rows, cols, image.Rect(0, 0, cols, rows))
		defer fg.Close()
		skin := testsupport.MaskWithRects(rows, cols, block)
		defer skin.Close()
		hole := skin.Region(image.Rect(50, 30, 52, 32))
		hole.SetTo(gocv.NewScalar(0, 0, 0, 0))
		hole.Close()
		require.Equal(t, 100*50-4, gocv.CountNonZero(skin))

		out, err := combiner.Combine(fg, skin)
		require.NoError(t, err)
		defer out.Close()

		assert.Equal(t, 100*50, gocv.CountNonZero(out))
		assert.Equal(t, uint8(255), out.GetUCharAt(30, 50))
	})

	t.Run("is deterministic", func(t *testing.T) {
		fg := testsupport.MaskWithRects(rows, cols, image.Rect(5, 5, 90, 100))
		defer fg.Close()
		skin := testsupport.MaskWithRects(rows, cols, block, image.Rect(120, 20, 150, 90))
		defer skin.Close()

		a, err := combiner.Combine(fg, skin)
		require.NoError(t, err)
		defer a.Close()
		b, err := combiner.Combine(fg, skin)
		require.NoError(t, err)
		defer b.Close()

		diff := gocv.NewMat()
		defer diff.Close()
		gocv.AbsDiff(a, b, &diff)
		assert.Zero(t, gocv.CountNonZero(diff))
	})
}

func TestMaskCombiner_SizeMismatch(t *testing.T) {
	combiner := NewMaskCombiner(3)
	defer combiner.Close()

	fg := testsupport.MaskWithRects(40, 40)
	defer fg.Close()
	skin := testsupport.MaskWithRects(40, 50)
	defer skin.Close()

	out, err := combiner.Combine(fg, skin)
	defer out.Close()
	assert.ErrorIs(t, err, ErrSizeMismatch)
}
