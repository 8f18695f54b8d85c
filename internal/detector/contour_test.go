package detector

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/fingercount/internal/testsupport"
)

func TestLargestRegion(t *testing.T) {
	const rows, cols = 240, 320
	// A filled 100x50 block traces a 99x49 outline.
	block := image.Rect(10, 10, 110, 60)
	const blockArea = 99 * 49

	t.Run("empty mask has no region", func(t *testing.T) {
		mask := testsupport.MaskWithRects(rows, cols)
		defer mask.Close()

		_, ok := LargestRegion(mask, 0)
		assert.False(t, ok)
	})

	t.Run("area equal to the minimum is kept", func(t *testing.T) {
		mask := testsupport.MaskWithRects(rows, cols, block)
		defer mask.Close()

		region, ok := LargestRegion(mask, blockArea)
		require.True(t, ok)
		assert.InDelta(t, blockArea, region.Area, 1e-9)
		assert.Len(t, region.Contour, 4)
	})

	t.Run("area just below the minimum is dropped", func(t *testing.T) {
		mask := testsupport.MaskWithRects(rows, cols, block)
		defer mask.Close()

		_, ok := LargestRegion(mask, blockArea+1)
		assert.False(t, ok)
	})

	t.Run("picks the largest of several regions", func(t *testing.T) {
		mask := testsupport.MaskWithRects(rows, cols,
			image.Rect(200, 20, 230, 50),
			image.Rect(20, 100, 180, 220),
			block,
		)
		defer mask.Close()

		region, ok := LargestRegion(mask, 0)
		require.True(t, ok)
		assert.InDelta(t, 159*119, region.Area, 1e-9)
		for _, p := range region.Contour {
			assert.True(t, p.In(image.Rect(20, 100, 180, 220)), "point %v outside the largest block", p)
		}
	})

	t.Run("small regions alone are ignored", func(t *testing.T) {
		mask := testsupport.MaskWithRects(rows, cols,
			image.Rect(200, 20, 230, 50),
			image.Rect(10, 10, 20, 20),
		)
		defer mask.Close()

		_, ok := LargestRegion(mask, 5000)
		assert.False(t, ok)
	})
}
