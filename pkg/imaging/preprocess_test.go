package imaging

import (
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutriscan/nutriscan-engine/pkg/apperrors"
)

// labelImage draws dark "text" bars on a light background.
func labelImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{R: 230, G: 225, B: 220, A: 255}
			if (y/10)%3 == 1 && (x/6)%4 != 3 {
				c = color.RGBA{R: 20, G: 20, B: 25, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func TestUpscale_SmallImageGrowsToMinimum(t *testing.T) {
	out := Upscale(labelImage(400, 200))

	b := out.Bounds()
	assert.GreaterOrEqual(t, b.Dx(), MinWidth)
	assert.GreaterOrEqual(t, b.Dy(), MinHeight)
	// aspect ratio kept: scale is max(800/400, 600/200) = 3
	assert.Equal(t, 1200, b.Dx())
	assert.Equal(t, 600, b.Dy())
}

func TestUpscale_ThinStripIsCapped(t *testing.T) {
	out := Upscale(labelImage(1, 1000))

	b := out.Bounds()
	assert.Equal(t, 4, b.Dx())
	assert.Equal(t, 4000, b.Dy())
}

func TestUpscale_LargeImageUnchanged(t *testing.T) {
	in := labelImage(900, 700)
	out := Upscale(in)
	assert.Same(t, in, out)
}

func TestVariants_FixedOrderAndSize(t *testing.T) {
	variants := Variants(labelImage(200, 150))

	require.Len(t, variants, VariantCount)
	names := make([]string, 0, len(variants))
	for _, v := range variants {
		names = append(names, v.Name)
		require.NotNil(t, v.Image)
		assert.Equal(t, 800, v.Image.Bounds().Dx(), v.Name)
		assert.Equal(t, 600, v.Image.Bounds().Dy(), v.Name)
	}
	assert.Equal(t, []string{
		"grayscale", "smoothed", "contrast", "adaptive", "otsu",
		"adaptive-open", "adaptive-close", "otsu-open", "otsu-close", "edges",
	}, names)
}

func TestVariants_BinaryOutputs(t *testing.T) {
	variants := Variants(labelImage(800, 600))
	for _, v := range variants[3:] {
		for _, p := range v.Image.Pix {
			if p != 0 && p != 255 {
				t.Fatalf("variant %s has non-binary pixel %d", v.Name, p)
			}
		}
	}
}

func TestOtsuLevel_SeparatesTwoClasses(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 10, 10))
	for i := range img.Pix {
		if i%2 == 0 {
			img.Pix[i] = 30
		} else {
			img.Pix[i] = 200
		}
	}
	level := OtsuLevel(img)
	assert.GreaterOrEqual(t, level, uint8(30))
	assert.Less(t, level, uint8(200))

	out := OtsuThreshold(img)
	assert.Equal(t, uint8(0), out.Pix[0])
	assert.Equal(t, uint8(255), out.Pix[1])
}

func TestMorphology(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 5, 5))
	img.SetGray(2, 2, color.Gray{Y: 255})

	dilated := Dilate(img)
	assert.Equal(t, uint8(255), dilated.GrayAt(2, 2).Y)
	assert.Equal(t, uint8(255), dilated.GrayAt(3, 3).Y)
	assert.Equal(t, uint8(0), dilated.GrayAt(1, 1).Y)

	// opening removes an isolated pixel
	opened := Dilate(Erode(img))
	for _, p := range opened.Pix {
		assert.Equal(t, uint8(0), p)
	}
}

func TestMedianFilter_RemovesSpeckle(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 5, 5))
	for i := range img.Pix {
		img.Pix[i] = 100
	}
	img.SetGray(2, 2, color.Gray{Y: 255})

	out := MedianFilter(img)
	assert.Equal(t, uint8(100), out.GrayAt(2, 2).Y)
}

func TestInvert(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 2, 1))
	img.Pix[0], img.Pix[1] = 0, 200
	out := Invert(img)
	assert.Equal(t, []uint8{255, 55}, out.Pix)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	data, err := EncodePNG(ToGray(labelImage(20, 10)))
	require.NoError(t, err)

	img, err := Decode(data, 0)
	require.NoError(t, err)
	assert.Equal(t, 20, img.Bounds().Dx())
}

func TestDecode_RejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("not an image"), 0)
	assert.Error(t, err)
}

func TestDecode_RejectsTooManyPixels(t *testing.T) {
	data, err := EncodePNG(ToGray(labelImage(20, 10)))
	require.NoError(t, err)

	_, err = Decode(data, 199)
	assert.ErrorIs(t, err, apperrors.ErrImageTooLarge)

	_, err = Decode(data, 200)
	assert.NoError(t, err)
}

func TestDecode_ChecksDeclaredSizeBeforeDecoding(t *testing.T) {
	data, err := EncodePNG(ToGray(labelImage(2, 2)))
	require.NoError(t, err)

	// Rewrite the IHDR chunk to claim 20000x20000 and fix up its CRC. The pixel data
	// no longer matches, so only a header check can produce ErrImageTooLarge.
	binary.BigEndian.PutUint32(data[16:20], 20000)
	binary.BigEndian.PutUint32(data[20:24], 20000)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))

	_, err = Decode(data, DefaultMaxPixels)
	assert.ErrorIs(t, err, apperrors.ErrImageTooLarge)
}
