// Package imaging prepares nutrition label photos for text recognition.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"
	"slices"

	// Registered decoders for uploaded label photos.
	_ "image/gif"
	_ "image/jpeg"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/nutriscan/nutriscan-engine/pkg/apperrors"
)

// Images smaller than this are upscaled before processing.
const (
	MinWidth  = 800
	MinHeight = 600
)

// DefaultMaxPixels bounds decoded photos when the caller gives no limit (24 megapixels).
const DefaultMaxPixels = 24_000_000

// MaxUpscaleFactor bounds how much Upscale enlarges a photo along either axis.
const MaxUpscaleFactor = 4.0

// VariantCount is the number of images produced by Variants.
const VariantCount = 10

// Variant is one pre-processed rendition of a label photo.
type Variant struct {
	Name  string
	Image *image.Gray
}

// Decode reads an uploaded photo in any registered format. The header is checked
// first and photos with more than maxPixels pixels are rejected with
// apperrors.ErrImageTooLarge before any pixel data is allocated.
// maxPixels <= 0 means DefaultMaxPixels.
func Decode(data []byte, maxPixels int) (image.Image, error) {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("failed to decode image: empty dimensions %dx%d", cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, fmt.Errorf("%w: %dx%d", apperrors.ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// EncodePNG serializes a variant for engines that take encoded bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// Upscale enlarges img towards MinWidth x MinHeight, keeping the aspect ratio. The
// factor never exceeds MaxUpscaleFactor, so very thin strips stay thin. Images that are
// already large enough are returned unchanged.
func Upscale(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 || (w >= MinWidth && h >= MinHeight) {
		return img
	}

	scale := math.Min(MaxUpscaleFactor, math.Max(float64(MinWidth)/float64(w), float64(MinHeight)/float64(h)))
	dst := image.NewRGBA(image.Rect(0, 0, int(math.Round(float64(w)*scale)), int(math.Round(float64(h)*scale))))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

// Variants produces the fixed, ordered list of renditions tried by the label extractor:
// grayscale, smoothed, contrast enhanced, adaptive threshold, Otsu threshold,
// opened and closed forms of both thresholds, and an inverted edge map.
func Variants(img image.Image) []Variant {
	img = Upscale(img)

	gray := ToGray(img)
	smoothed := MedianFilter(gray)
	enhanced := LocalContrast(smoothed, 8, 2.0)
	adaptive := AdaptiveThreshold(enhanced, 11, 2)
	otsu := OtsuThreshold(enhanced)

	adaptiveOpen := Dilate(Erode(adaptive))
	adaptiveClose := Erode(Dilate(adaptiveOpen))
	otsuOpen := Dilate(Erode(otsu))
	otsuClose := Erode(Dilate(otsuOpen))

	edges := Invert(Dilate(EdgeMap(enhanced, 50, 150)))

	return []Variant{
		{Name: "grayscale", Image: gray},
		{Name: "smoothed", Image: smoothed},
		{Name: "contrast", Image: enhanced},
		{Name: "adaptive", Image: adaptive},
		{Name: "otsu", Image: otsu},
		{Name: "adaptive-open", Image: adaptiveOpen},
		{Name: "adaptive-close", Image: adaptiveClose},
		{Name: "otsu-open", Image: otsuOpen},
		{Name: "otsu-close", Image: otsuClose},
		{Name: "edges", Image: edges},
	}
}

// ToGray converts any image to 8-bit grayscale with origin (0,0).
func ToGray(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(gray, gray.Bounds(), img, b.Min, xdraw.Src)
	return gray
}

func newLike(src *image.Gray) *image.Gray {
	return image.NewGray(src.Bounds())
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// MedianFilter applies a 3x3 median, which removes speckle while keeping stroke edges.
func MedianFilter(src *image.Gray) *image.Gray {
	b := src.Bounds()
	dst := newLike(src)
	var window [9]uint8
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			n := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					sx := clampInt(x+dx, b.Min.X, b.Max.X-1)
					sy := clampInt(y+dy, b.Min.Y, b.Max.Y-1)
					window[n] = src.GrayAt(sx, sy).Y
					n++
				}
			}
			w := window
			slices.Sort(w[:])
			dst.Pix[dst.PixOffset(x, y)] = w[4]
		}
	}
	return dst
}

// LocalContrast performs contrast-limited histogram equalization over a grid x grid
// tiling, blending neighbouring tile mappings bilinearly.
func LocalContrast(src *image.Gray, grid int, clipLimit float64) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return newLike(src)
	}
	if grid < 1 {
		grid = 1
	}
	tileW := int(math.Ceil(float64(w) / float64(grid)))
	tileH := int(math.Ceil(float64(h) / float64(grid)))

	maps := make([][][256]uint8, grid)
	for ty := 0; ty < grid; ty++ {
		maps[ty] = make([][256]uint8, grid)
		for tx := 0; tx < grid; tx++ {
			maps[ty][tx] = tileMapping(src, b.Min.X+tx*tileW, b.Min.Y+ty*tileH, tileW, tileH, clipLimit)
		}
	}

	dst := newLike(src)
	for y := 0; y < h; y++ {
		fy := (float64(y)+0.5)/float64(tileH) - 0.5
		ty0 := clampInt(int(math.Floor(fy)), 0, grid-1)
		ty1 := clampInt(ty0+1, 0, grid-1)
		wy := math.Min(math.Max(fy-float64(ty0), 0), 1)
		for x := 0; x < w; x++ {
			fx := (float64(x)+0.5)/float64(tileW) - 0.5
			tx0 := clampInt(int(math.Floor(fx)), 0, grid-1)
			tx1 := clampInt(tx0+1, 0, grid-1)
			wx := math.Min(math.Max(fx-float64(tx0), 0), 1)

			v := src.GrayAt(b.Min.X+x, b.Min.Y+y).Y
			top := (1-wx)*float64(maps[ty0][tx0][v]) + wx*float64(maps[ty0][tx1][v])
			bottom := (1-wx)*float64(maps[ty1][tx0][v]) + wx*float64(maps[ty1][tx1][v])
			dst.Pix[dst.PixOffset(b.Min.X+x, b.Min.Y+y)] = uint8(math.Round((1-wy)*top + wy*bottom))
		}
	}
	return dst
}

func tileMapping(src *image.Gray, x0, y0, tw, th int, clipLimit float64) [256]uint8 {
	var hist [256]int
	b := src.Bounds()
	total := 0
	for y := y0; y < y0+th && y < b.Max.Y; y++ {
		for x := x0; x < x0+tw && x < b.Max.X; x++ {
			hist[src.GrayAt(x, y).Y]++
			total++
		}
	}

	var mapping [256]uint8
	if total == 0 {
		for i := range mapping {
			mapping[i] = uint8(i)
		}
		return mapping
	}

	limit := int(clipLimit * float64(total) / 256)
	if limit < 1 {
		limit = 1
	}
	excess := 0
	for i := range hist {
		if hist[i] > limit {
			excess += hist[i] - limit
			hist[i] = limit
		}
	}
	bonus, rest := excess/256, excess%256
	for i := range hist {
		hist[i] += bonus
		if i < rest {
			hist[i]++
		}
	}

	cdf := 0
	for i := range hist {
		cdf += hist[i]
		mapping[i] = uint8(clampInt(int(math.Round(float64(cdf)*255/float64(total))), 0, 255))
	}
	return mapping
}

// AdaptiveThreshold binarizes against the mean of a block x block neighbourhood minus c.
func AdaptiveThreshold(src *image.Gray, block int, c float64) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	// integral image with a zero border row/column
	integral := make([]int64, (w+1)*(h+1))
	for y := 0; y < h; y++ {
		var row int64
		for x := 0; x < w; x++ {
			row += int64(src.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			integral[(y+1)*(w+1)+x+1] = integral[y*(w+1)+x+1] + row
		}
	}

	half := block / 2
	dst := newLike(src)
	for y := 0; y < h; y++ {
		y0, y1 := clampInt(y-half, 0, h-1), clampInt(y+half, 0, h-1)
		for x := 0; x < w; x++ {
			x0, x1 := clampInt(x-half, 0, w-1), clampInt(x+half, 0, w-1)
			sum := integral[(y1+1)*(w+1)+x1+1] - integral[y0*(w+1)+x1+1] - integral[(y1+1)*(w+1)+x0] + integral[y0*(w+1)+x0]
			count := (x1 - x0 + 1) * (y1 - y0 + 1)
			mean := float64(sum) / float64(count)
			if float64(src.GrayAt(b.Min.X+x, b.Min.Y+y).Y) > mean-c {
				dst.Pix[dst.PixOffset(b.Min.X+x, b.Min.Y+y)] = 255
			}
		}
	}
	return dst
}

// OtsuLevel returns the threshold that maximizes between-class variance.
func OtsuLevel(src *image.Gray) uint8 {
	var hist [256]int
	b := src.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			hist[src.GrayAt(x, y).Y]++
		}
	}

	total := b.Dx() * b.Dy()
	var sumAll float64
	for i, n := range hist {
		sumAll += float64(i * n)
	}

	var sumBg float64
	var weightBg int
	var best float64
	var level uint8
	for t := 0; t < 256; t++ {
		weightBg += hist[t]
		if weightBg == 0 {
			continue
		}
		weightFg := total - weightBg
		if weightFg == 0 {
			break
		}
		sumBg += float64(t * hist[t])
		meanBg := sumBg / float64(weightBg)
		meanFg := (sumAll - sumBg) / float64(weightFg)
		between := float64(weightBg) * float64(weightFg) * (meanBg - meanFg) * (meanBg - meanFg)
		if between > best {
			best = between
			level = uint8(t)
		}
	}
	return level
}

// OtsuThreshold binarizes with the global Otsu level.
func OtsuThreshold(src *image.Gray) *image.Gray {
	level := OtsuLevel(src)
	dst := newLike(src)
	for i, v := range src.Pix {
		if v > level {
			dst.Pix[i] = 255
		}
	}
	return dst
}

// morph applies a 2x2 min (erode) or max (dilate) with the anchor at the bottom-right cell.
func morph(src *image.Gray, dilate bool) *image.Gray {
	b := src.Bounds()
	dst := newLike(src)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := src.GrayAt(x, y).Y
			for _, p := range [3]image.Point{{x - 1, y}, {x, y - 1}, {x - 1, y - 1}} {
				if !p.In(b) {
					continue
				}
				n := src.GrayAt(p.X, p.Y).Y
				if dilate && n > v || !dilate && n < v {
					v = n
				}
			}
			dst.Pix[dst.PixOffset(x, y)] = v
		}
	}
	return dst
}

// Erode applies a 2x2 erosion.
func Erode(src *image.Gray) *image.Gray { return morph(src, false) }

// Dilate applies a 2x2 dilation.
func Dilate(src *image.Gray) *image.Gray { return morph(src, true) }

// Invert flips every pixel.
func Invert(src *image.Gray) *image.Gray {
	dst := newLike(src)
	for i, v := range src.Pix {
		dst.Pix[i] = 255 - v
	}
	return dst
}

// EdgeMap marks Sobel gradients above high, plus those above low that touch a strong edge.
func EdgeMap(src *image.Gray, low, high float64) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	mag := make([]float64, w*h)
	at := func(x, y int) float64 {
		return float64(src.GrayAt(b.Min.X+clampInt(x, 0, w-1), b.Min.Y+clampInt(y, 0, h-1)).Y)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gx := -at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1) + at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1)
			gy := -at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1) + at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1)
			mag[y*w+x] = math.Hypot(gx, gy)
		}
	}

	dst := newLike(src)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m := mag[y*w+x]
			strong := m >= high
			if !strong && m >= low {
				for dy := -1; dy <= 1 && !strong; dy++ {
					for dx := -1; dx <= 1; dx++ {
						nx, ny := x+dx, y+dy
						if nx >= 0 && ny >= 0 && nx < w && ny < h && mag[ny*w+nx] >= high {
							strong = true
							break
						}
					}
				}
			}
			if strong {
				dst.Pix[dst.PixOffset(b.Min.X+x, b.Min.Y+y)] = 255
			}
		}
	}
	return dst
}
