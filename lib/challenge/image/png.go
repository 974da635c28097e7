package image

import (
	"bytes"
	stdimage "image"
	"image/color"
	"image/png"
	"math/rand/v2"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// PNGFactory draws the code with a bitmap font over noise lines and scales
// the result to the requested size.
type PNGFactory struct{}

const (
	glyphWidth  = 7
	glyphHeight = 13
	padding     = 4
	noiseLines  = 6
)

var (
	background = color.RGBA{0xf4, 0xf1, 0xea, 0xff}
	ink        = color.RGBA{0x2b, 0x2d, 0x42, 0xff}
	noise      = color.RGBA{0x8d, 0x99, 0xae, 0xff}
)

func (PNGFactory) Render(code string, width, height int) ([]byte, string, error) {
	bw := len(code)*glyphWidth + 2*padding
	bh := glyphHeight + 2*padding

	base := stdimage.NewRGBA(stdimage.Rect(0, 0, bw, bh))
	draw.Draw(base, base.Bounds(), stdimage.NewUniform(background), stdimage.Point{}, draw.Src)

	for range noiseLines {
		line(base, rand.IntN(bw), rand.IntN(bh), rand.IntN(bw), rand.IntN(bh), noise)
	}

	d := &font.Drawer{
		Dst:  base,
		Src:  stdimage.NewUniform(ink),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(padding, padding+basicfont.Face7x13.Ascent),
	}
	d.DrawString(code)

	dst := stdimage.NewRGBA(stdimage.Rect(0, 0, width, height))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), base, base.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, "", err
	}

	return buf.Bytes(), "image/png", nil
}

func line(img *stdimage.RGBA, x0, y0, x1, y1 int, c color.Color) {
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}

	e := dx + dy
	for {
		img.Set(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
