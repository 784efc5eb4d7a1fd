package canvas

import (
	"fmt"
	"image/png"
	"io"
	"math"
	"unicode/utf8"

	"github.com/dshills/rewind/internal/engine/history"
)

// blend composites a straight-alpha color over the pixel at (x, y).
func (c *Context) blend(x, y int, col Color, alpha float64) {
	sa := col.A * alpha
	if sa <= 0 {
		return
	}
	i := c.img.PixOffset(x, y)
	px := c.img.Pix[i : i+4 : i+4]
	da := float64(px[3]) / 255
	oa := sa + da*(1-sa)
	src := [3]uint8{col.R, col.G, col.B}
	for k, sc := range src {
		dc := float64(px[k])
		px[k] = uint8(math.Round((float64(sc)*sa + dc*da*(1-sa)) / oa))
	}
	px[3] = uint8(math.Round(oa * 255))
}

// paint blends col into every pixel set in mask.
func (c *Context) paint(mask []bool, col Color) {
	w := c.Width()
	alpha := c.style.GlobalAlpha
	for i, set := range mask {
		if set {
			c.blend(i%w, i/w, col, alpha)
		}
	}
}

func (c *Context) newMask() ([]bool, func(x, y int)) {
	w := c.Width()
	mask := make([]bool, w*c.Height())
	return mask, func(x, y int) { mask[y*w+x] = true }
}

// pixelRect returns the pixels whose centers lie inside the rectangle,
// clipped to the context.
func (c *Context) pixelRect(x, y, w, h float64) (x0, y0, x1, y1 int) {
	if w < 0 {
		x, w = x+w, -w
	}
	if h < 0 {
		y, h = y+h, -h
	}
	x0 = clampCoord(math.Ceil(x-0.5), c.Width())
	x1 = clampCoord(math.Ceil(x+w-0.5), c.Width())
	y0 = clampCoord(math.Ceil(y-0.5), c.Height())
	y1 = clampCoord(math.Ceil(y+h-0.5), c.Height())
	return x0, y0, x1, y1
}

func (c *Context) fillColor() Color {
	col, _ := ParseColor(c.style.FillStyle)
	return col
}

func (c *Context) strokeColor() Color {
	col, _ := ParseColor(c.style.StrokeStyle)
	return col
}

func (c *Context) fillRect(args []history.Value) error {
	n, err := numbers("fillRect", args, 4)
	if err != nil {
		return err
	}
	col := c.fillColor()
	x0, y0, x1, y1 := c.pixelRect(n[0], n[1], n[2], n[3])
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			c.blend(x, y, col, c.style.GlobalAlpha)
		}
	}
	return nil
}

func (c *Context) clearRect(args []history.Value) error {
	n, err := numbers("clearRect", args, 4)
	if err != nil {
		return err
	}
	x0, y0, x1, y1 := c.pixelRect(n[0], n[1], n[2], n[3])
	for y := y0; y < y1; y++ {
		i := c.img.PixOffset(x0, y)
		clear(c.img.Pix[i : i+4*(x1-x0)])
	}
	return nil
}

func (c *Context) strokeRect(args []history.Value) error {
	n, err := numbers("strokeRect", args, 4)
	if err != nil {
		return err
	}
	var p path
	p.rect(n[0], n[1], n[2], n[3])
	c.strokeSegments(p.segments())
	return nil
}

func (c *Context) beginPath([]history.Value) error {
	c.path.reset()
	return nil
}

func (c *Context) moveTo(args []history.Value) error {
	n, err := numbers("moveTo", args, 2)
	if err != nil {
		return err
	}
	c.path.moveTo(point{n[0], n[1]})
	return nil
}

func (c *Context) lineTo(args []history.Value) error {
	n, err := numbers("lineTo", args, 2)
	if err != nil {
		return err
	}
	c.path.lineTo(point{n[0], n[1]})
	return nil
}

func (c *Context) rect(args []history.Value) error {
	n, err := numbers("rect", args, 4)
	if err != nil {
		return err
	}
	c.path.rect(n[0], n[1], n[2], n[3])
	return nil
}

func (c *Context) closePath([]history.Value) error {
	c.path.closePath()
	return nil
}

func (c *Context) fill([]history.Value) error {
	mask, mark := c.newMask()
	rasterize(c.path.polygons(), c.Width(), c.Height(), mark)
	c.paint(mask, c.fillColor())
	return nil
}

func (c *Context) stroke([]history.Value) error {
	c.strokeSegments(c.path.segments())
	return nil
}

// strokeSegments rasterizes each segment separately so overlapping
// segments are painted once.
func (c *Context) strokeSegments(segs [][2]point) {
	mask, mark := c.newMask()
	for _, quad := range strokePolygons(segs, c.style.LineWidth, c.style.LineCap == "square") {
		rasterize([][]point{quad}, c.Width(), c.Height(), mark)
	}
	c.paint(mask, c.strokeColor())
}

// putImageData(x, y, w, h, pixels) copies straight-alpha RGBA rows into
// the context without compositing.
func (c *Context) putImageData(args []history.Value) error {
	n, err := numbers("putImageData", args, 4)
	if err != nil {
		return err
	}
	if len(args) < 5 {
		return fmt.Errorf("%w: putImageData needs pixel data", ErrInvalidArgument)
	}
	data, ok := args[4].([]byte)
	if !ok {
		return fmt.Errorf("%w: putImageData pixel data is %T", ErrInvalidArgument, args[4])
	}
	dx, dy, w, h := int(n[0]), int(n[1]), int(n[2]), int(n[3])
	if w < 0 || h < 0 || w > MaxDimension || h > MaxDimension || len(data) != w*h*4 {
		return fmt.Errorf("%w: putImageData has %d bytes for %dx%d", ErrInvalidArgument, len(data), w, h)
	}

	for row := range h {
		y := dy + row
		if y < 0 || y >= c.Height() {
			continue
		}
		for col := range w {
			x := dx + col
			if x < 0 || x >= c.Width() {
				continue
			}
			src := (row*w + col) * 4
			dst := c.img.PixOffset(x, y)
			copy(c.img.Pix[dst:dst+4], data[src:src+4])
		}
	}
	return nil
}

// drawImage(sx, sy, sw, sh, dx, dy) composites a region of the context
// onto itself.
func (c *Context) drawImage(args []history.Value) error {
	n, err := numbers("drawImage", args, 6)
	if err != nil {
		return err
	}
	src, err := c.region(int(n[0]), int(n[1]), int(n[2]), int(n[3]))
	if err != nil {
		return err
	}
	w, h := int(n[2]), int(n[3])
	dx, dy := int(n[4]), int(n[5])
	for row := range h {
		y := dy + row
		if y < 0 || y >= c.Height() {
			continue
		}
		for col := range w {
			x := dx + col
			if x < 0 || x >= c.Width() {
				continue
			}
			i := (row*w + col) * 4
			px := Color{R: src[i], G: src[i+1], B: src[i+2], A: float64(src[i+3]) / 255}
			c.blend(x, y, px, c.style.GlobalAlpha)
		}
	}
	return nil
}

// resize(w, h) replaces the context with a transparent one of the new size
// and resets the style and path.
func (c *Context) resize(args []history.Value) error {
	n, err := numbers("resize", args, 2)
	if err != nil {
		return err
	}
	w, h := int(n[0]), int(n[1])
	if err := checkSize(w, h); err != nil {
		return err
	}
	fresh, _ := New(w, h)
	fresh.sealed = c.sealed
	*c = *fresh
	return nil
}

// region copies a rectangle of pixels. Pixels outside the context are
// transparent.
func (c *Context) region(sx, sy, w, h int) ([]byte, error) {
	if w < 0 || h < 0 || w > MaxDimension || h > MaxDimension {
		return nil, fmt.Errorf("%w: region %dx%d", ErrInvalidArgument, w, h)
	}
	out := make([]byte, w*h*4)
	for row := range h {
		y := sy + row
		if y < 0 || y >= c.Height() {
			continue
		}
		for col := range w {
			x := sx + col
			if x < 0 || x >= c.Width() {
				continue
			}
			i := c.img.PixOffset(x, y)
			copy(out[(row*w+col)*4:], c.img.Pix[i:i+4])
		}
	}
	return out, nil
}

func (c *Context) getImageData(args []history.Value) (history.Value, error) {
	n, err := numbers("getImageData", args, 4)
	if err != nil {
		return nil, err
	}
	return c.region(int(n[0]), int(n[1]), int(n[2]), int(n[3]))
}

// measureText estimates the advance width of a string in the current font.
func (c *Context) measureText(args []history.Value) (history.Value, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("%w: measureText needs text", ErrInvalidArgument)
	}
	text, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("%w: measureText text is %T", ErrInvalidArgument, args[0])
	}
	return float64(utf8.RuneCountInString(text)) * fontSize(c.style.Font) * 0.6, nil
}

func (c *Context) isPointInPath(args []history.Value) (history.Value, error) {
	n, err := numbers("isPointInPath", args, 2)
	if err != nil {
		return nil, err
	}
	return contains(c.path.polygons(), n[0], n[1]), nil
}

// EncodePNG writes the pixels as a PNG image.
func (c *Context) EncodePNG(w io.Writer) error {
	if c.Width() == 0 || c.Height() == 0 {
		return fmt.Errorf("%w: cannot encode an empty image", ErrInvalidSize)
	}
	return png.Encode(w, c.img)
}
