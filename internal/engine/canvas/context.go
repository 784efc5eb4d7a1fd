// Package canvas implements a 2D raster drawing context that can be tracked
// by a history timeline.
//
// A Context holds straight-alpha RGBA pixels, a set of style parameters and
// the current path. Every mutation is expressed as a history.Command and
// applied through Apply, which makes the context replayable. Queries such
// as getImageData never change the context and are served by Query.
package canvas

import (
	"fmt"
	"image"
	"slices"

	"github.com/dshills/rewind/internal/engine/history"
)

// MaxDimension bounds the width and height of a context.
const MaxDimension = 16384

// Context is a drawing surface.
//
// Context is not safe for concurrent use.
type Context struct {
	img    *image.NRGBA
	style  Style
	path   path
	sealed map[history.OperationID]bool
}

// New creates a transparent context of the given size.
func New(width, height int) (*Context, error) {
	if err := checkSize(width, height); err != nil {
		return nil, err
	}
	return &Context{
		img:    image.NewNRGBA(image.Rect(0, 0, width, height)),
		style:  DefaultStyle(),
		sealed: make(map[history.OperationID]bool),
	}, nil
}

func checkSize(width, height int) error {
	if width < 0 || height < 0 || width > MaxDimension || height > MaxDimension {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	return nil
}

// Width returns the width in pixels.
func (c *Context) Width() int { return c.img.Rect.Dx() }

// Height returns the height in pixels.
func (c *Context) Height() int { return c.img.Rect.Dy() }

// Style returns the current style parameters.
func (c *Context) Style() Style { return c.style }

// Image returns the pixel buffer. Callers must not modify it.
func (c *Context) Image() *image.NRGBA { return c.img }

// Param returns the value of a style parameter.
func (c *Context) Param(name string) (history.Value, bool) {
	p, ok := params[name]
	if !ok {
		return nil, false
	}
	return p.get(&c.style), true
}

// Seal marks operations as not interceptable. Sealed operations keep
// working but a tracker leaves them unrecorded.
func (c *Context) Seal(ops ...history.OperationID) {
	for _, op := range ops {
		c.sealed[op] = true
	}
}

// Sealed returns the sealed operations in sorted order.
func (c *Context) Sealed() []history.OperationID {
	result := make([]history.OperationID, 0, len(c.sealed))
	for op := range c.sealed {
		result = append(result, op)
	}
	slices.Sort(result)
	return result
}

// Operations returns every operation the context supports, including
// field assignments and queries, in sorted order.
func (c *Context) Operations() []history.OperationID {
	result := make([]history.OperationID, 0, len(mutators)+len(params)+len(queries))
	for op := range mutators {
		result = append(result, op)
	}
	for name := range params {
		result = append(result, history.SetOperation(name))
	}
	for op := range queries {
		result = append(result, op)
	}
	slices.Sort(result)
	return result
}

var mutators = map[history.OperationID]func(*Context, []history.Value) error{
	"fillRect":     (*Context).fillRect,
	"clearRect":    (*Context).clearRect,
	"strokeRect":   (*Context).strokeRect,
	"beginPath":    (*Context).beginPath,
	"moveTo":       (*Context).moveTo,
	"lineTo":       (*Context).lineTo,
	"rect":         (*Context).rect,
	"closePath":    (*Context).closePath,
	"fill":         (*Context).fill,
	"stroke":       (*Context).stroke,
	"putImageData": (*Context).putImageData,
	"drawImage":    (*Context).drawImage,
	"resize":       (*Context).resize,
}

var queries = map[history.OperationID]func(*Context, []history.Value) (history.Value, error){
	"getImageData":  (*Context).getImageData,
	"measureText":   (*Context).measureText,
	"isPointInPath": (*Context).isPointInPath,
}

// Apply performs a mutating command.
func (c *Context) Apply(cmd history.Command) error {
	if field, ok := cmd.Op.Field(); ok {
		p, ok := params[field]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownOperation, cmd.Op)
		}
		if len(cmd.Args) != 1 {
			return fmt.Errorf("%w: %s takes one value", ErrInvalidArgument, cmd.Op)
		}
		p.set(&c.style, cmd.Args[0])
		return nil
	}

	fn, ok := mutators[cmd.Op]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOperation, cmd.Op)
	}
	return fn(c, cmd.Args)
}

// Query performs a read-only operation.
func (c *Context) Query(op history.OperationID, args ...history.Value) (history.Value, error) {
	fn, ok := queries[op]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, op)
	}
	return fn(c, args)
}

// Snapshot captures the pixels, the style parameters and the current path.
func (c *Context) Snapshot() (history.State, error) {
	p := make(map[string]history.Value, len(params)+3)
	for name, param := range params {
		p[name] = param.get(&c.style)
	}
	p["width"] = int64(c.Width())
	p["height"] = int64(c.Height())
	p["path"] = c.path.values()

	return history.State{
		Blob:   slices.Clone(c.img.Pix),
		Params: p,
	}, nil
}

// Restore replaces the context with a snapshot taken by Snapshot.
func (c *Context) Restore(s history.State) error {
	w, wok := toFloat(s.Params["width"])
	h, hok := toFloat(s.Params["height"])
	if !wok || !hok {
		return fmt.Errorf("%w: missing dimensions", ErrInvalidState)
	}
	width, height := int(w), int(h)
	if err := checkSize(width, height); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	if len(s.Blob) != width*height*4 {
		return fmt.Errorf("%w: %d bytes for %dx%d pixels", ErrInvalidState, len(s.Blob), width, height)
	}
	pth, err := pathFromValues(s.Params["path"])
	if err != nil {
		return err
	}

	style := DefaultStyle()
	for name, param := range params {
		if v, ok := s.Params[name]; ok {
			param.set(&style, v)
		}
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	copy(img.Pix, s.Blob)
	c.img = img
	c.style = style
	c.path = pth
	return nil
}

// numbers converts the first n arguments of op to float64.
func numbers(op string, args []history.Value, n int) ([]float64, error) {
	if len(args) < n {
		return nil, fmt.Errorf("%w: %s needs %d arguments, got %d", ErrInvalidArgument, op, n, len(args))
	}
	result := make([]float64, n)
	for i := range n {
		f, ok := toFloat(args[i])
		if !ok {
			return nil, fmt.Errorf("%w: %s argument %d is %T", ErrInvalidArgument, op, i, args[i])
		}
		result[i] = f
	}
	return result, nil
}
