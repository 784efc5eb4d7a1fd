package canvas

import (
	"fmt"
	"math"
	"sort"

	"github.com/dshills/rewind/internal/engine/history"
)

type point struct{ x, y float64 }

type subpath struct {
	pts    []point
	closed bool
}

// path is a list of subpaths. The last subpath receives new points.
type path struct {
	subs []subpath
}

func (p *path) reset() {
	p.subs = nil
}

func (p *path) moveTo(pt point) {
	p.subs = append(p.subs, subpath{pts: []point{pt}})
}

func (p *path) lineTo(pt point) {
	if len(p.subs) == 0 {
		p.moveTo(pt)
		return
	}
	last := &p.subs[len(p.subs)-1]
	last.pts = append(last.pts, pt)
}

func (p *path) closePath() {
	if len(p.subs) == 0 {
		return
	}
	last := &p.subs[len(p.subs)-1]
	if last.closed || len(last.pts) == 0 {
		return
	}
	last.closed = true
	p.moveTo(last.pts[0])
}

func (p *path) rect(x, y, w, h float64) {
	p.subs = append(p.subs, subpath{
		pts:    []point{{x, y}, {x + w, y}, {x + w, y + h}, {x, y + h}},
		closed: true,
	})
	p.moveTo(point{x, y})
}

// polygons returns every subpath with at least two points as a closed
// polygon.
func (p *path) polygons() [][]point {
	var result [][]point
	for _, sp := range p.subs {
		if len(sp.pts) >= 2 {
			result = append(result, sp.pts)
		}
	}
	return result
}

// segments returns the line segments drawn by a stroke.
func (p *path) segments() [][2]point {
	var result [][2]point
	for _, sp := range p.subs {
		for i := 1; i < len(sp.pts); i++ {
			result = append(result, [2]point{sp.pts[i-1], sp.pts[i]})
		}
		if sp.closed && len(sp.pts) > 2 {
			result = append(result, [2]point{sp.pts[len(sp.pts)-1], sp.pts[0]})
		}
	}
	return result
}

// values encodes the path as nested value lists:
// one []Value per subpath holding the closed flag then x, y pairs.
func (p *path) values() []history.Value {
	result := make([]history.Value, len(p.subs))
	for i, sp := range p.subs {
		v := make([]history.Value, 0, 1+2*len(sp.pts))
		v = append(v, sp.closed)
		for _, pt := range sp.pts {
			v = append(v, pt.x, pt.y)
		}
		result[i] = v
	}
	return result
}

func pathFromValues(v history.Value) (path, error) {
	if v == nil {
		return path{}, nil
	}
	list, ok := v.([]history.Value)
	if !ok {
		return path{}, fmt.Errorf("%w: path is %T", ErrInvalidState, v)
	}
	var p path
	for i, item := range list {
		sv, ok := item.([]history.Value)
		if !ok || len(sv) == 0 || len(sv)%2 != 1 {
			return path{}, fmt.Errorf("%w: subpath %d", ErrInvalidState, i)
		}
		closed, ok := sv[0].(bool)
		if !ok {
			return path{}, fmt.Errorf("%w: subpath %d flag", ErrInvalidState, i)
		}
		sp := subpath{closed: closed}
		for j := 1; j < len(sv); j += 2 {
			x, xok := toFloat(sv[j])
			y, yok := toFloat(sv[j+1])
			if !xok || !yok {
				return path{}, fmt.Errorf("%w: subpath %d point %d", ErrInvalidState, i, j/2)
			}
			sp.pts = append(sp.pts, point{x, y})
		}
		p.subs = append(p.subs, sp)
	}
	return p, nil
}

type crossing struct {
	x   float64
	dir int
}

// rasterize marks every pixel whose center lies inside the polygons under
// the nonzero winding rule.
func rasterize(polys [][]point, width, height int, mark func(x, y int)) {
	var xs []crossing
	for y := range height {
		yc := float64(y) + 0.5
		xs = xs[:0]
		for _, poly := range polys {
			for i := range poly {
				a, b := poly[i], poly[(i+1)%len(poly)]
				if a.y == b.y {
					continue
				}
				dir := 1
				if a.y > b.y {
					a, b = b, a
					dir = -1
				}
				if yc < a.y || yc >= b.y {
					continue
				}
				x := a.x + (yc-a.y)*(b.x-a.x)/(b.y-a.y)
				xs = append(xs, crossing{x: x, dir: dir})
			}
		}
		if len(xs) < 2 {
			continue
		}
		sort.Slice(xs, func(i, j int) bool { return xs[i].x < xs[j].x })

		winding := 0
		for i, cr := range xs[:len(xs)-1] {
			winding += cr.dir
			if winding == 0 {
				continue
			}
			from := clampCoord(math.Ceil(cr.x-0.5), width)
			to := clampCoord(math.Ceil(xs[i+1].x-0.5), width)
			for x := from; x < to; x++ {
				mark(x, y)
			}
		}
	}
}

// clampCoord converts f to an int in [0, limit].
func clampCoord(f float64, limit int) int {
	switch {
	case f <= 0:
		return 0
	case f >= float64(limit):
		return limit
	}
	return int(f)
}

// contains reports whether (x, y) is inside the polygons under the nonzero
// winding rule.
func contains(polys [][]point, x, y float64) bool {
	winding := 0
	for _, poly := range polys {
		for i := range poly {
			a, b := poly[i], poly[(i+1)%len(poly)]
			if a.y == b.y {
				continue
			}
			dir := 1
			if a.y > b.y {
				a, b = b, a
				dir = -1
			}
			if y < a.y || y >= b.y {
				continue
			}
			if a.x+(y-a.y)*(b.x-a.x)/(b.y-a.y) > x {
				winding += dir
			}
		}
	}
	return winding != 0
}

// strokePolygons turns segments into quads of the given width. Square caps
// extend each segment by half the width.
func strokePolygons(segs [][2]point, width float64, squareCap bool) [][]point {
	hw := width / 2
	var result [][]point
	for _, s := range segs {
		a, b := s[0], s[1]
		dx, dy := b.x-a.x, b.y-a.y
		length := math.Hypot(dx, dy)
		if length == 0 {
			continue
		}
		ux, uy := dx/length, dy/length
		if squareCap {
			a = point{a.x - ux*hw, a.y - uy*hw}
			b = point{b.x + ux*hw, b.y + uy*hw}
		}
		nx, ny := -uy*hw, ux*hw
		result = append(result, []point{
			{a.x + nx, a.y + ny},
			{b.x + nx, b.y + ny},
			{b.x - nx, b.y - ny},
			{a.x - nx, a.y - ny},
		})
	}
	return result
}
