package canvas

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/dshills/rewind/internal/engine/history"
)

// Style holds the drawing parameters of a context.
type Style struct {
	FillStyle    string
	StrokeStyle  string
	LineWidth    float64
	GlobalAlpha  float64
	Font         string
	TextAlign    string
	TextBaseline string
	LineCap      string
	LineJoin     string
}

// DefaultStyle returns the style of a freshly created or resized context.
func DefaultStyle() Style {
	return Style{
		FillStyle:    "#000000",
		StrokeStyle:  "#000000",
		LineWidth:    1,
		GlobalAlpha:  1,
		Font:         "10px sans-serif",
		TextAlign:    "start",
		TextBaseline: "alphabetic",
		LineCap:      "butt",
		LineJoin:     "miter",
	}
}

// param describes one assignable style field. Setters report whether the
// value was accepted; invalid values are ignored and leave the field as is.
type param struct {
	get func(*Style) history.Value
	set func(*Style, history.Value) bool
}

var params = map[string]param{
	"fillStyle": {
		get: func(s *Style) history.Value { return s.FillStyle },
		set: colorSetter(func(s *Style) *string { return &s.FillStyle }),
	},
	"strokeStyle": {
		get: func(s *Style) history.Value { return s.StrokeStyle },
		set: colorSetter(func(s *Style) *string { return &s.StrokeStyle }),
	},
	"lineWidth": {
		get: func(s *Style) history.Value { return s.LineWidth },
		set: func(s *Style, v history.Value) bool {
			f, ok := toFloat(v)
			if !ok || f <= 0 {
				return false
			}
			s.LineWidth = f
			return true
		},
	},
	"globalAlpha": {
		get: func(s *Style) history.Value { return s.GlobalAlpha },
		set: func(s *Style, v history.Value) bool {
			f, ok := toFloat(v)
			if !ok || f < 0 || f > 1 {
				return false
			}
			s.GlobalAlpha = f
			return true
		},
	},
	"font": {
		get: func(s *Style) history.Value { return s.Font },
		set: func(s *Style, v history.Value) bool {
			str, ok := v.(string)
			if !ok || fontSizePattern.FindStringSubmatch(str) == nil {
				return false
			}
			s.Font = str
			return true
		},
	},
	"textAlign": {
		get: func(s *Style) history.Value { return s.TextAlign },
		set: enumSetter(func(s *Style) *string { return &s.TextAlign },
			"start", "end", "left", "right", "center"),
	},
	"textBaseline": {
		get: func(s *Style) history.Value { return s.TextBaseline },
		set: enumSetter(func(s *Style) *string { return &s.TextBaseline },
			"top", "hanging", "middle", "alphabetic", "ideographic", "bottom"),
	},
	"lineCap": {
		get: func(s *Style) history.Value { return s.LineCap },
		set: enumSetter(func(s *Style) *string { return &s.LineCap },
			"butt", "round", "square"),
	},
	"lineJoin": {
		get: func(s *Style) history.Value { return s.LineJoin },
		set: enumSetter(func(s *Style) *string { return &s.LineJoin },
			"round", "bevel", "miter"),
	},
}

func colorSetter(field func(*Style) *string) func(*Style, history.Value) bool {
	return func(s *Style, v history.Value) bool {
		str, ok := v.(string)
		if !ok {
			return false
		}
		if _, err := ParseColor(str); err != nil {
			return false
		}
		*field(s) = str
		return true
	}
}

func enumSetter(field func(*Style) *string, allowed ...string) func(*Style, history.Value) bool {
	return func(s *Style, v history.Value) bool {
		str, ok := v.(string)
		if !ok {
			return false
		}
		for _, a := range allowed {
			if str == a {
				*field(s) = str
				return true
			}
		}
		return false
	}
}

// Color is a straight-alpha color.
type Color struct {
	R, G, B uint8
	A       float64
}

var namedColors = map[string]string{
	"black":   "#000000",
	"white":   "#ffffff",
	"red":     "#ff0000",
	"green":   "#008000",
	"lime":    "#00ff00",
	"blue":    "#0000ff",
	"yellow":  "#ffff00",
	"cyan":    "#00ffff",
	"magenta": "#ff00ff",
	"gray":    "#808080",
	"grey":    "#808080",
	"orange":  "#ffa500",
	"purple":  "#800080",
}

var (
	rgbPattern      = regexp.MustCompile(`^rgba?\(\s*([\d.]+)\s*,\s*([\d.]+)\s*,\s*([\d.]+)\s*(?:,\s*([\d.]+)\s*)?\)$`)
	fontSizePattern = regexp.MustCompile(`(\d+(?:\.\d+)?)px`)
)

// ParseColor parses a CSS color: #rgb, #rrggbb, rgb(), rgba(), a basic
// color name or "transparent".
func ParseColor(s string) (Color, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "transparent" {
		return Color{}, nil
	}
	if hex, ok := namedColors[s]; ok {
		s = hex
	}

	if strings.HasPrefix(s, "#") {
		c, err := colorful.Hex(s)
		if err != nil {
			return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
		}
		r, g, b := c.RGB255()
		return Color{R: r, G: g, B: b, A: 1}, nil
	}

	m := rgbPattern.FindStringSubmatch(s)
	if m == nil {
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	var channels [3]uint8
	for i := range channels {
		f, err := strconv.ParseFloat(m[i+1], 64)
		if err != nil || f > 255 {
			return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
		}
		channels[i] = uint8(math.Round(f))
	}
	alpha := 1.0
	if m[4] != "" {
		f, err := strconv.ParseFloat(m[4], 64)
		if err != nil || f > 1 {
			return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
		}
		alpha = f
	}
	return Color{R: channels[0], G: channels[1], B: channels[2], A: alpha}, nil
}

// fontSize returns the pixel size of a CSS font shorthand.
func fontSize(font string) float64 {
	m := fontSizePattern.FindStringSubmatch(font)
	if m == nil {
		return 10
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 10
	}
	return f
}

// toFloat converts any numeric Value to float64. Non-finite numbers are
// rejected.
func toFloat(v history.Value) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case uint8:
		f = float64(n)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
