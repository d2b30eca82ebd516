package material

import (
	"fmt"
	"strconv"
	"strings"
)

// sideAngles maps "to <side>" directions onto CSS angles.
var sideAngles = map[string]float64{
	"top":          0,
	"top right":    45,
	"right top":    45,
	"right":        90,
	"bottom right": 135,
	"right bottom": 135,
	"bottom":       180,
	"bottom left":  225,
	"left bottom":  225,
	"left":         270,
	"top left":     315,
	"left top":     315,
}

// ParseColorSpec parses a solid color or a CSS linear-gradient string such
// as "linear-gradient(135deg, #ffffff 0%, #000000 100%)".
func ParseColorSpec(s string) (ColorSpec, error) {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	if !strings.Contains(lower, "gradient") {
		c, err := ParseColor(s)
		if err != nil {
			return ColorSpec{}, err
		}
		return Solid(c), nil
	}

	const prefix = "linear-gradient("
	if !strings.HasPrefix(lower, prefix) || !strings.HasSuffix(lower, ")") {
		return ColorSpec{}, fmt.Errorf("%w: %q", ErrGradientParse, s)
	}
	params := splitTopLevel(lower[len(prefix) : len(lower)-1])

	spec := ColorSpec{Kind: KindGradient, Angle: 180}
	offsets := make([]*float64, 0, len(params))
	for i, par := range params {
		switch {
		case i == 0 && strings.HasSuffix(par, "deg"):
			a, err := strconv.ParseFloat(strings.TrimSuffix(par, "deg"), 64)
			if err != nil {
				return ColorSpec{}, fmt.Errorf("%w: angle %q", ErrGradientParse, par)
			}
			spec.Angle = a
		case i == 0 && strings.HasPrefix(par, "to "):
			a, ok := sideAngles[strings.Join(strings.Fields(par[3:]), " ")]
			if !ok {
				return ColorSpec{}, fmt.Errorf("%w: direction %q", ErrGradientParse, par)
			}
			spec.Angle = a
		default:
			stop, off, err := parseStop(par)
			if err != nil {
				return ColorSpec{}, err
			}
			spec.Stops = append(spec.Stops, stop)
			offsets = append(offsets, off)
		}
	}

	distributeOffsets(spec.Stops, offsets)
	spec.Angle = spec.NormalizedAngle()
	if err := spec.Validate(); err != nil {
		return ColorSpec{}, err
	}
	return spec, nil
}

// parseStop parses "<color> [<offset>%]". The returned offset is nil when
// the stop does not name one.
func parseStop(par string) (Stop, *float64, error) {
	colorPart, offPart := par, ""
	if i := strings.LastIndexByte(par, ' '); i > 0 && !strings.HasSuffix(par, ")") {
		colorPart, offPart = strings.TrimSpace(par[:i]), strings.TrimSpace(par[i+1:])
	}

	c, err := ParseColor(colorPart)
	if err != nil {
		return Stop{}, nil, fmt.Errorf("%w: stop %q: %v", ErrGradientParse, par, err)
	}
	if offPart == "" {
		return Stop{Color: c}, nil, nil
	}

	off, err := readFraction(offPart)
	if err != nil {
		return Stop{}, nil, fmt.Errorf("%w: offset %q", ErrGradientParse, offPart)
	}
	return Stop{Color: c, Offset: off}, &off, nil
}

// readFraction reads "50%" as 0.5 and a bare number as a fraction.
func readFraction(s string) (float64, error) {
	if p, ok := strings.CutSuffix(s, "%"); ok {
		f, err := strconv.ParseFloat(p, 64)
		return f / 100, err
	}
	return strconv.ParseFloat(s, 64)
}

// distributeOffsets fills in missing offsets: the first stop defaults to 0,
// the last to 1, and unset stops in between are spaced evenly.
func distributeOffsets(stops []Stop, set []*float64) {
	n := len(stops)
	if n == 0 {
		return
	}
	if set[0] == nil {
		stops[0].Offset = 0
		zero := 0.0
		set[0] = &zero
	}
	if set[n-1] == nil {
		stops[n-1].Offset = 1
		one := 1.0
		set[n-1] = &one
	}

	last := 0
	for i := 1; i < n; i++ {
		if set[i] == nil {
			continue
		}
		gap := i - last
		for j := last + 1; j < i; j++ {
			t := float64(j-last) / float64(gap)
			stops[j].Offset = stops[last].Offset + t*(stops[i].Offset-stops[last].Offset)
		}
		last = i
	}
}

// splitTopLevel splits on commas outside parentheses.
func splitTopLevel(s string) []string {
	var (
		out   []string
		depth int
		start int
	)
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(out, strings.TrimSpace(s[start:]))
}
