package export

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/san-kum/trussopt/internal/model"
)

// SVGOptions controls the rendered image.
type SVGOptions struct {
	Width, Height int
	// Stresses colors the springs when non-nil; must be indexed like
	// st.Springs. Without it every spring is drawn neutral.
	Stresses []float64
	// ShowInactive draws deactivated springs as faint gray lines.
	ShowInactive bool
}

func DefaultSVGOptions() SVGOptions {
	return SVGOptions{Width: 800, Height: 600}
}

// StructureToSVG renders a structure: springs as lines (color by stress,
// width by area), nodes as dots, supports as triangles and loads as
// arrows.
func StructureToSVG(st *model.Structure, opts SVGOptions) string {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for i := range st.Nodes {
		n := &st.Nodes[i]
		if !n.Active {
			continue
		}
		minX = math.Min(minX, n.X)
		maxX = math.Max(maxX, n.X)
		minY = math.Min(minY, n.Y)
		maxY = math.Max(maxY, n.Y)
	}
	if math.IsInf(minX, 1) {
		return ""
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	maxX += rangeX * 0.1
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeX = maxX - minX
	rangeY = maxY - minY

	w, h := float64(opts.Width), float64(opts.Height)
	px := func(n *model.Node) (float64, float64) {
		x := (n.X - minX) / rangeX * w
		y := h - (n.Y-minY)/rangeY*h
		return x, y
	}

	maxAbsStress := 0.0
	for i, s := range opts.Stresses {
		if i < len(st.Springs) && st.Springs[i].Active {
			maxAbsStress = math.Max(maxAbsStress, math.Abs(s))
		}
	}

	maxArea := 0.0
	for i := range st.Springs {
		maxArea = math.Max(maxArea, st.Springs[i].Area)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, opts.Width, opts.Height, opts.Width, opts.Height))

	for i := range st.Springs {
		s := &st.Springs[i]
		ni, nj := &st.Nodes[s.I], &st.Nodes[s.J]
		active := s.Active && ni.Active && nj.Active
		if !active && !opts.ShowInactive {
			continue
		}
		x1, y1 := px(ni)
		x2, y2 := px(nj)

		color := "#8899aa"
		width := 1.5
		if !active {
			color = "#2a2a2a"
			width = 0.5
		} else {
			if opts.Stresses != nil && i < len(opts.Stresses) && maxAbsStress > 0 {
				color = stressColor(opts.Stresses[i] / maxAbsStress)
			}
			if maxArea > 0 && s.Area > 0 {
				width = 0.5 + 3.5*s.Area/maxArea
			}
		}
		sb.WriteString(fmt.Sprintf(`<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="%s" stroke-width="%.1f"/>
`, x1, y1, x2, y2, color, width))
	}

	for i := range st.Nodes {
		n := &st.Nodes[i]
		if !n.Active {
			continue
		}
		x, y := px(n)
		sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="2" fill="#cccccc"/>
`, x, y))
		if n.Supported() {
			sb.WriteString(fmt.Sprintf(`<path d="M%.1f,%.1f l-6,10 l12,0 z" fill="none" stroke="#00ccff" stroke-width="1.5"/>
`, x, y))
		}
		if n.Loaded() {
			scale := 30.0 / math.Hypot(n.Fx, n.Fy)
			dx, dy := n.Fx*scale, -n.Fy*scale
			sb.WriteString(fmt.Sprintf(`<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="#ffcc00" stroke-width="2"/>
<circle cx="%.1f" cy="%.1f" r="3" fill="#ffcc00"/>
`, x, y, x+dx, y+dy, x+dx, y+dy))
		}
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// WriteSVG renders st to a file.
func WriteSVG(path string, st *model.Structure, opts SVGOptions) error {
	svg := StructureToSVG(st, opts)
	if svg == "" {
		return fmt.Errorf("export: nothing to render")
	}
	return os.WriteFile(path, []byte(svg), 0644)
}

// stressColor maps a normalized stress in [-1,1] to a blue-white-red
// ramp: compression blue, tension red.
func stressColor(t float64) string {
	t = math.Max(-1, math.Min(1, t))
	var r, g, b int
	if t >= 0 {
		r = 255
		g = int(220 * (1 - t))
		b = int(220 * (1 - t))
	} else {
		r = int(220 * (1 + t))
		g = int(220 * (1 + t))
		b = 255
	}
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}
