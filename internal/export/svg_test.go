package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/san-kum/trussopt/internal/model"
)

func triangle(t *testing.T) *model.Structure {
	t.Helper()
	st, err := model.New(
		[]model.Node{
			{ID: 0, X: 0, Y: 0, FixX: true, FixY: true, Active: true},
			{ID: 1, X: 1, Y: 0, FixY: true, Active: true},
			{ID: 2, X: 0.5, Y: 1, Fy: -500, Active: true},
		},
		[]model.Spring{
			{I: 0, J: 1, K: 100, Active: true},
			{I: 0, J: 2, K: 100, Active: true},
			{I: 1, J: 2, K: 100, Active: false},
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	return st
}

func TestStructureToSVG(t *testing.T) {
	st := triangle(t)
	svg := StructureToSVG(st, DefaultSVGOptions())
	if svg == "" {
		t.Fatal("empty output")
	}
	if !strings.HasPrefix(svg, `<?xml`) || !strings.HasSuffix(svg, "</svg>") {
		t.Error("output is not a complete SVG document")
	}
	// Two active springs, the inactive one hidden by default.
	if got := strings.Count(svg, "<line"); got != 3 { // 2 springs + 1 load arrow
		t.Errorf("line count = %d, want 3", got)
	}
	// Both supports drawn as triangles.
	if got := strings.Count(svg, "<path"); got != 2 {
		t.Errorf("support marker count = %d, want 2", got)
	}
}

func TestStructureToSVGShowInactive(t *testing.T) {
	st := triangle(t)
	opts := DefaultSVGOptions()
	opts.ShowInactive = true
	svg := StructureToSVG(st, opts)
	if got := strings.Count(svg, "<line"); got != 4 {
		t.Errorf("line count = %d, want 4", got)
	}
	if !strings.Contains(svg, "#2a2a2a") {
		t.Error("inactive spring not drawn faint")
	}
}

func TestStructureToSVGStressColors(t *testing.T) {
	st := triangle(t)
	opts := DefaultSVGOptions()
	opts.Stresses = []float64{1e6, -1e6, 0}
	svg := StructureToSVG(st, opts)
	if !strings.Contains(svg, "#ff0000") {
		t.Error("full tension not drawn red")
	}
	if !strings.Contains(svg, "#0000ff") {
		t.Error("full compression not drawn blue")
	}
}

func TestStructureToSVGAllInactive(t *testing.T) {
	st := triangle(t)
	for i := range st.Nodes {
		st.Nodes[i].Active = false
	}
	if svg := StructureToSVG(st, DefaultSVGOptions()); svg != "" {
		t.Error("rendered a structure without active nodes")
	}
}

func TestWriteSVG(t *testing.T) {
	st := triangle(t)
	path := filepath.Join(t.TempDir(), "out.svg")
	if err := WriteSVG(path, st, DefaultSVGOptions()); err != nil {
		t.Fatalf("WriteSVG failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "<svg") {
		t.Error("file does not contain an SVG root")
	}
}
