// Package codec serializes structures as columnar JSON. Node ids equal
// array positions, so a decode of an encode reproduces ids, ordering and
// DOF numbering exactly.
package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/san-kum/trussopt/internal/model"
)

// FormatV2 is the columnar array layout written by [Encode].
const FormatV2 = "structure_v2_arrays"

type nodeArrays struct {
	X      []float64 `json:"x"`
	Y      []float64 `json:"y"`
	Fx     []float64 `json:"fx"`
	Fy     []float64 `json:"fy"`
	FixX   []int     `json:"fix_x"`
	FixY   []int     `json:"fix_y"`
	Active []int     `json:"active"`
}

type springArrays struct {
	I      []int     `json:"i"`
	J      []int     `json:"j"`
	K      []float64 `json:"k"`
	Area   []float64 `json:"area,omitempty"`
	Active []int     `json:"active"`
}

type document struct {
	Format  string       `json:"format"`
	Nodes   nodeArrays   `json:"nodes"`
	Springs springArrays `json:"springs"`
}

func toDocument(st *model.Structure) document {
	n := len(st.Nodes)
	doc := document{
		Format: FormatV2,
		Nodes: nodeArrays{
			X:      make([]float64, n),
			Y:      make([]float64, n),
			Fx:     make([]float64, n),
			Fy:     make([]float64, n),
			FixX:   make([]int, n),
			FixY:   make([]int, n),
			Active: make([]int, n),
		},
	}
	for _, node := range st.Nodes {
		i := node.ID
		doc.Nodes.X[i] = node.X
		doc.Nodes.Y[i] = node.Y
		doc.Nodes.Fx[i] = node.Fx
		doc.Nodes.Fy[i] = node.Fy
		doc.Nodes.FixX[i] = boolToInt(node.FixX)
		doc.Nodes.FixY[i] = boolToInt(node.FixY)
		doc.Nodes.Active[i] = boolToInt(node.Active)
	}

	hasArea := false
	for i := range st.Springs {
		if st.Springs[i].Area != 0 {
			hasArea = true
			break
		}
	}
	for i := range st.Springs {
		s := &st.Springs[i]
		doc.Springs.I = append(doc.Springs.I, s.I)
		doc.Springs.J = append(doc.Springs.J, s.J)
		doc.Springs.K = append(doc.Springs.K, s.K)
		doc.Springs.Active = append(doc.Springs.Active, boolToInt(s.Active))
		if hasArea {
			doc.Springs.Area = append(doc.Springs.Area, s.Area)
		}
	}
	return doc
}

func fromDocument(doc document) (*model.Structure, error) {
	if doc.Format != "" && doc.Format != FormatV2 {
		return nil, fmt.Errorf("codec: unsupported format %q", doc.Format)
	}
	n := len(doc.Nodes.X)
	if len(doc.Nodes.Y) != n {
		return nil, fmt.Errorf("codec: node arrays disagree: %d x vs %d y", n, len(doc.Nodes.Y))
	}
	fx := orZeros(doc.Nodes.Fx, n)
	fy := orZeros(doc.Nodes.Fy, n)
	fixX := orInts(doc.Nodes.FixX, n, 0)
	fixY := orInts(doc.Nodes.FixY, n, 0)
	active := orInts(doc.Nodes.Active, n, 1)
	if len(fx) != n || len(fy) != n || len(fixX) != n || len(fixY) != n || len(active) != n {
		return nil, fmt.Errorf("codec: node array lengths disagree")
	}

	nodes := make([]model.Node, n)
	for i := 0; i < n; i++ {
		nodes[i] = model.Node{
			ID:     i,
			X:      doc.Nodes.X[i],
			Y:      doc.Nodes.Y[i],
			Fx:     fx[i],
			Fy:     fy[i],
			FixX:   fixX[i] != 0,
			FixY:   fixY[i] != 0,
			Active: active[i] != 0,
		}
	}

	m := len(doc.Springs.I)
	if len(doc.Springs.J) != m || len(doc.Springs.K) != m {
		return nil, fmt.Errorf("codec: spring array lengths disagree")
	}
	sActive := orInts(doc.Springs.Active, m, 1)
	if len(sActive) != m {
		return nil, fmt.Errorf("codec: spring active length disagrees")
	}
	if doc.Springs.Area != nil && len(doc.Springs.Area) != m {
		return nil, fmt.Errorf("codec: spring area length disagrees")
	}

	springs := make([]model.Spring, m)
	for t := 0; t < m; t++ {
		springs[t] = model.Spring{
			I:      doc.Springs.I[t],
			J:      doc.Springs.J[t],
			K:      doc.Springs.K[t],
			Active: sActive[t] != 0,
		}
		if doc.Springs.Area != nil {
			springs[t].Area = doc.Springs.Area[t]
		}
	}
	return model.New(nodes, springs)
}

// Encode writes st as indented columnar JSON.
func Encode(w io.Writer, st *model.Structure) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(toDocument(st))
}

// Decode reads a columnar JSON structure. Missing optional arrays fall
// back to zero loads, free DOFs and everything active.
func Decode(r io.Reader) (*model.Structure, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("codec: %w", err)
	}
	return fromDocument(doc)
}

// Marshal is [Encode] to a byte slice.
func Marshal(st *model.Structure) ([]byte, error) {
	return json.MarshalIndent(toDocument(st), "", "  ")
}

// Unmarshal is [Decode] from a byte slice.
func Unmarshal(data []byte) (*model.Structure, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("codec: %w", err)
	}
	return fromDocument(doc)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func orZeros(s []float64, n int) []float64 {
	if s == nil {
		return make([]float64, n)
	}
	return s
}

func orInts(s []int, n, fill int) []int {
	if s != nil {
		return s
	}
	out := make([]int, n)
	for i := range out {
		out[i] = fill
	}
	return out
}
