package model

import "math"

// DetectSymmetry looks for a vertical mirror axis defined by the support
// x-coordinates and validates that supports, loads, and the full active
// spring topology are mirror-consistent to eps. Any asymmetry invalidates
// the whole map: the result is all-or-nothing, never partial.
//
// The returned map relates node id to mirror node id for every active
// node. Nodes on the axis map to themselves.
func (st *Structure) DetectSymmetry(eps float64) (map[int]int, bool) {
	active := make([]*Node, 0, len(st.Nodes))
	for i := range st.Nodes {
		if st.Nodes[i].Active {
			active = append(active, &st.Nodes[i])
		}
	}
	if len(active) < 2 {
		return nil, false
	}

	supports := make([]*Node, 0, 4)
	for _, n := range active {
		if n.Supported() {
			supports = append(supports, n)
		}
	}
	if len(supports) < 2 {
		return nil, false
	}
	minX, maxX := supports[0].X, supports[0].X
	for _, n := range supports[1:] {
		minX = math.Min(minX, n.X)
		maxX = math.Max(maxX, n.X)
	}
	center := (minX + maxX) / 2

	// Every support needs a mirrored support partner.
	for _, s := range supports {
		mx := 2*center - s.X
		found := false
		for _, o := range supports {
			if math.Abs(o.X-mx) < eps && math.Abs(o.Y-s.Y) < eps {
				found = true
				break
			}
		}
		if !found {
			return nil, false
		}
	}

	// Loads must be vertical and either on the axis or mirrored pairwise.
	loaded := make([]*Node, 0, 4)
	for _, n := range active {
		if n.Loaded() {
			loaded = append(loaded, n)
		}
	}
	for _, ln := range loaded {
		if math.Abs(ln.Fx) > eps {
			return nil, false
		}
		if math.Abs(ln.X-center) <= eps {
			continue
		}
		mx := 2*center - ln.X
		found := false
		for _, o := range loaded {
			if math.Abs(o.X-mx) < eps && math.Abs(o.Y-ln.Y) < eps {
				if math.Abs(o.Fy-ln.Fy) > eps {
					return nil, false
				}
				found = true
				break
			}
		}
		if !found {
			return nil, false
		}
	}

	// Full node mirror map via quantized coordinate lookup.
	type key struct{ x, y int64 }
	quant := func(v float64) int64 { return int64(math.Round(v / eps)) }
	coordToID := make(map[key]int, len(active))
	for _, n := range active {
		coordToID[key{quant(n.X), quant(n.Y)}] = n.ID
	}
	mirror := make(map[int]int, len(active))
	for _, n := range active {
		mx := 2*center - n.X
		mid, hit := coordToID[key{quant(mx), quant(n.Y)}]
		if !hit {
			return nil, false
		}
		mirror[n.ID] = mid
	}

	// Every active edge needs its mirrored counterpart.
	type edge struct{ a, b int }
	norm := func(a, b int) edge {
		if a > b {
			a, b = b, a
		}
		return edge{a, b}
	}
	edges := make(map[edge]struct{}, len(st.Springs))
	for i := range st.Springs {
		s := &st.Springs[i]
		if st.springActive(s) {
			edges[norm(s.I, s.J)] = struct{}{}
		}
	}
	for e := range edges {
		if _, hit := edges[norm(mirror[e.a], mirror[e.b])]; !hit {
			return nil, false
		}
	}

	return mirror, true
}
