// Package model defines the 2D spring-node structure being optimized.
//
// A [Structure] owns a flat array of [Node] and [Spring] values. Node ids
// equal their array index and double as solver DOF indices (2*id for x,
// 2*id+1 for y), so removal is always deactivation, never deletion:
//
//	st.DeactivateNodes([]int{7})
//	fmt.Println(st.MassFraction())
//
// A spring is mechanically active only if its own flag is set and both
// endpoint nodes are active. All assembly and scoring code enforces this
// conjunction.
package model
