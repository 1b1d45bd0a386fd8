package graph

import (
	"fmt"
	"math"
)

// ValidationSeverity indicates whether a validation finding blocks evaluation
// or is merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // blocks evaluation
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	NodeID   NodeID             // which node has the problem (zero if graph-level)
	Message  string             // human-readable description
	Severity ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	if e.NodeID.IsZero() {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] node %s: %s", e.Severity, e.NodeID.Short(), e.Message)
}

// ValidationWarning describes a non-blocking advisory finding.
type ValidationWarning struct {
	NodeID  NodeID
	Message string
}

// ValidationResult separates blocking errors from advisory warnings.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// Validate runs all structural and dimensional checks on the design graph
// and returns a slice of findings. An empty slice means the graph is valid.
// This function is read-only and never mutates the graph.
func Validate(g *DesignGraph) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateDAG(g)...)
	errs = append(errs, validateReferences(g)...)
	errs = append(errs, validateNames(g)...)
	errs = append(errs, validateRoots(g)...)
	errs = append(errs, validateArity(g)...)
	errs = append(errs, validateDimensions(g)...)
	return errs
}

// ValidateAll runs Validate and splits its findings by severity.
func ValidateAll(g *DesignGraph) ValidationResult {
	var result ValidationResult
	for _, e := range Validate(g) {
		if e.Severity == SeverityWarning {
			result.Warnings = append(result.Warnings, ValidationWarning{
				NodeID:  e.NodeID,
				Message: e.Message,
			})
		} else {
			result.Errors = append(result.Errors, e)
		}
	}
	return result
}

// validateDAG checks for cycles using DFS with 3-color marking.
// White (0) = unvisited, gray (1) = in current DFS path, black (2) = fully explored.
// If we encounter a gray node during traversal, we have found a cycle.
// A solid must never contain itself, directly or through a transform.
func validateDAG(g *DesignGraph) []ValidationError {
	const (
		white = iota
		gray
		black
	)

	color := make(map[NodeID]int)
	var errs []ValidationError

	var visit func(id NodeID) bool // returns true if cycle found
	visit = func(id NodeID) bool {
		switch color[id] {
		case black:
			return false
		case gray:
			errs = append(errs, ValidationError{
				NodeID:   id,
				Message:  fmt.Sprintf("cycle detected: node %s is part of a cycle", id.Short()),
				Severity: SeverityError,
			})
			return true
		}

		color[id] = gray

		node, ok := g.Nodes[id]
		if !ok {
			// Dangling reference; handled by validateReferences.
			color[id] = black
			return false
		}

		for _, childID := range node.Children {
			if visit(childID) {
				return true
			}
		}

		color[id] = black
		return false
	}

	// Start DFS from every node to catch disconnected components.
	for id := range g.Nodes {
		if color[id] == white {
			if visit(id) {
				// One cycle error is sufficient; stop early.
				break
			}
		}
	}

	return errs
}

// validateReferences checks that every child reference points to a node
// that actually exists in g.Nodes.
func validateReferences(g *DesignGraph) []ValidationError {
	var errs []ValidationError

	for _, node := range g.Nodes {
		for _, childID := range node.Children {
			if _, ok := g.Nodes[childID]; !ok {
				errs = append(errs, ValidationError{
					NodeID:   node.ID,
					Message:  fmt.Sprintf("child reference %s does not exist", childID.Short()),
					Severity: SeverityError,
				})
			}
		}
	}

	return errs
}

// validateNames checks that the NameIndex is injective (no two nodes share the
// same name) and that every entry in NameIndex points to an existing node.
func validateNames(g *DesignGraph) []ValidationError {
	var errs []ValidationError

	for name, id := range g.NameIndex {
		if _, ok := g.Nodes[id]; !ok {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("name index entry %q references non-existent node %s", name, id.Short()),
				Severity: SeverityError,
			})
		}
	}

	nameToNodes := make(map[string][]NodeID)
	for id, node := range g.Nodes {
		if node.Name != "" {
			nameToNodes[node.Name] = append(nameToNodes[node.Name], id)
		}
	}
	for name, ids := range nameToNodes {
		if len(ids) > 1 {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("duplicate name %q assigned to %d nodes", name, len(ids)),
				Severity: SeverityError,
			})
		}
	}

	return errs
}

// validateRoots checks that every root ID references an existing node and
// warns about orphan nodes (nodes unreachable from any root).
func validateRoots(g *DesignGraph) []ValidationError {
	var errs []ValidationError

	for _, rid := range g.Roots {
		if _, ok := g.Nodes[rid]; !ok {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("root reference %s does not exist", rid.Short()),
				Severity: SeverityError,
			})
		}
	}

	if len(g.Nodes) == 0 {
		return errs
	}

	// BFS from all roots through Children edges.
	reachable := make(map[NodeID]bool)
	queue := make([]NodeID, 0, len(g.Roots))
	for _, rid := range g.Roots {
		if _, ok := g.Nodes[rid]; ok && !reachable[rid] {
			reachable[rid] = true
			queue = append(queue, rid)
		}
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		node := g.Nodes[current]
		if node == nil {
			continue
		}
		for _, childID := range node.Children {
			if !reachable[childID] {
				reachable[childID] = true
				queue = append(queue, childID)
			}
		}
	}

	for id, node := range g.Nodes {
		if !reachable[id] {
			name := node.Name
			if name == "" {
				name = id.Short()
			}
			errs = append(errs, ValidationError{
				NodeID:   id,
				Message:  fmt.Sprintf("node %q is not reachable from any root (orphan)", name),
				Severity: SeverityWarning,
			})
		}
	}

	return errs
}

// validateArity checks child counts per node kind and that each payload
// matches its kind.
func validateArity(g *DesignGraph) []ValidationError {
	var errs []ValidationError
	fail := func(n *Node, format string, args ...any) {
		errs = append(errs, ValidationError{
			NodeID:   n.ID,
			Message:  fmt.Sprintf(format, args...),
			Severity: SeverityError,
		})
	}

	for _, node := range g.Nodes {
		n := len(node.Children)
		switch node.Kind {
		case NodePrimitive:
			if _, ok := node.Data.(PrimitiveData); !ok {
				fail(node, "primitive node carries %T", node.Data)
			}
			if n != 0 {
				fail(node, "primitive has %d children, want 0", n)
			}
		case NodeTransform:
			if _, ok := node.Data.(TransformData); !ok {
				fail(node, "transform node carries %T", node.Data)
			}
			if n != 1 {
				fail(node, "transform has %d children, want 1", n)
			}
		case NodeBoolean:
			bd, ok := node.Data.(BooleanData)
			if !ok {
				fail(node, "boolean node carries %T", node.Data)
				continue
			}
			switch {
			case bd.Op == OpNegate && n != 1:
				fail(node, "negate has %d children, want 1", n)
			case n == 0:
				fail(node, "%s has no operands", bd.Op)
			}
		case NodeGroup:
			if _, ok := node.Data.(GroupData); !ok {
				fail(node, "group node carries %T", node.Data)
			}
		default:
			fail(node, "unknown node kind %d", int(node.Kind))
		}
	}

	return errs
}

// validateDimensions checks that primitives have positive sizes, that
// rounding radii are non-negative, and that scales are positive.
func validateDimensions(g *DesignGraph) []ValidationError {
	var errs []ValidationError
	fail := func(n *Node, format string, args ...any) {
		errs = append(errs, ValidationError{
			NodeID:   n.ID,
			Message:  fmt.Sprintf(format, args...),
			Severity: SeverityError,
		})
	}

	for _, node := range g.Nodes {
		switch d := node.Data.(type) {
		case PrimitiveData:
			switch d.Shape {
			case ShapeSphere:
				if d.Radius <= 0 {
					fail(node, "sphere radius %g must be positive", d.Radius)
				}
			case ShapeBox:
				if d.Size.X <= 0 || d.Size.Y <= 0 || d.Size.Z <= 0 {
					fail(node, "box size %s must be positive", d.Size)
				}
			case ShapeCylinder:
				if d.Height <= 0 || d.Radius <= 0 {
					fail(node, "cylinder height %g and radius %g must be positive", d.Height, d.Radius)
				}
			default:
				fail(node, "unknown shape %d", int(d.Shape))
			}
			if d.Round < 0 {
				fail(node, "%s round %g must not be negative", d.Shape, d.Round)
			}
		case BooleanData:
			if d.Radius < 0 {
				fail(node, "%s radius %g must not be negative", d.Op, d.Radius)
			}
		case TransformData:
			if d.Scale != 0 && !ValidScale(d.Scale) {
				fail(node, "scale %g must be positive and finite", d.Scale)
			}
		}
	}

	return errs
}

// ValidScale reports whether f is usable as a uniform scale factor: positive
// and finite.
func ValidScale(f float64) bool {
	return f > 0 && !math.IsInf(f, 1)
}
