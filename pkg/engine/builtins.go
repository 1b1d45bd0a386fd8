package engine

import (
	"fmt"
	"strings"

	"github.com/chazu/implicit3d/pkg/graph"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpNodeRef wraps a graph.NodeID so solids can be passed between builtins.
type sexpNodeRef struct {
	id   graph.NodeID
	name string // human-readable name for error messages
}

func (n *sexpNodeRef) SexpString(ps *zygo.PrintState) string {
	if n.name != "" {
		return fmt.Sprintf("(solid %q)", n.name)
	}
	return fmt.Sprintf("(noderef %s)", n.id.Short())
}
func (n *sexpNodeRef) Type() *zygo.RegisteredType { return nil }

// sexpVec3 wraps a graph.Vec3.
type sexpVec3 struct {
	vec graph.Vec3
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// Keywords are identified by the __kw_ prefix added during preprocessing.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				// Keyword at end with no value: treat as flag with nil.
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// arg returns the first keyword argument found among keys, falling back to
// the idx-th positional argument. idx < 0 disables the fallback.
func (pa kwArgs) arg(idx int, keys ...string) (zygo.Sexp, bool) {
	for _, k := range keys {
		if v, ok := pa.kw[k]; ok {
			return v, true
		}
	}
	if idx >= 0 && idx < len(pa.positional) {
		return pa.positional[idx], true
	}
	return nil, false
}

// float returns a numeric argument, or def when it is absent.
func (pa kwArgs) float(def float64, idx int, keys ...string) (float64, error) {
	v, ok := pa.arg(idx, keys...)
	if !ok {
		return def, nil
	}
	return toFloat64(v)
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toNodeRef extracts a sexpNodeRef.
func toNodeRef(s zygo.Sexp) (*sexpNodeRef, error) {
	if ref, ok := s.(*sexpNodeRef); ok {
		return ref, nil
	}
	return nil, fmt.Errorf("expected solid, got %T (%s)", s, s.SexpString(nil))
}

// toNodeRefs collects solids from args, flattening lists and arrays.
func toNodeRefs(args []zygo.Sexp) ([]graph.NodeID, error) {
	var ids []graph.NodeID
	for _, a := range args {
		if ref, ok := a.(*sexpNodeRef); ok {
			ids = append(ids, ref.id)
			continue
		}
		items, err := sexpListToSlice(a)
		if err != nil {
			return nil, fmt.Errorf("expected solid, got %T (%s)", a, a.SexpString(nil))
		}
		sub, err := toNodeRefs(items)
		if err != nil {
			return nil, err
		}
		ids = append(ids, sub...)
	}
	return ids, nil
}

// toVec3 extracts a Vec3 from a sexpVec3.
func toVec3(s zygo.Sexp) (graph.Vec3, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return graph.Vec3{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// vecArgs reads a vector given either as a keyword, a vec3 at positional
// index idx, or three numbers starting at idx.
func vecArgs(pa kwArgs, idx int, key string) (graph.Vec3, error) {
	if v, ok := pa.kw[key]; ok {
		return toVec3(v)
	}
	rest := pa.positional[min(idx, len(pa.positional)):]
	switch len(rest) {
	case 1:
		return toVec3(rest[0])
	case 3:
		var xyz [3]float64
		for i, s := range rest {
			f, err := toFloat64(s)
			if err != nil {
				return graph.Vec3{}, err
			}
			xyz[i] = f
		}
		return graph.Vec3{X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
	}
	return graph.Vec3{}, fmt.Errorf("expected a vec3 or three numbers, got %d arguments", len(rest))
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs all design DSL builtins into a zygomys environment.
// The builtins operate on the provided DesignGraph, populating it during evaluation.
//
// Anonymous nodes are numbered in evaluation order, so the same source
// always yields the same node IDs.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, g *graph.DesignGraph) {
	seq := 0
	add := func(prefix string, n *graph.Node) *sexpNodeRef {
		seq++
		n.ID = graph.NewNodeID(fmt.Sprintf("%s/%d", prefix, seq))
		g.AddNode(n)
		return &sexpNodeRef{id: n.ID}
	}

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		v, err := vecArgs(kwArgs{positional: args}, 0, "")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: %w", err)
		}
		return &sexpVec3{vec: v}, nil
	})

	// -----------------------------------------------------------------------
	// (sphere 10) / (sphere :radius 10)
	// -----------------------------------------------------------------------
	env.AddFunction("sphere", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		r, err := pa.float(0, 0, "radius", "r")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("sphere: radius: %w", err)
		}
		return add("sphere", &graph.Node{
			Kind: graph.NodePrimitive,
			Data: graph.PrimitiveData{Shape: graph.ShapeSphere, Radius: r},
		}), nil
	})

	// -----------------------------------------------------------------------
	// (box 40 20 10 :round 1) / (box (vec3 40 20 10)) / (box :size (vec3 ...))
	// -----------------------------------------------------------------------
	env.AddFunction("box", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		size, err := vecArgs(pa, 0, "size")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("box: size: %w", err)
		}
		round, err := pa.float(0, -1, "round")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("box: round: %w", err)
		}
		return add("box", &graph.Node{
			Kind: graph.NodePrimitive,
			Data: graph.PrimitiveData{Shape: graph.ShapeBox, Size: size, Round: round},
		}), nil
	})

	// -----------------------------------------------------------------------
	// (cylinder 30 5) / (cylinder :height 30 :radius 5 :round 0.5)
	// -----------------------------------------------------------------------
	env.AddFunction("cylinder", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		h, err := pa.float(0, 0, "height", "h")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: height: %w", err)
		}
		r, err := pa.float(0, 1, "radius", "r")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: radius: %w", err)
		}
		round, err := pa.float(0, -1, "round")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: round: %w", err)
		}
		return add("cylinder", &graph.Node{
			Kind: graph.NodePrimitive,
			Data: graph.PrimitiveData{Shape: graph.ShapeCylinder, Height: h, Radius: r, Round: round},
		}), nil
	})

	// -----------------------------------------------------------------------
	// (union a b c :r 2), (intersection ...), (difference base cut... :r 1)
	// -----------------------------------------------------------------------
	boolean := func(op graph.BoolOp) zygo.ZlispUserFunction {
		return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			pa := parseArgs(args)
			r, err := pa.float(0, -1, "r", "radius")
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: radius: %w", op, err)
			}
			children, err := toNodeRefs(pa.positional)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", op, err)
			}
			if len(children) == 0 {
				return zygo.SexpNull, fmt.Errorf("%s requires at least one solid", op)
			}
			return add(op.String(), &graph.Node{
				Kind:     graph.NodeBoolean,
				Children: children,
				Data:     graph.BooleanData{Op: op, Radius: r},
			}), nil
		}
	}
	env.AddFunction("union", boolean(graph.OpUnion))
	env.AddFunction("intersection", boolean(graph.OpIntersection))
	env.AddFunction("difference", boolean(graph.OpDifference))

	// -----------------------------------------------------------------------
	// (negate a)
	// -----------------------------------------------------------------------
	env.AddFunction("negate", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("negate requires exactly 1 solid, got %d arguments", len(args))
		}
		ref, err := toNodeRef(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("negate: %w", err)
		}
		return add("negate", &graph.Node{
			Kind:     graph.NodeBoolean,
			Children: []graph.NodeID{ref.id},
			Data:     graph.BooleanData{Op: graph.OpNegate},
		}), nil
	})

	// -----------------------------------------------------------------------
	// (translate a 10 0 0) / (translate a (vec3 10 0 0)) / (translate a :by v)
	// (rotate a 0 0 90)    / (rotate a :by (vec3 0 0 90))
	// -----------------------------------------------------------------------
	transform := func(kind string) zygo.ZlispUserFunction {
		return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			pa := parseArgs(args)
			if len(pa.positional) < 1 {
				return zygo.SexpNull, fmt.Errorf("%s requires a solid as first argument", kind)
			}
			ref, err := toNodeRef(pa.positional[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", kind, err)
			}
			v, err := vecArgs(pa, 1, "by")
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", kind, err)
			}
			var td graph.TransformData
			if kind == "rotate" {
				td.Rotation = &v
			} else {
				td.Translation = &v
			}
			return add(kind, &graph.Node{
				Kind:     graph.NodeTransform,
				Children: []graph.NodeID{ref.id},
				Data:     td,
			}), nil
		}
	}
	env.AddFunction("translate", transform("translate"))
	env.AddFunction("rotate", transform("rotate"))

	// -----------------------------------------------------------------------
	// (scale a 2)
	// -----------------------------------------------------------------------
	env.AddFunction("scale", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("scale requires a solid as first argument")
		}
		ref, err := toNodeRef(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("scale: %w", err)
		}
		f, err := pa.float(0, 1, "by")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("scale: factor: %w", err)
		}
		if !graph.ValidScale(f) {
			return zygo.SexpNull, fmt.Errorf("scale: factor %g must be positive and finite", f)
		}
		return add("scale", &graph.Node{
			Kind:     graph.NodeTransform,
			Children: []graph.NodeID{ref.id},
			Data:     graph.TransformData{Scale: f},
		}), nil
	})

	// -----------------------------------------------------------------------
	// (defsolid "name" expr)
	// -----------------------------------------------------------------------
	env.AddFunction("defsolid", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("defsolid requires a name and a solid expression")
		}
		solidName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("defsolid: name: %w", err)
		}
		ref, err := toNodeRef(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("defsolid: %w", err)
		}
		if g.Lookup(solidName) != nil {
			return zygo.SexpNull, fmt.Errorf("defsolid: %q is already defined", solidName)
		}
		n := g.Get(ref.id)
		if n.Name != "" {
			return zygo.SexpNull, fmt.Errorf("defsolid: solid is already named %q", n.Name)
		}
		n.Name = solidName
		g.NameIndex[solidName] = n.ID
		return &sexpNodeRef{id: n.ID, name: solidName}, nil
	})

	// -----------------------------------------------------------------------
	// (solid "name")
	// -----------------------------------------------------------------------
	env.AddFunction("solid", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("solid requires a name argument")
		}
		solidName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("solid: name: %w", err)
		}
		n := g.Lookup(solidName)
		if n == nil {
			return zygo.SexpNull, fmt.Errorf("solid: no solid named %q", solidName)
		}
		return &sexpNodeRef{id: n.ID, name: solidName}, nil
	})

	// -----------------------------------------------------------------------
	// (scene "name" a b ...)
	// -----------------------------------------------------------------------
	env.AddFunction("scene", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 1 {
			return zygo.SexpNull, fmt.Errorf("scene requires a name argument")
		}
		sceneName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("scene: name: %w", err)
		}
		if g.Lookup(sceneName) != nil {
			return zygo.SexpNull, fmt.Errorf("scene: %q is already defined", sceneName)
		}
		children, err := toNodeRefs(args[1:])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("scene %q: %w", sceneName, err)
		}

		id := graph.NewNodeID("scene/" + sceneName)
		g.AddNode(&graph.Node{
			ID:       id,
			Kind:     graph.NodeGroup,
			Name:     sceneName,
			Children: children,
			Data:     graph.GroupData{},
		})
		g.AddRoot(id)

		return &sexpNodeRef{id: id, name: sceneName}, nil
	})

	// -----------------------------------------------------------------------
	// (params :r-multiplier 1.0 :fade-range 0.1)
	// -----------------------------------------------------------------------
	env.AddFunction("params", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) > 0 {
			return zygo.SexpNull, fmt.Errorf("params takes only keyword arguments")
		}
		m, err := pa.float(g.Defaults.RMultiplier, -1, "r-multiplier")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("params: r-multiplier: %w", err)
		}
		f, err := pa.float(g.Defaults.FadeRange, -1, "fade-range")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("params: fade-range: %w", err)
		}
		if m < 0 {
			return zygo.SexpNull, fmt.Errorf("params: r-multiplier %g must not be negative", m)
		}
		if f <= 0 || f > 1 {
			return zygo.SexpNull, fmt.Errorf("params: fade-range %g must be in (0, 1]", f)
		}
		g.Defaults = graph.Defaults{RMultiplier: m, FadeRange: f}
		return zygo.SexpNull, nil
	})
}
