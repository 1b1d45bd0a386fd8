// Package engine provides the Lisp evaluation engine for implicit3d.
// It wraps zygomys in a sandboxed environment and produces a DesignGraph
// of rounded CSG solids from user source code.
package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chazu/implicit3d/pkg/graph"
	zygo "github.com/glycerine/zygomys/zygo"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error, a runtime error in user code, or a graph that
// fails validation.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// EvalWarning represents a non-fatal warning produced during evaluation.
type EvalWarning struct {
	Line    int
	Col     int
	Message string
	NodeID  graph.NodeID
}

// EvalResult bundles the full output of an evaluation.
type EvalResult struct {
	Graph    *graph.DesignGraph
	Errors   []EvalError
	Warnings []EvalWarning
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout overrides EvalTimeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithDefaults sets the rounding parameters every evaluated graph starts
// from. A script's (params ...) form still overrides them.
func WithDefaults(d graph.Defaults) Option {
	return func(e *Engine) {
		e.defaults = d
	}
}

// Engine wraps the zygomys interpreter for design evaluation.
// It is safe for concurrent use; each call to Evaluate creates a fresh
// sandboxed environment for determinism.
type Engine struct {
	mu         sync.Mutex
	generation uint64
	timeout    time.Duration
	defaults   graph.Defaults
}

// NewEngine creates a new Engine instance.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{timeout: EvalTimeout, defaults: graph.New().Defaults}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate takes Lisp source code and produces a new DesignGraph.
// Each call creates a fresh zygomys sandbox for deterministic evaluation.
//
// Return semantics:
//   - On success: returns graph + nil errors + nil error
//   - On parse/eval/validation failure: returns nil graph + eval errors + nil error
//   - On fatal failure (timeout, panic, superseded): returns nil + nil + error
func (e *Engine) Evaluate(source string) (*graph.DesignGraph, []EvalError, error) {
	res, err := e.EvaluateResult(source)
	if err != nil {
		return nil, nil, err
	}
	return res.Graph, res.Errors, nil
}

// EvaluateResult is Evaluate with warnings (orphan solids and the like)
// included.
func (e *Engine) EvaluateResult(source string) (*EvalResult, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		ch <- e.evaluate(source)
	}()

	res, err := waitWithTimeout(ch, gen, e.timeout, &e.mu, &e.generation)
	if err != nil {
		return nil, err
	}
	return &EvalResult{Graph: res.graph, Errors: res.errors, Warnings: res.warnings}, nil
}

// Generation returns the number of evaluations started so far.
func (e *Engine) Generation() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generation
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func (e *Engine) evaluate(source string) evalResult {
	// Empty source is a valid program that produces an empty graph.
	g := graph.New()
	g.Defaults = e.defaults
	if strings.TrimSpace(source) == "" {
		return evalResult{graph: g}
	}

	// Sandbox mode prevents user code from accessing the filesystem or syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	registerBuiltins(env, g)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return evalResult{errors: parseZygomysError(err)}
	}

	last, err := env.Run()
	if err != nil {
		return evalResult{errors: parseZygomysError(err)}
	}

	// A script without (scene ...) renders the solid its last evaluated
	// call returns. A trailing bare literal is not a call and leaves the
	// previous value in place.
	if len(g.Roots) == 0 {
		if ref, ok := last.(*sexpNodeRef); ok {
			g.AddRoot(ref.id)
		}
	}

	vr := graph.ValidateAll(g)
	if len(vr.Errors) > 0 {
		errs := make([]EvalError, len(vr.Errors))
		for i, ve := range vr.Errors {
			errs[i] = EvalError{Message: ve.Error()}
		}
		return evalResult{errors: errs}
	}

	var warnings []EvalWarning
	for _, w := range vr.Warnings {
		warnings = append(warnings, EvalWarning{Message: w.Message, NodeID: w.NodeID})
	}
	return evalResult{graph: g, warnings: warnings}
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError values.
// It attempts to extract line number information from the error message.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	// zygomys formats parse errors as "Error on line N: <details>\n"
	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{
				Line:    line,
				Message: strings.TrimSpace(m[2]),
			}}
		}
	}

	// Fallback: no line info available.
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
