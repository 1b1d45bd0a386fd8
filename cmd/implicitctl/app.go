package main

import (
	"context"
	"fmt"
	"log"

	"github.com/chazu/implicit3d/pkg/config"
	"github.com/chazu/implicit3d/pkg/engine"
	"github.com/chazu/implicit3d/pkg/export"
	"github.com/chazu/implicit3d/pkg/graph"
	"github.com/chazu/implicit3d/pkg/kernel"
	"github.com/chazu/implicit3d/pkg/kernel/csg"
	"github.com/chazu/implicit3d/pkg/kernel/sdfx"
	"github.com/chazu/implicit3d/pkg/tessellate"
)

// App runs design scripts through the engine, the kernel and the exporter.
type App struct {
	engine *engine.Engine
	kernel kernel.Kernel
}

// batchProber is implemented by kernels that probe many points in parallel.
type batchProber interface {
	ProbeAll(ctx context.Context, s kernel.Solid, points [][3]float64) ([]kernel.Sample, error)
}

// Diagnostic is an evaluation error or warning with its source position.
type Diagnostic struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

func (d Diagnostic) String() string {
	if d.Line > 0 {
		return fmt.Sprintf("line %d: %s", d.Line, d.Message)
	}
	return d.Message
}

// Result is the outcome of evaluating a script.
type Result struct {
	Meshes   []*kernel.Mesh `json:"meshes"`
	Errors   []Diagnostic   `json:"errors"`
	Warnings []Diagnostic   `json:"warnings"`
}

// Failed reports whether evaluation produced errors.
func (r *Result) Failed() bool {
	return len(r.Errors) > 0
}

func (r *Result) fail(format string, args ...any) {
	r.Errors = append(r.Errors, Diagnostic{Message: fmt.Sprintf(format, args...)})
}

// PartSamples holds the field samples of one part.
type PartSamples struct {
	Part    string          `json:"part"`
	Samples []kernel.Sample `json:"samples"`
}

// NewApp creates an App configured by cfg.
func NewApp(cfg config.Config) *App {
	var k kernel.Kernel
	switch cfg.Kernel {
	case config.KernelSDFX:
		k = sdfx.New(cfg.MeshCells)
	default:
		k = csg.New(
			csg.WithMeshCells(cfg.MeshCells),
			csg.WithParameters(cfg.Params),
		)
	}
	return &App{
		engine: engine.NewEngine(
			engine.WithTimeout(cfg.EvalTimeout.Duration),
			engine.WithDefaults(graph.Defaults{
				RMultiplier: cfg.Params.RMultiplier,
				FadeRange:   cfg.Params.FadeRange,
			}),
		),
		kernel: k,
	}
}

// probeAll samples s at points, in parallel when the kernel supports it.
func (a *App) probeAll(ctx context.Context, s kernel.Solid, points [][3]float64) ([]kernel.Sample, error) {
	if bp, ok := a.kernel.(batchProber); ok {
		return bp.ProbeAll(ctx, s, points)
	}
	out := make([]kernel.Sample, len(points))
	for i, p := range points {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = a.kernel.Probe(s, p)
	}
	return out, nil
}

func newResult() Result {
	return Result{
		Meshes:   []*kernel.Mesh{},
		Errors:   []Diagnostic{},
		Warnings: []Diagnostic{},
	}
}

// evaluate turns source into a design graph, recording diagnostics in res.
// It returns nil when evaluation failed.
func (a *App) evaluate(source string, res *Result) *graph.DesignGraph {
	er, err := a.engine.EvaluateResult(source)
	if err != nil {
		// Fatal error (panic, timeout, superseded).
		log.Printf("Evaluate fatal error: %v", err)
		res.fail("%s", err.Error())
		return nil
	}
	for _, w := range er.Warnings {
		res.Warnings = append(res.Warnings, Diagnostic{Line: w.Line, Col: w.Col, Message: w.Message})
	}
	if len(er.Errors) > 0 {
		for _, e := range er.Errors {
			res.Errors = append(res.Errors, Diagnostic{Line: e.Line, Col: e.Col, Message: e.Message})
		}
		return nil
	}
	return er.Graph
}

// Evaluate runs source and meshes every part it defines.
func (a *App) Evaluate(source string) Result {
	res := newResult()
	g := a.evaluate(source, &res)
	if g == nil {
		return res
	}

	meshes, err := tessellate.Tessellate(g, a.kernel)
	if err != nil {
		log.Printf("Tessellate error: %v", err)
		res.fail("tessellation failed: %v", err)
		return res
	}
	res.Meshes = meshes
	return res
}

// Probe runs source and samples the field of every part at points.
func (a *App) Probe(ctx context.Context, source string, points [][3]float64) ([]PartSamples, Result) {
	res := newResult()
	g := a.evaluate(source, &res)
	if g == nil {
		return nil, res
	}

	parts, err := tessellate.Build(g, a.kernel)
	if err != nil {
		res.fail("%v", err)
		return nil, res
	}
	out := make([]PartSamples, 0, len(parts))
	for _, p := range parts {
		samples, err := a.probeAll(ctx, p.Solid, points)
		if err != nil {
			res.fail("part %s: %v", p.Name, err)
			return nil, res
		}
		out = append(out, PartSamples{Part: p.Name, Samples: samples})
	}
	return out, res
}

// Export runs source and writes its meshes to path as glTF.
func (a *App) Export(source, path string) (Result, error) {
	res := a.Evaluate(source)
	if res.Failed() {
		return res, nil
	}
	if err := export.SaveGLTF(path, res.Meshes); err != nil {
		return res, fmt.Errorf("export %s: %w", path, err)
	}
	return res, nil
}
