// Command implicitctl evaluates implicit3d design scripts, meshes them,
// samples their fields and exports glTF.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"

	"github.com/chazu/implicit3d/pkg/config"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

// errEval reports that a script produced evaluation errors. The errors
// themselves have already been printed.
var errEval = errors.New("evaluation failed")

// cli carries state shared by all subcommands.
type cli struct {
	configPath string
	kernel     string
	cfg        config.Config
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:          "implicitctl",
		Short:        "evaluate, probe and export implicit CSG designs",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			if c.kernel != "" {
				cfg.Kernel = c.kernel
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			c.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", config.DefaultFile, "config file")
	root.PersistentFlags().StringVar(&c.kernel, "kernel", "", "geometry kernel, csg or sdfx (overrides the config file)")
	root.AddCommand(
		c.evalCmd(),
		c.probeCmd(),
		c.exportCmd(),
		c.watchCmd(),
		c.configCmd(),
	)
	return root
}

func readSource(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// report prints diagnostics and returns errEval if res failed.
func report(w io.Writer, res Result) error {
	for _, d := range res.Warnings {
		fmt.Fprintf(w, "warning: %s\n", d)
	}
	for _, d := range res.Errors {
		fmt.Fprintf(w, "error: %s\n", d)
	}
	if res.Failed() {
		return errEval
	}
	return nil
}

// printStats writes one line per mesh.
func printStats(w io.Writer, res Result) {
	for _, m := range res.Meshes {
		b := m.Bounds()
		fmt.Fprintf(w, "%-20s %8d verts %8d tris  [%.3g %.3g %.3g] .. [%.3g %.3g %.3g]\n",
			m.PartName, m.VertexCount(), m.TriangleCount(),
			b.Min.X, b.Min.Y, b.Min.Z, b.Max.X, b.Max.Y, b.Max.Z)
	}
}

func (c *cli) evalCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "eval FILE",
		Short: "evaluate a design and print mesh statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(args[0])
			if err != nil {
				return err
			}
			res := NewApp(c.cfg).Evaluate(src)
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(res); err != nil {
					return err
				}
				if res.Failed() {
					return errEval
				}
				return nil
			}
			if err := report(cmd.ErrOrStderr(), res); err != nil {
				return err
			}
			printStats(out, res)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	return cmd
}

// parsePoints groups coordinates into points.
func parsePoints(args []string) ([][3]float64, error) {
	if len(args) == 0 || len(args)%3 != 0 {
		return nil, fmt.Errorf("need a multiple of 3 coordinates, got %d", len(args))
	}
	points := make([][3]float64, len(args)/3)
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("coordinate %d: %w", i+1, err)
		}
		points[i/3][i%3] = v
	}
	return points, nil
}

func (c *cli) probeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe FILE X Y Z [X Y Z ...]",
		Short: "print the field value and normal of every part at points",
		Args:  cobra.MinimumNArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(args[0])
			if err != nil {
				return err
			}
			points, err := parsePoints(args[1:])
			if err != nil {
				return err
			}
			parts, res := NewApp(c.cfg).Probe(cmd.Context(), src, points)
			if err := report(cmd.ErrOrStderr(), res); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, p := range parts {
				for _, s := range p.Samples {
					fmt.Fprintf(out, "%s\t(%g, %g, %g)\t%.6g\t(%.4f, %.4f, %.4f)\n",
						p.Part, s.Point[0], s.Point[1], s.Point[2], s.Value,
						s.Normal[0], s.Normal[1], s.Normal[2])
				}
			}
			return nil
		},
	}
}

func (c *cli) exportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export FILE",
		Short: "mesh a design and write it as glTF (.gltf or .glb)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(args[0])
			if err != nil {
				return err
			}
			res, err := NewApp(c.cfg).Export(src, output)
			if rerr := report(cmd.ErrOrStderr(), res); rerr != nil {
				return rerr
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d parts to %s\n", len(res.Meshes), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "out.gltf", "output file")
	return cmd
}

func (c *cli) watchCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "watch FILE",
		Short: "re-evaluate a design every time it is saved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			app := NewApp(c.cfg)
			path := args[0]
			run := func() {
				src, err := readSource(path)
				if err != nil {
					log.Printf("watch: %v", err)
					return
				}
				var res Result
				if output != "" {
					res, err = app.Export(src, output)
				} else {
					res = app.Evaluate(src)
				}
				if report(cmd.ErrOrStderr(), res) != nil {
					return
				}
				if err != nil {
					log.Printf("watch: %v", err)
					return
				}
				printStats(cmd.OutOrStdout(), res)
			}

			run()
			return watchFile(ctx, path, run)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "also export glTF here on every change")
	return cmd
}

func (c *cli) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "inspect or create the config file",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "init",
			Short: "write the default config to --config",
			Args:  cobra.NoArgs,
			// Skip loading: the file may not parse yet.
			PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
			RunE: func(cmd *cobra.Command, args []string) error {
				if _, err := os.Stat(c.configPath); err == nil {
					return fmt.Errorf("%s already exists", c.configPath)
				}
				return config.Save(c.configPath, config.Default())
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "print the effective config",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				b, err := toml.Marshal(c.cfg)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(b)
				return err
			},
		},
	)
	return cmd
}
