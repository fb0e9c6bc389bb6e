// Command ingest drives the columnar event ingest engine: schema inference,
// streaming/batch consumption, directory watching for new input files, and
// an interactive schema/histogram browser. Adapted from cmd/sift/main.go's
// cobra command-tree and signal-handling structure.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/vkuznet/cevt/internal/batch"
	"github.com/vkuznet/cevt/internal/columnar"
	"github.com/vkuznet/cevt/internal/config"
	"github.com/vkuznet/cevt/internal/locator"
	"github.com/vkuznet/cevt/internal/observe"
	"github.com/vkuznet/cevt/internal/schema"
	"github.com/vkuznet/cevt/internal/specs"
	"github.com/vkuznet/cevt/internal/tui"
	"github.com/vkuznet/cevt/internal/watcher"
)

func main() {
	root := &cobra.Command{
		Use:   "ingest",
		Short: "Columnar event ingest engine",
		Long:  "ingest — streams a columnar scientific event tree into normalized (x, mask) row and batch vectors.",
	}

	var tomlPath string
	root.PersistentFlags().StringVar(&tomlPath, "config", "ingest.toml", "path to TOML config file")

	opts := config.Defaults()
	opts.BindFlags(root.PersistentFlags())

	loadOpts := func(fs *pflag.FlagSet) (config.Options, error) {
		o, err := config.Load(tomlPath, fs)
		if err != nil {
			return config.Options{}, err
		}
		setupLogging(o.Verbose)
		return o, nil
	}

	resolve := func(ref string, redirector string) string {
		return locator.Resolve(ref, redirector)
	}

	// ---- ingest schema <file> -----------------------------------------------
	root.AddCommand(&cobra.Command{
		Use:   "schema <file>",
		Short: "Infer schema from a columnar file and write its specs sidecar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := loadOpts(cmd.Flags())
			if err != nil {
				return err
			}
			path := resolve(args[0], o.Redirector)

			h, err := columnar.Open(path, o.Branch)
			if err != nil {
				return err
			}
			s, err := schema.Infer(h, schema.Options{
				ChunkSize:      o.ChunkSize,
				Nevts:          o.Nevts,
				NaNSentinel:    o.NaN,
				IdentifierKeys: o.IdentifierKeys,
				Include:        o.SelectedBranches,
				Exclude:        o.ExcludeBranches,
			})
			if err != nil {
				return err
			}

			sidecar := filepath.Join(filepath.Dir(path), specs.SidecarName(path))
			store := specs.NewFileStore(sidecar, o.NaN, s.IdentifierKeys)
			if err := store.Save(cmd.Context(), s); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "wrote %s (%d flat, %d jagged, width %d)\n",
				sidecar, len(s.FlatKeys), len(s.JaggedKeys), s.Width())
			return nil
		},
	})

	// ---- ingest run <file> ---------------------------------------------------
	var liveTUI bool
	runCmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Stream batches from a columnar file, reporting throughput",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := loadOpts(cmd.Flags())
			if err != nil {
				return err
			}
			path := resolve(args[0], o.Redirector)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if !liveTUI {
				g, reg, err := openGenerator(path, o, nil)
				if err != nil {
					return err
				}
				return runBatches(ctx, g, reg, nil)
			}

			g, reg, err := openGenerator(path, o, observe.NewRegistry())
			if err != nil {
				return err
			}
			p := tea.NewProgram(tui.New(g.Specs(), reg), tea.WithAltScreen())

			runErr := make(chan error, 1)
			go func() { runErr <- runBatches(ctx, g, reg, p) }()

			if _, err := p.Run(); err != nil {
				return err
			}
			return <-runErr
		},
	}
	runCmd.Flags().BoolVar(&liveTUI, "tui", false, "drive the live schema/histogram browser while running")
	root.AddCommand(runCmd)

	// ---- ingest watch <dir> --------------------------------------------------
	root.AddCommand(&cobra.Command{
		Use:   "watch <dir>",
		Short: "Watch a directory for new columnar files and run each as it lands",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := loadOpts(cmd.Flags())
			if err != nil {
				return err
			}
			dir := args[0]

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			w, err := watcher.New(".cevt", func(path string) {
				log.Info().Str("path", path).Msg("new file detected")
				g, reg, err := openGenerator(path, o, nil)
				if err != nil {
					log.Error().Err(err).Str("path", path).Msg("open failed")
					return
				}
				if err := runBatches(ctx, g, reg, nil); err != nil {
					log.Error().Err(err).Str("path", path).Msg("run failed")
				}
			})
			if err != nil {
				return err
			}

			done := make(chan struct{})
			go func() {
				<-ctx.Done()
				close(done)
			}()
			go func() {
				if err := w.Watch(dir, done); err != nil {
					log.Error().Err(err).Str("dir", dir).Msg("watch error")
				}
			}()
			fmt.Fprintf(os.Stderr, "watching %s for new *.cevt files (Ctrl+C to stop)\n", dir)
			<-done
			return nil
		},
	})

	// ---- ingest inspect <file> -----------------------------------------------
	var interactive bool
	inspectCmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print (or browse) a file's schema: branch kinds, ranges, jdim",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := loadOpts(cmd.Flags())
			if err != nil {
				return err
			}
			path := resolve(args[0], o.Redirector)

			h, err := columnar.Open(path, o.Branch)
			if err != nil {
				return err
			}
			s, err := schema.Infer(h, schema.Options{
				ChunkSize:      o.ChunkSize,
				NaNSentinel:    o.NaN,
				IdentifierKeys: o.IdentifierKeys,
				Include:        o.SelectedBranches,
				Exclude:        o.ExcludeBranches,
			})
			if err != nil {
				return err
			}

			if !interactive {
				data, err := json.MarshalIndent(s, "", "  ")
				if err != nil {
					return fmt.Errorf("marshal schema: %w", err)
				}
				fmt.Println(string(data))
				return nil
			}

			m := tui.New(s, observe.NewRegistry())
			p := tea.NewProgram(m, tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	}
	inspectCmd.Flags().BoolVar(&interactive, "tui", false, "launch the interactive schema browser instead of printing JSON")
	root.AddCommand(inspectCmd)

	if err := root.Execute(); err != nil {
		exitErr(err)
	}
}

// openGenerator opens a Batch Generator over path, wiring reg into it when
// non-nil (or allocating one when o.Histograms is set) so every vectorized
// row also updates the returned Registry's per-branch histograms.
func openGenerator(path string, o config.Options, reg *observe.Registry) (*batch.Generator, *observe.Registry, error) {
	if reg == nil && o.Histograms {
		reg = observe.NewRegistry()
	}
	g, err := batch.Open(path, batch.Options{
		BatchSize:        o.BatchSize,
		Nevts:            o.Nevts,
		ChunkSize:        o.ChunkSize,
		Branch:           o.Branch,
		NaNSentinel:      o.NaN,
		IdentifierKeys:   o.IdentifierKeys,
		SelectedBranches: o.SelectedBranches,
		ExcludeBranches:  o.ExcludeBranches,
		SpecsStore:       o.SpecsStore,
		RedisAddr:        o.RedisAddr,
		RedisKey:         o.RedisKey,
		Histograms:       reg,
	})
	return g, reg, err
}

// runBatches drives g to exhaustion, reporting one throughput line per batch
// and a final summary, per spec.md §6's exit surface. reg, if non-nil, is
// exported at the end. prog, if non-nil, additionally receives a StatsMsg
// after every batch for a live TUI browser.
func runBatches(ctx context.Context, g *batch.Generator, reg *observe.Registry, prog *tea.Program) error {
	if reg != nil {
		defer reg.Export()
	}
	if prog != nil {
		defer prog.Quit()
	}

	start := time.Now()
	totalRows := 0
	for i := 0; i < g.Length(); i++ {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		batchStart := time.Now()
		X, _, err := g.NextBatch()
		if err != nil {
			return err
		}
		totalRows += len(X)

		stats := observe.ChunkStats{
			Rows:           len(X),
			Branches:       len(g.Specs().FlatKeys) + len(g.Specs().JaggedKeys),
			FlatBytes:      int64(len(X)) * int64(g.Specs().Width()) * 8,
			ElapsedSeconds: time.Since(batchStart).Seconds(),
		}
		observe.LogChunk(stats)
		if prog != nil {
			prog.Send(tui.StatsMsg{Stats: stats, TotalRows: totalRows})
		}
	}

	observe.LogFinal(totalRows, time.Since(start).Seconds())
	return nil
}

// exitErr reports err and exits nonzero, matching spec.md §6's exit
// surface ("Nonzero exit on IoError or SpecsError") — every other error
// kind also reaches here via cobra's RunE, so all of them exit nonzero too.
func exitErr(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func setupLogging(verbose int) {
	level := zerolog.WarnLevel
	switch {
	case verbose >= 2:
		level = zerolog.DebugLevel
	case verbose == 1:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
}
