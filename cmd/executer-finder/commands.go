package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/DeusData/executer-finder/internal/config"
	"github.com/DeusData/executer-finder/internal/graph"
	"github.com/DeusData/executer-finder/internal/pipeline"
	"github.com/DeusData/executer-finder/internal/tools"
	"github.com/DeusData/executer-finder/internal/watcher"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "executer-finder [root]",
		Short: "Extract the C# call graph of a source tree",
		Long: `executer-finder scans every C# file under root (default /src), records classes,
methods, BOAExecuter dispatch calls, ordinary calls and stored procedures, and
merges them into the configured document and graph stores.

Configuration is read from executer-finder.yaml in the working directory and
EXECUTER_FINDER_* environment variables.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runIndex,
	}
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Serve the MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	})
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "executer-finder", version)
		},
	})
	return root
}

// loadConfig reads the configuration and installs the stderr logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	level, _ := config.ParseLevel(cfg.LogLevel)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return cfg, nil
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "config err=%v\n", err)
		return err
	}
	if len(args) == 1 {
		cfg.Root = args[0]
	}

	res, err := pipeline.Run(cmd.Context(), cfg)
	if err != nil {
		var ae *graph.AbortError
		if errors.As(err, &ae) {
			fmt.Fprintf(cmd.ErrOrStderr(), "aborted in %s phase: %v\n", ae.Phase, ae.Err)
			printJSON(cmd, ae.Progress)
		} else {
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
		}
		return err
	}
	printJSON(cmd, res)
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	b, err := pipeline.OpenBackends(cmd.Context(), cfg, cfg.Root)
	if err != nil {
		slog.Error("serve.backends", "err", err)
		return err
	}
	defer b.Close()

	tools.Version = version
	srv := tools.NewServer(cfg, b)
	if cfg.Watch {
		w := watcher.New(srv.Reindex)
		w.Add(cfg.Root)
		srv.OnIndexed = w.Add
		go w.Run(cmd.Context())
	}
	if err := srv.Serve(cmd.Context()); err != nil {
		slog.Error("serve.err", "err", err)
		return err
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
