// Command soilsim grows root systems and clusters soil regions over a
// generated domain, printing the resulting geometry as JSON on stdout.
package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/talgya/rootsoil/internal/config"
	"github.com/talgya/rootsoil/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("soilsim failed", "error", err)
		os.Exit(1)
	}
}

// app carries the global flags and the resolved configuration into the
// sub-commands.
type app struct {
	configPath string
	overrides  []string
	logLevel   string
	cfg        config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "soilsim",
		Short:         "Procedural root growth and soil clustering",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.setup()
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "YAML run configuration")
	flags.StringArrayVar(&a.overrides, "set", nil, "override a config key, e.g. --set sectional.steps=40")
	flags.StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error; overrides log_level")

	root.AddCommand(newGrowCmd(a), newClusterCmd(a), newTopologyCmd(a))
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	over, err := config.ParseOverrides(a.overrides)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		over["log_level"] = a.logLevel
	}
	if err := config.ApplyOverrides(&cfg, over); err != nil {
		return err
	}
	lvl, err := cfg.Level()
	if err != nil {
		return err
	}
	slog.SetDefault(logging.New(lvl, os.Stderr))
	a.cfg = cfg
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
