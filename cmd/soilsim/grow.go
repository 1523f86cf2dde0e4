package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/rootsoil/internal/domain"
	"github.com/talgya/rootsoil/internal/entropy"
	"github.com/talgya/rootsoil/internal/growth"
	"github.com/talgya/rootsoil/internal/spatial"
	"github.com/talgya/rootsoil/internal/topology"
)

// growReport is the printed form of a growth run. DomainSeed replays a
// generated point cloud.
type growReport struct {
	growth.Result
	DomainSeed int64 `json:"domain_seed"`
}

func newGrowCmd(a *app) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "grow",
		Short: "Grow one root system and print its segments",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.grow(cmd.OutOrStdout(), mode)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "sectional", "sectional (lattice graph) or planar (free directions)")
	return cmd
}

func (a *app) grow(w io.Writer, mode string) error {
	if mode != "sectional" && mode != "planar" {
		return fmt.Errorf("growth mode %q: %w", mode, domain.ErrOutOfRange)
	}

	// ── Domain ────────────────────────────────────────────────────────
	d, err := a.cfg.BuildDomain()
	if err != nil {
		return err
	}
	rng, _ := entropy.NewRand(a.cfg.IndexSeed)
	ix, err := spatial.Build(d, rng)
	if err != nil {
		return err
	}
	slog.Info("domain ready",
		"kind", d.Kind(),
		"points", humanize.Comma(int64(ix.Len())),
		"unit_length", fmt.Sprintf("%.4f", ix.UnitLength()),
		"domain_seed", d.Seed(),
	)

	// ── Growth ────────────────────────────────────────────────────────
	var res growth.Result
	switch mode {
	case "sectional":
		g, err := topology.Build(d, a.cfg.Topology)
		if err != nil {
			return err
		}
		res, err = growth.GrowSectional(ix, g, a.cfg.Sectional)
		if err != nil {
			return err
		}
	case "planar":
		res, err = growth.GrowPlanar(ix, a.cfg.Planar)
		if err != nil {
			return err
		}
	}

	slog.Info("growth done",
		"mode", mode,
		"segments", humanize.Comma(int64(res.Segments())),
		"levels", len(res.Levels),
		"absorbent", humanize.Comma(int64(len(res.Absorbent))),
		"nodes", humanize.Comma(int64(res.Nodes)),
		"seed", res.Seed,
	)
	return writeJSON(w, growReport{Result: res, DomainSeed: d.Seed()})
}
