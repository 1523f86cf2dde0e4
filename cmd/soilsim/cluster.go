package main

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand"

	"github.com/dustin/go-humanize"
	"github.com/golang/geo/r3"
	"github.com/spf13/cobra"

	"github.com/talgya/rootsoil/internal/cluster"
	"github.com/talgya/rootsoil/internal/domain"
)

func newClusterCmd(a *app) *cobra.Command {
	var sampler string
	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Cluster the domain cells and print the boundaries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.cluster(cmd.OutOrStdout(), sampler)
		},
	}
	cmd.Flags().StringVar(&sampler, "sampler", "elimination", "seed sampler: elimination or uniform")
	return cmd
}

func (a *app) cluster(w io.Writer, sampler string) error {
	var opts []cluster.Option
	switch sampler {
	case "elimination":
	case "uniform":
		opts = append(opts, cluster.WithSampler(cluster.SamplerFunc(
			func(c []r3.Vector, _ float64, n int, rng *rand.Rand) ([]r3.Vector, error) {
				return cluster.Uniform(c, n, rng), nil
			})))
	default:
		return fmt.Errorf("sampler %q: %w", sampler, domain.ErrOutOfRange)
	}

	d, err := a.cfg.BuildDomain()
	if err != nil {
		return err
	}
	res, err := cluster.New(opts...).BuildDomain(d, a.cfg.Cluster)
	if err != nil {
		return err
	}

	for t, cls := range res.ByType {
		slog.Info("cluster type",
			"type", t,
			"clusters", len(cls),
			"area", humanize.FormatFloat("#,###.##", res.TypeAreas[t]),
			"target", humanize.FormatFloat("#,###.##", res.Targets[t]),
		)
	}
	slog.Info("clustering done",
		"met_targets", res.MetTargets,
		"degraded", res.Degraded,
		"passes", res.Passes,
		"leftover", humanize.Comma(int64(len(res.Leftover))),
		"seed", res.Seed,
	)
	return writeJSON(w, res)
}
