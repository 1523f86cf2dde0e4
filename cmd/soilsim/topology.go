package main

import (
	"io"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/rootsoil/internal/topology"
)

// topologyReport is the printed form of a graph.
type topologyReport struct {
	Vertices int                       `json:"vertices"`
	Complete int                       `json:"complete"` // Vertices with every slot resolved
	Entries  map[string]topology.Entry `json:"entries"`
}

func newTopologyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "topology",
		Short: "Build the six-slot graph of the lattice and print it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.topology(cmd.OutOrStdout())
		},
	}
}

func (a *app) topology(w io.Writer) error {
	d, err := a.cfg.BuildDomain()
	if err != nil {
		return err
	}
	g, err := topology.Build(d, a.cfg.Topology)
	if err != nil {
		return err
	}

	rep := topologyReport{Vertices: g.Len(), Entries: make(map[string]topology.Entry, g.Len())}
	for _, k := range g.Keys() {
		e, _ := g.Entry(k)
		rep.Entries[k] = e
		if e.Resolved() == topology.Slots {
			rep.Complete++
		}
	}
	slog.Info("topology ready",
		"vertices", humanize.Comma(int64(rep.Vertices)),
		"complete", humanize.Comma(int64(rep.Complete)),
	)
	return writeJSON(w, rep)
}
