package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"crateprov/internal/config"
	"crateprov/internal/crate"
	"crateprov/internal/lineage"
	"crateprov/internal/logging"

	"github.com/spf13/cobra"
)

var (
	lineageDepth  int
	lineageFormat string
	expandNode    string
	expandTimes   int
)

var lineageCmd = &cobra.Command{
	Use:   "lineage ID",
	Short: "Print the lineage graph of an entity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cfg, err := setup(cmd)
		if err != nil {
			return err
		}
		entities, err := readEntities(ctx, cfg)
		if err != nil {
			return err
		}

		if lineageFormat == "evidence" {
			doc, err := lineage.NewEvidenceDocument(entities, args[0])
			if err != nil {
				return err
			}
			return writeJSON(os.Stdout, doc)
		}

		g, err := lineage.NewBuilder(entities, lineageConfig(cfg)).Build(args[0])
		if err != nil {
			return err
		}
		for _, w := range g.Warnings {
			logging.FromContext(ctx).Warn(w)
		}
		return printGraph(os.Stdout, g, lineageFormat)
	},
}

var expandCmd = &cobra.Command{
	Use:   "expand ID",
	Short: "Build the lineage graph of an entity and expand one of its nodes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cfg, err := setup(cmd)
		if err != nil {
			return err
		}
		entities, err := readEntities(ctx, cfg)
		if err != nil {
			return err
		}

		b := lineage.NewBuilder(entities, lineageConfig(cfg))
		g, err := b.Build(args[0])
		if err != nil {
			return err
		}
		node := expandNode
		if node == "" {
			node = args[0]
		}
		for i := 0; i < expandTimes; i++ {
			x, err := b.Expand(g, node)
			if err != nil {
				return err
			}
			logging.FromContext(ctx).Debug("expanded node", "node", node, "new_nodes", len(x.NewNodes), "new_edges", len(x.NewEdges))
			if x.Empty() && !x.Updated.Expandable {
				break
			}
		}
		for _, w := range g.Warnings {
			logging.FromContext(ctx).Warn(w)
		}
		return printGraph(os.Stdout, g, lineageFormat)
	},
}

func init() {
	for _, c := range []*cobra.Command{lineageCmd, expandCmd} {
		c.Flags().IntVar(&lineageDepth, "depth", -1, "Relationship hops expanded automatically, 0 for the root only (defaults to lineage.max_depth)")
		c.Flags().StringVarP(&lineageFormat, "format", "f", "mermaid", "Output format: mermaid, json or evidence")
	}
	expandCmd.Flags().StringVar(&expandNode, "node", "", "Node to expand (defaults to the root)")
	expandCmd.Flags().IntVar(&expandTimes, "times", 1, "Number of expansion steps")
}

// readEntities loads the crate read-only. The JSON backend never creates a
// crate here.
func readEntities(ctx context.Context, cfg *config.Config) (map[string]*crate.Entity, error) {
	if cfg.Crate.Backend == config.BackendSQLite {
		store, closeStore, err := initStore(cfg, crate.InitOptions{})
		if err != nil {
			return nil, err
		}
		defer closeStore()
		return store.ReadEntityMap(ctx)
	}
	store, err := crate.OpenReadOnly(cfg.Crate.Root)
	if err != nil {
		return nil, err
	}
	return store.ReadEntityMap(ctx)
}

func lineageConfig(cfg *config.Config) lineage.Config {
	lc := lineage.DefaultConfig()
	lc.MaxDepth = cfg.Lineage.MaxDepth
	if lineageDepth >= 0 {
		lc.MaxDepth = lineageDepth
	}
	return lc
}

func printGraph(w io.Writer, g *lineage.Graph, format string) error {
	switch format {
	case "mermaid", "":
		_, err := fmt.Fprint(w, g.Mermaid())
		return err
	case "json":
		data, err := g.JSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "evidence":
		return fmt.Errorf("evidence format is only available for the lineage command")
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
