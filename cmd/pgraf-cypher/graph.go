package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/DeusData/pgraf-cypher/internal/config"
	"github.com/DeusData/pgraf-cypher/internal/store"
)

// graphFile is the seed format. JSON files parse too since JSON is YAML.
// Edge endpoints name a node key from the same file or an existing node id.
type graphFile struct {
	Nodes []seedNode    `yaml:"nodes"`
	Edges []*store.Edge `yaml:"edges"`
}

type seedNode struct {
	Key  string     `yaml:"key"`
	Node store.Node `yaml:",inline"`
}

func parseGraphFile(data []byte) (*graphFile, error) {
	var g graphFile
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parse graph file: %w", err)
	}
	keys := make(map[string]bool, len(g.Nodes))
	for i, n := range g.Nodes {
		if len(n.Node.Labels) == 0 {
			return nil, fmt.Errorf("node %d: no labels", i)
		}
		if n.Key == "" {
			continue
		}
		if keys[n.Key] {
			return nil, fmt.Errorf("node %d: duplicate key %q", i, n.Key)
		}
		keys[n.Key] = true
	}
	for i, e := range g.Edges {
		if e.Source == "" || e.Target == "" {
			return nil, fmt.Errorf("edge %d: source and target are required", i)
		}
		if len(e.Labels) == 0 {
			return nil, fmt.Errorf("edge %d: no type", i)
		}
	}
	return &g, nil
}

// seedGraph writes g in one transaction and returns the id of every keyed
// node.
func seedGraph(ctx context.Context, st *store.Store, g *graphFile) (map[string]string, error) {
	ids := make(map[string]string, len(g.Nodes))
	err := st.WithTransaction(ctx, func(tx *store.Store) error {
		nodes := make([]*store.Node, len(g.Nodes))
		for i := range g.Nodes {
			nodes[i] = &g.Nodes[i].Node
		}
		got, err := tx.UpsertNodeBatch(ctx, nodes)
		if err != nil {
			return err
		}
		for i, n := range g.Nodes {
			if n.Key != "" {
				ids[n.Key] = got[i]
			}
		}
		for _, e := range g.Edges {
			e.Source = resolveEndpoint(ids, e.Source)
			e.Target = resolveEndpoint(ids, e.Target)
			if _, err := tx.InsertEdge(ctx, e); err != nil {
				return fmt.Errorf("edge %s->%s: %w", e.Source, e.Target, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func resolveEndpoint(ids map[string]string, ref string) string {
	if id, ok := ids[ref]; ok {
		return id
	}
	return ref
}

func newSeedCmd(a *app) *cobra.Command {
	var initSchema, asJSON bool
	cmd := &cobra.Command{
		Use:   "seed <file>",
		Short: "Load nodes and edges from a YAML or JSON graph file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := afero.ReadFile(config.AppFs, args[0])
			if err != nil {
				return fmt.Errorf("read graph file: %w", err)
			}
			g, err := parseGraphFile(data)
			if err != nil {
				return err
			}

			defer a.close()
			_, st, err := a.engine(cmd, true)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if initSchema {
				if err := st.InitSchema(ctx); err != nil {
					return err
				}
			}
			ids, err := seedGraph(ctx, st, g)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if asJSON {
				return printJSON(w, map[string]any{"nodes": len(g.Nodes), "edges": len(g.Edges), "keys": ids})
			}
			printSuccess(w, "seeded %d nodes, %d edges", len(g.Nodes), len(g.Edges))
			return nil
		},
	}
	cmd.Flags().BoolVar(&initSchema, "init", false, "create the schema first")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the node ids assigned to each key as JSON")
	return cmd
}

// withStore runs fn against the configured store.
func (a *app) withStore(cmd *cobra.Command, fn func(ctx context.Context, st *store.Store) error) error {
	defer a.close()
	_, st, err := a.engine(cmd, true)
	if err != nil {
		return err
	}
	return fn(cmd.Context(), st)
}

var errNodeNotFound = errors.New("node not found")

func newNodeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Inspect and edit single nodes",
	}

	var (
		id     string
		labels []string
		props  []string
	)
	put := &cobra.Command{
		Use:   "put",
		Short: "Insert a node, or replace the node with the given --id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(labels) == 0 {
				return errors.New("at least one --label is required")
			}
			properties, err := parseParams(props)
			if err != nil {
				return err
			}
			n := &store.Node{ID: id, Labels: labels, Properties: properties}
			return a.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				got, err := st.UpsertNode(ctx, n)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), got)
				return nil
			})
		},
	}
	put.Flags().StringVar(&id, "id", "", "node id (default: a new UUID)")
	put.Flags().StringArrayVarP(&labels, "label", "l", nil, "node label (repeatable)")
	put.Flags().StringArrayVarP(&props, "prop", "p", nil, "property as key=value, value parsed as JSON when possible (repeatable)")

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Print a node and its outgoing edges as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				n, err := st.FindNodeByID(ctx, args[0])
				if err != nil {
					return err
				}
				if n == nil {
					return fmt.Errorf("%w: %s", errNodeNotFound, args[0])
				}
				out, err := st.FindEdgesBySource(ctx, n.ID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{"node": n, "edges": out})
			})
		},
	}

	var label string
	list := &cobra.Command{
		Use:   "list",
		Short: "Print the nodes carrying --label as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				nodes, err := st.FindNodesByLabel(ctx, label)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), nodes)
			})
		},
	}
	list.Flags().StringVarP(&label, "label", "l", "", "node label")
	_ = list.MarkFlagRequired("label")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a node and its edges",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				if err := st.DeleteNode(ctx, args[0]); err != nil {
					return err
				}
				printSuccess(cmd.OutOrStdout(), "deleted %s", args[0])
				return nil
			})
		},
	}

	cmd.AddCommand(put, get, list, del)
	return cmd
}

func newEdgesCmd(a *app) *cobra.Command {
	var from, typ string
	cmd := &cobra.Command{
		Use:   "edges",
		Short: "Print edges leaving --from or carrying --type as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (from == "") == (typ == "") {
				return errors.New("exactly one of --from and --type is required")
			}
			return a.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				var (
					edges []*store.Edge
					err   error
				)
				if from != "" {
					edges, err = st.FindEdgesBySource(ctx, from)
				} else {
					edges, err = st.FindEdgesByType(ctx, typ)
				}
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), edges)
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "source node id")
	cmd.Flags().StringVarP(&typ, "type", "t", "", "relationship type")
	return cmd
}
