package main

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newInitSchemaCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init-schema",
		Short: "Create the graph schema, nodes and edges tables if missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer a.close()
			_, st, err := a.engine(cmd, true)
			if err != nil {
				return err
			}
			if err := st.InitSchema(cmd.Context()); err != nil {
				return err
			}
			l := st.Layout()
			printSuccess(cmd.OutOrStdout(), "schema %s ready (%s, %s)", l.Schema, l.NodesTable, l.EdgesTable)
			return nil
		},
	}
}

func newSchemaCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Summarize labels, relationship types and property keys in the graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer a.close()
			_, st, err := a.engine(cmd, true)
			if err != nil {
				return err
			}
			info, err := st.GetSchema(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if asJSON {
				return printJSON(w, info)
			}
			enc := yaml.NewEncoder(w)
			enc.SetIndent(2)
			if err := enc.Encode(info); err != nil {
				return err
			}
			return enc.Close()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of YAML")
	return cmd
}
