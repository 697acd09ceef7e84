package main

import (
	"github.com/spf13/cobra"
)

func newQueryCmd(a *app) *cobra.Command {
	var flags queryFlags
	var showSQL bool
	cmd := &cobra.Command{
		Use:   "query [query]",
		Short: "Translate a Cypher query and run it against PostgreSQL",
		Example: `  pgraf-cypher query "MATCH (n:Person) RETURN n.name ORDER BY n.name LIMIT 10"
  pgraf-cypher query -f shortest.cypher --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.close()
			query, err := flags.query(args)
			if err != nil {
				return err
			}
			params, err := parseParams(flags.params)
			if err != nil {
				return err
			}
			e, _, err := a.engine(cmd, true)
			if err != nil {
				return err
			}
			x, err := e.Execute(cmd.Context(), query, params)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if flags.json {
				return printJSON(w, x)
			}
			if showSQL {
				printTranslation(w, x.Translation)
			}
			printRows(w, x.Result)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&showSQL, "sql", false, "print the generated SQL before the rows")
	return cmd
}
