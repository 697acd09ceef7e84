package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DeusData/pgraf-cypher/internal/history"
)

var errNoHistory = errors.New("history is disabled: set history.enabled")

func newHistoryCmd(a *app) *cobra.Command {
	var (
		limit      int
		failedOnly bool
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "history [id]",
		Short: "List recent translations, or show one by id",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.close()
			h, err := a.history(cmd)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()

			if len(args) == 1 {
				entry, err := h.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if entry == nil {
					return fmt.Errorf("no history entry %s", args[0])
				}
				if asJSON {
					return printJSON(w, entry)
				}
				printEntry(cmd, entry, true)
				return nil
			}

			entries, err := h.Recent(cmd.Context(), limit, failedOnly)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(w, entries)
			}
			for _, entry := range entries {
				printEntry(cmd, entry, false)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries")
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "only failed translations")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of text")

	var keep int
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer a.close()
			h, err := a.history(cmd)
			if err != nil {
				return err
			}
			n, err := h.Prune(cmd.Context(), keep)
			if err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "pruned %d entries from %s", n, h.Path())
			return nil
		},
	}
	prune.Flags().IntVar(&keep, "keep", 1000, "entries to keep")
	cmd.AddCommand(prune)
	return cmd
}

// history opens the translation log without building the engine.
func (a *app) history(cmd *cobra.Command) (*history.Log, error) {
	cfg, err := a.config(cmd)
	if err != nil {
		return nil, err
	}
	if !cfg.History.Enabled {
		return nil, errNoHistory
	}
	h, err := history.Open(cfg.History.Path)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, h.Close)
	return h, nil
}

func printEntry(cmd *cobra.Command, e *history.Entry, full bool) {
	w := cmd.OutOrStdout()
	status := successColor.Sprint("ok")
	if e.Error != "" {
		status = errorColor.Sprint("failed")
	}
	cached := ""
	if e.CacheHit {
		cached = " cached"
	}
	headerColor.Fprintf(w, "%s ", e.ID)
	fmt.Fprintf(w, "%s %s%s %s\n", e.CreatedAt.Local().Format("2006-01-02 15:04:05"), status, cached, e.Duration)

	query := strings.Join(strings.Fields(e.Query), " ")
	if !full && len(query) > 100 {
		query = query[:97] + "..."
	}
	fmt.Fprintf(w, "  %s\n", query)
	if e.Error != "" {
		printFailure(w, "  %s", e.Error)
	}
	if full && e.SQL != "" {
		fmt.Fprintf(w, "\n%s;\n", e.SQL)
		dimColor.Fprintf(w, "-- strategies: %s\n", strings.Join(e.Strategies, ", "))
		if e.Fingerprint != "" {
			dimColor.Fprintf(w, "-- fingerprint: %s\n", e.Fingerprint)
		}
	}
}
