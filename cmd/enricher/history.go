package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hpn/hpn-co2-enricher/internal/report"
	"github.com/hpn/hpn-co2-enricher/internal/store"
)

func newHistoryCmd(root *rootOptions) *cobra.Command {
	var asCSV bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List saved products and their estimates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := root.load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}

			st, err := store.Open(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer st.Close()

			items, err := st.ListProducts(cmd.Context())
			if err != nil {
				return err
			}

			if asCSV {
				return report.CSV(cmd.OutOrStdout(), items)
			}
			return report.Table(cmd.OutOrStdout(), items)
		},
	}

	cmd.Flags().BoolVar(&asCSV, "csv", false, "write CSV instead of a table")
	return cmd
}
