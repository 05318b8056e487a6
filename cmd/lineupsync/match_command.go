package main

import (
	"fmt"

	"github.com/alvmarrod/lineup-weaver/internal/enrich"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newMatchCommand(ctx *commandContext) *cobra.Command {
	var (
		opts       enrich.Options
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Match stored bands against Spotify",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Limit < 0 {
				return fmt.Errorf("--limit must be >= 0")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			searcher, err := ctx.newSearcher()
			if err != nil {
				return err
			}
			store, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			m := enrich.NewMatcher(store, searcher, logrus.StandardLogger(), enrich.WithDelay(cfg.EnrichDelay()))
			res, err := m.Run(cmd.Context(), opts)
			if err != nil {
				return err
			}

			if !wantTable(cmd, jsonOutput) {
				return writeJSON(cmd, res)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(tableSpec{
				Headers: []string{"Processed", "Matched", "Not found", "Errors", "Rate limited"},
				Aligns:  []columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight},
				Rows: [][]string{{
					fmt.Sprint(res.Processed), fmt.Sprint(res.Matched), fmt.Sprint(res.NotFound),
					fmt.Sprint(res.Errors), fmt.Sprint(res.RateLimited),
				}},
			}))
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "Re-match bands that already have Spotify data")
	cmd.Flags().StringVar(&opts.BandName, "band", "", "Match a single band by name (case-insensitive)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Maximum bands to look up (0 = all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")
	return cmd
}
