package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/alvmarrod/lineup-weaver/internal/config"
	"github.com/alvmarrod/lineup-weaver/internal/reconcile"
	"github.com/alvmarrod/lineup-weaver/internal/storage"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newFestivalCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "festival",
		Short: "Inspect and configure festival rows",
	}
	cmd.AddCommand(newFestivalListCommand(ctx))
	cmd.AddCommand(newFestivalSetStartCommand(ctx))
	return cmd
}

type festivalRow struct {
	Source    string `json:"source"`
	ID        string `json:"id"`
	Name      string `json:"name"`
	Year      int    `json:"year"`
	Seeded    bool   `json:"seeded"`
	StartDate string `json:"startDate,omitempty"`
	Lineups   int    `json:"lineups"`
}

func newFestivalListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured festivals and their stored state",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := ctx.ensureRegistry()
			if err != nil {
				return err
			}
			store, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			var rows []festivalRow
			for _, p := range reg.All() {
				row := festivalRow{Source: p.ID, ID: p.FestivalID, Name: p.Name, Year: p.Year}
				f, err := store.GetFestivalByID(cmd.Context(), p.FestivalID)
				if err != nil {
					return err
				}
				if f != nil {
					row.Seeded = true
					if f.StartDate != nil {
						row.StartDate = f.StartDate.Format(storage.DateLayout)
					}
					slots, err := store.ListLineupSlots(cmd.Context(), f.ID)
					if err != nil {
						return err
					}
					row.Lineups = len(slots)
				}
				rows = append(rows, row)
			}

			if !wantTable(cmd, jsonOutput) {
				return writeJSON(cmd, rows)
			}
			spec := tableSpec{
				Headers: []string{"Source", "Name", "Year", "Seeded", "Start date", "Lineups", "ID"},
				Aligns:  []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignRight, alignLeft},
			}
			for _, r := range rows {
				spec.Rows = append(spec.Rows, []string{
					r.Source, r.Name, strconv.Itoa(r.Year), strconv.FormatBool(r.Seeded),
					r.StartDate, strconv.Itoa(r.Lineups), r.ID,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(spec))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print as JSON")
	return cmd
}

func newFestivalSetStartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set-start <festival> <YYYY-MM-DD>",
		Short: "Set a festival's first day, used for day numbers",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := ctx.ensureRegistry()
			if err != nil {
				return err
			}
			p := reg.Lookup(args[0])
			if p == nil {
				return fmt.Errorf("unknown festival %q", args[0])
			}
			start, err := time.ParseInLocation(storage.DateLayout, args[1], time.UTC)
			if err != nil {
				return fmt.Errorf("invalid date %q: %w", args[1], err)
			}

			store, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			seeder := reconcile.NewSeeder(store, logrus.StandardLogger())
			if _, err := seeder.EnsureFestival(cmd.Context(), p); err != nil {
				return err
			}
			if err := store.SetFestivalStartDate(cmd.Context(), p.FestivalID, start); err != nil {
				return err
			}
			logrus.WithFields(logrus.Fields{"source": p.ID, "start_date": args[1]}).
				Info("Start date set; run recompute-days to refresh day numbers")
			return nil
		},
	}
}

func newRecomputeDaysCommand(ctx *commandContext) *cobra.Command {
	var (
		festival   string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "recompute-days",
		Short: "Re-derive performance dates and day numbers from stored day labels",
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, err := ctx.selectSources(festival)
			if err != nil {
				return err
			}
			store, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			seeder := reconcile.NewSeeder(store, logrus.StandardLogger())
			results := make(map[string]reconcile.DateResult, len(sources))
			var errs []error
			for _, p := range sources {
				res, err := seeder.RecomputeDates(cmd.Context(), p)
				if err != nil {
					errs = append(errs, err)
					logrus.WithField("source", p.ID).Errorf("Recompute failed: %v", err)
					continue
				}
				results[p.ID] = res
			}

			if err := printDateResults(cmd, sources, results, jsonOutput); err != nil {
				return err
			}
			return errors.Join(errs...)
		},
	}
	cmd.Flags().StringVar(&festival, "festival", config.AllSources, "Festival id or \"all\"")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print as JSON")
	return cmd
}

func printDateResults(cmd *cobra.Command, sources []*config.SiteProfile, results map[string]reconcile.DateResult, jsonOutput bool) error {
	if !wantTable(cmd, jsonOutput) {
		return writeJSON(cmd, results)
	}
	spec := tableSpec{
		Headers: []string{"Festival", "Updated", "Unchanged", "Unparseable"},
		Aligns:  []columnAlignment{alignLeft, alignRight, alignRight, alignRight},
	}
	for _, p := range sources {
		res, ok := results[p.ID]
		if !ok {
			continue
		}
		spec.Rows = append(spec.Rows, []string{
			p.ID, strconv.Itoa(res.Updated), strconv.Itoa(res.Unchanged), strconv.Itoa(res.Unparseable),
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(spec))
	return nil
}
