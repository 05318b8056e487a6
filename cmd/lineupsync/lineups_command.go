package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alvmarrod/lineup-weaver/internal/storage"
	"github.com/spf13/cobra"
)

func newLineupsCommand(ctx *commandContext) *cobra.Command {
	var (
		festival   string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "lineups",
		Short: "List stored lineup slots of a festival",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := ctx.ensureRegistry()
			if err != nil {
				return err
			}
			p := reg.Lookup(festival)
			if p == nil {
				return fmt.Errorf("unknown festival %q (use one of %s)", festival, strings.Join(reg.IDs(), ", "))
			}

			store, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			slots, err := store.ListLineupSlots(cmd.Context(), p.FestivalID)
			if err != nil {
				return err
			}

			rows := make([]lineupRow, 0, len(slots))
			for _, s := range slots {
				rows = append(rows, newLineupRow(s))
			}

			if !wantTable(cmd, jsonOutput) {
				return writeJSON(cmd, rows)
			}
			spec := tableSpec{
				Title:   fmt.Sprintf("%s %d: %d slots", p.Name, p.Year, len(slots)),
				Headers: []string{"Day", "Date", "Time", "Stage", "Band", "Day label"},
				Aligns:  []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
			}
			for _, r := range rows {
				day := ""
				if r.DayNumber != nil {
					day = strconv.Itoa(*r.DayNumber)
				}
				spec.Rows = append(spec.Rows, []string{
					day, r.PerformanceDate, r.Time, r.Stage, r.Band, r.DayLabel,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(spec))
			return nil
		},
	}
	cmd.Flags().StringVar(&festival, "festival", "", "Festival id")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print as JSON")
	_ = cmd.MarkFlagRequired("festival")
	return cmd
}

type lineupRow struct {
	Band            string `json:"band"`
	DayLabel        string `json:"dayLabel,omitempty"`
	Stage           string `json:"stage,omitempty"`
	Time            string `json:"time,omitempty"`
	PerformanceTime string `json:"performanceTime,omitempty"`
	PerformanceDate string `json:"performanceDate,omitempty"`
	DayNumber       *int   `json:"dayNumber,omitempty"`
	SourceURL       string `json:"sourceUrl"`
}

func newLineupRow(s *storage.LineupSlot) lineupRow {
	r := lineupRow{
		Band:            s.BandName,
		DayLabel:        deref(s.DayLabel),
		Stage:           deref(s.Stage),
		Time:            deref(s.TimeLabel),
		PerformanceTime: deref(s.PerformanceTime),
		DayNumber:       s.DayNumber,
		SourceURL:       s.SourceURL,
	}
	if s.PerformanceDate != nil {
		r.PerformanceDate = s.PerformanceDate.Format(storage.DateLayout)
	}
	return r
}

func newSitesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sites",
		Short: "List configured site profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := ctx.ensureRegistry()
			if err != nil {
				return err
			}
			spec := tableSpec{
				Headers: []string{"ID", "Name", "Year", "Parser", "Index pages", "Link selector"},
				Aligns:  []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft},
			}
			for _, p := range reg.All() {
				spec.Rows = append(spec.Rows, []string{
					p.ID, p.Name, strconv.Itoa(p.Year), p.Parser, strconv.Itoa(len(p.IndexURLs)), p.LinkSelector,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(spec))
			return nil
		},
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
