package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/alvmarrod/lineup-weaver/internal/catalog"
	"github.com/alvmarrod/lineup-weaver/internal/config"
	"github.com/alvmarrod/lineup-weaver/internal/metrics"
	"github.com/alvmarrod/lineup-weaver/internal/pipeline"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type syncFlags struct {
	festival    string
	skipScrape  bool
	skipEnrich  bool
	limit       int
	enrichLimit int
	force       bool
	jsonOutput  bool
}

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var flags syncFlags

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Scrape festival sites, reconcile lineups and enrich bands",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, ctx, flags)
		},
	}

	cmd.Flags().StringVar(&flags.festival, "festival", config.AllSources, "Festival id or \"all\"")
	cmd.Flags().BoolVar(&flags.skipScrape, "skip-scrape", false, "Reconcile the stored snapshot without fetching pages")
	cmd.Flags().BoolVar(&flags.skipEnrich, "skip-spotify", false, "Skip Spotify enrichment")
	cmd.Flags().BoolVar(&flags.skipEnrich, "skip-enrich", false, "Alias of --skip-spotify")
	cmd.Flags().IntVar(&flags.limit, "limit", 0, "Maximum detail pages fetched per festival (0 = all)")
	cmd.Flags().IntVar(&flags.enrichLimit, "spotify-limit", 0, "Maximum Spotify lookups (0 = all)")
	cmd.Flags().BoolVar(&flags.force, "force", false, "Re-match bands that already have Spotify data")
	cmd.Flags().BoolVar(&flags.jsonOutput, "json", false, "Print the summary as JSON")
	return cmd
}

func newSeedCommand(ctx *commandContext) *cobra.Command {
	var flags syncFlags

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Reconcile stored snapshots into the database without scraping",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.skipScrape = true
			flags.skipEnrich = true
			return runSync(cmd, ctx, flags)
		},
	}

	cmd.Flags().StringVar(&flags.festival, "festival", config.AllSources, "Festival id or \"all\"")
	cmd.Flags().BoolVar(&flags.jsonOutput, "json", false, "Print the summary as JSON")
	return cmd
}

func runSync(cmd *cobra.Command, cc *commandContext, flags syncFlags) error {
	if flags.limit < 0 || flags.enrichLimit < 0 {
		return errors.New("limits must be >= 0")
	}
	cfg, err := cc.ensureConfig()
	if err != nil {
		return err
	}
	sources, err := cc.selectSources(flags.festival)
	if err != nil {
		return err
	}

	var searcher catalog.Searcher
	if !flags.skipEnrich {
		client, err := cc.newSearcher()
		if err != nil {
			return err
		}
		searcher = client
	}

	store, err := cc.openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	runID := uuid.NewString()
	tracker := metrics.NewTracker(runID)
	orchestrator, err := pipeline.New(pipeline.Deps{
		Config:   cfg,
		Store:    store,
		Searcher: searcher,
		Tracker:  tracker,
		Log:      logrus.StandardLogger(),
	})
	if err != nil {
		return err
	}

	summary, runErr := orchestrator.Run(cmd.Context(), pipeline.Options{
		RunID:       runID,
		Sources:     sources,
		SkipScrape:  flags.skipScrape,
		SkipEnrich:  flags.skipEnrich,
		Limit:       flags.limit,
		EnrichLimit: flags.enrichLimit,
		Force:       flags.force,
	})
	if summary == nil {
		return runErr
	}

	writeRunMetrics(cfg, tracker, summary, runErr)

	if wantTable(cmd, flags.jsonOutput) {
		fmt.Fprintln(cmd.OutOrStdout(), renderSummary(summary))
	} else if err := writeJSON(cmd, summary); err != nil {
		return err
	}
	return runErr
}

func writeRunMetrics(cfg *config.Config, tracker *metrics.Tracker, summary *pipeline.Summary, runErr error) {
	reason := "completed"
	switch {
	case errors.Is(runErr, context.Canceled):
		reason = "signal"
	case runErr != nil:
		reason = "failed"
	}

	if err := tracker.WriteToFile(cfg.MetricsPath, reason, summary); err != nil {
		logrus.Errorf("Failed to write metrics: %v", err)
	} else {
		logrus.Infof("Metrics written to %s", cfg.MetricsPath)
	}
	if cfg.MetricsTextfile != "" {
		if err := tracker.WriteTextfile(cfg.MetricsTextfile); err != nil {
			logrus.Errorf("Failed to write metrics textfile: %v", err)
		}
	}
	logrus.Info("Final stats: " + tracker.LogProgress())
}

func renderSummary(s *pipeline.Summary) string {
	itoa := strconv.Itoa
	spec := tableSpec{
		Title: "Run " + s.RunID,
		Headers: []string{"Festival", "Links", "Details", "Failures", "Merge skipped",
			"Bands new", "Bands updated", "Lineups", "Skipped", "Errors", "Low yield", "Error"},
		Aligns: []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight,
			alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft, alignLeft},
	}
	for _, src := range s.Sources {
		lowYield := ""
		if src.LowYield {
			lowYield = fmt.Sprintf("yes (%d sparse)", src.SparseDetails)
		}
		spec.Rows = append(spec.Rows, []string{
			src.Source, itoa(src.Links), itoa(src.Details), itoa(src.Failures), itoa(src.MergeSkipped),
			itoa(src.Reconcile.BandsInserted), itoa(src.Reconcile.BandsUpdated), itoa(src.Reconcile.LineupsUpserted),
			itoa(src.Reconcile.Skipped), itoa(src.Reconcile.Errors), lowYield, src.Error,
		})
	}
	t := s.Totals
	spec.Footer = []string{
		"total", itoa(t.Links), itoa(t.Details), itoa(t.Failures), itoa(t.MergeSkipped),
		itoa(t.Reconcile.BandsInserted), itoa(t.Reconcile.BandsUpdated), itoa(t.Reconcile.LineupsUpserted),
		itoa(t.Reconcile.Skipped), itoa(t.Reconcile.Errors), "", fmt.Sprintf("%d failed", t.FailedSources),
	}

	out := renderTable(spec)
	for _, src := range s.Sources {
		for _, f := range src.FailureSamples {
			out += fmt.Sprintf("\n  %s: %s", src.Source, f.Reason)
		}
	}
	switch {
	case s.Enrichment != nil:
		e := s.Enrichment
		out += fmt.Sprintf("\nSpotify: %d matched, %d not found, %d errors, %d rate limited (%d processed)",
			e.Matched, e.NotFound, e.Errors, e.RateLimited, e.Processed)
	case s.EnrichmentError != "":
		out += "\nSpotify: " + s.EnrichmentError
	}
	return out
}
