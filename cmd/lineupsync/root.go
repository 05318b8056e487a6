package main

import "github.com/spf13/cobra"

// version is set at build time with -ldflags "-X main.version=x.y.z"
var version = "dev"

func newRootCommand() *cobra.Command {
	var (
		configFlag  string
		sitesFlag   string
		verboseFlag bool
	)

	ctx := newCommandContext(&configFlag, &sitesFlag)

	rootCmd := &cobra.Command{
		Use:           "lineupsync",
		Short:         "Festival lineup scraper and reconciler",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			configureLogging(cmd.ErrOrStderr(), verboseFlag)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "config.json", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&sitesFlag, "sites", "", "Site profile TOML replacing the built-in registry")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newSyncCommand(ctx))
	rootCmd.AddCommand(newSeedCommand(ctx))
	rootCmd.AddCommand(newMatchCommand(ctx))
	rootCmd.AddCommand(newRecomputeDaysCommand(ctx))
	rootCmd.AddCommand(newFestivalCommand(ctx))
	rootCmd.AddCommand(newLineupsCommand(ctx))
	rootCmd.AddCommand(newSitesCommand(ctx))
	rootCmd.AddCommand(newServeCommand(ctx))

	return rootCmd
}
