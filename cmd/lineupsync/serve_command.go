package main

import (
	"github.com/alvmarrod/lineup-weaver/internal/metrics"
	"github.com/alvmarrod/lineup-weaver/internal/pipeline"
	"github.com/alvmarrod/lineup-weaver/internal/server"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the scheduled scrape trigger, health and metrics endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			reg, err := ctx.ensureRegistry()
			if err != nil {
				return err
			}
			store, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			if !logrus.IsLevelEnabled(logrus.DebugLevel) {
				gin.SetMode(gin.ReleaseMode)
			}
			if cfg.CronSecret == "" {
				logrus.Warn("CRON_SECRET is not set; the trigger endpoint is unauthenticated")
			}

			tracker := metrics.NewTracker("serve")
			orchestrator, err := pipeline.New(pipeline.Deps{
				Config:  cfg,
				Store:   store,
				Tracker: tracker,
				Log:     logrus.StandardLogger(),
			})
			if err != nil {
				return err
			}

			if addr == "" {
				addr = cfg.ListenAddr
			}
			srv := server.New(orchestrator, reg, tracker, cfg.CronSecret, logrus.StandardLogger())
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to listen_addr)")
	return cmd
}
