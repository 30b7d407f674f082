package app

import (
	"github.com/spf13/cobra"

	"github.com/bizdir/bizdir/internal/config"
	"github.com/bizdir/bizdir/internal/daemon"
	"github.com/bizdir/bizdir/internal/logger"
)

func init() { //nolint: gochecknoinits
	startCmd.Flags().BoolVar(&devMode, "dev", false, "Enable dev mode (ephemeral jwt secret, fast shutdown)")

	rootCmd.AddCommand(startCmd)
}

var (
	devMode bool

	startCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the bizdir web service",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.ReadConfig(configPath, func(c *config.Config) {
				if devMode {
					c.DevMode = true
				}
			})
			if err != nil {
				return err //nolint:wrapcheck
			}

			if err = logger.Init(cfg.Log); err != nil {
				return err //nolint:wrapcheck
			}

			d, err := daemon.New(&cfg)
			if err != nil {
				return err //nolint:wrapcheck
			}

			return d.Start()
		},
	}
)
