package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bizdir/bizdir/internal/config"
)

func init() { //nolint: gochecknoinits
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration with secrets masked",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.ReadConfig(configPath)
		if err != nil {
			return err //nolint:wrapcheck
		}

		out, err := config.DumpConfigJSON(&cfg)
		if err != nil {
			return err //nolint:wrapcheck
		}

		_, err = fmt.Fprint(cmd.OutOrStdout(), out)

		return err //nolint:wrapcheck
	},
}
