// Package app implements the bizdir commands.
package app

import (
	"github.com/spf13/cobra"
)

var (
	configPath string // directory holding main.toml

	rootCmd = &cobra.Command{
		Use:   "bizdir",
		Short: "bizdir is a business directory service with token based access control",
		Long: `bizdir serves a business directory over a JSON API. Accounts log in with a
username and password, receive a signed token and are granted capabilities by role
or by explicit permissions. The same binary carries the administration commands and
a small client keeping a login session on this machine.`,
		Args:          cobra.OnlyValidArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
)

func init() { //nolint: gochecknoinits
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./etc/", "directory containing main.toml")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
