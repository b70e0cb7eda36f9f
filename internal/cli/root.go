// Package cli holds the keylock command tree.
package cli

import (
	"github.com/spf13/cobra"
)

const defaultConfigPath = "./config.json"

type options struct {
	configPath string
	verbose    bool
}

// NewRootCommand builds the keylock command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "keylock",
		Short: "Lock keyboard and mouse on recurring schedules",
		Long: `keylock runs a daemon that locks the keyboard, the mouse or both on
one-time, daily, weekday, weekend, weekly and countdown schedules, with an
optional automatic unlock after a fixed duration.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "Configuration file path (JSON, or YAML by extension)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log at debug level for offline commands")

	root.AddCommand(newRunCommand(opts), newScheduleCommand(opts))
	return root
}
