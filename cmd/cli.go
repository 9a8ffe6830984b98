package cmd

import (
	"github.com/spf13/cobra"

	"dila/cmd/cli"
	"dila/internal/logger"
)

var cliDebugFlag bool

var cliCmd = &cobra.Command{
	Use:   "cli",
	Short: "Open the interactive projector remote",
	Long: `Launch the terminal remote control. Connect to a projector by
address and drive it with the keyboard: menu navigation, power, input
selection, picture modes and lens memories.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cliDebugFlag {
			logger.SetSilentMode(false)
			logger.SetLevel(logger.LOG_DEBUG)
		} else {
			// The TUI owns the screen; keep log output out of it.
			logger.SetSilentMode(true)
		}

		return cli.StartTUI(cliDebugFlag)
	},
}

func init() {
	cliCmd.Flags().BoolVar(&cliDebugFlag, "debug", false, "Show an in-screen log pane and debug logging")
}
