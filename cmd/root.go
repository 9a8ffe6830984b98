package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dila/internal/logger"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "dila",
	Short: "dila - network control for JVC D-ILA projectors",
	Long: `dila talks the JVC external control protocol over the network.
It can run as a hub daemon managing several projectors behind an HTTP API,
drive a single projector from the command line, or open an interactive
remote control in the terminal.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logger.SetLevel(logger.LOG_DEBUG)
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(cliCmd)
	rootCmd.AddCommand(hubCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(stateCmd)
}

func exitWithError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
