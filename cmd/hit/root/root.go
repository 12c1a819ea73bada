package root

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hit/internal/config"
	"hit/internal/ui"
)

const Version = "0.3.0"

var configPath string

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "hit",
		Short:         "Handwriting Improvement Tracker backend",
		Long:          "hit serves practice prompts, analyses handwriting photos and tracks progress per user.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "path to the TOML config file")

	rootCmd.AddCommand(
		newServeCmd(),
		newStatsCmd(),
		newHistoryCmd(),
		newResetCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.Bad.Render(ui.IconError+" "+err.Error()))
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hit v%s\n", Version)
		},
	}
}
