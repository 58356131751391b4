package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var globalConfig *Config

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "ceremony",
	Short: "Shamir key-splitting ceremony tool",
	Long: `ceremony drives an interactive key-splitting ceremony: it splits a
secret into encrypted shares distributed across named keepers, and later
reconstructs the secret from a threshold subset of those shares.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	globalConfig = NewConfig()

	rootCmd.PersistentFlags().StringVar(&globalConfig.ConfigFilePath, "config", "",
		"path to the ceremony YAML configuration file")
	rootCmd.PersistentFlags().StringVarP(&globalConfig.OutputFormat, "output", "o", "text",
		"output format (text, json)")
	rootCmd.PersistentFlags().BoolVarP(&globalConfig.Verbose, "verbose", "v", false,
		"verbose logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(reconstructCmd)
}

func getConfig() *Config {
	return globalConfig
}

// handleError prints an error and exits with code 1.
func handleError(err error) {
	printer := NewPrinter(globalConfig.OutputFormat, os.Stderr)
	_ = printer.PrintError(err)
	os.Exit(1)
}
