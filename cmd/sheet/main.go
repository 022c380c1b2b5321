// Package main is the entry point for the rpg-sheet CLI and gRPC server
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/KirkDiggler/rpg-sheet/cmd/sheet/client"
	"github.com/KirkDiggler/rpg-sheet/internal/config"
)

var (
	cfg *config.Config

	logLevel    string
	logFormat   string
	dataPath    string
	entropyMode string
)

var rootCmd = &cobra.Command{
	Use:   "rpg-sheet",
	Short: "RPG character sheet and dice roller",
	Long: `rpg-sheet keeps character sheets in a local store and rolls dice expressions
such as "2d6+3" or "(1d20+5)/2". It also serves the dice roller over gRPC.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&dataPath, "data", "", "path to the sheet database")
	rootCmd.PersistentFlags().StringVar(&entropyMode, "entropy", "", "randomness source (blended, toolkit)")

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(rollCmd)
	rootCmd.AddCommand(sheetCmd)
	rootCmd.AddCommand(client.ClientCmd)
}

// loadConfig reads the environment, then lets explicit flags win
func loadConfig(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		loaded.LogLevel = logLevel
	}
	if flags.Changed("log-format") {
		loaded.LogFormat = logFormat
	}
	if flags.Changed("data") {
		loaded.DataPath = dataPath
	}
	if flags.Changed("entropy") {
		loaded.Entropy = entropyMode
	}
	if err := loaded.Validate(); err != nil {
		return err
	}

	loaded.SetupLogging()
	cfg = loaded
	return nil
}
