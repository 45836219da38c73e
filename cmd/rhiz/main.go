package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	noColor      bool
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:           "rhiz",
	Short:         "rhiz keeps track of who you know and how well",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch outputFormat {
		case formatText, formatJSON, formatYAML:
		default:
			return fmt.Errorf("unknown --format %q (want text, json or yaml)", outputFormat)
		}
		if os.Getenv("NO_COLOR") != "" {
			noColor = true
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", formatText, "output format: text, json or yaml")

	rootCmd.AddCommand(startCmd, stopCmd, statusCmd)
	rootCmd.AddCommand(contactsCmd, logCmd, trustCmd)
	rootCmd.AddCommand(matchCmd, similarCmd, goalsCmd)
	rootCmd.AddCommand(suggestCmd, draftCmd)
	rootCmd.AddCommand(configCmd, dataCmd)
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
