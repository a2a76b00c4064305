package main

import (
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"

	"volumeapi/internal/config"
)

// @title Volume API
// @version 1.0
// @description Volumes with attachments and a searchable metadata index.
// @BasePath /
func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "volumeapi",
	Short: "Volume and attachment repository with a searchable metadata index",
	Long: `volumeapi stores volumes (free-form metadata documents) together with their
binary attachments and keeps a full-text index of the metadata in step with
the document store and the blob store.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("settings", "", "YAML settings file overlaid on the environment")
	rootCmd.PersistentFlags().Bool("debug", false, "Debug logging to the console")

	serveCmd.Flags().String("port", "", "Port to listen on")
	serveCmd.Flags().String("address", "", "Address to bind to")
	serveCmd.Flags().Int("max-results-per-page", 0, "Largest page size a query may request")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

// loadConfig reads env and the settings file, then applies flags that were set explicitly.
func loadConfig(cmd *cobra.Command) (*config.AppConfig, error) {
	settings, _ := cmd.Flags().GetString("settings")
	cfg, err := config.LoadFile(settings)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("debug") {
		cfg.Debug, _ = flags.GetBool("debug")
	}
	if flags.Changed("port") {
		cfg.Port, _ = flags.GetString("port")
	}
	if flags.Changed("address") {
		cfg.Address, _ = flags.GetString("address")
	}
	if flags.Changed("max-results-per-page") {
		cfg.MaxResultsPerPage, _ = flags.GetInt("max-results-per-page")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
