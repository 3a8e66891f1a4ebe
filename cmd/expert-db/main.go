// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the expert-db CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lxmgqq/Pediatric-Expert-Database/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// secretDefault returns fallback when set, else the secret value for key.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

// rootCmd is the base command for the expert-db CLI.
var rootCmd = &cobra.Command{
	Use:   "expert-db",
	Short: "Bibliometric pipeline for the pediatric surgery expert database",
	Long: `expert-db builds an expert database from the published literature. It
crawls the listing service for new records, enriches them with abstracts,
keywords, controlled-vocabulary terms and author geography, resolves
same-named authors into identities, reconciles the keyword sources, and
indexes everything for analysis queries.

Each pipeline stage is a subcommand: crawl, enrich, resolve, combine, and
stats. Stages persist dated snapshot files, so they can run independently
and incrementally.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./expert-db.yaml or ~/.config/expert-db/config.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("expert-db")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "expert-db"))
		}
	}

	viper.SetEnvPrefix("EXPERT_DB")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
