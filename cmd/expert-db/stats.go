// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lxmgqq/Pediatric-Expert-Database/internal/snapshot"
	"github.com/lxmgqq/Pediatric-Expert-Database/internal/stats"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Build and query the analysis index",
	Long: `Stats maintains a SQLite index derived from the latest snapshot and
roster. Use subcommands to rebuild the index or query distributions:
journals, top authors, countries, reconciled terms, and publication years.
Full-text search covers titles and abstracts.`,
}

var statsBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Rebuild the index from the latest snapshot and roster",
	RunE:  runStatsBuild,
}

var statsJournalsCmd = &cobra.Command{
	Use:   "journals",
	Short: "Journals by paper count",
	RunE:  countRunner((*stats.Store).JournalDistribution),
}

var statsAuthorsCmd = &cobra.Command{
	Use:   "authors",
	Short: "Resolved authors by publication count",
	RunE:  countRunner((*stats.Store).TopAuthors),
}

var statsCountriesCmd = &cobra.Command{
	Use:   "countries",
	Short: "Countries by resolved author count",
	RunE:  countRunner((*stats.Store).CountryCounts),
}

var statsTermsCmd = &cobra.Command{
	Use:   "terms",
	Short: "Reconciled keywords by occurrence",
	RunE:  countRunner((*stats.Store).TermFrequencies),
}

var statsYearsCmd = &cobra.Command{
	Use:   "years",
	Short: "Publications per year",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, done, err := statsStore()
		if err != nil {
			return err
		}
		defer done()

		rows, err := store.YearCounts(context.Background())
		if err != nil {
			return err
		}
		return printCounts(cmd, rows)
	},
}

var statsSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Full-text search over titles and abstracts",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatsSearch,
}

func init() {
	statsCmd.PersistentFlags().Int("max-results", 0, "row cap for queries (0 = configured default)")
	statsCmd.PersistentFlags().Bool("json", false, "output results as JSON")

	statsCmd.AddCommand(statsBuildCmd)
	statsCmd.AddCommand(statsJournalsCmd)
	statsCmd.AddCommand(statsAuthorsCmd)
	statsCmd.AddCommand(statsCountriesCmd)
	statsCmd.AddCommand(statsTermsCmd)
	statsCmd.AddCommand(statsYearsCmd)
	statsCmd.AddCommand(statsSearchCmd)
	rootCmd.AddCommand(statsCmd)
}

func statsStore() (*stats.Store, func(), error) {
	cfg := pipelineConfig()
	store, err := stats.NewStore(cfg.OutputDir, cfg.Stats)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { store.Close() }, nil
}

// countRunner adapts one name/count aggregation into a cobra handler.
func countRunner(query func(*stats.Store, context.Context, int) ([]stats.CountRow, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("max-results")

		store, done, err := statsStore()
		if err != nil {
			return err
		}
		defer done()

		rows, err := query(store, context.Background(), limit)
		if err != nil {
			return err
		}
		return printCounts(cmd, rows)
	}
}

func printCounts(cmd *cobra.Command, rows []stats.CountRow) error {
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return json.NewEncoder(os.Stdout).Encode(rows)
	}
	for _, r := range rows {
		fmt.Printf("%6d  %s\n", r.Count, r.Name)
	}
	return nil
}

func runStatsBuild(cmd *cobra.Command, args []string) error {
	cfg := pipelineConfig()
	log, closer, err := openAudit(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	snapStore, err := snapshot.NewStore(cfg.OutputDir, log)
	if err != nil {
		return err
	}
	snap, err := snapStore.LoadLatest()
	if err != nil {
		return err
	}
	roster, err := snapStore.LoadLatestRoster()
	if err != nil {
		return err
	}

	store, done, err := statsStore()
	if err != nil {
		return err
	}
	defer done()

	summary, err := store.Ingest(context.Background(), snap, roster)
	if err != nil {
		return err
	}
	fmt.Printf("indexed %d paper(s), %d author identit(ies)\n", summary.Papers, summary.Authors)
	return nil
}

func runStatsSearch(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("max-results")

	store, done, err := statsStore()
	if err != nil {
		return err
	}
	defer done()

	hits, err := store.Search(context.Background(), args[0], limit)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return json.NewEncoder(os.Stdout).Encode(hits)
	}
	for _, hit := range hits {
		fmt.Printf("%s  %s (%s, %s)\n", hit.PMID, hit.Title, hit.Journal, hit.Date)
	}
	return nil
}
