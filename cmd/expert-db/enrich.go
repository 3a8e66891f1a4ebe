// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lxmgqq/Pediatric-Expert-Database/internal/enrich"
	"github.com/lxmgqq/Pediatric-Expert-Database/internal/llm"
	"github.com/lxmgqq/Pediatric-Expert-Database/internal/pubmed"
	"github.com/lxmgqq/Pediatric-Expert-Database/internal/snapshot"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Fill derived record fields (details, keywords, mesh, geography)",
	Long: `Enrich runs one enrichment pass over the latest snapshot. Each pass
selects only records where the target field is still absent, calls its
oracle once per record, and checkpoints progress so an interrupted run
resumes where it stopped. A non-empty field is never overwritten.`,
}

var enrichDetailsCmd = &cobra.Command{
	Use:   "details",
	Short: "Fetch abstracts, page keywords and author affiliations",
	RunE:  runEnrichDetails,
}

var enrichKeywordsCmd = &cobra.Command{
	Use:   "keywords",
	Short: "Extract keywords from abstracts via the model",
	RunE:  runEnrichKeywords,
}

var enrichMeshCmd = &cobra.Command{
	Use:   "mesh",
	Short: "Fetch controlled-vocabulary terms in batches",
	RunE:  runEnrichMesh,
}

var enrichGeographyCmd = &cobra.Command{
	Use:   "geography",
	Short: "Parse organization, city and country from affiliations",
	RunE:  runEnrichGeography,
}

func init() {
	enrichCmd.PersistentFlags().Int("limit", 0, "process at most this many entities (0 = all)")

	enrichDetailsCmd.Flags().StringSlice("pmid", nil, "restrict to these identifiers")
	enrichDetailsCmd.Flags().Bool("force", false, "re-fetch even when the abstract is present (with --pmid)")

	enrichCmd.AddCommand(enrichDetailsCmd)
	enrichCmd.AddCommand(enrichKeywordsCmd)
	enrichCmd.AddCommand(enrichMeshCmd)
	enrichCmd.AddCommand(enrichGeographyCmd)
	rootCmd.AddCommand(enrichCmd)
}

// scheduler builds the enrichment scheduler shared by the passes.
func scheduler(cmd *cobra.Command) (*enrich.Scheduler, func(), error) {
	cfg := pipelineConfig()
	if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 {
		cfg.Enrich.Limit = limit
	}

	log, closer, err := openAudit(cfg)
	if err != nil {
		return nil, nil, err
	}
	store, err := snapshot.NewStore(cfg.OutputDir, log)
	if err != nil {
		closer.Close()
		return nil, nil, err
	}

	s := enrich.New(store, cfg.OutputDir, cfg.Enrich, log, os.Stdout)
	return s, func() { closer.Close() }, nil
}

func reportSummary(sum enrich.Summary) error {
	fmt.Printf("\nenriched: %d, skipped: %d, failed: %d\n", sum.Enriched, sum.Skipped, sum.Failed)
	if sum.HasFailures() {
		return fmt.Errorf("%d entit(ies) failed enrichment", sum.Failed)
	}
	return nil
}

func runEnrichDetails(cmd *cobra.Command, args []string) error {
	pmids, _ := cmd.Flags().GetStringSlice("pmid")
	force, _ := cmd.Flags().GetBool("force")

	s, done, err := scheduler(cmd)
	if err != nil {
		return err
	}
	defer done()

	cfg := pipelineConfig()
	client := pubmed.New(cfg.PubMed, cfg.Crawl.PageSize)

	sum, err := s.Details(context.Background(), client, enrich.DetailOptions{PMIDs: pmids, Force: force})
	if err != nil {
		return err
	}
	return reportSummary(sum)
}

func runEnrichKeywords(cmd *cobra.Command, args []string) error {
	s, done, err := scheduler(cmd)
	if err != nil {
		return err
	}
	defer done()

	client := llm.New(pipelineConfig().LLM)
	sum, err := s.Keywords(context.Background(), llm.NewKeywordExtractor(client))
	if err != nil {
		return err
	}
	return reportSummary(sum)
}

func runEnrichMesh(cmd *cobra.Command, args []string) error {
	s, done, err := scheduler(cmd)
	if err != nil {
		return err
	}
	defer done()

	cfg := pipelineConfig()
	client := pubmed.New(cfg.PubMed, cfg.Crawl.PageSize)

	sum, err := s.Mesh(context.Background(), client)
	if err != nil {
		return err
	}
	return reportSummary(sum)
}

func runEnrichGeography(cmd *cobra.Command, args []string) error {
	s, done, err := scheduler(cmd)
	if err != nil {
		return err
	}
	defer done()

	client := llm.New(pipelineConfig().LLM)
	sum, err := s.Geography(context.Background(), llm.NewAffiliationParser(client))
	if err != nil {
		return err
	}
	return reportSummary(sum)
}
