// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lxmgqq/Pediatric-Expert-Database/internal/combine"
	"github.com/lxmgqq/Pediatric-Expert-Database/internal/snapshot"
)

var combineCmd = &cobra.Command{
	Use:   "combine",
	Short: "Reconcile model keywords with controlled-vocabulary terms",
	Long: `Combine merges each record's two keyword sources into one short list.
Terms on the exclusion list (and their near-matches) are dropped; when both
sources are present, a keyword survives only if some vocabulary term
resembles it. Records reconciled earlier are left alone.`,
	RunE: runCombine,
}

func init() {
	rootCmd.AddCommand(combineCmd)
}

func runCombine(cmd *cobra.Command, args []string) error {
	cfg := pipelineConfig()
	log, closer, err := openAudit(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	store, err := snapshot.NewStore(cfg.OutputDir, log)
	if err != nil {
		return err
	}
	snap, err := store.LoadLatest()
	if err != nil {
		return err
	}
	if len(snap.Records) == 0 {
		return fmt.Errorf("no snapshot to reconcile; run a crawl first")
	}

	engine := combine.NewEngine(cfg.Combine)
	updated := engine.Apply(snap.Records)

	path, err := store.Save(snap.Records, time.Now())
	if err != nil {
		return err
	}
	fmt.Printf("reconciled %d record(s)\nsnapshot: %s\n", updated, path)
	return nil
}
