// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lxmgqq/Pediatric-Expert-Database/internal/llm"
	"github.com/lxmgqq/Pediatric-Expert-Database/internal/resolve"
	"github.com/lxmgqq/Pediatric-Expert-Database/internal/snapshot"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Cluster same-named authors into identities",
	Long: `Resolve assigns an identity number to every author roster row. Rows with
the same affiliation text merge directly; the remaining pairs are judged by
the model from affiliation evidence alone, with the full rationale kept in
the audit log. Rows sharing an identity are folded into one roster row with
the union of their identifiers and the longest affiliation as
representative.`,
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
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

	judge := llm.NewJudge(llm.New(cfg.LLM))
	r := resolve.New(store, cfg.OutputDir, cfg.Resolve, log, os.Stdout)

	sum, err := r.Resolve(context.Background(), judge)
	if err != nil {
		return err
	}

	fmt.Printf("\nresolved %d author(s) into %d identit(ies), %d oracle call(s)\n",
		sum.Authors, sum.Groups, sum.OracleCalls)
	if sum.HasFailures() {
		fmt.Printf("%d judgment(s) failed and defaulted to different\n", sum.Failed)
	}
	return nil
}
