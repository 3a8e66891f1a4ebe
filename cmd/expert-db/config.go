// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"io"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/lxmgqq/Pediatric-Expert-Database/internal/audit"
	"github.com/lxmgqq/Pediatric-Expert-Database/pkg/types"
)

func init() {
	viper.SetDefault("output_dir", "output")
	viper.SetDefault("audit_log", "")

	viper.SetDefault("crawl.page_size", 200)
	viper.SetDefault("crawl.max_pages", 50)
	viper.SetDefault("crawl.split_threshold", 10000)
	viper.SetDefault("crawl.page_delay", "2s")
	viper.SetDefault("crawl.page_jitter", "1s")
	viper.SetDefault("crawl.gap_policy", types.GapWarn)

	viper.SetDefault("pubmed.batch_delay", "500ms")

	viper.SetDefault("enrich.checkpoint_every", 5)
	viper.SetDefault("enrich.workers", 4)
	viper.SetDefault("enrich.call_delay", "1s")

	viper.SetDefault("resolve.pair_delay", "1s")
	viper.SetDefault("resolve.checkpoint_every", 5)

	viper.SetDefault("combine.similarity_threshold", 0.6)
	viper.SetDefault("combine.max_terms", 5)

	viper.SetDefault("llm.temperature", 0.1)
	viper.SetDefault("llm.timeout", "5m")
	viper.SetDefault("llm.max_retries", 3)
	viper.SetDefault("llm.retry_delay", "2s")

	viper.SetDefault("stats.max_results", 20)
}

// pipelineConfig assembles the stage configurations from viper and the
// loaded secrets. Secrets fill only keys the config file leaves empty.
func pipelineConfig() types.PipelineConfig {
	cfg := types.PipelineConfig{
		OutputDir: viper.GetString("output_dir"),
		AuditLog:  viper.GetString("audit_log"),
		Crawl: types.CrawlConfig{
			PageSize:       viper.GetInt("crawl.page_size"),
			MaxPages:       viper.GetInt("crawl.max_pages"),
			SplitThreshold: viper.GetInt("crawl.split_threshold"),
			PageDelay:      viper.GetDuration("crawl.page_delay"),
			PageJitter:     viper.GetDuration("crawl.page_jitter"),
			GapPolicy:      viper.GetString("crawl.gap_policy"),
		},
		PubMed: types.PubMedConfig{
			BaseURL:    viper.GetString("pubmed.base_url"),
			APIKey:     secretDefault("ncbi-api-key", viper.GetString("pubmed.api_key")),
			Email:      secretDefault("entrez-email", viper.GetString("pubmed.email")),
			RateLimit:  viper.GetFloat64("pubmed.rate_limit"),
			Burst:      viper.GetInt("pubmed.burst"),
			BatchSize:  viper.GetInt("pubmed.batch_size"),
			BatchDelay: viper.GetDuration("pubmed.batch_delay"),
		},
		Enrich: types.EnrichConfig{
			CheckpointEvery: viper.GetInt("enrich.checkpoint_every"),
			Workers:         viper.GetInt("enrich.workers"),
			Limit:           viper.GetInt("enrich.limit"),
			CallDelay:       viper.GetDuration("enrich.call_delay"),
		},
		Resolve: types.ResolveConfig{
			PairDelay:       viper.GetDuration("resolve.pair_delay"),
			CheckpointEvery: viper.GetInt("resolve.checkpoint_every"),
		},
		Combine: types.CombineConfig{
			SimilarityThreshold: viper.GetFloat64("combine.similarity_threshold"),
			MaxTerms:            viper.GetInt("combine.max_terms"),
			ExcludeTerms:        viper.GetStringSlice("combine.exclude_terms"),
		},
		LLM: types.LLMConfig{
			Endpoint:    secretDefault("llm-endpoint", viper.GetString("llm.endpoint")),
			Model:       secretDefault("llm-model", viper.GetString("llm.model")),
			Temperature: viper.GetFloat64("llm.temperature"),
			Timeout:     viper.GetDuration("llm.timeout"),
			MaxRetries:  viper.GetInt("llm.max_retries"),
			RetryDelay:  viper.GetDuration("llm.retry_delay"),
		},
		Stats: types.StatsConfig{
			MaxResults: viper.GetInt("stats.max_results"),
		},
	}
	cfg.PubMed.Timeout = viper.GetDuration("pubmed.timeout")
	cfg.PubMed.UserAgent = viper.GetString("pubmed.user_agent")
	return cfg
}

// openAudit returns the run's structured logger. With no audit_log
// configured, the path defaults to output_dir/audit.log; the literal
// "none" disables it.
func openAudit(cfg types.PipelineConfig) (zerolog.Logger, io.Closer, error) {
	path := cfg.AuditLog
	switch path {
	case "none":
		return audit.Nop(), nopCloser{}, nil
	case "":
		path = filepath.Join(cfg.OutputDir, "audit.log")
	}
	return audit.Open(path)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
